// AngelaMos | 2026
// templates.go

package email

import (
	"bytes"
	"errors"
	"fmt"
	htemplate "html/template"
	ttemplate "text/template"
)

var ErrTemplateRender = errors.New("email: template render failed")

type linkVars struct {
	Name string
	Link string
	TTL  string
}

type template struct {
	subject string
	html    *htemplate.Template
	text    *ttemplate.Template
}

func mustTemplate(name, subject, html, text string) template {
	return template{
		subject: subject,
		html:    htemplate.Must(htemplate.New(name).Parse(html)),
		text:    ttemplate.Must(ttemplate.New(name).Parse(text)),
	}
}

var (
	verificationTemplate = mustTemplate(
		"verify_email",
		"Verify your email address",
		`<p>Hi {{.Name}},</p>
<p>Confirm your email address by following the link below. It expires in {{.TTL}}.</p>
<p><a href="{{.Link}}">Verify email</a></p>
<p>If you did not create an account you can ignore this message.</p>`,
		`Hi {{.Name}},

Confirm your email address by opening the link below. It expires in {{.TTL}}.

{{.Link}}

If you did not create an account you can ignore this message.
`,
	)

	resetTemplate = mustTemplate(
		"reset_password",
		"Reset your password",
		`<p>Hi {{.Name}},</p>
<p>We received a request to reset your password. The link below expires in {{.TTL}}.</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>If you did not ask for this, no action is needed.</p>`,
		`Hi {{.Name}},

We received a request to reset your password. The link below expires in {{.TTL}}.

{{.Link}}

If you did not ask for this, no action is needed.
`,
	)
)

func (t template) render(to string, vars linkVars) (Message, error) {
	var html, text bytes.Buffer

	if err := t.html.Execute(&html, vars); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrTemplateRender, err)
	}
	if err := t.text.Execute(&text, vars); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrTemplateRender, err)
	}

	return Message{
		To:      to,
		Subject: t.subject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
