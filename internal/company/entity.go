// AngelaMos | 2026
// entity.go

package company

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

var OwnerPermissions = []string{
	"company:read",
	"company:update",
	"members:manage",
	"billing:manage",
}

type Company struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	OwnerID   string    `db:"owner_id"`
	CreatedAt time.Time `db:"created_at"`
}

type Member struct {
	CompanyID   string      `db:"company_id"`
	CompanyName string      `db:"company_name"`
	UserID      string      `db:"user_id"`
	Role        string      `db:"role"`
	Permissions Permissions `db:"permissions"`
	CreatedAt   time.Time   `db:"created_at"`
}

// Permissions maps a JSONB array column. NULL and empty both read back
// as an empty, non-nil slice.
type Permissions []string

func (p *Permissions) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = Permissions{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan permissions: unsupported type %T", src)
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan permissions: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*p = out
	return nil
}

func (p Permissions) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal([]string(p))
	if err != nil {
		return nil, fmt.Errorf("encode permissions: %w", err)
	}
	return b, nil
}
