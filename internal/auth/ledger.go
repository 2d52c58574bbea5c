// AngelaMos | 2026
// ledger.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/go-auth/internal/core"
)

// Ledger owns the refresh token lifecycle: issue, rotate with reuse
// detection, and revoke.
type Ledger struct {
	repo   Repository
	codec  *TokenCodec
	logger *slog.Logger
	now    func() time.Time
}

func NewLedger(repo Repository, codec *TokenCodec, logger *slog.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		codec:  codec,
		logger: logger.With("component", "refresh_ledger"),
		now:    codec.now,
	}
}

// Issue mints an access and refresh pair and records the refresh token.
// An empty familyID starts a new family.
func (l *Ledger) Issue(
	ctx context.Context,
	claims AccessTokenClaims,
	familyID string,
	persistent bool,
	meta SessionMeta,
) (*IssuedTokens, error) {
	accessToken, accessExp, err := l.codec.IssueAccessToken(claims)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := l.codec.IssueRefreshToken(claims.UserID, familyID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	record := &RefreshToken{
		ID:         refresh.ID,
		UserID:     claims.UserID,
		TokenHash:  refresh.Hash,
		FamilyID:   refresh.FamilyID,
		ExpiresAt:  refresh.ExpiresAt,
		Persistent: persistent,
		UserAgent:  meta.UserAgent,
		IPAddress:  meta.IPAddress,
	}

	if err := l.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &IssuedTokens{
		UserID:           claims.UserID,
		SessionID:        record.ID,
		FamilyID:         record.FamilyID,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
		Persistent:       persistent,
	}, nil
}

// Rotate exchanges a refresh token for its successor. Presenting a token
// that is unknown, revoked, or loses a concurrent rotation revokes its
// whole family; that revocation is committed even though Rotate fails.
func (l *Ledger) Rotate(
	ctx context.Context,
	raw string,
	meta SessionMeta,
) (*Rotation, error) {
	ctx, span := core.StartSpan(ctx, "refresh_ledger.rotate")
	defer span.End()

	claims, err := l.codec.VerifyRefreshToken(raw)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			return nil, core.NewAuthFailure(core.ReasonExpiredToken, err)
		}
		return nil, core.NewAuthFailure(core.ReasonInvalidToken, err)
	}

	hash := l.codec.HashToken(raw)
	var (
		rotation *Rotation
		failure  error
	)

	txErr := l.repo.InTx(ctx, func(repo Repository) error {
		record, err := repo.FindByHash(ctx, hash)
		switch {
		case errors.Is(err, core.ErrNotFound):
			failure = l.reuseDetected(ctx, repo, claims.FamilyID, claims.UserID, "unknown_token")
			return nil
		case err != nil:
			return err
		}

		if record.IsRevoked() {
			failure = l.reuseDetected(ctx, repo, record.FamilyID, record.UserID, "revoked_token")
			return nil
		}

		if record.IsExpiredAt(l.now()) {
			failure = core.NewAuthFailure(
				core.ReasonExpiredToken,
				fmt.Errorf("rotate refresh token: %w", core.ErrTokenExpired),
			)
			return nil
		}

		next, err := l.codec.IssueRefreshToken(record.UserID, record.FamilyID)
		if err != nil {
			return fmt.Errorf("issue refresh token: %w", err)
		}

		if err := repo.Revoke(ctx, record.ID, &next.ID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				failure = l.reuseDetected(ctx, repo, record.FamilyID, record.UserID, "lost_rotation")
				return nil
			}
			return err
		}

		successor := &RefreshToken{
			ID:         next.ID,
			UserID:     record.UserID,
			TokenHash:  next.Hash,
			FamilyID:   record.FamilyID,
			ExpiresAt:  next.ExpiresAt,
			Persistent: record.Persistent,
			UserAgent:  meta.UserAgent,
			IPAddress:  meta.IPAddress,
		}
		if err := repo.Create(ctx, successor); err != nil {
			return err
		}

		rotation = &Rotation{
			UserID:           successor.UserID,
			SessionID:        successor.ID,
			FamilyID:         successor.FamilyID,
			RefreshToken:     next.Token,
			RefreshExpiresAt: successor.ExpiresAt,
			Persistent:       successor.Persistent,
		}
		return nil
	})

	if failure != nil {
		if txErr != nil {
			l.logger.ErrorContext(ctx, "family revocation not committed",
				"family_id", claims.FamilyID,
				"error", txErr,
			)
		}
		return nil, failure
	}

	if txErr != nil {
		core.SetSpanError(ctx, txErr)
		return nil, fmt.Errorf("rotate refresh token: %w", txErr)
	}

	span.SetAttributes(attribute.String("family_id", rotation.FamilyID))
	return rotation, nil
}

func (l *Ledger) reuseDetected(
	ctx context.Context,
	repo Repository,
	familyID, userID, cause string,
) error {
	revoked, err := repo.RevokeFamily(ctx, familyID)
	if err != nil {
		l.logger.ErrorContext(ctx, "revoke family after reuse failed",
			"family_id", familyID,
			"error", err,
		)
	}

	l.logger.WarnContext(ctx, "refresh token reuse detected",
		"user_id", userID,
		"family_id", familyID,
		"cause", cause,
		"revoked", revoked,
	)
	core.AddSpanEvent(ctx, "refresh_token.reuse_detected",
		attribute.String("family_id", familyID),
		attribute.String("cause", cause),
	)

	return core.NewAuthFailure(
		core.ReasonTokenReuse,
		fmt.Errorf("rotate refresh token: %w", core.ErrTokenReuse),
	)
}

// IsBlacklisted reports whether raw may no longer be used: unknown or
// revoked hashes are blacklisted.
func (l *Ledger) IsBlacklisted(ctx context.Context, raw string) (bool, error) {
	record, err := l.repo.FindByHash(ctx, l.codec.HashToken(raw))
	if errors.Is(err, core.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return record.IsRevoked(), nil
}

// Revoke retires the single record behind raw if it belongs to userID.
// Unknown, foreign and already revoked tokens are a no-op.
func (l *Ledger) Revoke(ctx context.Context, raw, userID string) error {
	record, err := l.repo.FindByHash(ctx, l.codec.HashToken(raw))
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if record.UserID != userID || record.IsRevoked() {
		return nil
	}

	if err := l.repo.Revoke(ctx, record.ID, nil); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return err
	}

	return nil
}

func (l *Ledger) RevokeFamily(ctx context.Context, familyID string) error {
	_, err := l.repo.RevokeFamily(ctx, familyID)
	return err
}

func (l *Ledger) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return l.repo.RevokeAllForUser(ctx, userID)
}

func (l *Ledger) ActiveSessions(ctx context.Context, userID string) ([]RefreshToken, error) {
	return l.repo.ListActiveForUser(ctx, userID)
}

// RevokeSession retires one session owned by userID.
func (l *Ledger) RevokeSession(ctx context.Context, userID, sessionID string) error {
	record, err := l.repo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if record.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := l.repo.Revoke(ctx, record.ID, nil); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return err
	}

	return nil
}
