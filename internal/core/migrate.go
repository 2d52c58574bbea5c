// AngelaMos | 2026
// migrate.go

package core

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/carterperez-dev/templates/go-auth/migrations"
)

// Migrate applies the embedded schema migrations.
func (d *Database) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, d.DB.DB, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
