package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations returns the migration set compiled into the binary.
func Migrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrate applies pending goose migrations. When dir is empty the embedded
// migrations are used.
func Migrate(ctx context.Context, db *sqlx.DB, dir string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsys := Migrations()
	if dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("migrations dir %s: %w", dir, err)
		}
		fsys = os.DirFS(dir)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db.DB, fsys)
	if err != nil {
		return fmt.Errorf("goose new provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	for _, r := range results {
		logger.Info("migration applied", zap.Int64("version", r.Source.Version), zap.Duration("duration", r.Duration))
	}
	return nil
}
