package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"copy-trader-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded position, wallet and counter
// schemas. Every file is written idempotent (CREATE TABLE IF NOT EXISTS), so
// reapplying on startup is safe.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}
