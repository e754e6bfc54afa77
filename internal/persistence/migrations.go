package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "001_ticket_documents",
		sql: `CREATE TABLE IF NOT EXISTS ticket_documents (
    name TEXT PRIMARY KEY,
    body JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	},
	{
		name: "002_seed_documents",
		sql:  seedDocumentsSQL,
	},
	{
		name: "003_ticket_history",
		sql: `CREATE TABLE IF NOT EXISTS ticket_history (
    id UUID PRIMARY KEY,
    channel_id TEXT NOT NULL,
    ticket_number INTEGER NOT NULL,
    change_type TEXT NOT NULL,
    changed_by_id TEXT NOT NULL,
    details JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	},
	{
		name: "004_ticket_history_channel_idx",
		sql:  `CREATE INDEX IF NOT EXISTS ticket_history_channel_idx ON ticket_history (channel_id, created_at)`,
	},
}

const seedDocumentsSQL = `INSERT INTO ticket_documents (name, body)
VALUES ('counter', '{"count":0}'), ('tickets', '{}')
ON CONFLICT (name) DO NOTHING`

// RunMigrations creates the document and history tables and seeds default
// documents.
// Each statement is idempotent.
func RunMigrations(ctx context.Context, db execer, logger *zap.Logger) error {
	if db == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	for _, m := range migrations {
		logger.Info("applying migration", zap.String("name", m.name))
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}

	logger.Info("migrations applied", zap.Int("count", len(migrations)))
	return nil
}
