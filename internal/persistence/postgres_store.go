package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const (
	docCounter = "counter"
	docTickets = "tickets"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore keeps each document as one JSONB row of ticket_documents.
type PostgresStore struct {
	db            dbtx
	logger        *zap.Logger
	runMigrations bool
	pg            *Postgres
}

// NewPostgresStore wraps a pool (or any compatible querier). When runMigrations
// is false, Ensure only seeds missing rows and expects the table to exist.
func NewPostgresStore(db dbtx, runMigrations bool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger, runMigrations: runMigrations}
}

// WithPostgres hands pg to the store. Close closes it and Pool returns its
// pool so other tables can share the connection.
func (s *PostgresStore) WithPostgres(pg *Postgres) *PostgresStore {
	s.pg = pg
	return s
}

// Pool returns the pool registered with WithPostgres, or nil.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pg.PoolHandle()
}

func (s *PostgresStore) Ensure(ctx context.Context) error {
	if s.runMigrations {
		return RunMigrations(ctx, s.db, s.logger)
	}
	_, err := s.db.Exec(ctx, seedDocumentsSQL)
	if err != nil {
		return fmt.Errorf("seed documents: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadCounter(ctx context.Context) (int, error) {
	data, err := s.load(ctx, docCounter)
	if err != nil {
		return 0, err
	}
	return decodeCounter(data)
}

func (s *PostgresStore) SaveCounter(ctx context.Context, count int) error {
	data, err := encodeCounter(count)
	if err != nil {
		return err
	}
	return s.save(ctx, docCounter, data)
}

func (s *PostgresStore) LoadTickets(ctx context.Context) (map[string]domain.Ticket, error) {
	data, err := s.load(ctx, docTickets)
	if err != nil {
		return nil, err
	}
	return decodeTickets(data)
}

func (s *PostgresStore) SaveTickets(ctx context.Context, tickets map[string]domain.Ticket) error {
	data, err := encodeTickets(tickets)
	if err != nil {
		return err
	}
	return s.save(ctx, docTickets, data)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pg.Close()
}

func (s *PostgresStore) load(ctx context.Context, name string) ([]byte, error) {
	const query = `SELECT body FROM ticket_documents WHERE name=$1`
	var body []byte
	if err := s.db.QueryRow(ctx, query, name).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load %s document: %w", name, err)
	}
	return body, nil
}

func (s *PostgresStore) save(ctx context.Context, name string, body []byte) error {
	const query = `
        INSERT INTO ticket_documents (name, body, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`
	if _, err := s.db.Exec(ctx, query, name, string(body)); err != nil {
		return fmt.Errorf("save %s document: %w", name, err)
	}
	return nil
}
