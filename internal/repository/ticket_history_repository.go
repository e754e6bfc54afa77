package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByChannel(ctx context.Context, channelID string) ([]domain.TicketHistory, error)
}

type historyQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type ticketHistoryRepository struct {
	db historyQuerier
}

// NewTicketHistoryRepository builds repository on a pgx pool or any
// compatible querier.
func NewTicketHistoryRepository(db historyQuerier) TicketHistoryRepository {
	return &ticketHistoryRepository{db: db}
}

// Create inserts history, assigning an ID when it has none, and fills in
// CreatedAt from the database.
func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	details, err := encodeDetails(history.Details)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO ticket_history (id, channel_id, ticket_number, change_type, changed_by_id, details)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	if err := r.db.QueryRow(ctx, query,
		history.ID,
		history.ChannelID,
		history.Number,
		string(history.ChangeType),
		history.ChangedByID,
		details,
	).Scan(&history.CreatedAt); err != nil {
		return fmt.Errorf("insert ticket history: %w", err)
	}
	return nil
}

func (r *ticketHistoryRepository) ListByChannel(ctx context.Context, channelID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, channel_id, ticket_number, change_type, changed_by_id, details, created_at
        FROM ticket_history WHERE channel_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list ticket history: %w", err)
	}
	defer rows.Close()

	result := make([]domain.TicketHistory, 0)
	for rows.Next() {
		var (
			history    domain.TicketHistory
			changeType string
			details    []byte
		)
		if err := rows.Scan(
			&history.ID,
			&history.ChannelID,
			&history.Number,
			&changeType,
			&history.ChangedByID,
			&details,
			&history.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ticket history: %w", err)
		}
		history.ChangeType = domain.TicketChangeType(changeType)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &history.Details); err != nil {
				return nil, fmt.Errorf("decode history details: %w", err)
			}
		}
		result = append(result, history)
	}
	return result, rows.Err()
}

func encodeDetails(details map[string]any) (string, error) {
	if len(details) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("encode history details: %w", err)
	}
	return string(data), nil
}
