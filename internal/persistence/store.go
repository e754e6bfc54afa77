package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// Store persists the ticket counter and the ticket map as two documents.
// Every save replaces the whole document and returns only once it is durable.
// There is no cross-process locking: a single writer is assumed.
type Store interface {
	// Ensure creates default storage (counter 0, no tickets) when none exists.
	Ensure(ctx context.Context) error
	LoadCounter(ctx context.Context) (int, error)
	SaveCounter(ctx context.Context, count int) error
	LoadTickets(ctx context.Context) (map[string]domain.Ticket, error)
	SaveTickets(ctx context.Context, tickets map[string]domain.Ticket) error
	Ping(ctx context.Context) error
	Close()
}

type counterDocument struct {
	Count int `json:"count"`
}

type ticketDocument struct {
	UserID    string `json:"userId"`
	Number    int    `json:"number"`
	Category  string `json:"category"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"`
}

const (
	emptyCounterJSON = `{"count":0}`
	emptyTicketsJSON = `{}`
)

func encodeCounter(count int) ([]byte, error) {
	return json.MarshalIndent(counterDocument{Count: count}, "", "  ")
}

func decodeCounter(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	var doc counterDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("decode counter: %w", err)
	}
	if doc.Count < 0 {
		return 0, fmt.Errorf("decode counter: negative count %d", doc.Count)
	}
	return doc.Count, nil
}

func encodeTickets(tickets map[string]domain.Ticket) ([]byte, error) {
	docs := make(map[string]ticketDocument, len(tickets))
	for channelID, t := range tickets {
		docs[channelID] = ticketDocument{
			UserID:    t.RequesterID,
			Number:    t.Number,
			Category:  string(t.Category),
			Status:    string(t.Status),
			CreatedAt: t.CreatedAt.UnixMilli(),
		}
	}
	return json.MarshalIndent(docs, "", "  ")
}

func decodeTickets(data []byte) (map[string]domain.Ticket, error) {
	tickets := make(map[string]domain.Ticket)
	if len(data) == 0 {
		return tickets, nil
	}
	var docs map[string]ticketDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode tickets: %w", err)
	}
	for channelID, doc := range docs {
		category, ok := domain.ParseCategory(doc.Category)
		if !ok {
			return nil, fmt.Errorf("decode tickets: channel %s has unknown category %q", channelID, doc.Category)
		}
		status := domain.TicketStatus(doc.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("decode tickets: channel %s has unknown status %q", channelID, doc.Status)
		}
		tickets[channelID] = domain.Ticket{
			ChannelID:   channelID,
			RequesterID: doc.UserID,
			Number:      doc.Number,
			Category:    category,
			Status:      status,
			CreatedAt:   time.UnixMilli(doc.CreatedAt).UTC(),
		}
	}
	return tickets, nil
}

// SortedTickets returns the tickets ordered by number.
func SortedTickets(tickets map[string]domain.Ticket) []domain.Ticket {
	result := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result
}
