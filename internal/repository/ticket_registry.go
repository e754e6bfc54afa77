package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/persistence"
)

// ErrTicketNotFound is returned when a channel has no ticket record.
var ErrTicketNotFound = errors.New("ticket not found")

// TicketRegistry is the in-memory mirror of the persisted tickets and counter.
// It is the only writer of the store. Each mutation is flushed before it
// returns; when the flush fails the in-memory change is undone.
type TicketRegistry struct {
	mu      sync.Mutex
	store   persistence.Store
	counter int
	tickets map[string]domain.Ticket
}

// NewTicketRegistry loads the current state from store.
func NewTicketRegistry(ctx context.Context, store persistence.Store) (*TicketRegistry, error) {
	counter, err := store.LoadCounter(ctx)
	if err != nil {
		return nil, fmt.Errorf("load counter: %w", err)
	}
	tickets, err := store.LoadTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}
	if tickets == nil {
		tickets = make(map[string]domain.Ticket)
	}
	return &TicketRegistry{store: store, counter: counter, tickets: tickets}, nil
}

// HasOpenTicket reports whether userID already has an open ticket.
func (r *TicketRegistry) HasOpenTicket(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.RequesterID == userID && t.IsOpen() {
			return true
		}
	}
	return false
}

// AllocateNumber advances and persists the counter, returning the new value.
func (r *TicketRegistry) AllocateNumber(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.counter + 1
	if err := r.store.SaveCounter(ctx, next); err != nil {
		return 0, fmt.Errorf("save counter: %w", err)
	}
	r.counter = next
	return next, nil
}

// Create inserts a ticket keyed by its channel id. Callers check
// HasOpenTicket first. CreatedAt is kept at the millisecond precision the
// store persists, so the record reads the same after a reload.
func (r *TicketRegistry) Create(ctx context.Context, ticket domain.Ticket) error {
	if ticket.ChannelID == "" {
		return errors.New("ticket channel id required")
	}
	ticket.CreatedAt = ticket.CreatedAt.UTC().Truncate(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, existed := r.tickets[ticket.ChannelID]
	r.tickets[ticket.ChannelID] = ticket
	if err := r.flushLocked(ctx); err != nil {
		if existed {
			r.tickets[ticket.ChannelID] = previous
		} else {
			delete(r.tickets, ticket.ChannelID)
		}
		return err
	}
	return nil
}

// Get returns the ticket for channelID.
func (r *TicketRegistry) Get(channelID string) (domain.Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[channelID]
	return t, ok
}

// SetStatus changes the status of an existing ticket.
func (r *TicketRegistry) SetStatus(ctx context.Context, channelID string, status domain.TicketStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[channelID]
	if !ok {
		return ErrTicketNotFound
	}
	previous := t
	t.Status = status
	r.tickets[channelID] = t
	if err := r.flushLocked(ctx); err != nil {
		r.tickets[channelID] = previous
		return err
	}
	return nil
}

// Remove deletes the ticket for channelID.
func (r *TicketRegistry) Remove(ctx context.Context, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[channelID]
	if !ok {
		return ErrTicketNotFound
	}
	delete(r.tickets, channelID)
	if err := r.flushLocked(ctx); err != nil {
		r.tickets[channelID] = t
		return err
	}
	return nil
}

// List returns a snapshot of all tickets ordered by number.
func (r *TicketRegistry) List() []domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return persistence.SortedTickets(r.tickets)
}

// Counter returns the last allocated ticket number.
func (r *TicketRegistry) Counter() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counter
}

// OpenCount returns how many tickets are open.
func (r *TicketRegistry) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tickets {
		if t.IsOpen() {
			n++
		}
	}
	return n
}

func (r *TicketRegistry) flushLocked(ctx context.Context) error {
	snapshot := make(map[string]domain.Ticket, len(r.tickets))
	for k, v := range r.tickets {
		snapshot[k] = v
	}
	if err := r.store.SaveTickets(ctx, snapshot); err != nil {
		return fmt.Errorf("save tickets: %w", err)
	}
	return nil
}
