package dto

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TicketSummary is a registry entry as served by the admin API.
type TicketSummary struct {
	ChannelID    string              `json:"channel_id"`
	ChannelName  string              `json:"channel_name"`
	RequesterID  string              `json:"requester_id"`
	Number       int                 `json:"number"`
	Category     domain.Category     `json:"category"`
	CategorySlug string              `json:"category_slug"`
	Status       domain.TicketStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
}

// TicketListQuery captures the admin list filters.
type TicketListQuery struct {
	Status   domain.TicketStatus
	Category domain.Category
}

// Matches reports whether t passes the filters. Zero fields match anything.
func (q TicketListQuery) Matches(t domain.Ticket) bool {
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if q.Category != "" && t.Category != q.Category {
		return false
	}
	return true
}

// NewTicketSummary maps a ticket to its response form.
func NewTicketSummary(t domain.Ticket) TicketSummary {
	return TicketSummary{
		ChannelID:    t.ChannelID,
		ChannelName:  domain.ChannelName(t.Category, t.Number),
		RequesterID:  t.RequesterID,
		Number:       t.Number,
		Category:     t.Category,
		CategorySlug: t.Category.Slug(),
		Status:       t.Status,
		CreatedAt:    t.CreatedAt.UTC(),
	}
}

// TicketHistoryEntry is the admin view of one audit entry.
type TicketHistoryEntry struct {
	ID          string         `json:"id"`
	ChannelID   string         `json:"channel_id"`
	Number      int            `json:"number"`
	ChangeType  string         `json:"change_type"`
	ChangedByID string         `json:"changed_by_id"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewTicketHistoryEntry converts an audit entry.
func NewTicketHistoryEntry(h domain.TicketHistory) TicketHistoryEntry {
	return TicketHistoryEntry{
		ID:          h.ID,
		ChannelID:   h.ChannelID,
		Number:      h.Number,
		ChangeType:  string(h.ChangeType),
		ChangedByID: h.ChangedByID,
		Details:     h.Details,
		CreatedAt:   h.CreatedAt,
	}
}
