package events

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventTicketClosed   EventType = "ticket_closed"
	EventTicketReopened EventType = "ticket_reopened"
	EventTicketArchived EventType = "ticket_archived"
)

// LifecycleEvents lists every event the ticket controller publishes.
func LifecycleEvents() []EventType {
	return []EventType{EventTicketCreated, EventTicketClosed, EventTicketReopened, EventTicketArchived}
}

// Event represents a ticket lifecycle transition.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	ChannelID string          `json:"channel_id"`
	Number    int             `json:"number"`
	Category  domain.Category `json:"category"`
	Requester string          `json:"requester_id"`
	ActorID   string          `json:"actor_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   interface{}     `json:"payload,omitempty"`
}

// TicketArchivedPayload payload.
type TicketArchivedPayload struct {
	ChannelName    string `json:"channel_name"`
	TranscriptName string `json:"transcript_name"`
	MessageCount   int    `json:"message_count"`
	Uploaded       bool   `json:"uploaded"`
}
