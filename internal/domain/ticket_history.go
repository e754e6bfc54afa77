package domain

import "time"

// TicketChangeType captures which transition a history entry records.
type TicketChangeType string

const (
	ChangeTypeCreated  TicketChangeType = "CREATED"
	ChangeTypeClosed   TicketChangeType = "CLOSED"
	ChangeTypeReopened TicketChangeType = "REOPENED"
	ChangeTypeArchived TicketChangeType = "ARCHIVED"
)

// TicketHistory is an immutable audit trail entry. Entries outlive the
// ticket record, so an archived ticket keeps its history.
type TicketHistory struct {
	ID          string
	ChannelID   string
	Number      int
	ChangeType  TicketChangeType
	ChangedByID string
	Details     map[string]any
	CreatedAt   time.Time
}
