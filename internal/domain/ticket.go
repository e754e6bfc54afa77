package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets. Archival is not a
// status: an archived ticket has no record at all.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	return s == TicketStatusOpen || s == TicketStatusClosed
}

// Category is the kind of request a ticket was opened for.
type Category string

const (
	CategorySupport      Category = "support"
	CategoryStore        Category = "store"
	CategoryBug          Category = "bug"
	CategoryPlayerReport Category = "player-report"
)

type categoryInfo struct {
	slug     string
	buttonID string
	label    string
}

var categories = map[Category]categoryInfo{
	CategorySupport:      {slug: "soporte", buttonID: "ticket_soporte", label: "🆘 Soporte de Usuario"},
	CategoryStore:        {slug: "tienda", buttonID: "ticket_tienda", label: "🛒 Tienda"},
	CategoryBug:          {slug: "bugs", buttonID: "ticket_bug", label: "🐞 Reporte de Bugs"},
	CategoryPlayerReport: {slug: "jugadores", buttonID: "ticket_jugadores", label: "🚫 Reporte de Jugadores"},
}

// Categories lists every category in menu order.
func Categories() []Category {
	return []Category{CategorySupport, CategoryStore, CategoryBug, CategoryPlayerReport}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// Slug is the short name used in channel and transcript names.
func (c Category) Slug() string {
	return categories[c].slug
}

// ButtonID is the custom id of the menu button that opens this category.
func (c Category) ButtonID() string {
	return categories[c].buttonID
}

// Label is the menu button text.
func (c Category) Label() string {
	return categories[c].label
}

// ParseCategory accepts either the canonical value or the slug.
func ParseCategory(raw string) (Category, bool) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if c := Category(raw); c.Valid() {
		return c, true
	}
	for c, info := range categories {
		if info.slug == raw {
			return c, true
		}
	}
	return "", false
}

// Ticket is the persisted record of a ticket channel.
type Ticket struct {
	ChannelID   string
	RequesterID string
	Number      int
	Category    Category
	Status      TicketStatus
	CreatedAt   time.Time
}

// IsOpen reports whether the ticket is currently open.
func (t Ticket) IsOpen() bool {
	return t.Status == TicketStatusOpen
}

// ChannelName returns the channel name for a category and ticket number,
// e.g. ticket-soporte-001.
func ChannelName(category Category, number int) string {
	return fmt.Sprintf("ticket-%s-%03d", category.Slug(), number)
}

// TranscriptFileName returns the archive artifact name, e.g. ticket-bugs-7.txt.
func TranscriptFileName(category Category, number int) string {
	return fmt.Sprintf("ticket-%s-%d.txt", category.Slug(), number)
}

// ChannelTopic returns the informational topic set on a ticket channel.
func ChannelTopic(requesterID string, number int) string {
	return fmt.Sprintf("ticket|user:%s|num:%d", requesterID, number)
}
