package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// TicketReader is the read side of the ticket registry.
type TicketReader interface {
	List() []domain.Ticket
	Get(channelID string) (domain.Ticket, bool)
	Counter() int
}

// TicketsHandler serves the admin ticket endpoints.
type TicketsHandler struct {
	tickets TicketReader
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets TicketReader) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// ListTickets GET /admin/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0)
	for _, t := range h.tickets.List() {
		if query.Matches(t) {
			items = append(items, dto.NewTicketSummary(t))
		}
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": fiber.Map{
			"count":   len(items),
			"counter": h.tickets.Counter(),
		},
	})
}

// GetTicket GET /admin/tickets/:channelId.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	channelID := c.Params("channelId")
	ticket, ok := h.tickets.Get(channelID)
	if !ok {
		return apperrors.NewNotFound("ticket not found", map[string]any{"channel_id": channelID})
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) (dto.TicketListQuery, error) {
	var q dto.TicketListQuery
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := domain.TicketStatus(strings.ToLower(raw))
		if !status.Valid() {
			return q, apperrors.NewValidationError("invalid status", map[string]any{"status": raw})
		}
		q.Status = status
	}
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		category, ok := domain.ParseCategory(raw)
		if !ok {
			return q, apperrors.NewValidationError("invalid category", map[string]any{"category": raw})
		}
		q.Category = category
	}
	return q, nil
}
