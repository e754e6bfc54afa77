package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// HistoryReader lists audit entries for a channel.
type HistoryReader interface {
	List(ctx context.Context, channelID string) ([]domain.TicketHistory, error)
}

// HistoryHandler serves ticket audit history.
type HistoryHandler struct {
	history HistoryReader
}

// NewHistoryHandler constructs handler.
func NewHistoryHandler(history HistoryReader) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// ListHistory GET /admin/tickets/:channelId/history. Archived tickets keep
// their history, so an unknown channel yields an empty list.
func (h *HistoryHandler) ListHistory(c *fiber.Ctx) error {
	channelID := c.Params("channelId")
	entries, err := h.history.List(c.UserContext(), channelID)
	if err != nil {
		return apperrors.NewUnavailable("ticket history unavailable", err)
	}
	items := make([]dto.TicketHistoryEntry, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.NewTicketHistoryEntry(e))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": fiber.Map{"count": len(items)},
	})
}
