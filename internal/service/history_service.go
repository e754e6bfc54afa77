package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

var changeTypeByEvent = map[events.EventType]domain.TicketChangeType{
	events.EventTicketCreated:  domain.ChangeTypeCreated,
	events.EventTicketClosed:   domain.ChangeTypeClosed,
	events.EventTicketReopened: domain.ChangeTypeReopened,
	events.EventTicketArchived: domain.ChangeTypeArchived,
}

// HistoryService writes one audit entry per lifecycle event.
type HistoryService struct {
	repo   repository.TicketHistoryRepository
	logger *zap.Logger
}

// NewHistoryService creates the service.
func NewHistoryService(repo repository.TicketHistoryRepository, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{repo: repo, logger: logger}
}

// Notify records event. Event types outside the lifecycle are ignored.
func (s *HistoryService) Notify(ctx context.Context, event events.Event) error {
	changeType, ok := changeTypeByEvent[event.Type]
	if !ok {
		return nil
	}
	entry := &domain.TicketHistory{
		ID:          event.ID,
		ChannelID:   event.ChannelID,
		Number:      event.Number,
		ChangeType:  changeType,
		ChangedByID: event.ActorID,
		Details:     historyDetails(event),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return err
	}
	s.logger.Debug("ticket history recorded",
		zap.String("channel_id", entry.ChannelID),
		zap.String("change_type", string(entry.ChangeType)))
	return nil
}

// List returns the entries for channelID, oldest first.
func (s *HistoryService) List(ctx context.Context, channelID string) ([]domain.TicketHistory, error) {
	return s.repo.ListByChannel(ctx, channelID)
}

func historyDetails(event events.Event) map[string]any {
	details := map[string]any{
		"category":     string(event.Category),
		"requester_id": event.Requester,
	}
	if p, ok := event.Payload.(events.TicketArchivedPayload); ok {
		details["channel_name"] = p.ChannelName
		details["transcript_name"] = p.TranscriptName
		details["message_count"] = p.MessageCount
		details["uploaded"] = p.Uploaded
	}
	return details
}
