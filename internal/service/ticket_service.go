package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	msgCreated        = "✅ Tu ticket fue creado: %s"
	msgCreateFailed   = "❌ No se pudo crear el canal del ticket (permiso o categoría)."
	msgClosed         = "✅ Ticket cerrado."
	msgReopened       = "♻️ Ticket reabierto."
	msgHistoryFailed  = "❌ No se pudo leer el historial del ticket."
	msgArtifactFailed = "❌ Error al generar el archivo de log."
	msgLogsMissing    = "❌ Canal de logs no encontrado. Revisa LOGS_CHANNEL_ID en .env."
	msgCreateBusy     = "⏳ Ya estamos creando tu ticket."
	msgChannelBusy    = "⏳ Ya hay una operación en curso en este ticket."

	colorTicketIntro = 0x00AA00
	colorArchiveLog  = 0x3498DB
)

var errLogsChannelUnset = errors.New("logs channel not configured")

// TicketStore is the registry surface the controller needs.
type TicketStore interface {
	HasOpenTicket(userID string) bool
	AllocateNumber(ctx context.Context) (int, error)
	Create(ctx context.Context, ticket domain.Ticket) error
	Get(channelID string) (domain.Ticket, bool)
	SetStatus(ctx context.Context, channelID string, status domain.TicketStatus) error
	Remove(ctx context.Context, channelID string) error
}

// TicketService runs the ticket lifecycle in response to button presses.
type TicketService struct {
	tickets          TicketStore
	gateway          gateway.Gateway
	extractor        *transcript.Extractor
	staff            auth.StaffPolicy
	dispatcher       events.Dispatcher
	metrics          *observability.Metrics
	logger           *zap.Logger
	ticketCategoryID string
	logsChannelID    string
	transcriptDir    string
	now              func() time.Time
	busy             *inflight
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Tickets    TicketStore
	Gateway    gateway.Gateway
	Extractor  *transcript.Extractor
	Staff      auth.StaffPolicy
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger

	// TicketCategoryID is the channel category new tickets are grouped
	// under. Empty or invalid means no grouping.
	TicketCategoryID string
	LogsChannelID    string
	TranscriptDir    string
	Now              func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	extractor := deps.Extractor
	if extractor == nil {
		extractor = transcript.NewExtractor(deps.Gateway, transcript.DefaultPageSize)
	}
	return &TicketService{
		tickets:          deps.Tickets,
		gateway:          deps.Gateway,
		extractor:        extractor,
		staff:            deps.Staff,
		dispatcher:       deps.Dispatcher,
		metrics:          deps.Metrics,
		logger:           logger,
		ticketCategoryID: deps.TicketCategoryID,
		logsChannelID:    deps.LogsChannelID,
		transcriptDir:    deps.TranscriptDir,
		now:              now,
		busy:             newInflight(),
	}
}

// Handle processes one button press. Rejections and failures are reported
// to the actor privately; the returned error is the one they were shown.
func (s *TicketService) Handle(ctx context.Context, in gateway.Interaction) (err error) {
	action := domain.ParseAction(in.CustomID)
	defer func() {
		if r := recover(); r != nil {
			err = errorutil.NewInternalError(fmt.Errorf("panic handling %q: %v", in.CustomID, r))
		}
		if err != nil {
			s.fail(ctx, in, action, err)
		}
	}()
	return s.handle(ctx, in, action)
}

func (s *TicketService) handle(ctx context.Context, in gateway.Interaction, action domain.Action) error {
	if key, msg := busyKey(in, action); key != "" {
		if !s.busy.acquire(key) {
			return errorutil.NewConflict(msg, map[string]any{"key": key})
		}
		defer s.busy.release(key)
	}

	var current *domain.Ticket
	if t, ok := s.tickets.Get(in.ChannelID); ok {
		current = &t
	}
	intent := Decide(DecisionInput{
		Action:        action,
		ActorID:       in.ActorID,
		ActorIsStaff:  s.staff.IsStaff(in),
		InGuild:       in.InGuild(),
		HasOpenTicket: s.tickets.HasOpenTicket(in.ActorID),
		Record:        current,
	})

	switch intent.Kind {
	case IntentReject:
		return intent.Reason
	case IntentIgnore:
		s.logger.Debug("ignoring button", zap.String("custom_id", in.CustomID), zap.String("channel_id", in.ChannelID))
		return nil
	case IntentCreate:
		return s.create(ctx, in, intent.Category)
	case IntentClose:
		return s.close(ctx, in, intent.Ticket)
	case IntentReopen:
		return s.reopen(ctx, in, intent.Ticket)
	case IntentArchive:
		return s.archive(ctx, in, intent.Ticket)
	default:
		return errorutil.NewInternalError(fmt.Errorf("unhandled intent %q", intent.Kind))
	}
}

// busyKey names the in-flight marker an interaction holds while it runs.
func busyKey(in gateway.Interaction, action domain.Action) (string, string) {
	switch action.Kind {
	case domain.ActionCreate:
		return "requester:" + in.ActorID, msgCreateBusy
	case domain.ActionClose, domain.ActionReopen, domain.ActionArchive:
		return "channel:" + in.ChannelID, msgChannelBusy
	default:
		return "", ""
	}
}

func (s *TicketService) create(ctx context.Context, in gateway.Interaction, category domain.Category) error {
	// The number is spent even if channel creation fails below.
	number, err := s.tickets.AllocateNumber(ctx)
	if err != nil {
		return errorutil.NewInternalError(fmt.Errorf("allocate ticket number: %w", err))
	}

	spec := gateway.ChannelSpec{
		GuildID:    in.GuildID,
		Name:       domain.ChannelName(category, number),
		ParentID:   s.resolveParent(ctx),
		Overwrites: s.ticketOverwrites(in.GuildID, in.ActorID),
	}
	channel, err := s.gateway.CreateChannel(ctx, spec)
	if err != nil {
		return errorutil.NewUnavailable(msgCreateFailed, fmt.Errorf("create channel %s: %w", spec.Name, err))
	}

	ticket := domain.Ticket{
		ChannelID:   channel.ID,
		RequesterID: in.ActorID,
		Number:      number,
		Category:    category,
		Status:      domain.TicketStatusOpen,
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		s.bestEffort("delete unregistered channel", channel.ID, s.gateway.DeleteChannel(ctx, channel.ID))
		return errorutil.NewInternalError(fmt.Errorf("register ticket %s: %w", channel.ID, err))
	}

	s.bestEffort("set topic", channel.ID, s.gateway.SetTopic(ctx, channel.ID, domain.ChannelTopic(in.ActorID, number)))
	s.bestEffort("send intro message", channel.ID, s.gateway.SendMessage(ctx, channel.ID, s.introMessage(ticket)))

	s.logger.Info("ticket created",
		zap.String("channel_id", channel.ID),
		zap.String("requester_id", in.ActorID),
		zap.Int("number", number),
		zap.String("category", string(category)))
	s.succeeded(ctx, events.EventTicketCreated, domain.ActionCreate, ticket, in.ActorID, nil)

	s.reply(ctx, in, fmt.Sprintf(msgCreated, gateway.ChannelMention(channel.ID)))
	return nil
}

// resolveParent returns the configured category id when it names a channel
// category, and "" otherwise.
func (s *TicketService) resolveParent(ctx context.Context) string {
	if s.ticketCategoryID == "" {
		s.logger.Warn("ticket category not configured; creating ticket without parent")
		return ""
	}
	parent, err := s.gateway.FetchChannel(ctx, s.ticketCategoryID)
	if err != nil {
		s.logger.Warn("ticket category not found; creating ticket without parent",
			zap.String("category_id", s.ticketCategoryID), zap.Error(err))
		return ""
	}
	if parent.Kind != gateway.ChannelKindCategory {
		s.logger.Warn("ticket category id is not a category; creating ticket without parent",
			zap.String("category_id", s.ticketCategoryID))
		return ""
	}
	return parent.ID
}

func (s *TicketService) ticketOverwrites(guildID, requesterID string) []gateway.Overwrite {
	overwrites := []gateway.Overwrite{
		// The @everyone role shares the guild's id.
		{SubjectID: guildID, Subject: gateway.SubjectRole, Deny: gateway.PermissionView},
		{SubjectID: requesterID, Subject: gateway.SubjectMember, Allow: gateway.PermissionParticipate},
	}
	if role := s.staff.StaffRoleID(); role != "" {
		overwrites = append(overwrites, gateway.Overwrite{
			SubjectID: role,
			Subject:   gateway.SubjectRole,
			Allow:     gateway.PermissionParticipate,
		})
	}
	return overwrites
}

func (s *TicketService) introMessage(ticket domain.Ticket) gateway.OutgoingMessage {
	return gateway.OutgoingMessage{
		Content: gateway.UserMention(ticket.RequesterID),
		Embeds: []gateway.Embed{{
			Title: "📂 Ticket: " + ticket.Category.Slug(),
			Description: fmt.Sprintf("Hola %s, describe tu problema y el staff te atenderá. \n\n**Número:** %d",
				gateway.UserMention(ticket.RequesterID), ticket.Number),
			Color:     colorTicketIntro,
			Timestamp: s.now(),
		}},
		Buttons: openButtons(),
	}
}

func openButtons() []gateway.Button {
	return []gateway.Button{{ID: domain.ButtonClose, Label: "🔒 Cerrar", Style: gateway.ButtonDanger}}
}

func closedButtons() []gateway.Button {
	return []gateway.Button{
		{ID: domain.ButtonReopen, Label: "🔓 Reabrir", Style: gateway.ButtonPrimary},
		{ID: domain.ButtonArchive, Label: "📦 Archivar", Style: gateway.ButtonSecondary},
	}
}

func (s *TicketService) close(ctx context.Context, in gateway.Interaction, ticket domain.Ticket) error {
	s.bestEffort("revoke requester view", ticket.ChannelID, s.gateway.EditPermissions(ctx, ticket.ChannelID, gateway.Overwrite{
		SubjectID: ticket.RequesterID,
		Subject:   gateway.SubjectMember,
		Allow:     gateway.PermissionSend | gateway.PermissionReadHistory,
		Deny:      gateway.PermissionView,
	}))
	if err := s.tickets.SetStatus(ctx, ticket.ChannelID, domain.TicketStatusClosed); err != nil {
		return errorutil.NewInternalError(fmt.Errorf("close ticket %s: %w", ticket.ChannelID, err))
	}
	ticket.Status = domain.TicketStatusClosed

	s.logger.Info("ticket closed", zap.String("channel_id", ticket.ChannelID), zap.String("actor_id", in.ActorID))
	s.succeeded(ctx, events.EventTicketClosed, domain.ActionClose, ticket, in.ActorID, nil)
	return s.swapButtons(ctx, in, closedButtons(), msgClosed)
}

func (s *TicketService) reopen(ctx context.Context, in gateway.Interaction, ticket domain.Ticket) error {
	s.bestEffort("restore requester access", ticket.ChannelID, s.gateway.EditPermissions(ctx, ticket.ChannelID, gateway.Overwrite{
		SubjectID: ticket.RequesterID,
		Subject:   gateway.SubjectMember,
		Allow:     gateway.PermissionParticipate,
	}))
	if err := s.tickets.SetStatus(ctx, ticket.ChannelID, domain.TicketStatusOpen); err != nil {
		return errorutil.NewInternalError(fmt.Errorf("reopen ticket %s: %w", ticket.ChannelID, err))
	}
	ticket.Status = domain.TicketStatusOpen

	s.logger.Info("ticket reopened", zap.String("channel_id", ticket.ChannelID), zap.String("actor_id", in.ActorID))
	s.succeeded(ctx, events.EventTicketReopened, domain.ActionReopen, ticket, in.ActorID, nil)
	return s.swapButtons(ctx, in, openButtons(), msgReopened)
}

// swapButtons replaces the pressed message's buttons, falling back to a
// private confirmation when the message cannot be updated.
func (s *TicketService) swapButtons(ctx context.Context, in gateway.Interaction, buttons []gateway.Button, fallback string) error {
	if in.Responder == nil {
		return nil
	}
	if err := in.Responder.UpdateButtons(ctx, buttons); err != nil {
		s.logger.Warn("update buttons failed", zap.String("channel_id", in.ChannelID), zap.Error(err))
		s.reply(ctx, in, fallback)
	}
	return nil
}

// archive uploads the transcript to the logs channel, then drops the record
// and the channel. A failed history fetch aborts before anything is deleted
// instead of archiving an empty "Sin mensajes." transcript.
func (s *TicketService) archive(ctx context.Context, in gateway.Interaction, ticket domain.Ticket) error {
	lines, err := s.extractor.ExtractAll(ctx, ticket.ChannelID)
	if err != nil {
		return errorutil.NewUnavailable(msgHistoryFailed, fmt.Errorf("extract transcript %s: %w", ticket.ChannelID, err))
	}

	name := domain.TranscriptFileName(ticket.Category, ticket.Number)
	path, err := transcript.WriteArtifact(s.transcriptDir, name, transcript.Render(lines))
	if err != nil {
		return errorutil.NewUnavailable(msgArtifactFailed, fmt.Errorf("write transcript %s: %w", name, err))
	}
	defer s.removeArtifact(path)

	if s.logsChannelID == "" {
		return errorutil.NewUnavailable(msgLogsMissing, errLogsChannelUnset)
	}
	if _, err := s.gateway.FetchChannel(ctx, s.logsChannelID); err != nil {
		return errorutil.NewUnavailable(msgLogsMissing, fmt.Errorf("fetch logs channel %s: %w", s.logsChannelID, err))
	}

	uploaded := s.upload(ctx, in, ticket, name, path)

	if err := s.tickets.Remove(ctx, ticket.ChannelID); err != nil {
		return errorutil.NewInternalError(fmt.Errorf("remove ticket %s: %w", ticket.ChannelID, err))
	}
	s.bestEffort("delete ticket channel", ticket.ChannelID, s.gateway.DeleteChannel(ctx, ticket.ChannelID))

	s.logger.Info("ticket archived",
		zap.String("channel_id", ticket.ChannelID),
		zap.String("actor_id", in.ActorID),
		zap.Int("messages", len(lines)),
		zap.Bool("uploaded", uploaded))
	s.succeeded(ctx, events.EventTicketArchived, domain.ActionArchive, ticket, in.ActorID, events.TicketArchivedPayload{
		ChannelName:    domain.ChannelName(ticket.Category, ticket.Number),
		TranscriptName: name,
		MessageCount:   len(lines),
		Uploaded:       uploaded,
	})
	return nil
}

// upload posts the summary and transcript to the logs channel. A failed
// upload is logged and the archive goes on.
func (s *TicketService) upload(ctx context.Context, in gateway.Interaction, ticket domain.Ticket, name, path string) bool {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Error("open transcript failed", zap.String("path", path), zap.Error(err))
		return false
	}
	defer f.Close()

	summary := gateway.Embed{
		Title: "📁 Ticket Archivado",
		Description: fmt.Sprintf("**Canal:** %s\n**Categoría:** %s\n**Número:** %d\n**Abierto por:** %s\n**Archivado por:** %s",
			domain.ChannelName(ticket.Category, ticket.Number),
			ticket.Category.Slug(),
			ticket.Number,
			gateway.UserMention(ticket.RequesterID),
			gateway.UserMention(in.ActorID)),
		Color:     colorArchiveLog,
		Timestamp: s.now(),
	}
	err = s.gateway.SendMessage(ctx, s.logsChannelID, gateway.OutgoingMessage{
		Embeds: []gateway.Embed{summary},
		Files:  []gateway.File{{Name: name, ContentType: "text/plain; charset=utf-8", Reader: f}},
	})
	if err != nil {
		s.logger.Error("upload transcript failed",
			zap.String("channel_id", ticket.ChannelID),
			zap.String("logs_channel_id", s.logsChannelID),
			zap.Error(err))
		return false
	}
	return true
}

func (s *TicketService) removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove transcript failed", zap.String("path", path), zap.Error(err))
	}
}

// bestEffort logs a failed step the operation is allowed to skip.
func (s *TicketService) bestEffort(step, channelID string, err error) {
	if err == nil {
		return
	}
	s.logger.Warn("best-effort step failed",
		zap.String("step", step),
		zap.String("channel_id", channelID),
		zap.Error(err))
}

func (s *TicketService) reply(ctx context.Context, in gateway.Interaction, content string) {
	if in.Responder == nil {
		return
	}
	if err := in.Responder.Reply(ctx, content, true); err != nil {
		s.logger.Warn("reply failed", zap.String("channel_id", in.ChannelID), zap.Error(err))
	}
}

func (s *TicketService) succeeded(ctx context.Context, eventType events.EventType, action domain.ActionKind, ticket domain.Ticket, actorID string, payload interface{}) {
	s.metrics.RecordTransition(string(action), observability.OutcomeSuccess)
	s.publishEvent(ctx, events.Event{
		Type:      eventType,
		ChannelID: ticket.ChannelID,
		Number:    ticket.Number,
		Category:  ticket.Category,
		Requester: ticket.RequesterID,
		ActorID:   actorID,
		Payload:   payload,
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// fail reports err to the actor and records the outcome.
func (s *TicketService) fail(ctx context.Context, in gateway.Interaction, action domain.Action, err error) {
	de := errorutil.ToDomainError(err)
	outcome := observability.OutcomeRejected
	switch de.Code {
	case errorutil.CodeInternal, errorutil.CodeUnavailable:
		outcome = observability.OutcomeFailed
		s.logger.Error("interaction failed",
			zap.String("custom_id", in.CustomID),
			zap.String("channel_id", in.ChannelID),
			zap.String("actor_id", in.ActorID),
			zap.String("code", de.Code),
			zap.Error(err))
	default:
		s.logger.Debug("interaction rejected",
			zap.String("custom_id", in.CustomID),
			zap.String("actor_id", in.ActorID),
			zap.String("code", de.Code))
	}
	s.metrics.RecordTransition(string(action.Kind), outcome)

	if in.Responder != nil && !in.Responder.Responded() {
		s.reply(ctx, in, de.Message)
	}
}
