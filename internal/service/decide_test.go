package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func record(status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		ChannelID:   "chan-1",
		RequesterID: "user-a",
		Number:      4,
		Category:    domain.CategoryStore,
		Status:      status,
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		input    DecisionInput
		wantKind IntentKind
		wantCode string
		wantMsg  string
	}{
		{
			name:     "outside guild",
			input:    DecisionInput{Action: domain.ParseAction("ticket_soporte"), ActorID: "user-a"},
			wantKind: IntentReject,
			wantCode: errorutil.CodeForbidden,
			wantMsg:  msgOutsideGuild,
		},
		{
			name:     "create",
			input:    DecisionInput{Action: domain.ParseAction("ticket_soporte"), ActorID: "user-a", InGuild: true},
			wantKind: IntentCreate,
		},
		{
			name:     "create with unknown category",
			input:    DecisionInput{Action: domain.ParseAction("ticket_unknown"), ActorID: "user-a", InGuild: true},
			wantKind: IntentReject,
			wantCode: errorutil.CodeValidation,
			wantMsg:  msgInvalidCategory,
		},
		{
			name:     "create while a ticket is open",
			input:    DecisionInput{Action: domain.ParseAction("ticket_tienda"), ActorID: "user-a", InGuild: true, HasOpenTicket: true},
			wantKind: IntentReject,
			wantCode: errorutil.CodeConflict,
			wantMsg:  msgAlreadyOpen,
		},
		{
			name:     "close in unregistered channel",
			input:    DecisionInput{Action: domain.ParseAction(domain.ButtonClose), ActorID: "user-a", InGuild: true},
			wantKind: IntentReject,
			wantCode: errorutil.CodeNotFound,
			wantMsg:  msgNotRegistered,
		},
		{
			name:     "unknown button in unregistered channel",
			input:    DecisionInput{Action: domain.ParseAction("poll_vote"), ActorID: "user-a", InGuild: true},
			wantKind: IntentReject,
			wantCode: errorutil.CodeNotFound,
		},
		{
			name:     "unknown button in ticket channel",
			input:    DecisionInput{Action: domain.ParseAction("poll_vote"), ActorID: "user-a", InGuild: true, Record: record(domain.TicketStatusOpen)},
			wantKind: IntentIgnore,
		},
		{
			name:     "requester closes",
			input:    DecisionInput{Action: domain.ParseAction(domain.ButtonClose), ActorID: "user-a", InGuild: true, Record: record(domain.TicketStatusOpen)},
			wantKind: IntentClose,
		},
		{
			name:     "staff closes",
			input:    DecisionInput{Action: domain.ParseAction(domain.ButtonClose), ActorID: "mod", ActorIsStaff: true, InGuild: true, Record: record(domain.TicketStatusOpen)},
			wantKind: IntentClose,
		},
		{
			name:     "stranger closes",
			input:    DecisionInput{Action: domain.ParseAction(domain.ButtonClose), ActorID: "user-b", InGuild: true, Record: record(domain.TicketStatusOpen)},
			wantKind: IntentReject,
			wantCode: errorutil.CodeForbidden,
			wantMsg:  msgForbiddenClose,
		},
		{
			name:     "close twice",
			input:    DecisionInput{Action: domain.ParseAction(domain.ButtonClose), ActorID: "user-a", InGuild: true, Record: record(domain.TicketStatusClosed)},
			wantKind: IntentReject,
			wantCode: errorutil.CodeConflict,
		},
		{
			name:     "reopen closed",
			input:    DecisionInput{Action: domain.ParseAction(domain.ButtonReopen), ActorID: "mod", ActorIsStaff: true, InGuild: true, Record: record(domain.TicketStatusClosed)},
			wantKind: IntentReopen,
		},
		{
			name:     "stranger reopens",
			input:    DecisionInput{Action: domain.ParseAction(domain.ButtonReopen), ActorID: "user-b", InGuild: true, Record: record(domain.TicketStatusClosed)},
			wantKind: IntentReject,
			wantCode: errorutil.CodeForbidden,
			wantMsg:  msgForbiddenReopen,
		},
		{
			name:     "archive closed",
			input:    DecisionInput{Action: domain.ParseAction(domain.ButtonArchive), ActorID: "mod", ActorIsStaff: true, InGuild: true, Record: record(domain.TicketStatusClosed)},
			wantKind: IntentArchive,
		},
		{
			name:     "archive open",
			input:    DecisionInput{Action: domain.ParseAction(domain.ButtonArchive), ActorID: "mod", ActorIsStaff: true, InGuild: true, Record: record(domain.TicketStatusOpen)},
			wantKind: IntentReject,
			wantCode: errorutil.CodeConflict,
			wantMsg:  msgArchiveNeedsClose,
		},
		{
			name:     "authorization checked before status",
			input:    DecisionInput{Action: domain.ParseAction(domain.ButtonArchive), ActorID: "user-b", InGuild: true, Record: record(domain.TicketStatusOpen)},
			wantKind: IntentReject,
			wantCode: errorutil.CodeForbidden,
			wantMsg:  msgForbiddenArchive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.input)
			assert.Equal(t, tt.wantKind, got.Kind)
			if tt.wantKind != IntentReject {
				assert.NoError(t, got.Reason)
				return
			}
			require.Error(t, got.Reason)
			de := errorutil.ToDomainError(got.Reason)
			assert.Equal(t, tt.wantCode, de.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, de.Message)
			}
		})
	}
}

func TestDecideCarriesContext(t *testing.T) {
	create := Decide(DecisionInput{Action: domain.ParseAction("ticket_jugadores"), ActorID: "user-a", InGuild: true})
	assert.Equal(t, domain.CategoryPlayerReport, create.Category)

	rec := record(domain.TicketStatusClosed)
	archive := Decide(DecisionInput{Action: domain.ParseAction(domain.ButtonArchive), ActorID: "user-a", InGuild: true, Record: rec})
	assert.Equal(t, *rec, archive.Ticket)
}
