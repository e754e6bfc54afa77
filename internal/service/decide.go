package service

import (
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// IntentKind is what the controller should do with an interaction.
type IntentKind string

const (
	IntentCreate  IntentKind = "create"
	IntentClose   IntentKind = "close"
	IntentReopen  IntentKind = "reopen"
	IntentArchive IntentKind = "archive"
	IntentReject  IntentKind = "reject"
	IntentIgnore  IntentKind = "ignore"
)

// Messages shown to the actor when an interaction is rejected.
const (
	msgOutsideGuild      = "❌ Interacción fuera de servidor."
	msgInvalidCategory   = "❌ Categoría inválida."
	msgAlreadyOpen       = "⚠️ Ya tienes un ticket abierto."
	msgNotRegistered     = "❌ Este canal no está registrado como ticket."
	msgForbiddenClose    = "❌ Solo el creador o el staff pueden cerrar el ticket."
	msgForbiddenReopen   = "❌ Solo el creador o el staff pueden reabrir el ticket."
	msgForbiddenArchive  = "❌ Solo el creador o el staff pueden archivar el ticket."
	msgAlreadyClosed     = "⚠️ El ticket ya está cerrado."
	msgAlreadyReopened   = "⚠️ El ticket ya está abierto."
	msgArchiveNeedsClose = "⚠️ Debes cerrar el ticket antes de archivar."
)

// DecisionInput is everything Decide looks at. Record is the registry entry
// for the interaction's channel, nil when the channel is not a ticket.
type DecisionInput struct {
	Action        domain.Action
	ActorID       string
	ActorIsStaff  bool
	InGuild       bool
	HasOpenTicket bool
	Record        *domain.Ticket
}

// Intent is the outcome of Decide. Category is set for IntentCreate, Ticket
// for the in-channel transitions and Reason for IntentReject.
type Intent struct {
	Kind     IntentKind
	Category domain.Category
	Ticket   domain.Ticket
	Reason   error
}

func reject(reason error) Intent {
	return Intent{Kind: IntentReject, Reason: reason}
}

// Decide maps an interaction to an intent without touching the platform.
func Decide(in DecisionInput) Intent {
	if !in.InGuild {
		return reject(errorutil.NewForbidden(msgOutsideGuild))
	}

	if in.Action.Kind == domain.ActionCreate {
		if !in.Action.Category.Valid() {
			return reject(errorutil.NewValidationError(msgInvalidCategory, map[string]any{"custom_id": in.Action.CustomID}))
		}
		if in.HasOpenTicket {
			return reject(errorutil.NewConflict(msgAlreadyOpen, map[string]any{"requester_id": in.ActorID}))
		}
		return Intent{Kind: IntentCreate, Category: in.Action.Category}
	}

	if in.Record == nil {
		return reject(errorutil.NewNotFound(msgNotRegistered, nil))
	}
	ticket := *in.Record
	allowed := in.ActorID == ticket.RequesterID || in.ActorIsStaff

	switch in.Action.Kind {
	case domain.ActionClose:
		if !allowed {
			return reject(errorutil.NewForbidden(msgForbiddenClose))
		}
		if !ticket.IsOpen() {
			return reject(errorutil.NewConflict(msgAlreadyClosed, nil))
		}
		return Intent{Kind: IntentClose, Ticket: ticket}
	case domain.ActionReopen:
		if !allowed {
			return reject(errorutil.NewForbidden(msgForbiddenReopen))
		}
		if ticket.IsOpen() {
			return reject(errorutil.NewConflict(msgAlreadyReopened, nil))
		}
		return Intent{Kind: IntentReopen, Ticket: ticket}
	case domain.ActionArchive:
		if !allowed {
			return reject(errorutil.NewForbidden(msgForbiddenArchive))
		}
		if ticket.Status != domain.TicketStatusClosed {
			return reject(errorutil.NewConflict(msgArchiveNeedsClose, map[string]any{"status": string(ticket.Status)}))
		}
		return Intent{Kind: IntentArchive, Ticket: ticket}
	default:
		return Intent{Kind: IntentIgnore, Ticket: ticket}
	}
}
