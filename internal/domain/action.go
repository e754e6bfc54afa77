package domain

import "strings"

// ActionKind identifies what a button press asks for.
type ActionKind string

const (
	ActionCreate  ActionKind = "create"
	ActionClose   ActionKind = "close"
	ActionReopen  ActionKind = "reopen"
	ActionArchive ActionKind = "archive"
	ActionUnknown ActionKind = "unknown"
)

// Button custom ids used inside ticket channels.
const (
	ButtonClose   = "close_ticket"
	ButtonReopen  = "reopen_ticket"
	ButtonArchive = "archive_ticket"

	createButtonPrefix = "ticket_"
)

// Action is the parsed form of a button custom id. Category is only set for
// ActionCreate and is empty when the id carried the create prefix but named
// no known category.
type Action struct {
	Kind     ActionKind
	Category Category
	CustomID string
}

// ParseAction maps a button custom id to an Action.
func ParseAction(customID string) Action {
	action := Action{Kind: ActionUnknown, CustomID: customID}
	switch customID {
	case ButtonClose:
		action.Kind = ActionClose
		return action
	case ButtonReopen:
		action.Kind = ActionReopen
		return action
	case ButtonArchive:
		action.Kind = ActionArchive
		return action
	}
	if strings.HasPrefix(customID, createButtonPrefix) {
		action.Kind = ActionCreate
		for _, c := range Categories() {
			if c.ButtonID() == customID {
				action.Category = c
				break
			}
		}
	}
	return action
}
