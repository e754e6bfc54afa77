package gatewaytest

import (
	"context"
	"sync"

	"github.com/spec-kit/ticket-bot/internal/gateway"
)

// Reply is a recorded interaction reply.
type Reply struct {
	Content   string
	Ephemeral bool
}

// Responder records interaction responses.
type Responder struct {
	// FailUpdate, when set, is returned by UpdateButtons.
	FailUpdate error

	mu        sync.Mutex
	replies   []Reply
	updates   [][]gateway.Button
	responded bool
}

// NewResponder returns an empty recorder.
func NewResponder() *Responder {
	return &Responder{}
}

func (r *Responder) Reply(_ context.Context, content string, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, Reply{Content: content, Ephemeral: ephemeral})
	r.responded = true
	return nil
}

func (r *Responder) UpdateButtons(_ context.Context, buttons []gateway.Button) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdate != nil {
		return r.FailUpdate
	}
	r.updates = append(r.updates, append([]gateway.Button(nil), buttons...))
	r.responded = true
	return nil
}

func (r *Responder) Responded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.responded
}

// Replies returns the recorded replies.
func (r *Responder) Replies() []Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reply(nil), r.replies...)
}

// LastReply returns the most recent reply, or a zero Reply.
func (r *Responder) LastReply() Reply {
	replies := r.Replies()
	if len(replies) == 0 {
		return Reply{}
	}
	return replies[len(replies)-1]
}

// Updates returns every button set sent through UpdateButtons.
func (r *Responder) Updates() [][]gateway.Button {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]gateway.Button(nil), r.updates...)
}

// ButtonIDs lists the ids of the latest button update.
func (r *Responder) ButtonIDs() []string {
	updates := r.Updates()
	if len(updates) == 0 {
		return nil
	}
	last := updates[len(updates)-1]
	ids := make([]string, 0, len(last))
	for _, b := range last {
		ids = append(ids, b.ID)
	}
	return ids
}

var _ gateway.Responder = (*Responder)(nil)
