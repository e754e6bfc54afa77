// Package gatewaytest provides an in-memory guild implementing gateway.Gateway
// for tests. It records every call and lets tests inject failures.
package gatewaytest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spec-kit/ticket-bot/internal/gateway"
)

// Author of messages posted through SendMessage.
const (
	BotID   = "bot"
	BotName = "TicketBot#0001"
)

// Call records one gateway call.
type Call struct {
	Method    string
	ChannelID string
}

// Upload is a file posted to a channel.
type Upload struct {
	Name string
	Body string
}

// ChannelState is the fake's view of a channel.
type ChannelState struct {
	Channel    gateway.Channel
	Topic      string
	Overwrites map[string]gateway.Overwrite
	History    []gateway.Message
	Sent       []gateway.OutgoingMessage
	Uploads    []Upload
}

// Guild is an in-memory guild. Failure fields make the matching call fail
// until they are reset to nil.
type Guild struct {
	ID string

	FailCreateChannel   error
	FailEditPermissions error
	FailSetTopic        error
	FailDeleteChannel   error
	FailFetchMessages   error
	FailDeleteMessage   error
	// FailSend maps channel ids to the error SendMessage returns there.
	FailSend map[string]error
	// FailFetchChannel maps channel ids to the error FetchChannel returns.
	FailFetchChannel map[string]error

	mu       sync.Mutex
	channels map[string]*ChannelState
	calls    []Call
	nextID   int
	clock    time.Time
}

// NewGuild returns an empty guild.
func NewGuild(id string) *Guild {
	return &Guild{
		ID:               id,
		FailSend:         map[string]error{},
		FailFetchChannel: map[string]error{},
		channels:         map[string]*ChannelState{},
		clock:            time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (g *Guild) newIDLocked(prefix string) string {
	g.nextID++
	return fmt.Sprintf("%s-%06d", prefix, g.nextID)
}

func (g *Guild) tickLocked() time.Time {
	g.clock = g.clock.Add(time.Second)
	return g.clock
}

func (g *Guild) recordLocked(method, channelID string) {
	g.calls = append(g.calls, Call{Method: method, ChannelID: channelID})
}

// AddChannel creates a channel directly, bypassing CreateChannel.
func (g *Guild) AddChannel(name string, kind gateway.ChannelKind) gateway.Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := gateway.Channel{ID: g.newIDLocked("chan"), GuildID: g.ID, Name: name, Kind: kind}
	g.channels[ch.ID] = &ChannelState{Channel: ch, Overwrites: map[string]gateway.Overwrite{}}
	return ch
}

// Post appends a user message to a channel's history.
func (g *Guild) Post(channelID, author, content string, attachments ...string) gateway.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.channels[channelID]
	if !ok {
		panic("gatewaytest: unknown channel " + channelID)
	}
	msg := gateway.Message{
		ID:          g.newIDLocked("msg"),
		AuthorID:    author,
		Author:      author,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   g.tickLocked(),
	}
	st.History = append(st.History, msg)
	return msg
}

// Channel returns a copy of the channel state.
func (g *Guild) Channel(channelID string) (ChannelState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.channels[channelID]
	if !ok {
		return ChannelState{}, false
	}
	cp := *st
	cp.Overwrites = make(map[string]gateway.Overwrite, len(st.Overwrites))
	for k, v := range st.Overwrites {
		cp.Overwrites[k] = v
	}
	cp.History = append([]gateway.Message(nil), st.History...)
	cp.Sent = append([]gateway.OutgoingMessage(nil), st.Sent...)
	cp.Uploads = append([]Upload(nil), st.Uploads...)
	return cp, true
}

// ChannelByName finds a channel by name.
func (g *Guild) ChannelByName(name string) (ChannelState, bool) {
	g.mu.Lock()
	var id string
	for cid, st := range g.channels {
		if st.Channel.Name == name {
			id = cid
			break
		}
	}
	g.mu.Unlock()
	if id == "" {
		return ChannelState{}, false
	}
	return g.Channel(id)
}

// ChannelCount returns how many channels exist.
func (g *Guild) ChannelCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.channels)
}

// Calls returns the recorded calls.
func (g *Guild) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// CallsTo returns how many times method was called.
func (g *Guild) CallsTo(method string) int {
	n := 0
	for _, c := range g.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (g *Guild) CreateChannel(_ context.Context, spec gateway.ChannelSpec) (gateway.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recordLocked("CreateChannel", "")
	if g.FailCreateChannel != nil {
		return gateway.Channel{}, g.FailCreateChannel
	}
	ch := gateway.Channel{
		ID:       g.newIDLocked("chan"),
		GuildID:  spec.GuildID,
		Name:     spec.Name,
		Kind:     gateway.ChannelKindText,
		ParentID: spec.ParentID,
	}
	st := &ChannelState{Channel: ch, Overwrites: map[string]gateway.Overwrite{}}
	for _, ow := range spec.Overwrites {
		st.Overwrites[ow.SubjectID] = ow
	}
	g.channels[ch.ID] = st
	return ch, nil
}

func (g *Guild) FetchChannel(_ context.Context, channelID string) (gateway.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recordLocked("FetchChannel", channelID)
	if err := g.FailFetchChannel[channelID]; err != nil {
		return gateway.Channel{}, err
	}
	st, ok := g.channels[channelID]
	if !ok {
		return gateway.Channel{}, gateway.ErrNotFound
	}
	return st.Channel, nil
}

func (g *Guild) EditPermissions(_ context.Context, channelID string, overwrite gateway.Overwrite) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recordLocked("EditPermissions", channelID)
	if g.FailEditPermissions != nil {
		return g.FailEditPermissions
	}
	st, ok := g.channels[channelID]
	if !ok {
		return gateway.ErrNotFound
	}
	st.Overwrites[overwrite.SubjectID] = overwrite
	return nil
}

func (g *Guild) SetTopic(_ context.Context, channelID, topic string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recordLocked("SetTopic", channelID)
	if g.FailSetTopic != nil {
		return g.FailSetTopic
	}
	st, ok := g.channels[channelID]
	if !ok {
		return gateway.ErrNotFound
	}
	st.Topic = topic
	return nil
}

func (g *Guild) DeleteChannel(_ context.Context, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recordLocked("DeleteChannel", channelID)
	if g.FailDeleteChannel != nil {
		return g.FailDeleteChannel
	}
	if _, ok := g.channels[channelID]; !ok {
		return gateway.ErrNotFound
	}
	delete(g.channels, channelID)
	return nil
}

func (g *Guild) SendMessage(_ context.Context, channelID string, msg gateway.OutgoingMessage) error {
	uploads := make([]Upload, 0, len(msg.Files))
	for _, f := range msg.Files {
		body, err := io.ReadAll(f.Reader)
		if err != nil {
			return err
		}
		uploads = append(uploads, Upload{Name: f.Name, Body: string(body)})
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.recordLocked("SendMessage", channelID)
	if err := g.FailSend[channelID]; err != nil {
		return err
	}
	st, ok := g.channels[channelID]
	if !ok {
		return gateway.ErrNotFound
	}
	st.Sent = append(st.Sent, msg)
	st.Uploads = append(st.Uploads, uploads...)
	st.History = append(st.History, gateway.Message{
		ID:        g.newIDLocked("msg"),
		AuthorID:  BotID,
		Author:    BotName,
		Content:   msg.Content,
		CreatedAt: g.tickLocked(),
	})
	return nil
}

func (g *Guild) DeleteMessage(_ context.Context, channelID, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recordLocked("DeleteMessage", channelID)
	if g.FailDeleteMessage != nil {
		return g.FailDeleteMessage
	}
	st, ok := g.channels[channelID]
	if !ok {
		return gateway.ErrNotFound
	}
	for i, m := range st.History {
		if m.ID == messageID {
			st.History = append(st.History[:i], st.History[i+1:]...)
			return nil
		}
	}
	return gateway.ErrNotFound
}

func (g *Guild) FetchMessages(_ context.Context, channelID string, limit int, beforeID string) ([]gateway.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recordLocked("FetchMessages", channelID)
	if g.FailFetchMessages != nil {
		return nil, g.FailFetchMessages
	}
	st, ok := g.channels[channelID]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	end := len(st.History)
	if beforeID != "" {
		end = -1
		for i, m := range st.History {
			if m.ID == beforeID {
				end = i
				break
			}
		}
		if end < 0 {
			return nil, nil
		}
	}
	var page []gateway.Message
	for i := end - 1; i >= 0 && len(page) < limit; i-- {
		page = append(page, st.History[i])
	}
	return page, nil
}

var _ gateway.Gateway = (*Guild)(nil)
