// Package gateway defines the chat platform operations the ticket workflow
// depends on. Adapters live in subpackages; every call reports failure
// through its error so callers decide, step by step, whether to discard it.
package gateway

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a channel or message does not exist.
var ErrNotFound = errors.New("gateway: not found")

// ChannelKind classifies channels as far as the workflow cares.
type ChannelKind int

const (
	ChannelKindOther ChannelKind = iota
	ChannelKindText
	ChannelKindCategory
)

// Channel is a guild channel.
type Channel struct {
	ID       string
	GuildID  string
	Name     string
	Kind     ChannelKind
	ParentID string
}

// Permission is a bit set of channel permissions.
type Permission uint8

const (
	PermissionView Permission = 1 << iota
	PermissionSend
	PermissionReadHistory
)

// PermissionParticipate is what a ticket participant needs.
const PermissionParticipate = PermissionView | PermissionSend | PermissionReadHistory

// SubjectKind says whether an overwrite targets a role or a member.
type SubjectKind int

const (
	SubjectRole SubjectKind = iota
	SubjectMember
)

// Overwrite grants and denies permissions for one subject on one channel.
type Overwrite struct {
	SubjectID string
	Subject   SubjectKind
	Allow     Permission
	Deny      Permission
}

// ChannelSpec describes a text channel to create.
type ChannelSpec struct {
	GuildID    string
	Name       string
	ParentID   string
	Overwrites []Overwrite
}

// ButtonStyle selects a button's color.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is a clickable message component.
type Button struct {
	ID    string
	Label string
	Style ButtonStyle
}

// Embed is a rich message block.
type Embed struct {
	Title       string
	Description string
	Color       int
	ImageURL    string
	Timestamp   time.Time
}

// File is an attachment to upload.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// OutgoingMessage is a message to post in a channel. Buttons are laid out in
// a single row.
type OutgoingMessage struct {
	Content string
	Embeds  []Embed
	Buttons []Button
	Files   []File
}

// Message is a posted message as returned by history queries.
type Message struct {
	ID          string
	AuthorID    string
	Author      string
	Content     string
	Attachments []string
	CreatedAt   time.Time
}

// Gateway is the set of platform operations the ticket controller uses.
type Gateway interface {
	CreateChannel(ctx context.Context, spec ChannelSpec) (Channel, error)
	FetchChannel(ctx context.Context, channelID string) (Channel, error)
	EditPermissions(ctx context.Context, channelID string, overwrite Overwrite) error
	SetTopic(ctx context.Context, channelID, topic string) error
	DeleteChannel(ctx context.Context, channelID string) error
	SendMessage(ctx context.Context, channelID string, msg OutgoingMessage) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// FetchMessages returns up to limit messages older than beforeID (all
	// recent messages when beforeID is empty), newest first.
	FetchMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]Message, error)
}

// Responder answers the interaction that triggered an operation.
type Responder interface {
	Reply(ctx context.Context, content string, ephemeral bool) error
	// UpdateButtons replaces the buttons of the message the interaction came
	// from, keeping its content.
	UpdateButtons(ctx context.Context, buttons []Button) error
	// Responded reports whether a reply or update was already sent.
	Responded() bool
}

// Interaction is an inbound button press.
type Interaction struct {
	CustomID  string
	GuildID   string
	ChannelID string
	ActorID   string
	// ActorRoles and ActorCanManageChannels describe the actor as a guild
	// member; they are empty outside a guild.
	ActorRoles             []string
	ActorCanManageChannels bool
	Responder              Responder
}

// InGuild reports whether the interaction happened inside a guild.
func (i Interaction) InGuild() bool {
	return i.GuildID != ""
}

// ChannelMention formats a clickable channel reference.
func ChannelMention(channelID string) string {
	return "<#" + channelID + ">"
}

// UserMention formats a user ping.
func UserMention(userID string) string {
	return "<@" + userID + ">"
}
