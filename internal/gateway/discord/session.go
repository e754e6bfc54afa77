// Package discord adapts a discordgo session to the gateway port.
package discord

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/gateway"
)

// Intents needed to see guild channels and read message history content.
const intents = discordgo.IntentGuilds |
	discordgo.IntentGuildMessages |
	discordgo.IntentGuildMembers |
	discordgo.IntentMessageContent

// How long one interaction may take before its context is cancelled.
const interactionTimeout = 2 * time.Minute

// InteractionHandler handles a button press.
type InteractionHandler func(ctx context.Context, in gateway.Interaction) error

// ReadyHandler runs once the session is connected. botUserID is the bot's
// own user id.
type ReadyHandler func(ctx context.Context, botUserID string)

// Client is a connected bot session implementing gateway.Gateway.
type Client struct {
	session   *discordgo.Session
	logger    *zap.Logger
	connected atomic.Bool
	readyOnce atomic.Bool

	onInteraction InteractionHandler
	onReady       ReadyHandler
}

// New prepares a session for token. Handlers are attached before Open.
func New(token string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = intents
	c := &Client{session: session, logger: logger}
	session.AddHandler(c.handleReady)
	session.AddHandler(c.handleInteraction)
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		c.connected.Store(false)
		c.logger.Warn("discord gateway disconnected")
	})
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		c.connected.Store(true)
		c.logger.Info("discord gateway resumed")
	})
	return c, nil
}

// OnInteraction sets the button press handler.
func (c *Client) OnInteraction(h InteractionHandler) {
	c.onInteraction = h
}

// OnReady sets the handler run after the first Ready event.
func (c *Client) OnReady(h ReadyHandler) {
	c.onReady = h
}

// Open connects to the gateway.
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (c *Client) Close() error {
	c.connected.Store(false)
	return c.session.Close()
}

// Connected reports whether the gateway connection is up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	c.connected.Store(true)
	botID := ""
	if r.User != nil {
		botID = r.User.ID
		c.logger.Info("discord session ready", zap.String("bot", r.User.String()))
	}
	// Ready fires again after a full reconnect; the menu is published once.
	if c.onReady == nil || !c.readyOnce.CompareAndSwap(false, true) {
		return
	}
	c.onReady(context.Background(), botID)
}

func (c *Client) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	responder := newResponder(s, i)
	in, ok := toInteraction(i, responder)
	if !ok || c.onInteraction == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()
	if err := c.onInteraction(ctx, in); err != nil {
		c.logger.Debug("interaction finished with error",
			zap.String("custom_id", in.CustomID),
			zap.Error(err))
	}
}

func (c *Client) CreateChannel(ctx context.Context, spec gateway.ChannelSpec) (gateway.Channel, error) {
	ch, err := c.session.GuildChannelCreateComplex(spec.GuildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             spec.ParentID,
		PermissionOverwrites: toPermissionOverwrites(spec.Overwrites),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return gateway.Channel{}, mapError(err)
	}
	return fromChannel(ch), nil
}

func (c *Client) FetchChannel(ctx context.Context, channelID string) (gateway.Channel, error) {
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return gateway.Channel{}, mapError(err)
	}
	return fromChannel(ch), nil
}

func (c *Client) EditPermissions(ctx context.Context, channelID string, ow gateway.Overwrite) error {
	return mapError(c.session.ChannelPermissionSet(channelID, ow.SubjectID, toOverwriteType(ow.Subject),
		toDiscordPermissions(ow.Allow), toDiscordPermissions(ow.Deny), discordgo.WithContext(ctx)))
}

func (c *Client) SetTopic(ctx context.Context, channelID, topic string) error {
	_, err := c.session.ChannelEdit(channelID, &discordgo.ChannelEdit{Topic: topic}, discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := c.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *Client) SendMessage(ctx context.Context, channelID string, msg gateway.OutgoingMessage) error {
	_, err := c.session.ChannelMessageSendComplex(channelID, toMessageSend(msg), discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return mapError(c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (c *Client) FetchMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]gateway.Message, error) {
	msgs, err := c.session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]gateway.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, fromMessage(m))
	}
	return out, nil
}

var _ gateway.Gateway = (*Client)(nil)
