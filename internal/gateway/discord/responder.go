package discord

import (
	"context"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/gateway"
)

// responder answers one interaction. An interaction accepts a single
// initial response; later replies go out as followups.
type responder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	responded   atomic.Bool
}

func newResponder(s *discordgo.Session, i *discordgo.InteractionCreate) *responder {
	r := &responder{session: s}
	if i != nil {
		r.interaction = i.Interaction
	}
	return r
}

func (r *responder) Reply(ctx context.Context, content string, ephemeral bool) error {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if r.responded.Load() {
		_, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
			Content: content,
			Flags:   flags,
		}, discordgo.WithContext(ctx))
		return err
	}
	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: flags},
	}, discordgo.WithContext(ctx))
	if err == nil {
		r.responded.Store(true)
	}
	return err
}

func (r *responder) UpdateButtons(ctx context.Context, buttons []gateway.Button) error {
	content := ""
	var embeds []*discordgo.MessageEmbed
	if r.interaction.Message != nil {
		content = r.interaction.Message.Content
		embeds = r.interaction.Message.Embeds
	}
	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Embeds:     embeds,
			Components: toComponents(buttons),
		},
	}, discordgo.WithContext(ctx))
	if err == nil {
		r.responded.Store(true)
	}
	return err
}

func (r *responder) Responded() bool {
	return r.responded.Load()
}

var _ gateway.Responder = (*responder)(nil)
