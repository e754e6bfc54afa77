package discord

import (
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/gateway"
)

var permissionBits = []struct {
	port    gateway.Permission
	discord int64
}{
	{gateway.PermissionView, discordgo.PermissionViewChannel},
	{gateway.PermissionSend, discordgo.PermissionSendMessages},
	{gateway.PermissionReadHistory, discordgo.PermissionReadMessageHistory},
}

func toDiscordPermissions(p gateway.Permission) int64 {
	var out int64
	for _, b := range permissionBits {
		if p&b.port != 0 {
			out |= b.discord
		}
	}
	return out
}

func toOverwriteType(k gateway.SubjectKind) discordgo.PermissionOverwriteType {
	if k == gateway.SubjectMember {
		return discordgo.PermissionOverwriteTypeMember
	}
	return discordgo.PermissionOverwriteTypeRole
}

func toPermissionOverwrites(overwrites []gateway.Overwrite) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(overwrites))
	for _, ow := range overwrites {
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    ow.SubjectID,
			Type:  toOverwriteType(ow.Subject),
			Allow: toDiscordPermissions(ow.Allow),
			Deny:  toDiscordPermissions(ow.Deny),
		})
	}
	return out
}

func fromChannel(ch *discordgo.Channel) gateway.Channel {
	kind := gateway.ChannelKindOther
	switch ch.Type {
	case discordgo.ChannelTypeGuildText:
		kind = gateway.ChannelKindText
	case discordgo.ChannelTypeGuildCategory:
		kind = gateway.ChannelKindCategory
	}
	return gateway.Channel{
		ID:       ch.ID,
		GuildID:  ch.GuildID,
		Name:     ch.Name,
		Kind:     kind,
		ParentID: ch.ParentID,
	}
}

var buttonStyles = map[gateway.ButtonStyle]discordgo.ButtonStyle{
	gateway.ButtonPrimary:   discordgo.PrimaryButton,
	gateway.ButtonSecondary: discordgo.SecondaryButton,
	gateway.ButtonSuccess:   discordgo.SuccessButton,
	gateway.ButtonDanger:    discordgo.DangerButton,
}

// toComponents lays buttons out in a single action row.
func toComponents(buttons []gateway.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}
	row := discordgo.ActionsRow{Components: make([]discordgo.MessageComponent, 0, len(buttons))}
	for _, b := range buttons {
		row.Components = append(row.Components, discordgo.Button{
			CustomID: b.ID,
			Label:    b.Label,
			Style:    buttonStyles[b.Style],
		})
	}
	return []discordgo.MessageComponent{row}
}

func toEmbeds(embeds []gateway.Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		me := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		if e.ImageURL != "" {
			me.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
		}
		if !e.Timestamp.IsZero() {
			me.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
		}
		out = append(out, me)
	}
	return out
}

func toMessageSend(msg gateway.OutgoingMessage) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content:    msg.Content,
		Embeds:     toEmbeds(msg.Embeds),
		Components: toComponents(msg.Buttons),
	}
	for _, f := range msg.Files {
		send.Files = append(send.Files, &discordgo.File{Name: f.Name, ContentType: f.ContentType, Reader: f.Reader})
	}
	return send
}

func fromMessage(m *discordgo.Message) gateway.Message {
	out := gateway.Message{
		ID:        m.ID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.Author = m.Author.String()
	}
	for _, a := range m.Attachments {
		if a != nil {
			out.Attachments = append(out.Attachments, a.URL)
		}
	}
	return out
}

// toInteraction converts a component interaction. ok is false for any
// other interaction type.
func toInteraction(i *discordgo.InteractionCreate, responder gateway.Responder) (gateway.Interaction, bool) {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionMessageComponent {
		return gateway.Interaction{}, false
	}
	in := gateway.Interaction{
		CustomID:  i.MessageComponentData().CustomID,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Responder: responder,
	}
	switch {
	case i.Member != nil:
		if i.Member.User != nil {
			in.ActorID = i.Member.User.ID
		}
		in.ActorRoles = append([]string(nil), i.Member.Roles...)
		in.ActorCanManageChannels = i.Member.Permissions&(discordgo.PermissionManageChannels|discordgo.PermissionAdministrator) != 0
	case i.User != nil:
		in.ActorID = i.User.ID
	}
	return in, true
}

// mapError turns REST 404s into gateway.ErrNotFound.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return errors.Join(gateway.ErrNotFound, err)
	}
	return err
}
