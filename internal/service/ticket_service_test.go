package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/gateway/gatewaytest"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	guildID     = "guild-1"
	staffRoleID = "role-staff"
	requesterA  = "user-a"
	moderator   = "mod-1"
)

var errPlatform = errors.New("platform unavailable")

type fixture struct {
	t             *testing.T
	svc           *TicketService
	guild         *gatewaytest.Guild
	registry      *repository.TicketRegistry
	category      gateway.Channel
	logs          gateway.Channel
	transcriptDir string
	published     []events.Event
}

type fixtureOption func(*TicketDependencies)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()

	guild := gatewaytest.NewGuild(guildID)
	category := guild.AddChannel("Tickets", gateway.ChannelKindCategory)
	logs := guild.AddChannel("ticket-logs", gateway.ChannelKindText)

	store := persistence.NewFileStore(t.TempDir(), nil)
	require.NoError(t, store.Ensure(ctx))
	registry, err := repository.NewTicketRegistry(ctx, store)
	require.NoError(t, err)

	f := &fixture{
		t:             t,
		guild:         guild,
		registry:      registry,
		category:      category,
		logs:          logs,
		transcriptDir: t.TempDir(),
	}

	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{events.EventTicketCreated, events.EventTicketClosed, events.EventTicketReopened, events.EventTicketArchived} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.published = append(f.published, e)
			return nil
		})
	}

	deps := TicketDependencies{
		Tickets:          registry,
		Gateway:          guild,
		Staff:            auth.NewStaffPolicy(staffRoleID),
		Dispatcher:       dispatcher,
		Metrics:          observability.NewMetrics(registry.OpenCount),
		TicketCategoryID: category.ID,
		LogsChannelID:    logs.ID,
		TranscriptDir:    f.transcriptDir,
		Now:              func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.svc = NewTicketService(deps)
	return f
}

func (f *fixture) press(customID, channelID, actorID string, roles ...string) (*gatewaytest.Responder, error) {
	resp := gatewaytest.NewResponder()
	err := f.svc.Handle(context.Background(), gateway.Interaction{
		CustomID:   customID,
		GuildID:    guildID,
		ChannelID:  channelID,
		ActorID:    actorID,
		ActorRoles: roles,
		Responder:  resp,
	})
	return resp, err
}

// openSupportTicket creates a support ticket for requesterA and returns its channel id.
func (f *fixture) openSupportTicket() string {
	f.t.Helper()
	_, err := f.press("ticket_soporte", f.category.ID, requesterA)
	require.NoError(f.t, err)
	st, ok := f.guild.ChannelByName("ticket-soporte-001")
	require.True(f.t, ok)
	return st.Channel.ID
}

func (f *fixture) closeAsStaff(channelID string) {
	f.t.Helper()
	_, err := f.press(domain.ButtonClose, channelID, moderator, staffRoleID)
	require.NoError(f.t, err)
}

func (f *fixture) eventTypes() []events.EventType {
	out := make([]events.EventType, 0, len(f.published))
	for _, e := range f.published {
		out = append(out, e.Type)
	}
	return out
}

func assertRejected(t *testing.T, resp *gatewaytest.Responder, err error, code, message string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, errorutil.ToDomainError(err).Code)
	reply := resp.LastReply()
	assert.Equal(t, message, reply.Content)
	assert.True(t, reply.Ephemeral)
}

func TestCreateTicket(t *testing.T) {
	f := newFixture(t)

	resp, err := f.press("ticket_soporte", f.category.ID, requesterA)
	require.NoError(t, err)

	st, ok := f.guild.ChannelByName("ticket-soporte-001")
	require.True(t, ok)
	assert.Equal(t, f.category.ID, st.Channel.ParentID)
	assert.Equal(t, "ticket|user:user-a|num:1", st.Topic)

	assert.Equal(t, gateway.PermissionView, st.Overwrites[guildID].Deny)
	assert.Equal(t, gateway.PermissionParticipate, st.Overwrites[requesterA].Allow)
	assert.Equal(t, gateway.PermissionParticipate, st.Overwrites[staffRoleID].Allow)

	require.Len(t, st.Sent, 1)
	intro := st.Sent[0]
	assert.Equal(t, "<@user-a>", intro.Content)
	require.Len(t, intro.Buttons, 1)
	assert.Equal(t, domain.ButtonClose, intro.Buttons[0].ID)
	require.Len(t, intro.Embeds, 1)
	assert.Equal(t, "📂 Ticket: soporte", intro.Embeds[0].Title)

	reply := resp.LastReply()
	assert.Equal(t, "✅ Tu ticket fue creado: <#"+st.Channel.ID+">", reply.Content)
	assert.True(t, reply.Ephemeral)

	ticket, ok := f.registry.Get(st.Channel.ID)
	require.True(t, ok)
	assert.Equal(t, requesterA, ticket.RequesterID)
	assert.Equal(t, 1, ticket.Number)
	assert.Equal(t, domain.CategorySupport, ticket.Category)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, f.eventTypes())
}

func TestSecondCreateIsRejected(t *testing.T) {
	f := newFixture(t)
	f.openSupportTicket()
	channels := f.guild.ChannelCount()

	resp, err := f.press("ticket_soporte", f.category.ID, requesterA)
	assertRejected(t, resp, err, errorutil.CodeConflict, msgAlreadyOpen)

	resp, err = f.press("ticket_tienda", f.category.ID, requesterA)
	assertRejected(t, resp, err, errorutil.CodeConflict, msgAlreadyOpen)

	assert.Equal(t, 1, f.registry.Counter())
	assert.Len(t, f.registry.List(), 1)
	assert.Equal(t, channels, f.guild.ChannelCount())
	assert.Equal(t, 1, f.guild.CallsTo("CreateChannel"))
}

func TestCreateAfterCloseIsAllowed(t *testing.T) {
	f := newFixture(t)
	f.closeAsStaff(f.openSupportTicket())

	_, err := f.press("ticket_bug", f.category.ID, requesterA)
	require.NoError(t, err)
	_, ok := f.guild.ChannelByName("ticket-bugs-002")
	assert.True(t, ok)
}

func TestCreateWithInvalidParentFallsBack(t *testing.T) {
	var logsID string
	f := newFixture(t, func(d *TicketDependencies) {
		// Point the grouping at a text channel.
		logsID = d.LogsChannelID
		d.TicketCategoryID = logsID
	})
	require.NotEmpty(t, logsID)

	_, err := f.press("ticket_tienda", f.category.ID, requesterA)
	require.NoError(t, err)
	st, ok := f.guild.ChannelByName("ticket-tienda-001")
	require.True(t, ok)
	assert.Empty(t, st.Channel.ParentID)
}

func TestCreateWithoutConfiguredParent(t *testing.T) {
	f := newFixture(t, func(d *TicketDependencies) { d.TicketCategoryID = "" })

	_, err := f.press("ticket_jugadores", f.category.ID, requesterA)
	require.NoError(t, err)
	st, ok := f.guild.ChannelByName("ticket-jugadores-001")
	require.True(t, ok)
	assert.Empty(t, st.Channel.ParentID)
}

func TestCreateChannelFailureBurnsNumber(t *testing.T) {
	f := newFixture(t)
	f.guild.FailCreateChannel = errPlatform

	resp, err := f.press("ticket_soporte", f.category.ID, requesterA)
	assertRejected(t, resp, err, errorutil.CodeUnavailable, msgCreateFailed)
	assert.Equal(t, 1, f.registry.Counter())
	assert.Empty(t, f.registry.List())
	assert.Empty(t, f.published)

	f.guild.FailCreateChannel = nil
	_, err = f.press("ticket_soporte", f.category.ID, requesterA)
	require.NoError(t, err)
	_, ok := f.guild.ChannelByName("ticket-soporte-002")
	assert.True(t, ok)
}

func TestCreateSurvivesBestEffortFailures(t *testing.T) {
	f := newFixture(t)
	f.guild.FailSetTopic = errPlatform

	resp, err := f.press("ticket_soporte", f.category.ID, requesterA)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.LastReply().Content, "✅"))
	assert.Len(t, f.registry.List(), 1)
}

func TestCloseByStaff(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()

	resp, err := f.press(domain.ButtonClose, channelID, moderator, staffRoleID)
	require.NoError(t, err)

	ticket, ok := f.registry.Get(channelID)
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)

	st, ok := f.guild.Channel(channelID)
	require.True(t, ok)
	assert.NotZero(t, st.Overwrites[requesterA].Deny&gateway.PermissionView)
	assert.Zero(t, st.Overwrites[requesterA].Allow&gateway.PermissionView)

	assert.Equal(t, []string{domain.ButtonReopen, domain.ButtonArchive}, resp.ButtonIDs())
	assert.Empty(t, resp.Replies())
	assert.Equal(t, []events.EventType{events.EventTicketCreated, events.EventTicketClosed}, f.eventTypes())
}

func TestCloseByRequester(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()

	_, err := f.press(domain.ButtonClose, channelID, requesterA)
	require.NoError(t, err)
	ticket, _ := f.registry.Get(channelID)
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
}

func TestCloseByManageChannelsMember(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()

	resp := gatewaytest.NewResponder()
	err := f.svc.Handle(context.Background(), gateway.Interaction{
		CustomID:               domain.ButtonClose,
		GuildID:                guildID,
		ChannelID:              channelID,
		ActorID:                "admin-1",
		ActorCanManageChannels: true,
		Responder:              resp,
	})
	require.NoError(t, err)
	ticket, _ := f.registry.Get(channelID)
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
}

func TestCloseByStrangerIsRejected(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()

	resp, err := f.press(domain.ButtonClose, channelID, "user-b")
	assertRejected(t, resp, err, errorutil.CodeForbidden, msgForbiddenClose)

	ticket, _ := f.registry.Get(channelID)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Zero(t, f.guild.CallsTo("EditPermissions"))
}

func TestCloseFallsBackToReply(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()
	f.guild.FailEditPermissions = errPlatform

	resp := gatewaytest.NewResponder()
	resp.FailUpdate = errPlatform
	err := f.svc.Handle(context.Background(), gateway.Interaction{
		CustomID:  domain.ButtonClose,
		GuildID:   guildID,
		ChannelID: channelID,
		ActorID:   requesterA,
		Responder: resp,
	})
	require.NoError(t, err)

	assert.Equal(t, msgClosed, resp.LastReply().Content)
	ticket, _ := f.registry.Get(channelID)
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
}

func TestReopenRestoresRecord(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()
	before, ok := f.registry.Get(channelID)
	require.True(t, ok)

	f.closeAsStaff(channelID)
	resp, err := f.press(domain.ButtonReopen, channelID, moderator, staffRoleID)
	require.NoError(t, err)

	after, ok := f.registry.Get(channelID)
	require.True(t, ok)
	assert.Equal(t, before, after)

	st, _ := f.guild.Channel(channelID)
	assert.Equal(t, gateway.PermissionParticipate, st.Overwrites[requesterA].Allow)
	assert.Zero(t, st.Overwrites[requesterA].Deny)
	assert.Equal(t, []string{domain.ButtonClose}, resp.ButtonIDs())
}

func TestReopenOpenTicketIsRejected(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()

	resp, err := f.press(domain.ButtonReopen, channelID, requesterA)
	assertRejected(t, resp, err, errorutil.CodeConflict, msgAlreadyReopened)
}

func TestArchiveClosedTicket(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()
	// With the intro message this makes three messages.
	f.guild.Post(channelID, "user-a#1234", "no puedo entrar")
	f.guild.Post(channelID, "mod-1#0001", "", "https://cdn.example/log.png")
	f.closeAsStaff(channelID)

	resp, err := f.press(domain.ButtonArchive, channelID, moderator, staffRoleID)
	require.NoError(t, err)
	assert.Empty(t, resp.Replies())

	logs, ok := f.guild.Channel(f.logs.ID)
	require.True(t, ok)
	require.Len(t, logs.Uploads, 1)
	upload := logs.Uploads[0]
	assert.Equal(t, "ticket-soporte-1.txt", upload.Name)

	lines := strings.Split(upload.Body, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], gatewaytest.BotName+": <@user-a>")
	assert.True(t, strings.HasSuffix(lines[1], "user-a#1234: no puedo entrar"))
	assert.True(t, strings.HasSuffix(lines[2], "mod-1#0001: [Adjuntos: https://cdn.example/log.png]"))

	require.Len(t, logs.Sent, 1)
	require.Len(t, logs.Sent[0].Embeds, 1)
	assert.Equal(t, "📁 Ticket Archivado", logs.Sent[0].Embeds[0].Title)
	assert.Contains(t, logs.Sent[0].Embeds[0].Description, "**Canal:** ticket-soporte-001")

	_, ok = f.registry.Get(channelID)
	assert.False(t, ok)
	_, ok = f.guild.Channel(channelID)
	assert.False(t, ok)

	entries, err := os.ReadDir(f.transcriptDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	last := f.published[len(f.published)-1]
	assert.Equal(t, events.EventTicketArchived, last.Type)
	payload, ok := last.Payload.(events.TicketArchivedPayload)
	require.True(t, ok)
	assert.Equal(t, 3, payload.MessageCount)
	assert.True(t, payload.Uploaded)
}

func TestArchiveOpenTicketIsRejected(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()
	before, _ := f.registry.Get(channelID)

	resp, err := f.press(domain.ButtonArchive, channelID, moderator, staffRoleID)
	assertRejected(t, resp, err, errorutil.CodeConflict, msgArchiveNeedsClose)

	after, ok := f.registry.Get(channelID)
	require.True(t, ok)
	assert.Equal(t, before, after)
	_, ok = f.guild.Channel(channelID)
	assert.True(t, ok)
	assert.Zero(t, f.guild.CallsTo("FetchMessages"))
	assert.Zero(t, f.guild.CallsTo("DeleteChannel"))
}

func TestArchiveWithoutLogsChannelAborts(t *testing.T) {
	f := newFixture(t, func(d *TicketDependencies) { d.LogsChannelID = "chan-missing" })
	channelID := f.openSupportTicket()
	f.closeAsStaff(channelID)

	resp, err := f.press(domain.ButtonArchive, channelID, moderator, staffRoleID)
	assertRejected(t, resp, err, errorutil.CodeUnavailable, msgLogsMissing)

	ticket, ok := f.registry.Get(channelID)
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
	_, ok = f.guild.Channel(channelID)
	assert.True(t, ok)

	entries, err := os.ReadDir(f.transcriptDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArchiveExtractionFailureAborts(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()
	f.closeAsStaff(channelID)
	f.guild.FailFetchMessages = errPlatform

	resp, err := f.press(domain.ButtonArchive, channelID, moderator, staffRoleID)
	assertRejected(t, resp, err, errorutil.CodeUnavailable, msgHistoryFailed)

	_, ok := f.registry.Get(channelID)
	assert.True(t, ok)
	assert.Zero(t, f.guild.CallsTo("DeleteChannel"))
}

func TestArchiveUploadFailureStillArchives(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()
	f.closeAsStaff(channelID)
	f.guild.FailSend[f.logs.ID] = errPlatform

	_, err := f.press(domain.ButtonArchive, channelID, moderator, staffRoleID)
	require.NoError(t, err)

	_, ok := f.registry.Get(channelID)
	assert.False(t, ok)
	_, ok = f.guild.Channel(channelID)
	assert.False(t, ok)

	payload := f.published[len(f.published)-1].Payload.(events.TicketArchivedPayload)
	assert.False(t, payload.Uploaded)
}

func TestArchiveWhileInFlightIsRejected(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()
	f.closeAsStaff(channelID)

	require.True(t, f.svc.busy.acquire("channel:"+channelID))
	resp, err := f.press(domain.ButtonArchive, channelID, moderator, staffRoleID)
	assertRejected(t, resp, err, errorutil.CodeConflict, msgChannelBusy)
	f.svc.busy.release("channel:" + channelID)

	_, err = f.press(domain.ButtonArchive, channelID, moderator, staffRoleID)
	require.NoError(t, err)
	_, ok := f.registry.Get(channelID)
	assert.False(t, ok)
}

func TestSecondArchiveAfterRemovalSeesUnregisteredChannel(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()
	f.closeAsStaff(channelID)

	_, err := f.press(domain.ButtonArchive, channelID, moderator, staffRoleID)
	require.NoError(t, err)
	resp, err := f.press(domain.ButtonArchive, channelID, moderator, staffRoleID)
	assertRejected(t, resp, err, errorutil.CodeNotFound, msgNotRegistered)

	logs, _ := f.guild.Channel(f.logs.ID)
	assert.Len(t, logs.Uploads, 1)
}

func TestInteractionOutsideGuild(t *testing.T) {
	f := newFixture(t)
	resp := gatewaytest.NewResponder()
	err := f.svc.Handle(context.Background(), gateway.Interaction{
		CustomID:  "ticket_soporte",
		ChannelID: "dm-1",
		ActorID:   requesterA,
		Responder: resp,
	})
	assertRejected(t, resp, err, errorutil.CodeForbidden, msgOutsideGuild)
	assert.Zero(t, f.registry.Counter())
}

func TestButtonsInUnregisteredChannel(t *testing.T) {
	f := newFixture(t)

	resp, err := f.press(domain.ButtonClose, f.logs.ID, requesterA)
	assertRejected(t, resp, err, errorutil.CodeNotFound, msgNotRegistered)
}

func TestUnknownButtonInTicketIsIgnored(t *testing.T) {
	f := newFixture(t)
	channelID := f.openSupportTicket()

	resp, err := f.press("poll_vote", channelID, requesterA)
	require.NoError(t, err)
	assert.False(t, resp.Responded())
}

func TestInvalidCategoryButton(t *testing.T) {
	f := newFixture(t)

	resp, err := f.press("ticket_memes", f.category.ID, requesterA)
	assertRejected(t, resp, err, errorutil.CodeValidation, msgInvalidCategory)
	assert.Zero(t, f.registry.Counter())
}

type panickingGateway struct {
	*gatewaytest.Guild
}

func (panickingGateway) CreateChannel(context.Context, gateway.ChannelSpec) (gateway.Channel, error) {
	panic("boom")
}

func TestPanicIsReportedGenerically(t *testing.T) {
	f := newFixture(t)
	f.svc.gateway = panickingGateway{Guild: f.guild}

	resp, err := f.press("ticket_soporte", f.category.ID, requesterA)
	require.Error(t, err)
	assert.Equal(t, errorutil.CodeInternal, errorutil.ToDomainError(err).Code)
	assert.Equal(t, "❌ Ocurrió un error interno.", resp.LastReply().Content)

	// The in-flight marker is released after the panic.
	_, err = f.press("ticket_soporte", f.category.ID, requesterA)
	require.Error(t, err)
	assert.NotEqual(t, msgCreateBusy, errorutil.ToDomainError(err).Message)
}
