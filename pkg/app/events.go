package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/discord/perf"
	"github.com/small-frappuccino/zealox/pkg/module"
)

// eventSink receives gateway events for the loaded modules.
type eventSink interface {
	DispatchEvent(ctx context.Context, ev module.Event)
}

// presenceApplier sets the configured presence.
type presenceApplier interface {
	ApplyPresence() error
}

// gatewayEvents turns discordgo callbacks into module events.
type gatewayEvents struct {
	ctx      context.Context
	sink     eventSink
	presence presenceApplier
	logger   *slog.Logger

	mu sync.Mutex
	// initial holds guilds announced in READY; their first GUILD_CREATE is a
	// lazy load, not a join.
	initial map[string]bool
}

func newGatewayEvents(ctx context.Context, sink eventSink, presence presenceApplier, logger *slog.Logger) *gatewayEvents {
	return &gatewayEvents{
		ctx:      ctx,
		sink:     sink,
		presence: presence,
		logger:   logger,
		initial:  make(map[string]bool),
	}
}

// attach registers every handler on s and returns a func removing them.
func (g *gatewayEvents) attach(s *discordgo.Session) func() {
	removers := []func(){
		s.AddHandler(g.onReady),
		s.AddHandler(g.onGuildCreate),
		s.AddHandler(g.onGuildDelete),
		s.AddHandler(g.onMessageCreate),
		s.AddHandler(g.onInteractionCreate),
		s.AddHandler(g.onMemberUpdate),
	}
	return func() {
		for _, r := range removers {
			r()
		}
	}
}

func (g *gatewayEvents) dispatch(name, guildID string, payload any) {
	done := perf.StartGatewayEvent(name, slog.String("guild_id", guildID))
	defer done()
	g.sink.DispatchEvent(g.ctx, module.Event{Name: name, Payload: payload})
}

func (g *gatewayEvents) onReady(s *discordgo.Session, r *discordgo.Ready) {
	g.mu.Lock()
	for _, guild := range r.Guilds {
		g.initial[guild.ID] = true
	}
	g.mu.Unlock()

	if r.User != nil {
		g.logger.Info("✅ Logged in", "user", r.User.Username, "id", r.User.ID, "guilds", len(r.Guilds))
	}
	if g.presence != nil {
		if err := g.presence.ApplyPresence(); err != nil {
			g.logger.Warn("Failed to set presence", "err", err)
		}
	}
}

func (g *gatewayEvents) onGuildCreate(s *discordgo.Session, e *discordgo.GuildCreate) {
	if e.Guild == nil || e.Unavailable {
		return
	}
	g.mu.Lock()
	lazy := g.initial[e.ID]
	delete(g.initial, e.ID)
	g.mu.Unlock()
	if lazy {
		return
	}
	g.logger.Info("🎉 Joined guild", "guild", e.Name, "guild_id", e.ID)
	g.dispatch(module.EventGuildJoin, e.ID, e.Guild)
}

func (g *gatewayEvents) onGuildDelete(s *discordgo.Session, e *discordgo.GuildDelete) {
	if e.Guild == nil || e.Unavailable {
		return
	}
	name := e.Name
	if e.BeforeDelete != nil {
		name = e.BeforeDelete.Name
	}
	g.logger.Info("❌ Left guild", "guild", name, "guild_id", e.ID)
	g.dispatch(module.EventGuildRemove, e.ID, e.Guild)
}

func (g *gatewayEvents) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	g.dispatch(module.EventMessage, m.GuildID, m)
}

func (g *gatewayEvents) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	g.dispatch(module.EventSlashCommand, i.GuildID, i)
}

func (g *gatewayEvents) onMemberUpdate(s *discordgo.Session, u *discordgo.GuildMemberUpdate) {
	if u.Member == nil {
		return
	}
	g.dispatch(module.EventMemberUpdate, u.GuildID, u)
}
