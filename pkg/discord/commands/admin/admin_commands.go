package admin

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/small-frappuccino/zealox/pkg/discord/commands/core"
	"github.com/small-frappuccino/zealox/pkg/module"
	"github.com/small-frappuccino/zealox/pkg/theme"
)

// maxGuildList is the largest guild count for which status lists the guilds.
const maxGuildList = 10

// Modules is the part of the module manager the admin commands drive.
type Modules interface {
	List() []module.Info
	Available() []string
	IsLoaded(name string) bool
	LoadModule(ctx context.Context, name string) error
	UnloadModule(ctx context.Context, name string) error
	ReloadModule(ctx context.Context, name string) error
}

// AdminCommands provides the /admin group and /help.
type AdminCommands struct {
	modules  Modules
	started  time.Time
	shutdown func()
	now      func() time.Time
}

// NewAdminCommands creates the admin commands. shutdown is called after the
// shutdown subcommand has answered; it may be nil.
func NewAdminCommands(modules Modules, started time.Time, shutdown func()) *AdminCommands {
	return &AdminCommands{
		modules:  modules,
		started:  started,
		shutdown: shutdown,
		now:      time.Now,
	}
}

// RegisterCommands registers /admin and /help with the router.
func (ac *AdminCommands) RegisterCommands(router *core.CommandRouter) {
	adminCmd := core.NewGroupCommand(
		"admin",
		"Administrative Befehle für die Bot-Verwaltung",
		router.GetPermissionChecker(),
	)

	adminCmd.AddSubCommand(&ModulesCommand{ac: ac})
	adminCmd.AddSubCommand(&LifecycleCommand{ac: ac, op: opLoad})
	adminCmd.AddSubCommand(&LifecycleCommand{ac: ac, op: opUnload})
	adminCmd.AddSubCommand(&LifecycleCommand{ac: ac, op: opReload})
	adminCmd.AddSubCommand(&StatusCommand{ac: ac})
	adminCmd.AddSubCommand(&ShutdownCommand{ac: ac})

	router.RegisterCommand(adminCmd)
	router.RegisterCommand(NewHelpCommand(router.GetRegistry()))
}

// ModulesCommand lists the loaded modules.
type ModulesCommand struct {
	ac *AdminCommands
}

func (cmd *ModulesCommand) Name() string        { return "modules" }
func (cmd *ModulesCommand) Description() string { return "Zeigt alle geladenen Module an" }
func (cmd *ModulesCommand) Options() []*discordgo.ApplicationCommandOption {
	return nil
}
func (cmd *ModulesCommand) RequiresGuild() bool       { return false }
func (cmd *ModulesCommand) RequiresPermissions() bool { return true }

func (cmd *ModulesCommand) Handle(ctx *core.Context) error {
	infos := cmd.ac.modules.List()
	if len(infos) == 0 {
		return ctx.Responder.Ephemeral(ctx.Interaction, "⚠️ Keine Module geladen.")
	}
	return ctx.Responder.Embed(ctx.Interaction, modulesEmbed(infos), true)
}

func modulesEmbed(infos []module.Info) *discordgo.MessageEmbed {
	var independent, dependent []string
	for _, info := range infos {
		if len(info.Dependencies) == 0 {
			independent = append(independent, fmt.Sprintf("• `%s`", info.Name))
			continue
		}
		deps := make([]string, len(info.Dependencies))
		for i, d := range info.Dependencies {
			deps[i] = "`" + d + "`"
		}
		dependent = append(dependent, fmt.Sprintf("• `%s` (benötigt: %s)", info.Name, strings.Join(deps, ", ")))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "📦 Geladene Module",
		Description: "Folgende Module sind derzeit aktiv:",
		Color:       theme.ModuleList(),
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Insgesamt %d Module geladen", len(infos))},
	}
	if len(independent) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "🔹 Unabhängige Module",
			Value: core.TruncateString(strings.Join(independent, "\n"), 1024),
		})
	}
	if len(dependent) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "🔗 Module mit Abhängigkeiten",
			Value: core.TruncateString(strings.Join(dependent, "\n"), 1024),
		})
	}
	return embed
}

type lifecycleOp int

const (
	opLoad lifecycleOp = iota
	opUnload
	opReload
)

type opText struct {
	name, description         string
	okTitle, okVerb           string
	failTitle, failInfinitive string
}

var opTexts = map[lifecycleOp]opText{
	opLoad: {
		name: "load", description: "Lädt ein Modul",
		okTitle: "📥 Modul geladen", okVerb: "geladen",
		failTitle: "❌ Fehler beim Laden", failInfinitive: "geladen",
	},
	opUnload: {
		name: "unload", description: "Entlädt ein Modul",
		okTitle: "🗑️ Modul entladen", okVerb: "entladen",
		failTitle: "❌ Fehler beim Entladen", failInfinitive: "entladen",
	},
	opReload: {
		name: "reload", description: "Lädt ein Modul neu",
		okTitle: "🔄 Modul neu geladen", okVerb: "neu geladen",
		failTitle: "❌ Fehler beim Neuladen", failInfinitive: "neu geladen",
	},
}

// LifecycleCommand loads, unloads or reloads one module.
type LifecycleCommand struct {
	ac *AdminCommands
	op lifecycleOp
}

func (cmd *LifecycleCommand) Name() string        { return opTexts[cmd.op].name }
func (cmd *LifecycleCommand) Description() string { return opTexts[cmd.op].description }

func (cmd *LifecycleCommand) Options() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:         discordgo.ApplicationCommandOptionString,
			Name:         "module_name",
			Description:  "Name des Moduls",
			Required:     true,
			Autocomplete: true,
		},
	}
}

func (cmd *LifecycleCommand) RequiresGuild() bool       { return false }
func (cmd *LifecycleCommand) RequiresPermissions() bool { return true }

func (cmd *LifecycleCommand) Handle(ctx *core.Context) error {
	name := core.OptionsFor(ctx.Interaction).String("module_name")
	if name == "" {
		return core.NewValidationError("module_name", "Bitte gib einen Modulnamen an.")
	}
	if err := ctx.Responder.DeferResponse(ctx.Interaction, true); err != nil {
		return err
	}

	var err error
	switch cmd.op {
	case opLoad:
		err = cmd.ac.modules.LoadModule(ctx, name)
	case opUnload:
		err = cmd.ac.modules.UnloadModule(ctx, name)
	case opReload:
		err = cmd.ac.modules.ReloadModule(ctx, name)
	}

	text := opTexts[cmd.op]
	embed := &discordgo.MessageEmbed{
		Title:       text.okTitle,
		Description: fmt.Sprintf("Modul `%s` wurde erfolgreich %s.", name, text.okVerb),
		Color:       theme.Success(),
	}
	if err != nil {
		ctx.Logger.Warn("Module lifecycle command failed", "op", text.name, "module", name, "error", err)
		embed = &discordgo.MessageEmbed{
			Title:       text.failTitle,
			Description: fmt.Sprintf("Modul `%s` konnte nicht %s werden.\n**Grund:** %s", name, text.failInfinitive, err),
			Color:       theme.Error(),
		}
	} else {
		ctx.Logger.Info("Module lifecycle command completed", "op", text.name, "module", name, "user", ctx.UserID)
	}
	return ctx.Responder.FollowUpWithEmbed(ctx.Interaction, embed, true)
}

// HandleAutocomplete offers modules that are not loaded for load and loaded
// modules for unload and reload.
func (cmd *LifecycleCommand) HandleAutocomplete(ctx *core.Context, focused string) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	if focused != "module_name" {
		return nil, nil
	}
	var names []string
	if cmd.op == opLoad {
		for _, n := range cmd.ac.modules.Available() {
			if !cmd.ac.modules.IsLoaded(n) {
				names = append(names, n)
			}
		}
	} else {
		for _, info := range cmd.ac.modules.List() {
			names = append(names, info.Name)
		}
		slices.Sort(names)
	}
	return core.AutocompleteUtils{}.FilterStrings(names, core.OptionsFor(ctx.Interaction).String("module_name")), nil
}

// StatusCommand reports uptime, modules and connected guilds.
type StatusCommand struct {
	ac *AdminCommands
}

func (cmd *StatusCommand) Name() string        { return "status" }
func (cmd *StatusCommand) Description() string { return "Zeigt den Status des Bots an" }
func (cmd *StatusCommand) Options() []*discordgo.ApplicationCommandOption {
	return nil
}
func (cmd *StatusCommand) RequiresGuild() bool       { return false }
func (cmd *StatusCommand) RequiresPermissions() bool { return true }

func (cmd *StatusCommand) Handle(ctx *core.Context) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	guilds := stateGuilds(ctx.Session)
	embed := &discordgo.MessageEmbed{
		Title: "🤖 Bot Status",
		Color: theme.BotStatus(),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "⏱️ Uptime", Value: FormatUptime(cmd.ac.now().Sub(cmd.ac.started)), Inline: true},
			{Name: "📦 Geladene Module", Value: fmt.Sprint(len(cmd.ac.modules.List())), Inline: true},
			{Name: "🌐 Verbundene Server", Value: fmt.Sprint(len(guilds)), Inline: true},
			{Name: "📚 discordgo Version", Value: discordgo.VERSION, Inline: true},
			{Name: "🐹 Go Version", Value: runtime.Version(), Inline: true},
			{Name: "💾 Speicher", Value: humanize.Bytes(mem.Alloc), Inline: true},
		},
	}
	if len(guilds) <= maxGuildList {
		lines := make([]string, 0, len(guilds))
		for _, g := range guilds {
			lines = append(lines, fmt.Sprintf("• %s (ID: %s)", g.Name, g.ID))
		}
		value := "Keine Server"
		if len(lines) > 0 {
			value = strings.Join(lines, "\n")
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "📋 Server Liste", Value: value})
	}
	return ctx.Responder.Embed(ctx.Interaction, embed, true)
}

type guildRef struct{ ID, Name string }

func stateGuilds(s *discordgo.Session) []guildRef {
	if s == nil || s.State == nil {
		return nil
	}
	s.State.RLock()
	defer s.State.RUnlock()
	out := make([]guildRef, 0, len(s.State.Guilds))
	for _, g := range s.State.Guilds {
		out = append(out, guildRef{ID: g.ID, Name: g.Name})
	}
	slices.SortFunc(out, func(a, b guildRef) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// FormatUptime renders d as "Xd Xh Xm Xs".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

// ShutdownCommand stops the bot.
type ShutdownCommand struct {
	ac *AdminCommands
}

func (cmd *ShutdownCommand) Name() string        { return "shutdown" }
func (cmd *ShutdownCommand) Description() string { return "Fährt den Bot herunter" }
func (cmd *ShutdownCommand) Options() []*discordgo.ApplicationCommandOption {
	return nil
}
func (cmd *ShutdownCommand) RequiresGuild() bool       { return false }
func (cmd *ShutdownCommand) RequiresPermissions() bool { return true }

func (cmd *ShutdownCommand) Handle(ctx *core.Context) error {
	embed := &discordgo.MessageEmbed{
		Title:       "🛑 Bot wird heruntergefahren",
		Description: "Der Bot wird jetzt sicher heruntergefahren...",
		Color:       theme.Error(),
	}
	err := ctx.Responder.Embed(ctx.Interaction, embed, true)

	name := ""
	if u := core.ExtractUser(ctx.Interaction); u != nil {
		name = u.Username
	}
	ctx.Logger.Warn("Shutdown requested", "user", name, "user_id", ctx.UserID)
	if cmd.ac.shutdown != nil {
		cmd.ac.shutdown()
	}
	return err
}
