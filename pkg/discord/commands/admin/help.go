package admin

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/discord/commands/core"
	"github.com/small-frappuccino/zealox/pkg/theme"
)

const (
	categoryGeneral = "allgemein"
	maxFieldValue   = 1024
)

var categoryEmoji = map[string]string{
	"admin":         "⚙️",
	categoryGeneral: "🔍",
	"matchday":      "🎮",
}

// HelpCommand lists the registered commands grouped by category. Group
// commands form their own category; top-level commands land in "Allgemein".
type HelpCommand struct {
	registry *core.CommandRegistry
}

// NewHelpCommand creates /help over registry.
func NewHelpCommand(registry *core.CommandRegistry) *HelpCommand {
	return &HelpCommand{registry: registry}
}

func (h *HelpCommand) Name() string        { return "help" }
func (h *HelpCommand) Description() string { return "Zeigt alle verfügbaren Befehle an" }
func (h *HelpCommand) Options() []*discordgo.ApplicationCommandOption {
	return nil
}
func (h *HelpCommand) RequiresGuild() bool       { return false }
func (h *HelpCommand) RequiresPermissions() bool { return false }

func (h *HelpCommand) Handle(ctx *core.Context) error {
	requester := ""
	if u := core.ExtractUser(ctx.Interaction); u != nil {
		requester = u.Username
	}
	return ctx.Responder.Embed(ctx.Interaction, h.embed(requester), true)
}

func (h *HelpCommand) embed(requester string) *discordgo.MessageEmbed {
	categories := make(map[string][]string)
	for _, name := range h.registry.Names() {
		cmd, ok := h.registry.GetCommand(name)
		if !ok {
			continue
		}
		if group, ok := cmd.(*core.GroupCommand); ok {
			for _, sub := range group.SubCommands() {
				categories[name] = append(categories[name],
					fmt.Sprintf("• `/%s %s` - %s", name, sub.Name(), sub.Description()))
			}
			continue
		}
		categories[categoryGeneral] = append(categories[categoryGeneral],
			fmt.Sprintf("• `/%s` - %s", name, cmd.Description()))
	}

	keys := make([]string, 0, len(categories))
	for k := range categories {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	embed := &discordgo.MessageEmbed{
		Title:       "📚 Bot-Hilfe",
		Description: "Hier sind die verfügbaren Befehle:",
		Color:       theme.Help(),
		Footer:      &discordgo.MessageEmbedFooter{Text: "Angefordert von " + requester},
	}
	for _, k := range keys {
		emoji, ok := categoryEmoji[k]
		if !ok {
			emoji = "🔹"
		}
		title := emoji + " " + strings.ToUpper(k[:1]) + k[1:]
		for i, chunk := range chunkLines(categories[k], maxFieldValue) {
			name := title
			if i > 0 {
				name = fmt.Sprintf("%s (%d)", title, i+1)
			}
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: name, Value: chunk})
		}
	}
	return embed
}

// chunkLines joins lines with newlines into chunks of at most limit runes.
// A single longer line is truncated.
func chunkLines(lines []string, limit int) []string {
	var (
		out []string
		cur strings.Builder
		n   int
	)
	for _, line := range lines {
		line = core.TruncateString(line, limit)
		size := utf8.RuneCountInString(line)
		if n > 0 && n+1+size > limit {
			out = append(out, cur.String())
			cur.Reset()
			n = 0
		}
		if n > 0 {
			cur.WriteByte('\n')
			n++
		}
		cur.WriteString(line)
		n += size
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
