package core

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/files"
	"github.com/small-frappuccino/zealox/pkg/log"
)

// ContextBuilder creates contexts for command execution
type ContextBuilder struct {
	session       *discordgo.Session
	configManager *files.ConfigManager
	responder     *ResponseManager
	base          context.Context
}

// NewContextBuilder creates a new context builder
func NewContextBuilder(session *discordgo.Session, configManager *files.ConfigManager) *ContextBuilder {
	return &ContextBuilder{
		session:       session,
		configManager: configManager,
		responder:     NewResponseManager(session),
		base:          context.Background(),
	}
}

// SetBase replaces the parent context of every built Context.
func (cb *ContextBuilder) SetBase(ctx context.Context) {
	if ctx != nil {
		cb.base = ctx
	}
}

// BuildContext creates a complete context for command execution
func (cb *ContextBuilder) BuildContext(i *discordgo.InteractionCreate) *Context {
	userID := extractUserID(i)
	guildID := i.GuildID

	logger := log.DiscordLogger().With("guildID", guildID, "userID", userID)
	if path := interactionPath(i); path != "" {
		logger = logger.With("interaction", path)
	}

	return &Context{
		Context:     cb.base,
		Session:     cb.session,
		Interaction: i,
		Config:      cb.configManager,
		Responder:   cb.responder,
		Logger:      logger,
		GuildID:     guildID,
		UserID:      userID,
		IsOwner:     guildID != "" && cb.isGuildOwner(guildID, userID),
	}
}

// isGuildOwner consults the state cache only.
func (cb *ContextBuilder) isGuildOwner(guildID, userID string) bool {
	if cb.session == nil || cb.session.State == nil {
		return false
	}
	g, _ := cb.session.State.Guild(guildID)
	return g != nil && g.OwnerID == userID
}

func extractUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	} else if i.User != nil {
		return i.User.ID
	}
	return ""
}

// ExtractUser returns the interacting user.
func ExtractUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func interactionPath(i *discordgo.InteractionCreate) string {
	switch i.Type {
	case discordgo.InteractionApplicationCommand, discordgo.InteractionApplicationCommandAutocomplete:
		return GetCommandPath(i)
	case discordgo.InteractionMessageComponent, discordgo.InteractionModalSubmit:
		return InteractionCustomID(i)
	}
	return ""
}

// InteractionCustomID returns the CustomID of a component or modal interaction.
func InteractionCustomID(i *discordgo.InteractionCreate) string {
	if i == nil || i.Interaction == nil {
		return ""
	}
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		return i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		return i.ModalSubmitData().CustomID
	}
	return ""
}

// GetSubCommandName extracts the subcommand name from the interaction
func GetSubCommandName(i *discordgo.InteractionCreate) string {
	options := i.ApplicationCommandData().Options
	if len(options) > 0 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return options[0].Name
	}
	return ""
}

// GetSubCommandOptions extracts the subcommand options from the interaction
func GetSubCommandOptions(i *discordgo.InteractionCreate) []*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	if len(options) > 0 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return options[0].Options
	}
	return options
}

// HasFocusedOption checks if there is a focused option (for autocomplete)
func HasFocusedOption(options []*discordgo.ApplicationCommandInteractionDataOption) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	for _, opt := range options {
		if opt.Focused {
			return opt, true
		}
		if opt.Type == discordgo.ApplicationCommandOptionSubCommand && len(opt.Options) > 0 {
			if focused, found := HasFocusedOption(opt.Options); found {
				return focused, true
			}
		}
	}
	return nil, false
}

// GetCommandPath returns the full command path (command + subcommand if present)
func GetCommandPath(i *discordgo.InteractionCreate) string {
	path := i.ApplicationCommandData().Name
	if sub := GetSubCommandName(i); sub != "" {
		path += " " + sub
	}
	return path
}

// ModalValues flattens the text inputs of a modal submit into CustomID -> value.
func ModalValues(i *discordgo.InteractionCreate) map[string]string {
	out := make(map[string]string)
	if i.Type != discordgo.InteractionModalSubmit {
		return out
	}
	for _, row := range i.ModalSubmitData().Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range ar.Components {
			if ti, ok := c.(*discordgo.TextInput); ok {
				out[ti.CustomID] = ti.Value
			}
		}
	}
	return out
}
