package core

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/files"
	"github.com/small-frappuccino/zealox/pkg/theme"
)

// OptionExtractor simplifies extraction of options for Discord commands
type OptionExtractor struct {
	options  []*discordgo.ApplicationCommandInteractionDataOption
	resolved *discordgo.ApplicationCommandInteractionDataResolved
}

// NewOptionExtractor creates a new option extractor
func NewOptionExtractor(options []*discordgo.ApplicationCommandInteractionDataOption) *OptionExtractor {
	return &OptionExtractor{options: options}
}

// OptionsFor returns an extractor over the (sub)command options of i,
// including the resolved users and roles.
func OptionsFor(i *discordgo.InteractionCreate) *OptionExtractor {
	return &OptionExtractor{
		options:  GetSubCommandOptions(i),
		resolved: i.ApplicationCommandData().Resolved,
	}
}

func (e *OptionExtractor) find(name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range e.options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

// String extracts a string option by name
func (e *OptionExtractor) String(name string) string {
	if opt := e.find(name); opt != nil && opt.Type == discordgo.ApplicationCommandOptionString {
		return strings.TrimSpace(opt.StringValue())
	}
	return ""
}

// StringRequired extracts a required string option
func (e *OptionExtractor) StringRequired(name string) (string, error) {
	value := e.String(name)
	if value == "" {
		return "", NewValidationError(name, fmt.Sprintf("Option '%s' ist erforderlich", name))
	}
	return value, nil
}

// Bool extracts a boolean option by name
func (e *OptionExtractor) Bool(name string) bool {
	if opt := e.find(name); opt != nil && opt.Type == discordgo.ApplicationCommandOptionBoolean {
		return opt.BoolValue()
	}
	return false
}

// Int extracts an integer option by name
func (e *OptionExtractor) Int(name string) int64 {
	if opt := e.find(name); opt != nil && opt.Type == discordgo.ApplicationCommandOptionInteger {
		return opt.IntValue()
	}
	return 0
}

// HasOption checks whether an option exists
func (e *OptionExtractor) HasOption(name string) bool {
	return e.find(name) != nil
}

// ID returns the snowflake of a user, role, channel or mentionable option.
func (e *OptionExtractor) ID(name string) string {
	opt := e.find(name)
	if opt == nil {
		return ""
	}
	if s, ok := opt.Value.(string); ok {
		return s
	}
	return ""
}

// Role returns the resolved role of a role option, or nil.
func (e *OptionExtractor) Role(name string) *discordgo.Role {
	id := e.ID(name)
	if id == "" {
		return nil
	}
	if e.resolved != nil {
		if r, ok := e.resolved.Roles[id]; ok {
			return r
		}
	}
	return &discordgo.Role{ID: id}
}

// User returns the resolved user of a user option, or nil.
func (e *OptionExtractor) User(name string) *discordgo.User {
	id := e.ID(name)
	if id == "" {
		return nil
	}
	if e.resolved != nil {
		if u, ok := e.resolved.Users[id]; ok {
			return u
		}
	}
	return &discordgo.User{ID: id}
}

// PermissionChecker decides who may run admin commands: the guild owner,
// members with the Administrator permission, and users or roles listed in
// admin_users / admin_roles.
type PermissionChecker struct {
	session *discordgo.Session
	config  *files.ConfigManager
}

func NewPermissionChecker(session *discordgo.Session, config *files.ConfigManager) *PermissionChecker {
	return &PermissionChecker{session: session, config: config}
}

// HasPermission checks whether the user has permission to use admin commands.
// member may be nil outside guilds.
func (pc *PermissionChecker) HasPermission(guildID, userID string, member *discordgo.Member) bool {
	if pc.config != nil && pc.config.IsAdminUser(userID) {
		return true
	}
	if guildID == "" {
		return false
	}
	if member != nil && member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if pc.IsOwner(guildID, userID) {
		return true
	}
	if member == nil || pc.config == nil {
		return false
	}
	adminRoles := pc.config.AdminRoles()
	for _, role := range member.Roles {
		if slices.Contains(adminRoles, role) {
			return true
		}
	}
	return false
}

// IsOwner checks whether the user owns the guild, using the state cache.
func (pc *PermissionChecker) IsOwner(guildID, userID string) bool {
	if pc.session == nil || pc.session.State == nil || guildID == "" {
		return false
	}
	g, err := pc.session.State.Guild(guildID)
	return err == nil && g.OwnerID == userID
}

// TruncateString shortens s to maxLen runes, ending in "..." when cut.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// AutocompleteUtils provides utilities for autocomplete
type AutocompleteUtils struct{}

// FilterStrings keeps items containing input (case-insensitive) as choices,
// capped at 25.
func (AutocompleteUtils) FilterStrings(items []string, input string) []*discordgo.ApplicationCommandOptionChoice {
	input = strings.ToLower(strings.TrimSpace(input))
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, min(len(items), MaxAutocompleteChoices))
	for _, item := range items {
		if input != "" && !strings.Contains(strings.ToLower(item), input) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: item, Value: item})
		if len(choices) == MaxAutocompleteChoices {
			break
		}
	}
	return choices
}

// EmbedBuilder builds themed embeds.
type EmbedBuilder struct{}

func (EmbedBuilder) build(title, description string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func (b EmbedBuilder) Success(title, description string) *discordgo.MessageEmbed {
	return b.build(title, description, theme.Success())
}

func (b EmbedBuilder) Error(title, description string) *discordgo.MessageEmbed {
	return b.build(title, description, theme.Error())
}

func (b EmbedBuilder) Info(title, description string) *discordgo.MessageEmbed {
	return b.build(title, description, theme.Info())
}

func (b EmbedBuilder) Warning(title, description string) *discordgo.MessageEmbed {
	return b.build(title, description, theme.Warning())
}

// CompareCommands compares two commands to check if they are semantically equal
func CompareCommands(a, b *discordgo.ApplicationCommand) bool {
	type shape struct {
		Name        string                                `json:"name"`
		Description string                                `json:"description"`
		Options     []*discordgo.ApplicationCommandOption `json:"options"`
	}
	ba, _ := json.Marshal(shape{a.Name, a.Description, a.Options})
	bb, _ := json.Marshal(shape{b.Name, b.Description, b.Options})
	return string(ba) == string(bb)
}
