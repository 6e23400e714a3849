package core

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/files"
)

// Command is a top-level slash command.
type Command interface {
	Name() string
	Description() string
	Options() []*discordgo.ApplicationCommandOption
	Handle(ctx *Context) error
	RequiresGuild() bool
	RequiresPermissions() bool
}

// SubCommand is a subcommand inside a GroupCommand.
type SubCommand interface {
	Name() string
	Description() string
	Options() []*discordgo.ApplicationCommandOption
	Handle(ctx *Context) error
	RequiresGuild() bool
	RequiresPermissions() bool
}

// AutocompleteHandler answers autocomplete requests for the focused option.
// Commands and subcommands may implement it directly.
type AutocompleteHandler interface {
	HandleAutocomplete(ctx *Context, focusedOption string) ([]*discordgo.ApplicationCommandOptionChoice, error)
}

// ComponentHandler handles button clicks, select menus and modal submits
// whose CustomID starts with the prefix it was registered under.
type ComponentHandler interface {
	HandleComponent(ctx *Context) error
}

// ComponentFunc adapts a function to ComponentHandler.
type ComponentFunc func(ctx *Context) error

// HandleComponent calls f(ctx).
func (f ComponentFunc) HandleComponent(ctx *Context) error { return f(ctx) }

// Context carries one interaction through a handler. The embedded
// context.Context is canceled when the bot shuts down.
type Context struct {
	context.Context

	Session     *discordgo.Session
	Interaction *discordgo.InteractionCreate
	Config      *files.ConfigManager
	Responder   *ResponseManager
	Logger      *slog.Logger
	GuildID     string
	UserID      string
	IsOwner     bool
}

// CustomID returns the component or modal CustomID, or "".
func (c *Context) CustomID() string {
	return InteractionCustomID(c.Interaction)
}

// CommandMeta describes a command for builders.
type CommandMeta struct {
	Name        string
	Description string
	Options     []*discordgo.ApplicationCommandOption
}

// CommandError is a failure whose message is shown to the user.
type CommandError struct {
	Message   string
	Ephemeral bool
	Code      string
}

func (e *CommandError) Error() string {
	return e.Message
}

// NewCommandError creates a user-facing command error.
func NewCommandError(message string, ephemeral bool) *CommandError {
	return &CommandError{
		Message:   message,
		Ephemeral: ephemeral,
	}
}

// ValidationError reports an invalid option value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
