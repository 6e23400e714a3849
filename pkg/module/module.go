// Package module hosts feature modules: it loads, unloads and reloads them at
// runtime, tracks their dependencies, guards against duplicate cogs and
// commands, and keeps the Discord command tree in sync.
package module

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/discord/commands/core"
	"github.com/small-frappuccino/zealox/pkg/files"
	"github.com/small-frappuccino/zealox/pkg/log"
	"github.com/small-frappuccino/zealox/pkg/storage"
	"github.com/small-frappuccino/zealox/pkg/task"
)

// Lifecycle errors.
var (
	ErrModuleNotFound     = errors.New("module not found")
	ErrNotLoaded          = errors.New("module not loaded")
	ErrRequiredModule     = errors.New("module is required")
	ErrHasDependents      = errors.New("module has loaded dependents")
	ErrDependencyFailed   = errors.New("dependency could not be loaded")
	ErrDependencyCycle    = errors.New("dependency cycle")
	ErrDuplicateCog       = errors.New("cog already loaded")
	ErrDuplicateCommand   = errors.New("command already registered")
	ErrRequirementsNotMet = errors.New("module requirements not met")
	ErrSyncFailed         = errors.New("command sync failed")
)

// Event names passed to DispatchEvent.
const (
	EventGuildJoin    = "guild_join"
	EventGuildRemove  = "guild_remove"
	EventMessage      = "message_create"
	EventSlashCommand = "slash_command"
	EventMemberUpdate = "member_update"
)

// Module is a loadable feature unit.
type Module interface {
	Name() string
	// CogName identifies the cog; two loaded modules may not share one.
	// Empty means the module registers no cog.
	CogName() string
	Dependencies() []string
	Setup(ctx context.Context, host *Host) error
	Teardown(ctx context.Context) error
}

// CommandProvider is implemented by modules that own slash commands.
type CommandProvider interface {
	Commands() []core.Command
}

// ComponentProvider is implemented by modules that own buttons, selects or
// modals. Keys are CustomID prefixes.
type ComponentProvider interface {
	Components() map[string]core.ComponentHandler
}

// EventHandler is implemented by modules that react to gateway events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// RequirementChecker lets a module refuse to load when its environment is
// incomplete.
type RequirementChecker interface {
	CheckRequirements(host *Host) error
}

// Event is a gateway event forwarded to modules.
type Event struct {
	Name    string
	Payload any
}

// Host is what modules get to work with.
type Host struct {
	Session *discordgo.Session
	Config  *files.ConfigManager
	Store   *storage.Store
	Tasks   *task.TaskRouter
	// DataDir is the root below which module assets live (modules/<name>/...).
	DataDir string
	Logger  *slog.Logger
}

// ModuleDir returns the asset directory of a module,
// <DataDir>/<module_path>/<name>.
func (h *Host) ModuleDir(name string) string {
	base := "modules"
	if h.Config != nil {
		if p := h.Config.Config().ModulePath; p != "" {
			base = p
		}
	}
	if filepath.IsAbs(base) {
		return filepath.Join(base, name)
	}
	return filepath.Join(h.DataDir, base, name)
}

// ModuleLogger returns the host logger, or the application logger, tagged
// with the module name.
func (h *Host) ModuleLogger(name string) *slog.Logger {
	if h.Logger != nil {
		return h.Logger.With("module", name)
	}
	return log.ApplicationLogger().With("module", name)
}

// Info is a read-only view of one loaded module.
type Info struct {
	Name         string    `json:"name"`
	CogName      string    `json:"cog,omitempty"`
	Dependencies []string  `json:"dependencies"`
	Dependents   []string  `json:"dependents"`
	Commands     []string  `json:"commands"`
	Required     bool      `json:"required"`
	LoadedAt     time.Time `json:"loaded_at"`
}
