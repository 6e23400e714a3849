package commands

import (
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/discord/commands/admin"
	"github.com/small-frappuccino/zealox/pkg/discord/commands/core"
	"github.com/small-frappuccino/zealox/pkg/files"
	"github.com/small-frappuccino/zealox/pkg/log"
)

// CommandHandler owns the command manager and the built-in commands. Module
// commands are added to its router by the module manager.
type CommandHandler struct {
	session        *discordgo.Session
	configManager  *files.ConfigManager
	commandManager *core.CommandManager
	detach         func()
}

// NewCommandHandler creates a new CommandHandler instance
func NewCommandHandler(
	session *discordgo.Session,
	configManager *files.ConfigManager,
) *CommandHandler {
	return &CommandHandler{
		session:        session,
		configManager:  configManager,
		commandManager: core.NewCommandManager(session, configManager),
	}
}

// SetupCommands registers /admin and /help and starts routing interactions.
// The command tree is synced later, when the modules are loaded.
func (ch *CommandHandler) SetupCommands(modules admin.Modules, started time.Time, shutdown func()) error {
	if modules == nil {
		return errors.New("setup commands: module manager is nil")
	}
	log.ApplicationLogger().Info("Setting up bot commands...")

	admin.NewAdminCommands(modules, started, shutdown).RegisterCommands(ch.commandManager.GetRouter())
	if ch.detach == nil && ch.session != nil {
		ch.detach = ch.commandManager.AttachHandler()
	}

	log.ApplicationLogger().Info("Built-in commands registered", "commands", ch.commandManager.GetRouter().GetRegistry().Names())
	return nil
}

// Shutdown stops routing interactions.
func (ch *CommandHandler) Shutdown() error {
	log.ApplicationLogger().Info("Shutting down command handler...")
	if ch.detach != nil {
		ch.detach()
		ch.detach = nil
	}
	return nil
}

// GetCommandManager returns the command manager
func (ch *CommandHandler) GetCommandManager() *core.CommandManager {
	return ch.commandManager
}

// GetConfigManager returns the configuration manager
func (ch *CommandHandler) GetConfigManager() *files.ConfigManager {
	return ch.configManager
}
