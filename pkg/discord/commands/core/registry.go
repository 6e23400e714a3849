package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	apperrors "github.com/small-frappuccino/zealox/pkg/errors"
	"github.com/small-frappuccino/zealox/pkg/files"
	"github.com/small-frappuccino/zealox/pkg/log"
)

// User-facing router messages.
const (
	msgCommandNotFound   = "Befehl nicht gefunden."
	msgGuildOnly         = "Dieser Befehl kann nur auf einem Server verwendet werden."
	msgNoPermission      = "Du hast keine Berechtigung, diesen Befehl zu verwenden."
	msgCommandFailed     = "Beim Ausführen des Befehls ist ein Fehler aufgetreten."
	msgInteractionExpire = "Diese Interaktion ist nicht mehr verfügbar."
)

// ErrDuplicateComponent is returned when a CustomID prefix is already taken.
var ErrDuplicateComponent = errors.New("component prefix already registered")

// CommandRegistry holds the commands currently exposed to Discord.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]Command)}
}

// Register adds or replaces a command.
func (r *CommandRegistry) Register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd.Name()] = cmd
}

// Unregister removes a command and reports whether it was present.
func (r *CommandRegistry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.commands[name]
	delete(r.commands, name)
	return ok
}

// GetCommand returns a command by name.
func (r *CommandRegistry) GetCommand(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, exists := r.commands[name]
	return cmd, exists
}

// GetAllCommands returns a snapshot of all registered commands.
func (r *CommandRegistry) GetAllCommands() map[string]Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// Names returns the registered command names, sorted.
func (r *CommandRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CommandRouter dispatches interactions to commands, autocomplete handlers
// and component handlers.
type CommandRouter struct {
	registry        *CommandRegistry
	contextBuilder  *ContextBuilder
	responder       *ResponseManager
	permChecker     *PermissionChecker
	mu              sync.RWMutex
	autocompleteMap map[string]AutocompleteHandler
	components      map[string]ComponentHandler
}

// NewCommandRouter creates a router for session.
func NewCommandRouter(
	session *discordgo.Session,
	configManager *files.ConfigManager,
) *CommandRouter {
	return &CommandRouter{
		registry:        NewCommandRegistry(),
		contextBuilder:  NewContextBuilder(session, configManager),
		responder:       NewResponseManager(session),
		permChecker:     NewPermissionChecker(session, configManager),
		autocompleteMap: make(map[string]AutocompleteHandler),
		components:      make(map[string]ComponentHandler),
	}
}

// SetBaseContext sets the parent context handed to handlers.
func (cr *CommandRouter) SetBaseContext(ctx context.Context) {
	cr.contextBuilder.SetBase(ctx)
}

// RegisterCommand registers a top-level command.
func (cr *CommandRouter) RegisterCommand(cmd Command) {
	cr.registry.Register(cmd)
}

// UnregisterCommand removes a command and its autocomplete handler.
func (cr *CommandRouter) UnregisterCommand(name string) bool {
	cr.mu.Lock()
	delete(cr.autocompleteMap, name)
	cr.mu.Unlock()
	return cr.registry.Unregister(name)
}

// RegisterAutocomplete registers an autocomplete handler for a command name.
func (cr *CommandRouter) RegisterAutocomplete(commandName string, handler AutocompleteHandler) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.autocompleteMap[commandName] = handler
}

// RegisterComponent routes CustomIDs starting with prefix to handler.
func (cr *CommandRouter) RegisterComponent(prefix string, handler ComponentHandler) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if _, exists := cr.components[prefix]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateComponent, prefix)
	}
	cr.components[prefix] = handler
	return nil
}

// UnregisterComponent removes a component prefix.
func (cr *CommandRouter) UnregisterComponent(prefix string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	delete(cr.components, prefix)
}

// componentFor returns the handler with the longest prefix matching customID.
func (cr *CommandRouter) componentFor(customID string) (ComponentHandler, bool) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	var (
		best    ComponentHandler
		bestLen = -1
	)
	for prefix, h := range cr.components {
		if strings.HasPrefix(customID, prefix) && len(prefix) > bestLen {
			best, bestLen = h, len(prefix)
		}
	}
	return best, bestLen >= 0
}

// HandleInteraction routes interactions to the matching handlers.
func (cr *CommandRouter) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommandAutocomplete:
		cr.handleAutocomplete(i)
	case discordgo.InteractionApplicationCommand:
		cr.handleSlashCommand(i)
	case discordgo.InteractionMessageComponent, discordgo.InteractionModalSubmit:
		cr.handleComponent(i)
	}
}

func (cr *CommandRouter) ephemeral() *ResponseManager {
	return cr.responder.WithConfig(ResponseConfig{Ephemeral: true})
}

func (cr *CommandRouter) handleSlashCommand(i *discordgo.InteractionCreate) {
	ctx := cr.contextBuilder.BuildContext(i)
	commandName := i.ApplicationCommandData().Name

	ctx.Logger.Debug("Processing slash command")

	cmd, exists := cr.registry.GetCommand(commandName)
	if !exists {
		ctx.Logger.Error("Command not found")
		cr.reply(ctx, cr.ephemeral().Error(i, msgCommandNotFound))
		return
	}

	if cmd.RequiresGuild() && ctx.GuildID == "" {
		ctx.Logger.Warn("Command used outside of guild")
		cr.reply(ctx, cr.ephemeral().Error(i, msgGuildOnly))
		return
	}

	if cmd.RequiresPermissions() && !cr.permChecker.HasPermission(ctx.GuildID, ctx.UserID, i.Member) {
		ctx.Logger.Warn("User without permission tried to use command")
		cr.reply(ctx, cr.ephemeral().Error(i, msgNoPermission))
		return
	}

	ctx.Logger.Info("Executing command")
	if err := cr.run(ctx, cmd.Handle); err != nil {
		ctx.Logger.Error("Command execution failed", "err", err)
		cr.replyError(ctx, err)
	}
}

func (cr *CommandRouter) handleComponent(i *discordgo.InteractionCreate) {
	ctx := cr.contextBuilder.BuildContext(i)
	customID := ctx.CustomID()

	handler, ok := cr.componentFor(customID)
	if !ok {
		ctx.Logger.Warn("No component handler registered")
		cr.reply(ctx, cr.ephemeral().Error(i, msgInteractionExpire))
		return
	}

	if err := cr.run(ctx, handler.HandleComponent); err != nil {
		ctx.Logger.Error("Component handler failed", "err", err)
		cr.replyError(ctx, err)
	}
}

// run calls fn and turns a panic into an error.
func (cr *CommandRouter) run(ctx *Context, fn func(*Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorLoggerRaw().Error("Handler panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (cr *CommandRouter) replyError(ctx *Context, err error) {
	var (
		cmdErr *CommandError
		valErr *ValidationError
	)
	switch {
	case errors.As(err, &cmdErr):
		if cmdErr.Ephemeral {
			cr.reply(ctx, cr.ephemeral().Error(ctx.Interaction, cmdErr.Message))
		} else {
			cr.reply(ctx, cr.responder.Error(ctx.Interaction, cmdErr.Message))
		}
	case errors.As(err, &valErr):
		cr.reply(ctx, cr.ephemeral().Error(ctx.Interaction, valErr.Message))
	default:
		cr.reply(ctx, cr.ephemeral().Error(ctx.Interaction, msgCommandFailed))
	}
}

func (cr *CommandRouter) reply(ctx *Context, err error) {
	if err != nil {
		ctx.Logger.Warn("Failed to send interaction response", "err", err)
	}
}

func (cr *CommandRouter) handleAutocomplete(i *discordgo.InteractionCreate) {
	ctx := cr.contextBuilder.BuildContext(i)
	commandName := i.ApplicationCommandData().Name

	cr.mu.RLock()
	handler, exists := cr.autocompleteMap[commandName]
	cr.mu.RUnlock()
	if !exists {
		if cmd, ok := cr.registry.GetCommand(commandName); ok {
			handler, exists = cmd.(AutocompleteHandler)
		}
	}

	focusedOpt, hasFocus := HasFocusedOption(i.ApplicationCommandData().Options)
	if !exists || !hasFocus {
		cr.reply(ctx, cr.responder.Autocomplete(i, nil))
		return
	}

	choices, err := handler.HandleAutocomplete(ctx, focusedOpt.Name)
	if err != nil {
		ctx.Logger.Error("Autocomplete handler failed", "err", err)
		choices = nil
	}
	cr.reply(ctx, cr.responder.Autocomplete(i, choices))
}

// GetSession returns the Discord session.
func (cr *CommandRouter) GetSession() *discordgo.Session {
	return cr.contextBuilder.session
}

// GetConfigManager returns the bot config manager.
func (cr *CommandRouter) GetConfigManager() *files.ConfigManager {
	return cr.contextBuilder.configManager
}

// GetRegistry returns the command registry.
func (cr *CommandRouter) GetRegistry() *CommandRegistry {
	return cr.registry
}

// GetResponder returns the shared response manager.
func (cr *CommandRouter) GetResponder() *ResponseManager {
	return cr.responder
}

// GetPermissionChecker returns the permission checker.
func (cr *CommandRouter) GetPermissionChecker() *PermissionChecker {
	return cr.permChecker
}

// SyncResult counts what a command synchronization changed.
type SyncResult struct {
	Created   int
	Updated   int
	Deleted   int
	Unchanged int
	Total     int
}

// CommandManager keeps the Discord command tree in line with the registry.
type CommandManager struct {
	session    *discordgo.Session
	router     *CommandRouter
	errHandler *apperrors.ErrorHandler
	syncMu     sync.Mutex
	appID      string
}

// NewCommandManager creates a command manager with its own router.
func NewCommandManager(
	session *discordgo.Session,
	configManager *files.ConfigManager,
) *CommandManager {
	return &CommandManager{
		session:    session,
		router:     NewCommandRouter(session, configManager),
		errHandler: apperrors.NewErrorHandler(),
	}
}

// GetRouter returns the command router.
func (cm *CommandManager) GetRouter() *CommandRouter {
	return cm.router
}

// SetApplicationID pins the application id used for syncing. Without it the
// id of the logged-in bot user is used.
func (cm *CommandManager) SetApplicationID(id string) {
	cm.appID = id
}

// SetErrorHandler replaces the retry policy used while syncing.
func (cm *CommandManager) SetErrorHandler(eh *apperrors.ErrorHandler) {
	if eh != nil {
		cm.errHandler = eh
	}
}

// AttachHandler registers the router on the session and returns the remover.
func (cm *CommandManager) AttachHandler() func() {
	return cm.session.AddHandler(cm.router.HandleInteraction)
}

func (cm *CommandManager) applicationID() (string, error) {
	if cm.appID != "" {
		return cm.appID, nil
	}
	if cm.session != nil && cm.session.State != nil && cm.session.State.User != nil {
		return cm.session.State.User.ID, nil
	}
	return "", fmt.Errorf("application id unknown: session not ready")
}

// SyncCommands creates new, edits changed and deletes orphaned global commands.
func (cm *CommandManager) SyncCommands(ctx context.Context) (SyncResult, error) {
	cm.syncMu.Lock()
	defer cm.syncMu.Unlock()

	logger := log.DiscordLogger().With("component", "command_manager")
	var res SyncResult

	appID, err := cm.applicationID()
	if err != nil {
		return res, err
	}

	var registered []*discordgo.ApplicationCommand
	err = cm.errHandler.HandleWithRetry(ctx, "fetch_commands", "command_manager", func() error {
		var ferr error
		registered, ferr = cm.session.ApplicationCommands(appID, "", discordgo.WithContext(ctx))
		return ferr
	})
	if err != nil {
		return res, fmt.Errorf("failed to fetch registered commands: %w", err)
	}

	regByName := make(map[string]*discordgo.ApplicationCommand, len(registered))
	for _, rc := range registered {
		regByName[rc.Name] = rc
	}

	codeCommands := cm.router.registry.GetAllCommands()
	res.Total = len(codeCommands)
	names := make([]string, 0, len(codeCommands))
	for name := range codeCommands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cmd := codeCommands[name]
		desired := &discordgo.ApplicationCommand{
			Name:        cmd.Name(),
			Description: cmd.Description(),
			Options:     cmd.Options(),
		}

		if existing, ok := regByName[name]; ok {
			if CompareCommands(existing, desired) {
				logger.Debug("Command unchanged, skipping", "command", name)
				res.Unchanged++
				continue
			}
			if _, err := cm.session.ApplicationCommandEdit(appID, "", existing.ID, desired, discordgo.WithContext(ctx)); err != nil {
				return res, fmt.Errorf("error updating command '%s': %w", name, err)
			}
			logger.Info("Command updated", "command", name)
			res.Updated++
			continue
		}

		if _, err := cm.session.ApplicationCommandCreate(appID, "", desired, discordgo.WithContext(ctx)); err != nil {
			return res, fmt.Errorf("error creating command '%s': %w", name, err)
		}
		logger.Info("Command created", "command", name)
		res.Created++
	}

	for _, rc := range registered {
		if _, exists := codeCommands[rc.Name]; exists {
			continue
		}
		if err := cm.session.ApplicationCommandDelete(appID, "", rc.ID, discordgo.WithContext(ctx)); err != nil {
			logger.Warn("Error removing orphan command", "command", rc.Name, "err", err)
			continue
		}
		logger.Info("Orphan command removed", "command", rc.Name)
		res.Deleted++
	}

	logger.Info("Command synchronization completed",
		"created", res.Created,
		"updated", res.Updated,
		"deleted", res.Deleted,
		"unchanged", res.Unchanged,
		"total", res.Total,
	)
	return res, nil
}

// GroupCommand is a command made of subcommands.
type GroupCommand struct {
	name        string
	description string
	mu          sync.RWMutex
	subcommands map[string]SubCommand
	checker     *PermissionChecker
}

// NewGroupCommand creates a group command.
func NewGroupCommand(name, description string, checker *PermissionChecker) *GroupCommand {
	return &GroupCommand{
		name:        name,
		description: description,
		subcommands: make(map[string]SubCommand),
		checker:     checker,
	}
}

// AddSubCommand adds a subcommand.
func (gc *GroupCommand) AddSubCommand(subcmd SubCommand) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.subcommands[subcmd.Name()] = subcmd
}

// SubCommands returns the subcommands sorted by name.
func (gc *GroupCommand) SubCommands() []SubCommand {
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	out := make([]SubCommand, 0, len(gc.subcommands))
	for _, s := range gc.subcommands {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b SubCommand) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

func (gc *GroupCommand) Name() string        { return gc.name }
func (gc *GroupCommand) Description() string { return gc.description }

// Options builds the subcommand options in name order.
func (gc *GroupCommand) Options() []*discordgo.ApplicationCommandOption {
	subs := gc.SubCommands()
	options := make([]*discordgo.ApplicationCommandOption, 0, len(subs))
	for _, subcmd := range subs {
		options = append(options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        subcmd.Name(),
			Description: subcmd.Description(),
			Options:     subcmd.Options(),
		})
	}
	return options
}

// RequiresGuild reports whether any subcommand requires a guild.
func (gc *GroupCommand) RequiresGuild() bool {
	for _, subcmd := range gc.SubCommands() {
		if subcmd.RequiresGuild() {
			return true
		}
	}
	return false
}

// RequiresPermissions is false; permissions are checked per subcommand.
func (gc *GroupCommand) RequiresPermissions() bool {
	return false
}

func (gc *GroupCommand) lookup(i *discordgo.InteractionCreate) (SubCommand, error) {
	name := GetSubCommandName(i)
	if name == "" {
		return nil, NewCommandError("Kein Unterbefehl angegeben.", true)
	}
	gc.mu.RLock()
	subcmd, exists := gc.subcommands[name]
	gc.mu.RUnlock()
	if !exists {
		return nil, NewCommandError("Unbekannter Unterbefehl.", true)
	}
	return subcmd, nil
}

// Handle routes to the selected subcommand.
func (gc *GroupCommand) Handle(ctx *Context) error {
	subcmd, err := gc.lookup(ctx.Interaction)
	if err != nil {
		return err
	}
	if subcmd.RequiresGuild() && ctx.GuildID == "" {
		return NewCommandError(msgGuildOnly, true)
	}
	if subcmd.RequiresPermissions() && (gc.checker == nil || !gc.checker.HasPermission(ctx.GuildID, ctx.UserID, ctx.Interaction.Member)) {
		return NewCommandError(msgNoPermission, true)
	}
	return subcmd.Handle(ctx)
}

// HandleAutocomplete delegates to the selected subcommand when it supports it.
func (gc *GroupCommand) HandleAutocomplete(ctx *Context, focusedOption string) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	subcmd, err := gc.lookup(ctx.Interaction)
	if err != nil {
		return nil, nil
	}
	if ac, ok := subcmd.(AutocompleteHandler); ok {
		return ac.HandleAutocomplete(ctx, focusedOption)
	}
	return nil, nil
}

// SimpleCommand implements Command with a handler function.
type SimpleCommand struct {
	name                string
	description         string
	options             []*discordgo.ApplicationCommandOption
	handler             func(ctx *Context) error
	autocomplete        func(ctx *Context, focused string) ([]*discordgo.ApplicationCommandOptionChoice, error)
	requiresGuild       bool
	requiresPermissions bool
}

// NewSimpleCommand creates a command backed by handler.
func NewSimpleCommand(
	name, description string,
	options []*discordgo.ApplicationCommandOption,
	handler func(ctx *Context) error,
	requiresGuild, requiresPermissions bool,
) *SimpleCommand {
	return &SimpleCommand{
		name:                name,
		description:         description,
		options:             options,
		handler:             handler,
		requiresGuild:       requiresGuild,
		requiresPermissions: requiresPermissions,
	}
}

// WithAutocomplete attaches an autocomplete function.
func (sc *SimpleCommand) WithAutocomplete(fn func(ctx *Context, focused string) ([]*discordgo.ApplicationCommandOptionChoice, error)) *SimpleCommand {
	sc.autocomplete = fn
	return sc
}

func (sc *SimpleCommand) Name() string        { return sc.name }
func (sc *SimpleCommand) Description() string { return sc.description }
func (sc *SimpleCommand) Options() []*discordgo.ApplicationCommandOption {
	return sc.options
}
func (sc *SimpleCommand) Handle(ctx *Context) error { return sc.handler(ctx) }
func (sc *SimpleCommand) RequiresGuild() bool       { return sc.requiresGuild }
func (sc *SimpleCommand) RequiresPermissions() bool { return sc.requiresPermissions }

// HandleAutocomplete runs the attached autocomplete function, if any.
func (sc *SimpleCommand) HandleAutocomplete(ctx *Context, focused string) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	if sc.autocomplete == nil {
		return nil, nil
	}
	return sc.autocomplete(ctx, focused)
}
