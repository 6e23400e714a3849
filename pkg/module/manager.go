package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/small-frappuccino/zealox/pkg/discord/commands/core"
	"github.com/small-frappuccino/zealox/pkg/files"
	"github.com/small-frappuccino/zealox/pkg/log"
)

// CommandSyncer pushes the local command registry to Discord.
type CommandSyncer interface {
	SyncCommands(ctx context.Context) (core.SyncResult, error)
}

// LoadReport summarizes a LoadModules run.
type LoadReport struct {
	Loaded  []string
	Failed  []string
	Errors  []string
	SyncErr error
}

type loadedModule struct {
	mod        Module
	commands   []string
	components []string
	loadedAt   time.Time
}

// Manager owns the module lifecycle. All lifecycle operations are serialized.
type Manager struct {
	mu       sync.Mutex
	catalog  *Catalog
	host     *Host
	router   *core.CommandRouter
	syncer   CommandSyncer
	required []string

	loaded        map[string]*loadedModule
	order         []string
	cogs          map[string]string
	loadingErrors []string

	logger *slog.Logger
	now    func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithRequired replaces the set of modules that are always loaded and can
// never be unloaded.
func WithRequired(names ...string) Option {
	return func(m *Manager) { m.required = slices.Clone(names) }
}

// WithClock overrides the time source used for LoadedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager. router receives module commands and
// components; syncer may be nil, in which case syncing is skipped.
func NewManager(catalog *Catalog, host *Host, router *core.CommandRouter, syncer CommandSyncer, opts ...Option) *Manager {
	if host == nil {
		host = &Host{}
	}
	m := &Manager{
		catalog:  catalog,
		host:     host,
		router:   router,
		syncer:   syncer,
		required: []string{files.MatchdayModule},
		loaded:   make(map[string]*loadedModule),
		cogs:     make(map[string]string),
		logger:   log.ApplicationLogger().With("component", "module_manager"),
		now:      time.Now,
	}
	if host.Logger != nil {
		m.logger = host.Logger.With("component", "module_manager")
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadModules loads the required modules and then every enabled one, and
// syncs the command tree once at the end. Loading errors are collected in
// the report instead of aborting the run.
func (m *Manager) LoadModules(ctx context.Context, enabled []string) LoadReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadingErrors = nil
	var report LoadReport

	names := make([]string, 0, len(enabled)+len(m.required))
	names = append(names, m.required...)
	for _, name := range enabled {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	for _, name := range names {
		if _, ok := m.loaded[name]; ok {
			continue
		}
		if err := m.load(ctx, name, nil); err != nil {
			report.Failed = append(report.Failed, name)
			m.logger.Error("❌ Module failed to load", "module", name, "error", err)
			continue
		}
		report.Loaded = append(report.Loaded, name)
	}

	m.logger.Info(fmt.Sprintf("📦 %d modules loaded", len(m.loaded)), "modules", m.order)
	for _, e := range m.loadingErrors {
		m.logger.Warn("⚠️ Loading error", "error", e)
	}
	report.Errors = slices.Clone(m.loadingErrors)
	report.SyncErr = m.sync(ctx)
	return report
}

// LoadModule loads name and its dependencies. Loading an already loaded
// module is a no-op.
func (m *Manager) LoadModule(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.loaded[name]; ok {
		return nil
	}
	before := slices.Clone(m.order)
	if err := m.load(ctx, name, nil); err != nil {
		// Dependencies loaded on the way stay loaded; their commands still
		// have to reach Discord.
		if !slices.Equal(before, m.order) {
			return errors.Join(err, m.sync(ctx))
		}
		return err
	}
	m.logger.Info("✅ Module loaded", "module", name)
	return m.sync(ctx)
}

// UnloadModule tears name down and removes its commands.
func (m *Manager) UnloadModule(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.loaded[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, name)
	}
	if m.isRequired(name) {
		return fmt.Errorf("%w: %s", ErrRequiredModule, name)
	}
	if deps := m.dependentsOf(name); len(deps) > 0 {
		return fmt.Errorf("%w: ⚠️ '%s' kann nicht entladen werden. Abhängige Module: %s",
			ErrHasDependents, name, strings.Join(deps, ", "))
	}
	m.detach(ctx, name)
	m.logger.Info("🗑️ Module unloaded", "module", name)
	return m.sync(ctx)
}

// ReloadModule replaces name with a fresh instance. Loaded dependents are
// taken down first and brought back afterwards.
func (m *Manager) ReloadModule(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.loaded[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, name)
	}

	dependents := m.transitiveDependents(name)
	for i := len(dependents) - 1; i >= 0; i-- {
		m.detach(ctx, dependents[i])
	}
	m.detach(ctx, name)

	if err := m.load(ctx, name, nil); err != nil {
		m.logger.Error("❌ Module reload failed", "module", name, "error", err)
		// The module and its dependents are gone locally.
		return errors.Join(err, m.sync(ctx))
	}
	var failed []string
	for _, dep := range dependents {
		if _, ok := m.loaded[dep]; ok {
			continue
		}
		if err := m.load(ctx, dep, nil); err != nil {
			m.logger.Warn("⚠️ Dependent module could not be reloaded", "module", dep, "error", err)
			failed = append(failed, dep)
		}
	}
	m.logger.Info("🔄 Module reloaded", "module", name, "dependents", dependents)
	syncErr := m.sync(ctx)
	if len(failed) > 0 {
		return errors.Join(fmt.Errorf("%w: %s", ErrDependencyFailed, strings.Join(failed, ", ")), syncErr)
	}
	return syncErr
}

// DispatchEvent forwards ev to every loaded EventHandler in load order.
func (m *Manager) DispatchEvent(ctx context.Context, ev Event) {
	m.mu.Lock()
	handlers := make([]struct {
		name string
		h    EventHandler
	}, 0, len(m.order))
	for _, name := range m.order {
		if h, ok := m.loaded[name].mod.(EventHandler); ok {
			handlers = append(handlers, struct {
				name string
				h    EventHandler
			}{name, h})
		}
	}
	m.mu.Unlock()

	for _, entry := range handlers {
		if err := safeHandle(ctx, entry.h, ev); err != nil {
			m.logger.Error("❌ Event handler failed", "module", entry.name, "event", ev.Name, "error", err)
		}
	}
}

func safeHandle(ctx context.Context, h EventHandler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.HandleEvent(ctx, ev)
}

// TeardownAll tears down every module in reverse load order.
func (m *Manager) TeardownAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.order) - 1; i >= 0; i-- {
		m.detach(ctx, m.order[i])
	}
	m.logger.Info("🛑 All modules torn down")
}

// List returns status for every loaded module in load order.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Info, 0, len(m.order))
	for _, name := range m.order {
		lm := m.loaded[name]
		out = append(out, Info{
			Name:         name,
			CogName:      lm.mod.CogName(),
			Dependencies: slices.Clone(lm.mod.Dependencies()),
			Dependents:   m.dependentsOf(name),
			Commands:     slices.Clone(lm.commands),
			Required:     m.isRequired(name),
			LoadedAt:     lm.loadedAt,
		})
	}
	return out
}

// IsLoaded reports whether name is loaded.
func (m *Manager) IsLoaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loaded[name]
	return ok
}

// LoadingErrors returns the errors collected since the last LoadModules run.
func (m *Manager) LoadingErrors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.loadingErrors)
}

// Available returns the names of all loadable modules.
func (m *Manager) Available() []string {
	return m.catalog.Names()
}

// Required returns the required module names.
func (m *Manager) Required() []string {
	return slices.Clone(m.required)
}

func (m *Manager) isRequired(name string) bool {
	return slices.Contains(m.required, name)
}

// load loads name and its dependencies. stack holds the names currently being
// resolved and is used to detect cycles.
func (m *Manager) load(ctx context.Context, name string, stack []string) error {
	if _, ok := m.loaded[name]; ok {
		return nil
	}
	if slices.Contains(stack, name) {
		cycle := strings.Join(append(slices.Clone(stack), name), " -> ")
		return m.fail(fmt.Errorf("%w: %s", ErrDependencyCycle, cycle))
	}

	factory, ok := m.catalog.Lookup(name)
	if !ok {
		return m.fail(fmt.Errorf("%w: Modul '%s' nicht gefunden.", ErrModuleNotFound, name))
	}
	mod := factory()

	if rc, ok := mod.(RequirementChecker); ok {
		if err := rc.CheckRequirements(m.host); err != nil {
			return m.fail(fmt.Errorf("%w: Fehler beim Laden von '%s': %w", ErrRequirementsNotMet, name, err))
		}
	}

	stack = append(stack, name)
	for _, dep := range mod.Dependencies() {
		if _, ok := m.loaded[dep]; ok {
			continue
		}
		if err := m.load(ctx, dep, stack); err != nil {
			if errors.Is(err, ErrDependencyCycle) {
				return err
			}
			return m.fail(fmt.Errorf("%w: Modul '%s' benötigt '%s', welches nicht geladen werden konnte.",
				ErrDependencyFailed, name, dep))
		}
	}

	cog := mod.CogName()
	if owner, taken := m.cogs[cog]; cog != "" && taken {
		m.logger.Warn("⚠️ Cog already loaded, skipping", "module", name, "cog", cog, "owner", owner)
		return fmt.Errorf("%w: %s (owned by %s)", ErrDuplicateCog, cog, owner)
	}

	if err := mod.Setup(ctx, m.host); err != nil {
		return m.fail(fmt.Errorf("Fehler beim Laden von '%s': %w", name, err))
	}

	lm := &loadedModule{mod: mod, loadedAt: m.now()}
	if err := m.attach(name, lm); err != nil {
		if terr := mod.Teardown(ctx); terr != nil {
			m.logger.Warn("Teardown after failed registration", "module", name, "error", terr)
		}
		return m.fail(fmt.Errorf("Fehler beim Laden von '%s': %w", name, err))
	}

	if cog != "" {
		m.cogs[cog] = name
	}
	m.loaded[name] = lm
	m.order = append(m.order, name)
	m.logger.Debug("Module set up", "module", name, "cog", cog, "commands", lm.commands)
	return nil
}

// attach registers the module's commands and components with the router. On
// conflict nothing stays registered.
func (m *Manager) attach(name string, lm *loadedModule) error {
	if m.router == nil {
		return nil
	}
	var cmds []core.Command
	if cp, ok := lm.mod.(CommandProvider); ok {
		cmds = cp.Commands()
	}
	seen := make(map[string]bool, len(cmds))
	registry := m.router.GetRegistry()
	for _, cmd := range cmds {
		cname := cmd.Name()
		if seen[cname] {
			return fmt.Errorf("%w: /%s", ErrDuplicateCommand, cname)
		}
		seen[cname] = true
		if _, exists := registry.GetCommand(cname); exists {
			return fmt.Errorf("%w: /%s", ErrDuplicateCommand, cname)
		}
	}

	if cp, ok := lm.mod.(ComponentProvider); ok {
		components := cp.Components()
		prefixes := make([]string, 0, len(components))
		for p := range components {
			prefixes = append(prefixes, p)
		}
		sort.Strings(prefixes)
		for _, p := range prefixes {
			if err := m.router.RegisterComponent(p, components[p]); err != nil {
				for _, done := range lm.components {
					m.router.UnregisterComponent(done)
				}
				lm.components = nil
				return fmt.Errorf("%w: %w", ErrDuplicateCommand, err)
			}
			lm.components = append(lm.components, p)
		}
	}

	for _, cmd := range cmds {
		m.router.RegisterCommand(cmd)
		lm.commands = append(lm.commands, cmd.Name())
	}
	return nil
}

// detach tears name down and forgets it without any checks.
func (m *Manager) detach(ctx context.Context, name string) {
	lm, ok := m.loaded[name]
	if !ok {
		return
	}
	if err := lm.mod.Teardown(ctx); err != nil {
		m.logger.Warn("⚠️ Teardown failed", "module", name, "error", err)
	}
	if m.router != nil {
		for _, c := range lm.commands {
			m.router.UnregisterCommand(c)
		}
		for _, p := range lm.components {
			m.router.UnregisterComponent(p)
		}
	}
	if cog := lm.mod.CogName(); cog != "" && m.cogs[cog] == name {
		delete(m.cogs, cog)
	}
	delete(m.loaded, name)
	m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == name })
}

// dependentsOf lists loaded modules that directly depend on name, in load order.
func (m *Manager) dependentsOf(name string) []string {
	var out []string
	for _, n := range m.order {
		if slices.Contains(m.loaded[n].mod.Dependencies(), name) {
			out = append(out, n)
		}
	}
	return out
}

// transitiveDependents lists every loaded module that depends on name
// directly or indirectly, in load order.
func (m *Manager) transitiveDependents(name string) []string {
	affected := map[string]bool{name: true}
	var out []string
	for _, n := range m.order {
		if n == name {
			continue
		}
		for _, dep := range m.loaded[n].mod.Dependencies() {
			if affected[dep] {
				affected[n] = true
				out = append(out, n)
				break
			}
		}
	}
	return out
}

func (m *Manager) fail(err error) error {
	m.loadingErrors = append(m.loadingErrors, err.Error())
	return err
}

func (m *Manager) sync(ctx context.Context) error {
	if m.syncer == nil {
		return nil
	}
	res, err := m.syncer.SyncCommands(ctx)
	if err != nil {
		m.logger.Error("❌ Command sync failed", "error", err)
		return fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}
	m.logger.Info("🔁 Commands synced",
		"created", res.Created, "updated", res.Updated, "deleted", res.Deleted,
		"unchanged", res.Unchanged, "total", res.Total)
	return nil
}
