package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"github.com/small-frappuccino/zealox/pkg/control"
	"github.com/small-frappuccino/zealox/pkg/discord/commands"
	"github.com/small-frappuccino/zealox/pkg/discord/commands/admin"
	"github.com/small-frappuccino/zealox/pkg/discord/session"
	"github.com/small-frappuccino/zealox/pkg/features/matchday"
	"github.com/small-frappuccino/zealox/pkg/features/stafflist"
	"github.com/small-frappuccino/zealox/pkg/features/streambanner"
	"github.com/small-frappuccino/zealox/pkg/files"
	"github.com/small-frappuccino/zealox/pkg/log"
	"github.com/small-frappuccino/zealox/pkg/module"
	"github.com/small-frappuccino/zealox/pkg/runtimeapply"
	"github.com/small-frappuccino/zealox/pkg/storage"
	"github.com/small-frappuccino/zealox/pkg/task"
	"github.com/small-frappuccino/zealox/pkg/theme"
	"github.com/small-frappuccino/zealox/pkg/util"
)

// configCheckSpec is how often config.json is checked for changes.
const configCheckSpec = "@every 5m"

// Catalog returns every module the bot can load.
func Catalog() *module.Catalog {
	c := module.NewCatalog()
	c.Register(matchday.Name, matchday.New)
	c.Register(streambanner.Name, streambanner.New)
	c.Register(stafflist.Name, stafflist.New)
	return c
}

// RequiredDirs lists the directories created below the data dir at start-up.
func RequiredDirs(modulePath string) []string {
	if modulePath == "" {
		modulePath = "modules"
	}
	return []string{
		modulePath,
		filepath.Join(modulePath, "matchday"),
		filepath.Join(modulePath, "matchday", "zwischenspeicher"),
		filepath.Join(modulePath, "streambanner"),
		filepath.Join(modulePath, "streambanner", "spielmodi"),
		filepath.Join(modulePath, "streambanner", "temp"),
		"logs",
		"data",
	}
}

func ensureDirs(dataDir, modulePath string) error {
	for _, d := range RequiredDirs(modulePath) {
		if !filepath.IsAbs(d) {
			d = filepath.Join(dataDir, d)
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// Run bootstraps the bot and blocks until shutdown. Shutdown happens on
// SIGINT/SIGTERM, cancellation of ctx, or /admin shutdown.
func Run(ctx context.Context, settings util.Settings) error {
	started := time.Now()

	level := settings.LogLevel
	if level == "" {
		level = "INFO"
	}
	if err := log.SetupLogger(log.Options{Dir: filepath.Join(settings.DataDir, "logs"), Level: level}); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	defer log.CloseGlobalLogger()

	if settings.Theme != "" {
		if err := theme.SetCurrent(settings.Theme); err != nil {
			log.ApplicationLogger().Warn("Failed to set theme", "theme", settings.Theme, "err", err)
		}
	}

	log.ApplicationLogger().Info("🚀 Starting zealox...", "version", Version)

	// Config
	configPath := settings.ConfigPath
	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(settings.DataDir, configPath)
	}
	configManager := files.NewConfigManagerWithPath(configPath)
	configManager.OverrideToken(settings.Token)
	if err := configManager.LoadConfig(); err != nil {
		if errors.Is(err, files.ErrExampleCreated) {
			return fmt.Errorf("%w: fill in discord_token in %s and restart", err, configPath)
		}
		return fmt.Errorf("load config: %w", err)
	}
	if _, err := configManager.DedupeModules(); err != nil {
		log.ApplicationLogger().Warn("Failed to save deduplicated module list", "err", err)
	}
	if err := configManager.ValidateMatchday(); err != nil {
		log.ApplicationLogger().Warn("Failed to save matchday defaults", "err", err)
	}
	cfg := configManager.Config()
	if settings.LogLevel == "" {
		log.SetLevel(cfg.LogLevel)
	}

	token, err := configManager.Token()
	if err != nil {
		return err
	}

	if err := ensureDirs(settings.DataDir, cfg.ModulePath); err != nil {
		return err
	}

	store := storage.NewStore(settings.DBPath)
	if err := store.Init(); err != nil {
		return fmt.Errorf("initialize SQLite store: %w", err)
	}

	discordSession, err := session.New(token)
	if err != nil {
		_ = store.Close()
		return err
	}

	r := &runner{
		settings:      settings,
		started:       started,
		configManager: configManager,
		store:         store,
		session:       discordSession,
		tasks:         task.NewRouter(task.Defaults()),
		shutdownCh:    make(chan struct{}),
	}
	return r.run(ctx)
}

// runner holds the wired components of one bot process.
type runner struct {
	settings      util.Settings
	started       time.Time
	configManager *files.ConfigManager
	store         *storage.Store
	session       *discordgo.Session
	tasks         *task.TaskRouter

	handler   *commands.CommandHandler
	modules   *module.Manager
	applier   *runtimeapply.Manager
	scheduler *cron.Cron
	control   *control.Server

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func (r *runner) requestShutdown() {
	r.shutdownOnce.Do(func() { close(r.shutdownCh) })
}

func (r *runner) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer r.shutdown()

	r.applier = runtimeapply.New(r.session)
	r.applier.SetInitial(r.configManager.Config())

	r.handler = commands.NewCommandHandler(r.session, r.configManager)
	cm := r.handler.GetCommandManager()
	router := cm.GetRouter()
	router.SetBaseContext(ctx)

	host := &module.Host{
		Session: r.session,
		Config:  r.configManager,
		Store:   r.store,
		Tasks:   r.tasks,
		DataDir: r.settings.DataDir,
		Logger:  log.ApplicationLogger(),
	}
	r.modules = module.NewManager(Catalog(), host, router, cm)
	if err := r.handler.SetupCommands(r.modules, r.started, r.requestShutdown); err != nil {
		return fmt.Errorf("configure slash commands: %w", err)
	}

	events := newGatewayEvents(ctx, r.modules, presenceFunc(func() error {
		return r.applier.ApplyPresence(r.configManager.Config())
	}), log.DiscordLogger())
	detach := events.attach(r.session)
	defer detach()

	log.DiscordLogger().Info("🔑 Attempting to authenticate with Discord API...")
	if err := connectWithRetry(ctx, func() error { return session.Open(r.session) },
		connectStrategy(r.settings.MaxRetries), sleepContext); err != nil {
		return err
	}

	report := r.modules.LoadModules(ctx, r.configManager.Config().EnabledModules)
	log.ApplicationLogger().Info("📦 Modules loaded", "loaded", report.Loaded, "failed", report.Failed)
	if report.SyncErr != nil {
		log.ApplicationLogger().Error("❌ Slash command sync failed", "err", report.SyncErr)
	}

	r.scheduler = cron.New()
	if _, err := r.scheduler.AddFunc(configCheckSpec, func() { r.checkConfig(ctx) }); err != nil {
		return fmt.Errorf("schedule config check: %w", err)
	}
	r.scheduler.Start()

	r.control = control.NewServer(r.settings.ControlAddr, r.modules, r.status)
	if err := r.control.Start(); err != nil {
		log.ApplicationLogger().Error("Control server not started", "err", err)
		r.control = nil
	}

	log.ApplicationLogger().Info("🎯 zealox initialized", "took", time.Since(r.started).Round(time.Millisecond))
	log.ApplicationLogger().Info("🤖 zealox running. Press Ctrl+C to stop...")

	reason := util.WaitForShutdown(ctx, r.shutdownCh)
	log.ApplicationLogger().Info("🛑 Stopping zealox...", "reason", reason)
	return nil
}

// checkConfig reloads config.json when it changed and reapplies the
// hot-reloadable settings.
func (r *runner) checkConfig(ctx context.Context) {
	changed, err := r.configManager.ReloadIfChanged()
	if err != nil || !changed {
		return
	}
	log.ApplicationLogger().Info("🔄 Configuration changed, applying...")
	if err := r.applier.Apply(ctx, r.configManager.Config()); err != nil {
		log.ApplicationLogger().Warn("Failed to apply configuration", "err", err)
	}
}

func (r *runner) status() control.Status {
	st := control.Status{
		StartedAt:    r.started,
		Uptime:       admin.FormatUptime(time.Since(r.started)),
		PendingTasks: r.tasks.Stats().PendingCount,
	}
	if r.session != nil && r.session.State != nil {
		r.session.State.RLock()
		st.Guilds = len(r.session.State.Guilds)
		r.session.State.RUnlock()
	}
	return st
}

// shutdown stops everything in reverse start order.
func (r *runner) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if r.scheduler != nil {
		<-r.scheduler.Stop().Done()
	}
	if err := r.control.Stop(ctx); err != nil {
		log.ErrorLoggerRaw().Error("Control server did not stop cleanly", "err", err)
	}
	if r.modules != nil {
		r.modules.TeardownAll(ctx)
	}
	r.tasks.Close()
	if r.handler != nil {
		_ = r.handler.Shutdown()
	}
	if err := r.store.Close(); err != nil {
		log.ErrorLoggerRaw().Error("Failed to close store", "err", err)
	}
	if err := r.session.Close(); err != nil {
		log.DiscordLogger().Debug("Session close", "err", err)
	}
	log.ApplicationLogger().Info("👋 Shutdown complete")
}

type presenceFunc func() error

func (f presenceFunc) ApplyPresence() error { return f() }
