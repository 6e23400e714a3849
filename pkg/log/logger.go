package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Category selects one of the category loggers.
type Category int

const (
	Application Category = iota
	DiscordEvents
	Database
)

func (c Category) String() string {
	switch c {
	case DiscordEvents:
		return "discord"
	case Database:
		return "database"
	default:
		return "application"
	}
}

// Options configures SetupLogger.
type Options struct {
	// Dir is the directory for bot_YYYY-MM-DD.log. Empty disables the file sink.
	Dir string
	// Level is one of DEBUG, INFO, WARNING, ERROR. Defaults to INFO.
	Level string
	// Console receives a copy of every record. Defaults to os.Stdout.
	Console io.Writer
	// Now is used to name the log file.
	Now func() time.Time
}

type logger struct {
	file     *lumberjack.Logger
	level    *slog.LevelVar
	app      *slog.Logger
	discord  *slog.Logger
	database *slog.Logger
	errors   *slog.Logger
}

var (
	mu     sync.RWMutex
	global *logger
)

// LogFileName returns the daily log file name for t.
func LogFileName(t time.Time) string {
	return fmt.Sprintf("bot_%s.log", t.Format("2006-01-02"))
}

// ParseLevel maps config level names to slog levels. Unknown names map to INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger installs the global loggers. Calling it again replaces the
// previous sinks and closes the old log file.
func SetupLogger(opts Options) error {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	level := new(slog.LevelVar)
	level.Set(ParseLevel(opts.Level))

	var file *lumberjack.Logger
	out := console
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, LogFileName(now())),
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		out = io.MultiWriter(console, file)
	}

	base := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	l := &logger{
		file:     file,
		level:    level,
		app:      base.With("category", Application.String()),
		discord:  base.With("category", DiscordEvents.String()),
		database: base.With("category", Database.String()),
		errors:   base.With("category", "error"),
	}

	mu.Lock()
	prev := global
	global = l
	mu.Unlock()

	if prev != nil && prev.file != nil {
		_ = prev.file.Close()
	}
	return nil
}

// SetLevel changes the level of the installed loggers.
func SetLevel(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if global != nil {
		global.level.Set(ParseLevel(name))
	}
}

// CloseGlobalLogger closes the log file sink, if any.
func CloseGlobalLogger() error {
	mu.Lock()
	defer mu.Unlock()
	if global == nil || global.file == nil {
		return nil
	}
	err := global.file.Close()
	global.file = nil
	return err
}

func pick(fn func(*logger) *slog.Logger, category string) *slog.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l == nil {
		return slog.Default().With("category", category)
	}
	return fn(l)
}

// ApplicationLogger logs lifecycle and general application events.
func ApplicationLogger() *slog.Logger {
	return pick(func(l *logger) *slog.Logger { return l.app }, Application.String())
}

// DiscordLogger logs gateway and interaction events.
func DiscordLogger() *slog.Logger {
	return pick(func(l *logger) *slog.Logger { return l.discord }, DiscordEvents.String())
}

// DatabaseLogger logs storage events.
func DatabaseLogger() *slog.Logger {
	return pick(func(l *logger) *slog.Logger { return l.database }, Database.String())
}

// ErrorLoggerRaw logs failures that need operator attention.
func ErrorLoggerRaw() *slog.Logger {
	return pick(func(l *logger) *slog.Logger { return l.errors }, "error")
}

// For returns the logger for a category.
func For(c Category) *slog.Logger {
	switch c {
	case DiscordEvents:
		return DiscordLogger()
	case Database:
		return DatabaseLogger()
	default:
		return ApplicationLogger()
	}
}
