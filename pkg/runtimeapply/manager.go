// Package runtimeapply applies config.json changes to the running bot
// without a restart.
package runtimeapply

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/files"
	"github.com/small-frappuccino/zealox/pkg/log"
)

// PresenceUpdater sets the bot activity. *discordgo.Session implements it.
type PresenceUpdater interface {
	UpdateStatusComplex(usd discordgo.UpdateStatusData) error
}

// Manager applies the hot-reloadable parts of the config: log level and
// presence. Everything else is read on use.
type Manager struct {
	mu sync.Mutex

	// presence is optional; without it presence updates are skipped.
	presence PresenceUpdater

	lastApplied files.BotConfig
	initialized bool
}

// New creates a Manager. presence may be nil.
func New(presence PresenceUpdater) *Manager {
	return &Manager{presence: presence}
}

// SetInitial sets the baseline config used for diffing.
func (m *Manager) SetInitial(cfg files.BotConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastApplied = cfg.Clone()
	m.initialized = true
}

// Apply brings the process in line with next. The log level is changed only
// when it differs from the last applied config; the presence is always
// re-sent since the gateway may have dropped it. The baseline is updated
// only when every step succeeds.
func (m *Manager) Apply(ctx context.Context, next files.BotConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized || !strings.EqualFold(m.lastApplied.LogLevel, next.LogLevel) {
		log.SetLevel(next.LogLevel)
		log.ApplicationLogger().Info("Log level applied", "level", next.LogLevel)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.applyPresence(next); err != nil {
		return fmt.Errorf("apply presence: %w", err)
	}

	m.lastApplied = next.Clone()
	m.initialized = true
	return nil
}

// ApplyPresence sets the activity configured in cfg.
func (m *Manager) ApplyPresence(cfg files.BotConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyPresence(cfg)
}

func (m *Manager) applyPresence(cfg files.BotConfig) error {
	if m.presence == nil {
		return nil
	}
	activity := Activity(cfg)
	if activity == nil {
		log.DiscordLogger().Warn("Unknown activity type, presence unchanged", "activity_type", cfg.ActivityType)
		return nil
	}
	return m.presence.UpdateStatusComplex(discordgo.UpdateStatusData{
		Activities: []*discordgo.Activity{activity},
		Status:     string(discordgo.StatusOnline),
	})
}

// Activity maps activity_type/activity_name to a gateway activity. Unknown
// types yield nil.
func Activity(cfg files.BotConfig) *discordgo.Activity {
	name := cfg.ActivityName
	if name == "" {
		name = files.ExampleConfig().ActivityName
	}
	kind := strings.ToLower(strings.TrimSpace(cfg.ActivityType))
	if kind == "" {
		kind = "playing"
	}
	switch kind {
	case "playing":
		return &discordgo.Activity{Name: name, Type: discordgo.ActivityTypeGame}
	case "listening":
		return &discordgo.Activity{Name: name, Type: discordgo.ActivityTypeListening}
	case "watching":
		return &discordgo.Activity{Name: name, Type: discordgo.ActivityTypeWatching}
	default:
		return nil
	}
}
