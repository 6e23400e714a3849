// Package matchday implements the /matchday wizard that renders a matchup
// graphic from two team names, two logos and a kick-off time.
package matchday

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/small-frappuccino/zealox/pkg/discord/commands/core"
	"github.com/small-frappuccino/zealox/pkg/files"
	"github.com/small-frappuccino/zealox/pkg/imaging"
	"github.com/small-frappuccino/zealox/pkg/module"
)

// Name is the module identifier.
const Name = files.MatchdayModule

const (
	sessionTTL  = 600 * time.Second
	maxSessions = 256

	msgExpired = "❌ Zeit abgelaufen! Bitte starte neu mit `/matchday`"
)

// CustomID prefixes. Team-specific ones are followed by "home" or "away".
const (
	idName      = "matchday:name:"
	idLogo      = "matchday:logo:"
	idUpload    = "matchday:upload:"
	idPreview   = "matchday:preview:"
	idPick      = "matchday:pick:"
	idTime      = "matchday:time"
	idCreate    = "matchday:create"
	idModalName = "matchday:modal:name:"
	idModalLogo = "matchday:modal:logo:"
	idModalTime = "matchday:modal:time"
)

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif"}

// Module is the matchday feature.
type Module struct {
	host     *module.Host
	logger   *slog.Logger
	dir      string
	cacheDir string
	renderer *Renderer
	fetcher  *imaging.Fetcher
	sessions *expirable.LRU[string, *wizard]
}

// New returns an unconfigured module; Setup prepares it.
func New() module.Module { return &Module{} }

func (m *Module) Name() string           { return Name }
func (m *Module) CogName() string        { return "MatchdayCog" }
func (m *Module) Dependencies() []string { return nil }

// Setup creates the asset directories and loads style and font.
func (m *Module) Setup(ctx context.Context, host *module.Host) error {
	m.host = host
	m.logger = host.ModuleLogger(Name)
	m.dir = host.ModuleDir("matchday")
	m.cacheDir = filepath.Join(m.dir, "zwischenspeicher")
	if err := os.MkdirAll(m.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	style, err := LoadStyle(filepath.Join(m.dir, "style.css"))
	if err != nil {
		m.logger.Warn("⚠️ Invalid style file, using defaults", "error", err)
	}
	font, err := imaging.LoadFont(filepath.Join(m.dir, "font.ttf"))
	if err != nil {
		m.logger.Warn("⚠️ Font not usable, falling back to bitmap face", "error", err)
	}

	fallback := files.DefaultMatchdayConfig()
	if host.Config != nil {
		if md := host.Config.Config().Matchday; md != nil {
			fallback = *md
		}
	}
	m.renderer = &Renderer{
		BasePath: filepath.Join(m.dir, "matchday.png"),
		Style:    style,
		Font:     font,
		Fallback: fallback,
	}
	if m.fetcher == nil {
		m.fetcher = imaging.NewFetcher(nil, 2, 4)
	}
	m.sessions = expirable.NewLRU[string, *wizard](maxSessions, m.onEvict, sessionTTL)
	return nil
}

// Teardown ends all open wizards.
func (m *Module) Teardown(ctx context.Context) error {
	if m.sessions != nil {
		m.sessions.Purge()
	}
	if m.renderer != nil {
		return m.renderer.Font.Close()
	}
	return nil
}

// Commands returns /matchday.
func (m *Module) Commands() []core.Command {
	return []core.Command{core.NewSimpleCommand(
		"matchday",
		"Erstelle eine Matchday-Ankündigung oder lösche zwischengespeicherte Bilder",
		[]*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "action",
			Description: "Optional: 'clear' zum Löschen zwischengespeicherter Bilder",
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "clear", Value: "clear"},
			},
		}},
		m.handleCommand,
		false, false,
	)}
}

// Components maps the wizard CustomIDs to their handlers.
func (m *Module) Components() map[string]core.ComponentHandler {
	return map[string]core.ComponentHandler{
		idName:      m.withTeam(idName, m.handleNameButton),
		idLogo:      m.withTeam(idLogo, m.handleLogoButton),
		idUpload:    m.withTeam(idUpload, m.handleUploadButton),
		idPreview:   m.withTeam(idPreview, m.handlePreview),
		idPick:      m.withTeam(idPick, m.handlePick),
		idTime:      m.withSession(m.handleTimeButton),
		idCreate:    m.withSession(m.handleCreate),
		idModalName: m.withTeam(idModalName, m.handleNameSubmit),
		idModalLogo: m.withTeam(idModalLogo, m.handleLogoSubmit),
		idModalTime: m.withSession(m.handleTimeSubmit),
	}
}

func (m *Module) onEvict(userID string, w *wizard) {
	if w.isFinished() {
		return
	}
	go func() {
		m.cleanupUser(userID)
		content := msgExpired
		empty := []discordgo.MessageComponent{}
		if m.host.Session == nil || w.origin == nil {
			return
		}
		if _, err := m.host.Session.InteractionResponseEdit(w.origin, &discordgo.WebhookEdit{
			Content:    &content,
			Components: &empty,
		}); err != nil {
			m.logger.Debug("Could not mark wizard as expired", "user_id", userID, "error", err)
		}
	}()
}

// refresh rewrites the wizard message with the current status.
func (m *Module) refresh(w *wizard) {
	if m.host.Session == nil || w.origin == nil {
		return
	}
	content := w.status()
	comps := w.components()
	if _, err := m.host.Session.InteractionResponseEdit(w.origin, &discordgo.WebhookEdit{
		Content:    &content,
		Components: &comps,
	}); err != nil {
		m.logger.Debug("Could not update wizard status", "user_id", w.userID, "error", err)
	}
}

// cachedImages lists the image files in the cache, sorted.
func (m *Module) cachedImages() []string {
	entries, err := os.ReadDir(m.cacheDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(imageExts, strings.ToLower(filepath.Ext(e.Name()))) {
			out = append(out, e.Name())
		}
	}
	slices.Sort(out)
	return out
}

// cleanupUser removes the uploads and outputs belonging to userID.
func (m *Module) cleanupUser(userID string) {
	patterns := []string{
		"*_logo_" + userID + ".*",
		"matchday_" + userID + ".png",
	}
	for _, p := range patterns {
		matches, _ := filepath.Glob(filepath.Join(m.cacheDir, p))
		for _, f := range matches {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				m.logger.Warn("Could not remove temp file", "path", f, "error", err)
			}
		}
	}
}

// clearCache removes every file in the cache directory.
func (m *Module) clearCache() error {
	entries, err := os.ReadDir(m.cacheDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(m.cacheDir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
