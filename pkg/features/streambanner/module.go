// Package streambanner implements /streambanner: a wizard that prints two
// team names and a game-mode overlay onto a 1920x1080 banner.
package streambanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/small-frappuccino/zealox/pkg/discord/commands/core"
	"github.com/small-frappuccino/zealox/pkg/imaging"
	"github.com/small-frappuccino/zealox/pkg/module"
	"github.com/small-frappuccino/zealox/pkg/task"
)

// Name is the module identifier.
const Name = "streambanner_module"

const (
	sessionTTL   = 600 * time.Second
	maxSessions  = 256
	previewTTL   = 30 * time.Second
	taskCleanup  = "streambanner.preview_cleanup"
	noModeOption = "-"
)

const (
	idHome      = "streambanner:home"
	idAway      = "streambanner:away"
	idMode      = "streambanner:mode"
	idSize      = "streambanner:size"
	idPreview   = "streambanner:preview"
	idCreate    = "streambanner:create"
	idModalHome = "streambanner:modal:home"
	idModalAway = "streambanner:modal:away"
	idModalSize = "streambanner:modal:size"
)

type session struct {
	origin *discordgo.Interaction

	// mu guards the fields below; modal submits and button clicks run in
	// separate goroutines.
	mu       sync.Mutex
	home     string
	away     string
	mode     string
	textSize int
}

func (s *session) set(fn func(*session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *session) missing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	if s.home == "" {
		out = append(out, "Heim-Team Name")
	}
	if s.away == "" {
		out = append(out, "Auswärts-Team Name")
	}
	if s.mode == "" {
		out = append(out, "Spielmodus Auswahl")
	}
	return out
}

func (s *session) banner() Banner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Banner{Home: s.home, Away: s.away, Mode: s.mode, TextSize: float64(s.textSize)}
}

type cleanupJob struct {
	interaction *discordgo.Interaction
	path        string
}

// Module is the stream banner feature.
type Module struct {
	host     *module.Host
	logger   *slog.Logger
	dir      string
	tempDir  string
	fontPath string
	renderer *Renderer
	sessions *expirable.LRU[string, *session]
}

// New returns an unconfigured module.
func New() module.Module { return &Module{} }

func (m *Module) Name() string           { return Name }
func (m *Module) CogName() string        { return "Streambanner" }
func (m *Module) Dependencies() []string { return nil }

// Setup prepares directories, the base image, styles and font.
func (m *Module) Setup(ctx context.Context, host *module.Host) error {
	m.host = host
	m.logger = host.ModuleLogger(Name)
	m.dir = host.ModuleDir("streambanner")
	m.tempDir = filepath.Join(m.dir, "zwischenspeicher")
	modesDir := filepath.Join(m.dir, "spielmodi")
	for _, d := range []string{m.tempDir, modesDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}

	m.fontPath = filepath.Join(m.dir, "font.ttf")
	font, err := imaging.LoadFont(m.fontPath)
	if err != nil {
		m.logger.Warn("⚠️ Font not usable, falling back to bitmap face", "path", m.fontPath, "error", err)
	}

	basePath := filepath.Join(m.dir, "Streambanner.png")
	if _, err := os.Stat(basePath); errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("⚠️ Streambanner base image missing, creating default", "path", basePath)
		if err := CreateDefaultBase(basePath, font); err != nil {
			return fmt.Errorf("create default base image: %w", err)
		}
	}

	styles, err := LoadStyles(filepath.Join(m.dir, "styles.css"))
	if err != nil {
		m.logger.Warn("⚠️ No valid styles file, wrote defaults", "error", err)
	}

	m.renderer = &Renderer{
		BasePath: basePath,
		ModesDir: modesDir,
		Styles:   styles,
		Font:     font,
		Logger:   m.logger,
	}
	m.sessions = expirable.NewLRU[string, *session](maxSessions, nil, sessionTTL)
	if host.Tasks != nil {
		host.Tasks.RegisterHandler(taskCleanup, m.runCleanup)
	}
	return nil
}

// Teardown drops open sessions.
func (m *Module) Teardown(ctx context.Context) error {
	if m.host != nil && m.host.Tasks != nil {
		m.host.Tasks.UnregisterHandler(taskCleanup)
	}
	if m.sessions != nil {
		m.sessions.Purge()
	}
	if m.renderer != nil {
		return m.renderer.Font.Close()
	}
	return nil
}

// Commands returns /streambanner.
func (m *Module) Commands() []core.Command {
	return []core.Command{core.NewSimpleCommand(
		"streambanner",
		"Erstellt ein Streambanner mit Team-Namen und Spielmodus",
		nil,
		m.handleCommand,
		false, false,
	)}
}

// Components maps the wizard CustomIDs to handlers.
func (m *Module) Components() map[string]core.ComponentHandler {
	return map[string]core.ComponentHandler{
		idHome:      m.withSession(m.nameModal(idModalHome, "Heim Team")),
		idAway:      m.withSession(m.nameModal(idModalAway, "Auswärts Team")),
		idMode:      m.withSession(m.handleMode),
		idSize:      m.withSession(m.handleSizeButton),
		idPreview:   m.withSession(m.handlePreview),
		idCreate:    m.withSession(m.handleCreate),
		idModalHome: m.withSession(m.nameSubmit("Heim Team", func(s *session, v string) { s.set(func(s *session) { s.home = v }) })),
		idModalAway: m.withSession(m.nameSubmit("Auswärts Team", func(s *session, v string) { s.set(func(s *session) { s.away = v }) })),
		idModalSize: m.withSession(m.handleSizeSubmit),
	}
}

// scheduleCleanup deletes a preview message and its file after previewTTL.
func (m *Module) scheduleCleanup(ctx context.Context, job cleanupJob) {
	if m.host.Tasks != nil {
		err := m.host.Tasks.Dispatch(ctx, task.Task{
			Type:    taskCleanup,
			Payload: job,
			Options: task.TaskOptions{Delay: previewTTL, MaxAttempts: 1},
		})
		if err == nil {
			return
		}
		m.logger.Warn("Could not schedule preview cleanup", "error", err)
	}
	time.AfterFunc(previewTTL, func() { m.runCleanup(context.Background(), job) })
}

func (m *Module) runCleanup(ctx context.Context, payload any) error {
	job, ok := payload.(cleanupJob)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	if job.interaction != nil && m.host.Session != nil {
		if err := m.host.Session.InteractionResponseDelete(job.interaction); err != nil {
			m.logger.Debug("Could not delete preview", "error", err)
		}
	}
	if err := os.Remove(job.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// clearUserFiles removes the temp files belonging to userID.
func (m *Module) clearUserFiles(userID string) {
	matches, _ := filepath.Glob(filepath.Join(m.tempDir, "streambanner_"+userID+"_*.png"))
	for _, f := range matches {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			m.logger.Error("❌ Error removing temp file", "path", f, "error", err)
		}
	}
}

func (m *Module) outputPath(userID string, preview bool) string {
	suffix := "final"
	if preview {
		suffix = "preview"
	}
	return filepath.Join(m.tempDir, fmt.Sprintf("streambanner_%s_%s.png", userID, suffix))
}

func (m *Module) modeOptions() []discordgo.SelectMenuOption {
	modes := Modes(m.renderer.ModesDir)
	if len(modes) == 0 {
		return []discordgo.SelectMenuOption{{Label: "KEINE OPTION", Value: noModeOption}}
	}
	if len(modes) > 25 {
		modes = modes[:25]
	}
	out := make([]discordgo.SelectMenuOption, 0, len(modes))
	for _, mode := range modes {
		out = append(out, discordgo.SelectMenuOption{Label: mode, Value: mode})
	}
	return out
}

func emojiButton(label, emoji, customID string, style discordgo.ButtonStyle) discordgo.Button {
	return discordgo.Button{
		Label:    label,
		Style:    style,
		CustomID: customID,
		Emoji:    &discordgo.ComponentEmoji{Name: emoji},
	}
}

func (m *Module) components() []discordgo.MessageComponent {
	minValues := 1
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			emojiButton("Heim Team", "🏠", idHome, discordgo.PrimaryButton),
			emojiButton("Auswärts Team", "✈️", idAway, discordgo.DangerButton),
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    idMode,
				Placeholder: "Wähle den Spielmodus",
				MinValues:   &minValues,
				MaxValues:   1,
				Options:     m.modeOptions(),
			},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			emojiButton("Textgröße", "📏", idSize, discordgo.SecondaryButton),
			emojiButton("Vorschau", "👁️", idPreview, discordgo.SecondaryButton),
			emojiButton("Erstellen", "✅", idCreate, discordgo.PrimaryButton),
		}},
	}
}

func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
