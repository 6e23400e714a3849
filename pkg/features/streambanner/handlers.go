package streambanner

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/discord/commands/core"
	"github.com/small-frappuccino/zealox/pkg/imaging"
	"github.com/small-frappuccino/zealox/pkg/theme"
)

const msgNoSession = "❌ Keine aktive Streambanner-Sitzung. Starte eine mit `/streambanner`."

type sessionHandler func(ctx *core.Context, s *session) error

func (m *Module) withSession(h sessionHandler) core.ComponentHandler {
	return core.ComponentFunc(func(ctx *core.Context) error {
		s, ok := m.sessions.Get(ctx.UserID)
		if !ok {
			return ctx.Responder.Ephemeral(ctx.Interaction, msgNoSession)
		}
		return h(ctx, s)
	})
}

func statusEmbed(title, description string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: color}
}

func (m *Module) handleCommand(ctx *core.Context) error {
	if _, err := os.Stat(m.fontPath); errors.Is(err, os.ErrNotExist) {
		return ctx.Responder.Embed(ctx.Interaction, statusEmbed(
			"⚠️ Schriftart fehlt",
			fmt.Sprintf("Bitte füge eine TrueType-Schriftart (.ttf) unter `%s` hinzu.", m.fontPath),
			theme.ListMissing(),
		), true)
	}

	m.sessions.Add(ctx.UserID, &session{origin: ctx.Interaction.Interaction})
	embed := statusEmbed("🎮 Streambanner erstellen",
		"Erstelle ein Streambanner mit den Team-Namen und einem ausgewählten Spielmodus.\n\n"+
			"**Anleitung:**\n"+
			"1. 🏠 **Heim Team**: Namen eingeben\n"+
			"2. ✈️ **Auswärts Team**: Namen eingeben\n"+
			"3. 🎮 **Spielmodus**: Wähle den gewünschten Spielmodus aus dem Dropdown Menü\n"+
			fmt.Sprintf("4. 📏 **Textgröße**: Passe die Größe beider Texte an (Standard: %d)\n", defaultTextSize)+
			"5. 👁️ **Vorschau**: Zeigt eine Vorschau deines Banners\n"+
			"6. ✅ **Erstellen**: Erstellt das finale Banner",
		theme.Wizard())
	return ctx.Responder.WithConfig(core.ResponseConfig{
		Components: m.components(),
	}).Custom(ctx.Interaction, "", []*discordgo.MessageEmbed{embed})
}

func (m *Module) nameModal(customID, team string) sessionHandler {
	return func(ctx *core.Context, s *session) error {
		return ctx.Responder.Modal(ctx.Interaction, customID, team+" Namen eingeben",
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    "team_name",
					Label:       team + " Name",
					Style:       discordgo.TextInputShort,
					Placeholder: fmt.Sprintf("Gib den Namen des %ss ein", team),
					Required:    true,
					MaxLength:   50,
				},
			}})
	}
}

func (m *Module) nameSubmit(team string, set func(*session, string)) sessionHandler {
	return func(ctx *core.Context, s *session) error {
		name := upper(core.ModalValues(ctx.Interaction)["team_name"])
		if name == "" {
			return core.NewValidationError("team_name", "darf nicht leer sein")
		}
		set(s, name)
		return ctx.Responder.Embed(ctx.Interaction, statusEmbed(
			"✅ "+team+" gesetzt",
			fmt.Sprintf("Dein %s-Name **%s** wurde erfolgreich gespeichert.", team, name),
			theme.Success(),
		), true)
	}
}

func (m *Module) handleMode(ctx *core.Context, s *session) error {
	values := ctx.Interaction.MessageComponentData().Values
	if len(values) == 0 || values[0] == noModeOption {
		return ctx.Responder.Embed(ctx.Interaction, statusEmbed(
			"⚠️ Keine Spielmodi",
			"Es sind keine Spielmodi hinterlegt.",
			theme.ListMissing(),
		), true)
	}
	mode := values[0]
	s.set(func(s *session) { s.mode = mode })
	return ctx.Responder.Embed(ctx.Interaction, statusEmbed(
		"✅ Spielmodus gewählt",
		fmt.Sprintf("Ausgewählter Spielmodus: **%s**", mode),
		theme.Success(),
	), true)
}

func (m *Module) handleSizeButton(ctx *core.Context, s *session) error {
	return ctx.Responder.Modal(ctx.Interaction, idModalSize, "Textgröße anpassen",
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    "text_size",
				Label:       "Textgröße für beide Texte",
				Style:       discordgo.TextInputShort,
				Placeholder: "Gib eine Zahl ein, z.B. 70",
				Value:       strconv.Itoa(defaultTextSize),
				Required:    true,
				MaxLength:   3,
			},
		}})
}

// parseTextSize falls back to the default for anything but a positive number.
func parseTextSize(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return defaultTextSize
	}
	return n
}

func (m *Module) handleSizeSubmit(ctx *core.Context, s *session) error {
	size := parseTextSize(core.ModalValues(ctx.Interaction)["text_size"])
	s.set(func(s *session) { s.textSize = size })
	return ctx.Responder.Embed(ctx.Interaction, statusEmbed(
		"✅ Textgröße gesetzt",
		fmt.Sprintf("Die Textgröße für beide Texte wurde auf **%d** gesetzt.", size),
		theme.Success(),
	), true)
}

// render draws b and stores it under the user's output path.
func (m *Module) render(userID string, b Banner, preview bool) (string, []byte, error) {
	img, err := m.renderer.Render(b)
	if err != nil {
		return "", nil, err
	}
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return "", nil, err
	}
	path := m.outputPath(userID, preview)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nil, err
	}
	return path, data, nil
}

func (m *Module) handlePreview(ctx *core.Context, s *session) error {
	if len(s.missing()) > 0 {
		return ctx.Responder.Embed(ctx.Interaction, statusEmbed(
			"⚠️ Unvollständige Daten",
			"Bitte setze zuerst beide Team-Namen und wähle einen Spielmodus aus.",
			theme.ListMissing(),
		), true)
	}
	if err := ctx.Responder.DeferResponse(ctx.Interaction, true); err != nil {
		return err
	}
	path, data, err := m.render(ctx.UserID, s.banner(), true)
	if err != nil {
		m.logger.Error("❌ Error rendering preview", "user_id", ctx.UserID, "error", err)
		return ctx.Responder.EditResponseWithFiles(ctx.Interaction, "", []*discordgo.MessageEmbed{statusEmbed(
			"❌ Fehler bei der Vorschau",
			"Bei der Erstellung der Vorschau ist ein Fehler aufgetreten: "+err.Error(),
			theme.Error(),
		)}, nil)
	}

	embed := statusEmbed("👁️ Vorschau deines Streambanners", "", theme.Info())
	embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://streambanner_preview.png"}
	if err := ctx.Responder.EditResponseWithFiles(ctx.Interaction, "", []*discordgo.MessageEmbed{embed}, []*discordgo.File{{
		Name:        "streambanner_preview.png",
		ContentType: "image/png",
		Reader:      bytes.NewReader(data),
	}}); err != nil {
		return err
	}
	m.scheduleCleanup(ctx, cleanupJob{interaction: ctx.Interaction.Interaction, path: path})
	return nil
}

func (m *Module) handleCreate(ctx *core.Context, s *session) error {
	if missing := s.missing(); len(missing) > 0 {
		return ctx.Responder.Embed(ctx.Interaction, statusEmbed(
			"⚠️ Unvollständige Daten",
			"Folgende Informationen fehlen: "+strings.Join(missing, ", "),
			theme.ListMissing(),
		), true)
	}
	if err := ctx.Responder.DeferResponse(ctx.Interaction, false); err != nil {
		return err
	}
	b := s.banner()
	_, data, err := m.render(ctx.UserID, b, false)
	if err != nil {
		m.logger.Error("❌ Error creating streambanner", "user_id", ctx.UserID, "error", err)
		return ctx.Responder.EditResponseWithFiles(ctx.Interaction, "", []*discordgo.MessageEmbed{statusEmbed(
			"❌ Fehler beim Erstellen",
			"Fehler: "+err.Error(),
			theme.Error(),
		)}, nil)
	}

	embed := statusEmbed(b.Home+" vs "+b.Away, fmt.Sprintf("Spielmodus: **%s**", b.Mode), theme.Primary())
	embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://streambanner_final.png"}
	if user := core.ExtractUser(ctx.Interaction); user != nil {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Erstellt von " + user.Username}
	}
	if err := ctx.Responder.EditResponseWithFiles(ctx.Interaction, "", []*discordgo.MessageEmbed{embed}, []*discordgo.File{{
		Name:        "streambanner_final.png",
		ContentType: "image/png",
		Reader:      bytes.NewReader(data),
	}}); err != nil {
		return err
	}

	m.sessions.Remove(ctx.UserID)
	if s.origin != nil {
		if err := ctx.Session.InteractionResponseDelete(s.origin); err != nil {
			m.logger.Debug("Could not delete wizard message", "error", err)
		}
	}
	m.clearUserFiles(ctx.UserID)
	m.logger.Info("✅ Streambanner created", "user_id", ctx.UserID, "mode", b.Mode)
	return nil
}
