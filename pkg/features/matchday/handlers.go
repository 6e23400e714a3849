package matchday

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/small-frappuccino/zealox/pkg/discord/commands/core"
	"github.com/small-frappuccino/zealox/pkg/imaging"
	"github.com/small-frappuccino/zealox/pkg/theme"
)

var matchTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

type sessionHandler func(ctx *core.Context, w *wizard) error

type teamHandler func(ctx *core.Context, w *wizard, team string) error

// withSession looks up the caller's wizard and answers with the timeout
// message when there is none.
func (m *Module) withSession(h sessionHandler) core.ComponentHandler {
	return core.ComponentFunc(func(ctx *core.Context) error {
		w, ok := m.sessions.Get(ctx.UserID)
		if !ok {
			return ctx.Responder.Ephemeral(ctx.Interaction, msgExpired)
		}
		return h(ctx, w)
	})
}

func (m *Module) withTeam(prefix string, h teamHandler) core.ComponentHandler {
	return m.withSession(func(ctx *core.Context, w *wizard) error {
		team := strings.TrimPrefix(ctx.CustomID(), prefix)
		if team != teamHome && team != teamAway {
			return core.NewValidationError("team", "unbekanntes Team "+team)
		}
		return h(ctx, w, team)
	})
}

func (m *Module) handleCommand(ctx *core.Context) error {
	if strings.EqualFold(core.OptionsFor(ctx.Interaction).String("action"), "clear") {
		if err := m.clearCache(); err != nil {
			m.logger.Error("❌ Error clearing cache", "error", err)
			return core.NewCommandError("❌ Fehler beim Leeren des Zwischenspeichers.", true)
		}
		return ctx.Responder.Ephemeral(ctx.Interaction, "✅ Zwischenspeicher wurde geleert!")
	}

	if old, ok := m.sessions.Peek(ctx.UserID); ok {
		old.finish()
	}
	w := &wizard{
		userID:    ctx.UserID,
		origin:    ctx.Interaction.Interaction,
		startedAt: time.Now(),
	}
	m.sessions.Add(ctx.UserID, w)

	embed := introEmbed(core.ExtractUser(ctx.Interaction))
	embed.Color = theme.Wizard()
	return ctx.Responder.WithConfig(core.ResponseConfig{
		Ephemeral:  true,
		Components: w.components(),
	}).Custom(ctx.Interaction, w.status(), []*discordgo.MessageEmbed{embed})
}

func textInputRow(input discordgo.TextInput) discordgo.MessageComponent {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{input}}
}

func (m *Module) handleNameButton(ctx *core.Context, w *wizard, team string) error {
	return ctx.Responder.Modal(ctx.Interaction, idModalName+team, "Team Name Eingabe",
		textInputRow(discordgo.TextInput{
			CustomID:    "team_name",
			Label:       fmt.Sprintf("Name %s Team", teamLabel(team)),
			Style:       discordgo.TextInputShort,
			Placeholder: "z.B. FC Bayern München",
			Required:    true,
			MinLength:   1,
			MaxLength:   50,
		}))
}

func (m *Module) handleNameSubmit(ctx *core.Context, w *wizard, team string) error {
	name := strings.TrimSpace(core.ModalValues(ctx.Interaction)["team_name"])
	if n := utf8.RuneCountInString(name); n < 1 || n > 50 {
		return ctx.Responder.Ephemeral(ctx.Interaction, "❌ Der Name muss zwischen 1 und 50 Zeichen lang sein!")
	}
	w.setName(team, name)
	if err := ctx.Responder.Ephemeral(ctx.Interaction, "✅ **Team Name gespeichert!**\n📝 "+name); err != nil {
		return err
	}
	m.refresh(w)
	return nil
}

func (m *Module) handleTimeButton(ctx *core.Context, w *wizard) error {
	return ctx.Responder.Modal(ctx.Interaction, idModalTime, "Spielzeit Eingabe",
		textInputRow(discordgo.TextInput{
			CustomID:    "match_time",
			Label:       "Uhrzeit",
			Style:       discordgo.TextInputShort,
			Placeholder: "Format: HH:MM (z.B. 20:00)",
			Required:    true,
			MinLength:   5,
			MaxLength:   5,
		}))
}

func (m *Module) handleTimeSubmit(ctx *core.Context, w *wizard) error {
	value := strings.TrimSpace(core.ModalValues(ctx.Interaction)["match_time"])
	if !matchTimePattern.MatchString(value) {
		return ctx.Responder.Ephemeral(ctx.Interaction, "❌ Ungültiges Zeitformat! Bitte nutze HH:MM (z.B. 20:00)")
	}
	w.setTime(value)
	if err := ctx.Responder.Ephemeral(ctx.Interaction, "✅ **Spielzeit gespeichert!**\n⏰ "+value); err != nil {
		return err
	}
	m.refresh(w)
	return nil
}

func (m *Module) handleLogoButton(ctx *core.Context, w *wizard, team string) error {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🖼️ Logo Upload - %s Team", teamLabel(team)),
		Description: "**Logo hochladen:**\n\n" +
			"1. 📤 Klicke auf 'Neues Logo hochladen'\n" +
			"2. 📁 Wähle ein vorhandenes Logo aus oder gib eine URL ein\n" +
			"3. 💾 Bestätige den Upload\n\n" +
			"*Unterstützte Formate: PNG, JPG, JPEG, GIF*\n" +
			fmt.Sprintf("*Max. Größe: %s*", humanize.Bytes(imaging.DefaultMaxDownload)),
		Color: theme.Info(),
	}

	var rows []discordgo.MessageComponent
	if cached := m.cachedImages(); len(cached) > 0 {
		if len(cached) > 25 {
			cached = cached[:25]
		}
		options := make([]discordgo.SelectMenuOption, 0, len(cached))
		for _, f := range cached {
			options = append(options, discordgo.SelectMenuOption{
				Label: core.TruncateString("📁 Datei: "+f, 100),
				Value: f,
			})
		}
		minValues := 1
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    idPick + team,
				Placeholder: "Wähle ein Logo aus...",
				MinValues:   &minValues,
				MaxValues:   1,
				Options:     options,
			},
		}})
	}
	rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		button("Neues Logo hochladen", "📤", idUpload+team, discordgo.PrimaryButton, false),
		button("Vorschau", "🖼️", idPreview+team, discordgo.SecondaryButton, false),
	}})

	return ctx.Responder.WithConfig(core.ResponseConfig{
		Ephemeral:  true,
		Components: rows,
	}).Custom(ctx.Interaction, "", []*discordgo.MessageEmbed{embed})
}

func (m *Module) handlePick(ctx *core.Context, w *wizard, team string) error {
	values := ctx.Interaction.MessageComponentData().Values
	if len(values) == 0 {
		return core.NewValidationError("logo", "keine Datei gewählt")
	}
	name := values[0]
	path := filepath.Join(m.cacheDir, name)
	if filepath.Base(name) != name {
		return core.NewCommandError("❌ Fehler beim Auswählen des Logos!", true)
	}
	if _, err := os.Stat(path); err != nil {
		return core.NewCommandError("❌ Fehler beim Auswählen des Logos!", true)
	}
	w.setLogo(team, path)
	if err := ctx.Responder.Ephemeral(ctx.Interaction, "✅ Logo ausgewählt: "+name); err != nil {
		return err
	}
	m.refresh(w)
	return nil
}

func (m *Module) handleUploadButton(ctx *core.Context, w *wizard, team string) error {
	return ctx.Responder.Modal(ctx.Interaction, idModalLogo+team, "Logo Upload",
		textInputRow(discordgo.TextInput{
			CustomID:    "logo_url",
			Label:       "Logo URL oder Datei-Upload",
			Style:       discordgo.TextInputShort,
			Placeholder: "http://... oder wähle eine Datei aus",
			Required:    true,
		}))
}

func uploadErrorMessage(err error) string {
	switch {
	case errors.Is(err, imaging.ErrInvalidURL):
		return "❌ Bitte gib eine gültige URL ein oder lade eine Datei hoch!"
	case errors.Is(err, imaging.ErrHTTPStatus):
		return "❌ Fehler beim Laden der URL!"
	case errors.Is(err, imaging.ErrNotImage), errors.Is(err, imaging.ErrTooLarge):
		return "❌ Die URL enthält kein gültiges Bild!"
	default:
		return "❌ Fehler beim Verarbeiten des Logos!"
	}
}

func (m *Module) handleLogoSubmit(ctx *core.Context, w *wizard, team string) error {
	if err := ctx.Responder.DeferResponse(ctx.Interaction, true); err != nil {
		return err
	}
	url := core.ModalValues(ctx.Interaction)["logo_url"]
	fetched, err := m.fetcher.Fetch(ctx, url)
	if err != nil {
		m.logger.Warn("Logo upload failed", "user_id", ctx.UserID, "url", url, "error", err)
		return ctx.Responder.EditResponse(ctx.Interaction, uploadErrorMessage(err))
	}

	// Replace earlier uploads of this team, whatever their format.
	stem := fmt.Sprintf("%s_logo_%s", team, ctx.UserID)
	if old, _ := filepath.Glob(filepath.Join(m.cacheDir, stem+".*")); len(old) > 0 {
		for _, f := range old {
			os.Remove(f)
		}
	}
	ext, data := fetched.Ext(), fetched.Data
	// The picker lists only imageExts; other formats are stored as PNG.
	if !slices.Contains(imageExts, "."+ext) {
		if data, err = imaging.EncodePNG(fetched.Image); err != nil {
			m.logger.Error("❌ Error converting logo", "user_id", ctx.UserID, "format", fetched.Format, "error", err)
			return ctx.Responder.EditResponse(ctx.Interaction, "❌ Fehler beim Verarbeiten des Logos!")
		}
		ext = "png"
	}
	path := filepath.Join(m.cacheDir, stem+"."+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		m.logger.Error("❌ Error saving logo", "path", path, "error", err)
		return ctx.Responder.EditResponse(ctx.Interaction, "❌ Fehler beim Verarbeiten des Logos!")
	}

	w.setLogo(team, path)
	if err := ctx.Responder.EditResponse(ctx.Interaction, "✅ Logo erfolgreich gespeichert!"); err != nil {
		return err
	}
	m.refresh(w)
	return nil
}

func (m *Module) handlePreview(ctx *core.Context, w *wizard, team string) error {
	path := w.logo(team)
	if path == "" {
		return ctx.Responder.Ephemeral(ctx.Interaction, "❌ Kein Logo ausgewählt!")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ctx.Responder.Ephemeral(ctx.Interaction, "❌ Kein Logo ausgewählt!")
	}

	ext := strings.ToLower(filepath.Ext(path))
	name := "logo_preview" + ext
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🖼️ Logo Vorschau - %s Team", teamLabel(team)),
		Color: theme.Info(),
		Image: &discordgo.MessageEmbedImage{URL: "attachment://" + name},
	}
	return ctx.Responder.WithConfig(core.ResponseConfig{
		Ephemeral: true,
		Attachments: []*discordgo.File{{
			Name:        name,
			ContentType: mime.TypeByExtension(ext),
			Reader:      bytes.NewReader(data),
		}},
	}).Custom(ctx.Interaction, "", []*discordgo.MessageEmbed{embed})
}

func (m *Module) handleCreate(ctx *core.Context, w *wizard) error {
	if missing := w.missing(); len(missing) > 0 {
		return ctx.Responder.Ephemeral(ctx.Interaction, "⚠️ **Fehlende Angaben:**\n"+strings.Join(missing, "\n"))
	}
	if err := ctx.Responder.DeferResponse(ctx.Interaction, false); err != nil {
		return err
	}

	card := w.card()
	img, err := m.renderer.Render(card)
	var data []byte
	if err == nil {
		data, err = imaging.EncodePNG(img)
	}
	if err != nil {
		m.logger.Error("❌ Error creating matchday image", "user_id", ctx.UserID, "error", err)
		return ctx.Responder.EditResponse(ctx.Interaction, "❌ Fehler beim Erstellen des Bildes.")
	}

	name := fmt.Sprintf("matchday_%s.png", ctx.UserID)
	embed := &discordgo.MessageEmbed{
		Title:     "🎮 Matchday Bild erstellt!",
		Color:     theme.Success(),
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🏠 Heimteam", Value: card.HomeName, Inline: true},
			{Name: "✈️ Auswärtsteam", Value: card.AwayName, Inline: true},
			{Name: "⏰ Anpfiff", Value: card.MatchTime},
		},
		Image: &discordgo.MessageEmbedImage{URL: "attachment://" + name},
	}
	if err := ctx.Responder.EditResponseWithFiles(ctx.Interaction, "", []*discordgo.MessageEmbed{embed}, []*discordgo.File{{
		Name:        name,
		ContentType: "image/png",
		Reader:      bytes.NewReader(data),
	}}); err != nil {
		return err
	}

	w.finish()
	m.sessions.Remove(ctx.UserID)
	m.cleanupUser(ctx.UserID)

	if w.origin != nil {
		content := "✅ **Bild wurde erstellt und gesendet!**"
		empty := []discordgo.MessageComponent{}
		if _, err := ctx.Session.InteractionResponseEdit(w.origin, &discordgo.WebhookEdit{
			Content:    &content,
			Components: &empty,
		}); err != nil {
			m.logger.Debug("Could not close wizard message", "user_id", ctx.UserID, "error", err)
		}
	}
	m.logger.Info("✅ Matchday image created", "user_id", ctx.UserID)
	return nil
}
