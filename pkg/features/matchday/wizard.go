package matchday

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	teamHome = "home"
	teamAway = "away"
)

const separator = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// wizard is one user's matchday session. Interaction handlers and the
// session cache touch it from different goroutines; mu guards every field
// below it.
type wizard struct {
	userID    string
	origin    *discordgo.Interaction
	startedAt time.Time

	mu        sync.Mutex
	homeName  string
	awayName  string
	homeLogo  string
	awayLogo  string
	matchTime string

	// finished marks sessions that ended normally; their eviction is silent.
	finished bool
}

func (w *wizard) setName(team, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if team == teamHome {
		w.homeName = name
	} else {
		w.awayName = name
	}
}

func (w *wizard) setLogo(team, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if team == teamHome {
		w.homeLogo = path
	} else {
		w.awayLogo = path
	}
}

func (w *wizard) setTime(value string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.matchTime = value
}

// finish marks the session as ended normally. It reports false when it
// already was.
func (w *wizard) finish() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return false
	}
	w.finished = true
	return true
}

func (w *wizard) isFinished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finished
}

func (w *wizard) logo(team string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if team == teamHome {
		return w.homeLogo
	}
	return w.awayLogo
}

func (w *wizard) card() Card {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Card{
		HomeName:  w.homeName,
		AwayName:  w.awayName,
		MatchTime: w.matchTime,
		HomeLogo:  w.homeLogo,
		AwayLogo:  w.awayLogo,
	}
}

// missing lists the fields still needed before the graphic can be created.
func (w *wizard) missing() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.missingLocked()
}

func (w *wizard) missingLocked() []string {
	var out []string
	if w.homeName == "" {
		out = append(out, "📝 Name Heimteam")
	}
	if w.homeLogo == "" {
		out = append(out, "🖼️ Logo Heimteam")
	}
	if w.awayName == "" {
		out = append(out, "📝 Name Auswärtsteam")
	}
	if w.awayLogo == "" {
		out = append(out, "🖼️ Logo Auswärtsteam")
	}
	if w.matchTime == "" {
		out = append(out, "⏰ Spielzeit")
	}
	return out
}

func (w *wizard) complete() bool { return len(w.missing()) == 0 }

func (w *wizard) status() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder
	b.WriteString("🎮 **Matchday Bild erstellen**\n" + separator + "\n\n")

	b.WriteString("🏠 **__Heimteam:__**\n")
	if w.homeName != "" {
		fmt.Fprintf(&b, "➥ 📝 %s\n", w.homeName)
	}
	if w.homeLogo != "" {
		b.WriteString("➥ ✅ Logo hochgeladen\n")
	}

	b.WriteString("\n✈️ **__Auswärtsteam:__**\n")
	if w.awayName != "" {
		fmt.Fprintf(&b, "➥ 📝 %s\n", w.awayName)
	}
	if w.awayLogo != "" {
		b.WriteString("➥ ✅ Logo hochgeladen\n")
	}

	if w.matchTime != "" {
		fmt.Fprintf(&b, "\n⏰ **__Spielzeit:__** %s\n", w.matchTime)
	}
	b.WriteString("\n" + separator + "\n")

	if missing := w.missingLocked(); len(missing) > 0 {
		b.WriteString("\n⚠️ **Noch fehlend:**")
		for _, m := range missing {
			b.WriteString("\n➥ " + m)
		}
	} else {
		b.WriteString("\n✅ **Alle Daten komplett!**\n➥ Klicke auf '🎨 Erstellen'")
	}
	return b.String()
}

func button(label, emoji, customID string, style discordgo.ButtonStyle, disabled bool) discordgo.Button {
	return discordgo.Button{
		Label:    label,
		Style:    style,
		CustomID: customID,
		Disabled: disabled,
		Emoji:    &discordgo.ComponentEmoji{Name: emoji},
	}
}

func (w *wizard) components() []discordgo.MessageComponent {
	incomplete := !w.complete()
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button("Name Heim", "📝", idName+teamHome, discordgo.PrimaryButton, false),
			button("Logo Heim", "🖼️", idLogo+teamHome, discordgo.SuccessButton, false),
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button("Name Auswärts", "📝", idName+teamAway, discordgo.PrimaryButton, false),
			button("Logo Auswärts", "🖼️", idLogo+teamAway, discordgo.SuccessButton, false),
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button("Spielzeit", "⏰", idTime, discordgo.PrimaryButton, false),
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button("Erstellen", "🎨", idCreate, discordgo.SuccessButton, incomplete),
		}},
	}
}

func teamLabel(team string) string {
	if team == teamHome {
		return "Home"
	}
	return "Away"
}

func introEmbed(user *discordgo.User) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "🎮 Matchday Bild erstellen",
		Description: "🏠 Erstelle ein Matchday-Ankündigungsbild ✈️",
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🏠 Heimteam", Value: "1️⃣ Klicke auf '📝 Name Heim'\n2️⃣ Klicke auf '🖼️ Logo Heim'", Inline: true},
			{Name: "✈️ Auswärtsteam", Value: "3️⃣ Klicke auf '📝 Name Auswärts'\n4️⃣ Klicke auf '🖼️ Logo Auswärts'", Inline: true},
			{Name: "⏰ Spielzeit", Value: "5️⃣ Klicke auf '⏰ Spielzeit'"},
			{Name: "🎨 Erstellen", Value: "6️⃣ Klicke auf '🎨 Erstellen'\n*Das Bild wird automatisch generiert und gesendet.*"},
		},
	}
	if user != nil {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Erstellt von " + user.Username, IconURL: user.AvatarURL("")}
	}
	return embed
}
