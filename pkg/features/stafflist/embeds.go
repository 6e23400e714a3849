package stafflist

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/storage"
	"github.com/small-frappuccino/zealox/pkg/theme"
)

const (
	maxFields     = 25
	maxFieldValue = 1024
	splitAt       = 1000
	separator     = "\n▬▬▬▬▬▬▬▬▬▬▬▬▬▬▬▬▬▬▬▬"
)

// Guild is the role and member snapshot a list is rendered from.
type Guild struct {
	Roles   map[string]*discordgo.Role
	Members []*discordgo.Member
}

// RoleMembers returns the members holding roleID in snapshot order.
func (g Guild) RoleMembers(roleID string) []*discordgo.Member {
	var out []*discordgo.Member
	for _, m := range g.Members {
		for _, r := range m.Roles {
			if r == roleID {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// ParseColor reads a hex color with or without a leading '#'.
func ParseColor(s string) (int, error) {
	v, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 16, 64)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// NormalizeColor prefixes '#' and validates the hex digits.
func NormalizeColor(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if _, err := ParseColor(s); err != nil {
		return "", false
	}
	return s, true
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func memberLine(m *discordgo.Member, showName bool) string {
	id := ""
	if m.User != nil {
		id = m.User.ID
	}
	if showName {
		return fmt.Sprintf("• <@%s> | %s", id, displayName(m))
	}
	return fmt.Sprintf("• <@%s>", id)
}

type roleEntry struct {
	role *discordgo.Role
	name string
}

// BuildEmbeds renders a list into pages of at most 25 fields each. Pages
// carry a "Seite i/N" footer when there is more than one.
func BuildEmbeds(list storage.MemberList, roles []storage.ListRole, g Guild) []*discordgo.MessageEmbed {
	color, err := ParseColor(list.Color)
	if err != nil {
		color = theme.MemberList()
	}
	page := func() *discordgo.MessageEmbed {
		return &discordgo.MessageEmbed{Title: list.Title, Color: color}
	}

	if len(roles) == 0 {
		e := page()
		e.Description = "📭 Keine Rollen in dieser Liste."
		return []*discordgo.MessageEmbed{e}
	}

	var entries []roleEntry
	for _, lr := range roles {
		role, ok := g.Roles[lr.RoleID]
		if !ok {
			continue
		}
		name := lr.CustomName
		if name == "" {
			name = role.Name
		}
		entries = append(entries, roleEntry{role: role, name: name})
	}
	if len(entries) == 0 {
		e := page()
		e.Description = "⚠️ Keine gültigen Rollen in dieser Liste."
		return []*discordgo.MessageEmbed{e}
	}
	if list.SortingAlphabetical {
		sort.SliceStable(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].name) < strings.ToLower(entries[j].name)
		})
	}

	var (
		pages   []*discordgo.MessageEmbed
		current = page()
	)
	add := func(name, value string) {
		if len(current.Fields) >= maxFields {
			pages = append(pages, current)
			current = page()
		}
		current.Fields = append(current.Fields, &discordgo.MessageEmbedField{Name: name, Value: value})
	}

	for _, entry := range entries {
		members := g.RoleMembers(entry.role.ID)
		if list.SortingAlphabetical {
			sort.SliceStable(members, func(i, j int) bool {
				return strings.ToLower(displayName(members[i])) < strings.ToLower(displayName(members[j]))
			})
		}
		if len(members) == 0 {
			add(entry.name, "Keine Mitglieder"+separator)
			continue
		}

		lines := make([]string, len(members))
		for i, m := range members {
			lines[i] = memberLine(m, list.ShowUsernames)
		}
		text := strings.Join(lines, "\n")
		if utf8.RuneCountInString(text+separator) <= maxFieldValue {
			add(entry.name, text+separator)
			continue
		}

		parts := splitLongText(text, splitAt)
		for i, part := range parts {
			name := entry.name
			if i > 0 {
				name = fmt.Sprintf("%s (Fortsetzung %d)", entry.name, i+1)
			}
			if i == len(parts)-1 {
				part += separator
			}
			add(name, part)
		}
	}
	if len(current.Fields) > 0 {
		pages = append(pages, current)
	}

	if len(pages) > 1 {
		for i, e := range pages {
			e.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Seite %d/%d", i+1, len(pages))}
		}
	}
	return pages
}

// splitLongText cuts text into parts of at most limit runes, preferring line
// boundaries. Lines longer than limit are chunked.
func splitLongText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		parts   []string
		current string
	)
	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		if len(runes) > limit {
			if current != "" {
				parts = append(parts, current)
				current = ""
			}
			for i := 0; i < len(runes); i += limit {
				end := min(i+limit, len(runes))
				if end == len(runes) {
					current = string(runes[i:end])
				} else {
					parts = append(parts, string(runes[i:end]))
				}
			}
			continue
		}
		switch {
		case current == "":
			current = line
		case utf8.RuneCountInString(current)+len(runes)+1 > limit:
			parts = append(parts, current)
			current = line
		default:
			current += "\n" + line
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}

// PageFromFooter reads the zero-based page of a "Seite i/N" footer, clamped
// to pages. Anything unparsable is page 0.
func PageFromFooter(footer string, pages int) int {
	_, rest, ok := strings.Cut(footer, "Seite ")
	if !ok {
		return 0
	}
	num, _, _ := strings.Cut(rest, "/")
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return 0
	}
	return max(0, min(n-1, pages-1))
}

func messagePage(msg *discordgo.Message, pages int) int {
	if msg == nil || len(msg.Embeds) == 0 || msg.Embeds[0].Footer == nil {
		return 0
	}
	return PageFromFooter(msg.Embeds[0].Footer.Text, pages)
}

// pager returns the ◀️/▶️ row for page of pages.
func pager(page, pages int) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "◀️", Style: discordgo.SecondaryButton, CustomID: idPrev, Disabled: page == 0},
			discordgo.Button{Label: "▶️", Style: discordgo.SecondaryButton, CustomID: idNext, Disabled: page >= pages-1},
		}},
	}
}
