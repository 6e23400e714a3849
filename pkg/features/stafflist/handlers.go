package stafflist

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/discord/commands/core"
	"github.com/small-frappuccino/zealox/pkg/storage"
	"github.com/small-frappuccino/zealox/pkg/theme"
)

const msgInvalidColor = "❌ Ungültiger Farbcode. Bitte gib einen gültigen Hex-Code ein (z.B. #FF0000)."

func msgNotFound(name string) string {
	return fmt.Sprintf("❓ Liste '%s' nicht gefunden.", name)
}

func yes(v string) bool { return v == "Ja" }

func optionRole(ctx *core.Context) (*discordgo.Role, error) {
	r := core.OptionsFor(ctx.Interaction).Role("role")
	if r == nil {
		return nil, core.NewValidationError("role", "Option 'role' ist erforderlich")
	}
	return r, nil
}

func roleName(r *discordgo.Role) string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// lookup loads the list named by the list_name option. found is false when
// the user has already been told the list does not exist.
func (m *Module) lookup(ctx *core.Context) (list storage.MemberList, found bool, err error) {
	name := core.OptionsFor(ctx.Interaction).String("list_name")
	list, err = m.store.ListByName(ctx, ctx.GuildID, name)
	if errors.Is(err, storage.ErrListNotFound) {
		return list, false, ctx.Responder.Ephemeral(ctx.Interaction, msgNotFound(name))
	}
	if err != nil {
		return list, false, err
	}
	return list, true, nil
}

// reply answers ephemerally and then refreshes the posted message of the
// list, if any.
func (m *Module) reply(ctx *core.Context, list storage.MemberList, message string) error {
	if err := ctx.Responder.Ephemeral(ctx.Interaction, message); err != nil {
		return err
	}
	m.refreshByName(ctx, list.GuildID, list.Name)
	return nil
}

func (m *Module) handleCreate(ctx *core.Context) error {
	opts := core.OptionsFor(ctx.Interaction)
	name := opts.String("name")
	color, ok := NormalizeColor(opts.String("color"))
	if !ok {
		return ctx.Responder.Ephemeral(ctx.Interaction, msgInvalidColor)
	}

	_, err := m.store.CreateList(ctx, storage.MemberList{
		GuildID: ctx.GuildID,
		Name:    name,
		Title:   opts.String("title"),
		Color:   color,
	})
	if errors.Is(err, storage.ErrListExists) {
		return ctx.Responder.Ephemeral(ctx.Interaction, fmt.Sprintf("⚠️ Eine Liste mit dem Namen '%s' existiert bereits.", name))
	}
	if err != nil {
		return err
	}
	m.logger.Info("Member list created", "guild", ctx.GuildID, "list", name)
	return ctx.Responder.Ephemeral(ctx.Interaction, fmt.Sprintf("✅ Liste '%s' wurde erfolgreich erstellt.", name))
}

func (m *Module) handleAddRole(ctx *core.Context) error {
	list, found, err := m.lookup(ctx)
	if !found {
		return err
	}
	role, err := optionRole(ctx)
	if err != nil {
		return err
	}
	opts := core.OptionsFor(ctx.Interaction)
	var customName *string
	if opts.HasOption("role_name") {
		v := opts.String("role_name")
		customName = &v
	}
	inserted, err := m.store.AddRoleToList(ctx, list.ID, role.ID, customName)
	if err != nil {
		return err
	}

	var msg string
	switch {
	case inserted && customName != nil:
		msg = fmt.Sprintf("✅ Rolle '%s' wurde zur Liste '%s' hinzugefügt mit dem Anzeigenamen '%s'.", roleName(role), list.Name, *customName)
	case inserted:
		msg = fmt.Sprintf("✅ Rolle '%s' wurde zur Liste '%s' hinzugefügt.", roleName(role), list.Name)
	case customName != nil:
		msg = fmt.Sprintf("✏️ Der Anzeigename der Rolle '%s' wurde auf '%s' aktualisiert.", roleName(role), *customName)
	default:
		msg = fmt.Sprintf("ℹ️ Rolle '%s' ist bereits in der Liste '%s'.", roleName(role), list.Name)
	}
	return m.reply(ctx, list, msg)
}

func (m *Module) handleDeleteRole(ctx *core.Context) error {
	list, found, err := m.lookup(ctx)
	if !found {
		return err
	}
	role, err := optionRole(ctx)
	if err != nil {
		return err
	}
	removed, err := m.store.RemoveRoleFromList(ctx, list.ID, role.ID)
	if err != nil {
		return err
	}
	if !removed {
		return ctx.Responder.Ephemeral(ctx.Interaction, fmt.Sprintf("ℹ️ Rolle '%s' ist nicht in der Liste '%s'.", roleName(role), list.Name))
	}
	return m.reply(ctx, list, fmt.Sprintf("✅ Rolle '%s' wurde aus der Liste '%s' entfernt.", roleName(role), list.Name))
}

func (m *Module) handleEdit(ctx *core.Context) error {
	list, found, err := m.lookup(ctx)
	if !found {
		return err
	}
	opts := core.OptionsFor(ctx.Interaction)
	title := opts.String("new_title")
	color := opts.String("new_color")
	if color != "" {
		var ok bool
		if color, ok = NormalizeColor(color); !ok {
			return ctx.Responder.Ephemeral(ctx.Interaction, msgInvalidColor)
		}
	}
	if title == "" && color == "" {
		return ctx.Responder.Ephemeral(ctx.Interaction, "ℹ️ Keine Änderungen angegeben.")
	}
	if _, err := m.store.UpdateListAppearance(ctx, list.ID, title, color); err != nil {
		return err
	}
	return m.reply(ctx, list, fmt.Sprintf("✅ Liste '%s' wurde aktualisiert.", list.Name))
}

func (m *Module) handleRenameRole(ctx *core.Context) error {
	list, found, err := m.lookup(ctx)
	if !found {
		return err
	}
	role, err := optionRole(ctx)
	if err != nil {
		return err
	}
	newName := core.OptionsFor(ctx.Interaction).String("new_name")

	updated, err := m.store.UpdateRoleCustomName(ctx, list.ID, role.ID, newName)
	if err != nil {
		return err
	}
	if !updated {
		return ctx.Responder.Ephemeral(ctx.Interaction, fmt.Sprintf("ℹ️ Rolle '%s' ist nicht in der Liste '%s'.", roleName(role), list.Name))
	}
	if newName == "" {
		return m.reply(ctx, list, fmt.Sprintf("✏️ Der Anzeigename der Rolle '%s' wurde auf den Standardnamen zurückgesetzt.", roleName(role)))
	}
	return m.reply(ctx, list, fmt.Sprintf("✏️ Der Anzeigename der Rolle '%s' wurde auf '%s' aktualisiert.", roleName(role), newName))
}

func (m *Module) handleOverview(ctx *core.Context) error {
	lists, err := m.store.ListsForGuild(ctx, ctx.GuildID)
	if err != nil {
		return err
	}
	if len(lists) == 0 {
		return ctx.Responder.Ephemeral(ctx.Interaction, "📭 Es sind keine Listen vorhanden.")
	}

	g, snapErr := m.dir.Snapshot(ctx, ctx.GuildID)
	if snapErr != nil {
		m.logger.Warn("Guild snapshot unavailable, showing role ids", "guild", ctx.GuildID, "error", snapErr)
	}
	embed := &discordgo.MessageEmbed{
		Title:       "📋 Listenübersicht",
		Color:       theme.Primary(),
		Description: fmt.Sprintf("Insgesamt %d Listen", len(lists)),
	}
	for _, l := range lists {
		if len(embed.Fields) == maxFields {
			break
		}
		roles, err := m.store.RolesForList(ctx, l.ID)
		if err != nil {
			return err
		}
		var names []string
		for _, lr := range roles {
			role, ok := g.Roles[lr.RoleID]
			switch {
			case !ok && snapErr == nil:
				continue
			case !ok:
				names = append(names, lr.RoleID)
			case lr.CustomName != "":
				names = append(names, fmt.Sprintf("%s (%s)", lr.CustomName, role.Name))
			default:
				names = append(names, role.Name)
			}
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  l.Name,
			Value: overviewValue(l, names),
		})
	}
	return ctx.Responder.Embed(ctx.Interaction, embed, true)
}

func overviewValue(l storage.MemberList, roles []string) string {
	sorting, format, posted, roleText := "Standard", "Nur @user", "Nein", "Keine"
	if l.SortingAlphabetical {
		sorting = "Alphabetisch"
	}
	if l.ShowUsernames {
		format = "@user | Username"
	}
	if l.MessageID != "" {
		posted = "Ja"
	}
	if len(roles) > 0 {
		roleText = strings.Join(roles, ", ")
	}
	return core.TruncateString(fmt.Sprintf(
		"**Titel:** %s\n**Farbe:** %s\n**Sortierung:** %s\n**Format:** %s\n**Rollen:** %s\n**Nachricht aktiv:** %s",
		l.Title, l.Color, sorting, format, roleText, posted,
	), maxFieldValue)
}

func (m *Module) handleUpdate(ctx *core.Context) error {
	if err := ctx.Responder.DeferResponse(ctx.Interaction, true); err != nil {
		return err
	}
	updated, total, err := m.refreshGuild(ctx, ctx.GuildID)
	if err != nil {
		return ctx.Responder.FollowUp(ctx.Interaction, "❌ Listen konnten nicht geladen werden.", true)
	}
	return ctx.Responder.FollowUp(ctx.Interaction, fmt.Sprintf("%d von %d Listen wurden aktualisiert.", updated, total), true)
}

func (m *Module) handleSend(ctx *core.Context) error {
	list, found, err := m.lookup(ctx)
	if !found {
		return err
	}
	embeds, err := m.render(ctx, list)
	if err != nil {
		return err
	}
	if err := ctx.Responder.Ephemeral(ctx.Interaction, "📤 Liste wird gesendet..."); err != nil {
		return err
	}

	send := &discordgo.MessageSend{Embeds: embeds[:1]}
	if len(embeds) > 1 {
		send.Components = pager(0, len(embeds))
	}
	channelID := ctx.Interaction.ChannelID
	msg, err := ctx.Session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send list: %w", err)
	}
	if _, err := m.store.UpdateListMessage(ctx, list.ID, msg.ID, channelID); err != nil {
		return err
	}
	m.logger.Info("Member list posted", "guild", ctx.GuildID, "list", list.Name, "channel", channelID, "pages", len(embeds))
	return nil
}

func (m *Module) handleFormat(ctx *core.Context) error {
	list, found, err := m.lookup(ctx)
	if !found {
		return err
	}
	show := yes(core.OptionsFor(ctx.Interaction).String("show_usernames"))
	if _, err := m.store.UpdateListUsernameDisplay(ctx, list.ID, show); err != nil {
		return err
	}
	format := "Nur @user"
	if show {
		format = "@user | Username"
	}
	return m.reply(ctx, list, fmt.Sprintf("✅ Format für Liste '%s' wurde auf %s gesetzt.", list.Name, format))
}

func (m *Module) handleSorting(ctx *core.Context) error {
	list, found, err := m.lookup(ctx)
	if !found {
		return err
	}
	alphabetical := yes(core.OptionsFor(ctx.Interaction).String("alphabetical"))
	if _, err := m.store.UpdateListSorting(ctx, list.ID, alphabetical); err != nil {
		return err
	}
	sorting := "Standard"
	if alphabetical {
		sorting = "alphabetisch"
	}
	return m.reply(ctx, list, fmt.Sprintf("✅ Sortierung für Liste '%s' wurde auf %s gesetzt.", list.Name, sorting))
}

func (m *Module) handleDelete(ctx *core.Context) error {
	list, found, err := m.lookup(ctx)
	if !found {
		return err
	}
	if list.Posted() {
		if err := ctx.Session.ChannelMessageDelete(list.ChannelID, list.MessageID, discordgo.WithContext(ctx)); err != nil {
			m.logger.Debug("Posted list message not deleted", "list", list.Name, "error", err)
		}
	}
	if err := m.store.DeleteList(ctx, list.ID); err != nil {
		return err
	}
	m.logger.Info("Member list deleted", "guild", ctx.GuildID, "list", list.Name)
	return ctx.Responder.Ephemeral(ctx.Interaction, fmt.Sprintf("✅ Liste '%s' wurde erfolgreich gelöscht.", list.Name))
}

// handlePage flips a posted list one page back or forth.
func (m *Module) handlePage(ctx *core.Context) error {
	msg := ctx.Interaction.Message
	if msg == nil {
		return ctx.Responder.DeferUpdate(ctx.Interaction)
	}
	list, ok, err := m.listForMessage(ctx, ctx.GuildID, msg.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ctx.Responder.DeferUpdate(ctx.Interaction)
	}
	embeds, err := m.render(ctx, list)
	if err != nil {
		return err
	}

	page := messagePage(msg, len(embeds))
	if ctx.CustomID() == idPrev {
		page--
	} else {
		page++
	}
	page = max(0, min(page, len(embeds)-1))
	return ctx.Responder.UpdateMessage(ctx.Interaction, &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{embeds[page]},
		Components: pager(page, len(embeds)),
	})
}
