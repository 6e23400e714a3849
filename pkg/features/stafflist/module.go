// Package stafflist keeps role-based member lists per guild: admins define
// lists of roles, post them to a channel, and the posted embeds follow role
// changes.
package stafflist

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/discord/commands/core"
	"github.com/small-frappuccino/zealox/pkg/module"
	"github.com/small-frappuccino/zealox/pkg/storage"
)

// Name is the module identifier.
const Name = "staff_listen"

const (
	idPrev = "stafflist:page:prev"
	idNext = "stafflist:page:next"

	taskRefresh = "stafflist.refresh_guild"
)

// ErrNoStore is returned by CheckRequirements when the host has no database.
var ErrNoStore = errors.New("member list store not available")

// Module is the member list feature.
type Module struct {
	host   *module.Host
	logger *slog.Logger
	store  *storage.Store
	dir    Directory
}

// New returns an unconfigured module.
func New() module.Module { return &Module{} }

func (m *Module) Name() string           { return Name }
func (m *Module) CogName() string        { return "MemberLists" }
func (m *Module) Dependencies() []string { return nil }

// CheckRequirements refuses to load without a store.
func (m *Module) CheckRequirements(host *module.Host) error {
	if host.Store == nil {
		return ErrNoStore
	}
	return nil
}

// Setup binds the store and the refresh task.
func (m *Module) Setup(ctx context.Context, host *module.Host) error {
	m.host = host
	m.logger = host.ModuleLogger(Name)
	m.store = host.Store
	if m.dir == nil {
		m.dir = sessionDirectory{session: host.Session}
	}
	if host.Tasks != nil {
		host.Tasks.RegisterHandler(taskRefresh, m.runRefresh)
	}
	return nil
}

// Teardown releases the refresh task.
func (m *Module) Teardown(ctx context.Context) error {
	if m.host != nil && m.host.Tasks != nil {
		m.host.Tasks.UnregisterHandler(taskRefresh)
	}
	return nil
}

func listNameOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         "list_name",
		Description:  description,
		Required:     true,
		Autocomplete: true,
	}
}

func roleOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionRole,
		Name:        "role",
		Description: description,
		Required:    true,
	}
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func yesNoOption(name, description string) *discordgo.ApplicationCommandOption {
	opt := stringOption(name, description, true)
	opt.Choices = []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Ja", Value: "Ja"},
		{Name: "Nein", Value: "Nein"},
	}
	return opt
}

// Commands returns the liste_* commands.
func (m *Module) Commands() []core.Command {
	admin := func(name, description string, options []*discordgo.ApplicationCommandOption, handler func(*core.Context) error) core.Command {
		cmd := core.NewSimpleCommand(name, description, options, handler, true, true)
		for _, o := range options {
			if o.Autocomplete {
				cmd.WithAutocomplete(m.autocompleteListName)
				break
			}
		}
		return cmd
	}

	return []core.Command{
		admin("liste_create", "Erstellt eine neue Mitgliederliste", []*discordgo.ApplicationCommandOption{
			stringOption("name", "Name der Liste für die Speicherung", true),
			stringOption("title", "Überschrift der Liste, die angezeigt wird", true),
			stringOption("color", "Farbe des Embeds (Hex-Code, z.B. #FF0000 für Rot)", true),
		}, m.handleCreate),
		admin("liste_addrole", "Fügt eine Rolle zu einer Liste hinzu", []*discordgo.ApplicationCommandOption{
			listNameOption("Name der Liste"),
			roleOption("Rolle, die hinzugefügt werden soll"),
			stringOption("role_name", "Benutzerdefinierter Anzeigename für die Rolle (optional)", false),
		}, m.handleAddRole),
		admin("liste_deleterole", "Entfernt eine Rolle aus einer Liste", []*discordgo.ApplicationCommandOption{
			listNameOption("Name der Liste"),
			roleOption("Rolle, die entfernt werden soll"),
		}, m.handleDeleteRole),
		admin("liste_edit", "Bearbeitet eine bestehende Liste", []*discordgo.ApplicationCommandOption{
			listNameOption("Name der zu bearbeitenden Liste"),
			stringOption("new_title", "Neue Überschrift für die Liste (optional)", false),
			stringOption("new_color", "Neue Farbe für das Embed (Hex-Code, z.B. #FF0000) (optional)", false),
		}, m.handleEdit),
		admin("liste_rename_role", "Ändert den Anzeigenamen einer Rolle in einer Liste", []*discordgo.ApplicationCommandOption{
			listNameOption("Name der Liste"),
			roleOption("Rolle, deren Anzeigename geändert werden soll"),
			stringOption("new_name", "Neuer Anzeigename (leer lassen, um den ursprünglichen Namen wiederherzustellen)", false),
		}, m.handleRenameRole),
		admin("liste_overview", "Zeigt eine Übersicht aller Listen an", nil, m.handleOverview),
		admin("liste_update", "Aktualisiert alle Listen des Servers", nil, m.handleUpdate),
		admin("liste_send", "Sendet eine Liste in den aktuellen Kanal", []*discordgo.ApplicationCommandOption{
			listNameOption("Name der Liste, die gesendet werden soll"),
		}, m.handleSend),
		admin("liste_format", "Ändert das Anzeigeformat der Mitglieder in einer Liste", []*discordgo.ApplicationCommandOption{
			listNameOption("Name der Liste"),
			yesNoOption("show_usernames", "Ob zusätzlich zu den Mentions auch die Benutzernamen angezeigt werden sollen"),
		}, m.handleFormat),
		admin("liste_sorting", "Ändert die Sortiereinstellung einer Liste", []*discordgo.ApplicationCommandOption{
			listNameOption("Name der Liste"),
			yesNoOption("alphabetical", "Ob die Liste alphabetisch sortiert werden soll"),
		}, m.handleSorting),
		admin("liste_delete", "Löscht eine bestehende Liste", []*discordgo.ApplicationCommandOption{
			listNameOption("Name der Liste, die gelöscht werden soll"),
		}, m.handleDelete),
	}
}

// Components maps the pagination buttons.
func (m *Module) Components() map[string]core.ComponentHandler {
	return map[string]core.ComponentHandler{
		idPrev: core.ComponentFunc(m.handlePage),
		idNext: core.ComponentFunc(m.handlePage),
	}
}

func (m *Module) autocompleteListName(ctx *core.Context, focused string) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	if focused != "list_name" {
		return nil, nil
	}
	lists, err := m.store.ListsForGuild(ctx, ctx.GuildID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(lists))
	for i, l := range lists {
		names[i] = l.Name
	}
	return core.AutocompleteUtils{}.FilterStrings(names, core.OptionsFor(ctx.Interaction).String("list_name")), nil
}
