package core

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/discord/discordtest"
	"github.com/small-frappuccino/zealox/pkg/files"
)

type testCommand struct {
	name                string
	requiresGuild       bool
	requiresPermissions bool
	handler             func(*Context) error
}

func (tc testCommand) Name() string        { return tc.name }
func (tc testCommand) Description() string { return tc.name }
func (tc testCommand) Options() []*discordgo.ApplicationCommandOption {
	return nil
}
func (tc testCommand) Handle(ctx *Context) error {
	if tc.handler != nil {
		return tc.handler(ctx)
	}
	return nil
}
func (tc testCommand) RequiresGuild() bool       { return tc.requiresGuild }
func (tc testCommand) RequiresPermissions() bool { return tc.requiresPermissions }

func newTestConfig(t *testing.T) *files.ConfigManager {
	t.Helper()
	cfg := files.NewConfigManagerWithPath(filepath.Join(t.TempDir(), "config.json"))
	if err := cfg.LoadConfig(); !errors.Is(err, files.ErrExampleCreated) {
		t.Fatalf("expected example config, got %v", err)
	}
	if err := cfg.LoadConfig(); err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func singleResponse(t *testing.T, srv *discordtest.Server) discordtest.InteractionResponse {
	t.Helper()
	responses := srv.InteractionResponses()
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	return responses[0]
}

func TestCommandRegistryRegisterLookup(t *testing.T) {
	registry := NewCommandRegistry()
	registry.Register(testCommand{name: "ping"})

	if got, ok := registry.GetCommand("ping"); !ok || got.Name() != "ping" {
		t.Fatalf("expected to find command, got ok=%v value=%v", ok, got)
	}

	registry.Register(testCommand{name: "ping", requiresGuild: true})
	if got, _ := registry.GetCommand("ping"); !got.RequiresGuild() {
		t.Fatalf("expected duplicate registration to overwrite")
	}

	registry.Register(testCommand{name: "alpha"})
	if names := registry.Names(); strings.Join(names, ",") != "alpha,ping" {
		t.Fatalf("unexpected names: %v", names)
	}

	if !registry.Unregister("ping") || registry.Unregister("ping") {
		t.Fatalf("unregister should report presence once")
	}
	if _, ok := registry.GetCommand("ping"); ok {
		t.Fatalf("command still registered after Unregister")
	}
}

func TestHandleSlashCommandUnknownCommand(t *testing.T) {
	session, srv := discordtest.New(t)
	router := NewCommandRouter(session, newTestConfig(t))

	router.handleSlashCommand(discordtest.Interaction("missing", "guild", "user"))

	resp := singleResponse(t, srv)
	if !strings.Contains(resp.Data.Content, msgCommandNotFound) {
		t.Fatalf("unexpected content: %q", resp.Data.Content)
	}
	if !resp.Ephemeral() {
		t.Fatalf("expected ephemeral flag to be set")
	}
}

func TestHandleSlashCommandRequiresGuild(t *testing.T) {
	session, srv := discordtest.New(t)
	router := NewCommandRouter(session, newTestConfig(t))

	router.RegisterCommand(testCommand{name: "guild", requiresGuild: true, handler: func(*Context) error {
		t.Fatalf("handler should not execute when missing guild")
		return nil
	}})

	router.handleSlashCommand(discordtest.Interaction("guild", "", "user"))

	if resp := singleResponse(t, srv); !strings.Contains(resp.Data.Content, "nur auf einem Server") {
		t.Fatalf("unexpected content: %q", resp.Data.Content)
	}
}

func TestHandleSlashCommandPermissions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*discordgo.InteractionCreate, *files.ConfigManager)
		allowed bool
	}{
		{name: "plain member", allowed: false},
		{
			name: "administrator permission",
			mutate: func(i *discordgo.InteractionCreate, _ *files.ConfigManager) {
				i.Member.Permissions = discordgo.PermissionAdministrator
			},
			allowed: true,
		},
		{
			name: "configured admin user",
			mutate: func(_ *discordgo.InteractionCreate, cfg *files.ConfigManager) {
				_ = cfg.Update(func(c *files.BotConfig) { c.AdminUsers = []string{"user"} })
			},
			allowed: true,
		},
		{
			name: "configured admin role",
			mutate: func(i *discordgo.InteractionCreate, cfg *files.ConfigManager) {
				_ = cfg.Update(func(c *files.BotConfig) { c.AdminRoles = []string{"mods"} })
				i.Member.Roles = []string{"mods"}
			},
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, srv := discordtest.New(t)
			cfg := newTestConfig(t)
			router := NewCommandRouter(session, cfg)

			ran := false
			router.RegisterCommand(testCommand{name: "secure", requiresPermissions: true, handler: func(*Context) error {
				ran = true
				return nil
			}})

			i := discordtest.Interaction("secure", "guild", "user")
			if tt.mutate != nil {
				tt.mutate(i, cfg)
			}
			router.handleSlashCommand(i)

			if ran != tt.allowed {
				t.Fatalf("handler ran=%v, want %v", ran, tt.allowed)
			}
			if !tt.allowed {
				resp := singleResponse(t, srv)
				if !strings.Contains(resp.Data.Content, "Berechtigung") || !resp.Ephemeral() {
					t.Fatalf("unexpected denial response: %+v", resp)
				}
			}
		})
	}
}

func TestHandleSlashCommandCommandErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectFlag bool
		expectText string
	}{
		{name: "ephemeral", err: NewCommandError("boom", true), expectFlag: true, expectText: "boom"},
		{name: "public", err: NewCommandError("boom", false), expectFlag: false, expectText: "boom"},
		{name: "validation", err: NewValidationError("x", "bad x"), expectFlag: true, expectText: "bad x"},
		{name: "generic", err: errors.New("internal"), expectFlag: true, expectText: msgCommandFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, srv := discordtest.New(t)
			router := NewCommandRouter(session, newTestConfig(t))

			router.RegisterCommand(testCommand{name: "cmd", handler: func(*Context) error {
				return tt.err
			}})

			router.handleSlashCommand(discordtest.Interaction("cmd", "guild", "user"))

			resp := singleResponse(t, srv)
			if resp.Ephemeral() != tt.expectFlag {
				t.Fatalf("ephemeral flag mismatch: got %v want %v", resp.Ephemeral(), tt.expectFlag)
			}
			if !strings.Contains(resp.Data.Content, tt.expectText) {
				t.Fatalf("unexpected content: %q", resp.Data.Content)
			}
		})
	}
}

func TestHandlerPanicIsReported(t *testing.T) {
	session, srv := discordtest.New(t)
	router := NewCommandRouter(session, newTestConfig(t))
	router.RegisterCommand(testCommand{name: "panic", handler: func(*Context) error {
		panic("kaputt")
	}})

	router.handleSlashCommand(discordtest.Interaction("panic", "guild", "user"))

	if resp := singleResponse(t, srv); !strings.Contains(resp.Data.Content, msgCommandFailed) {
		t.Fatalf("unexpected content: %q", resp.Data.Content)
	}
}

func TestComponentRoutingLongestPrefix(t *testing.T) {
	session, srv := discordtest.New(t)
	router := NewCommandRouter(session, newTestConfig(t))

	var hit string
	if err := router.RegisterComponent("matchday:", ComponentFunc(func(*Context) error { hit = "short"; return nil })); err != nil {
		t.Fatal(err)
	}
	if err := router.RegisterComponent("matchday:logo", ComponentFunc(func(ctx *Context) error {
		hit = "long:" + ctx.CustomID()
		return nil
	})); err != nil {
		t.Fatal(err)
	}
	if err := router.RegisterComponent("matchday:", ComponentFunc(func(*Context) error { return nil })); !errors.Is(err, ErrDuplicateComponent) {
		t.Fatalf("expected ErrDuplicateComponent, got %v", err)
	}

	router.HandleInteraction(session, discordtest.Component("matchday:logo_home", "guild", "user"))
	if hit != "long:matchday:logo_home" {
		t.Fatalf("longest prefix not chosen: %q", hit)
	}
	router.HandleInteraction(session, discordtest.ModalSubmit("matchday:name_home", "guild", "user", map[string]string{"name": "x"}))
	if hit != "short" {
		t.Fatalf("modal not routed: %q", hit)
	}

	router.UnregisterComponent("matchday:")
	router.UnregisterComponent("matchday:logo")
	router.HandleInteraction(session, discordtest.Component("matchday:create", "guild", "user"))
	if resp := singleResponse(t, srv); !strings.Contains(resp.Data.Content, msgInteractionExpire) {
		t.Fatalf("unexpected content for unrouted component: %q", resp.Data.Content)
	}
}

type autoSub struct {
	testCommand
}

func (autoSub) HandleAutocomplete(ctx *Context, focused string) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, 30)
	for i := range 30 {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: focused, Value: i})
	}
	return out, nil
}

func TestGroupAutocompleteCapped(t *testing.T) {
	session, srv := discordtest.New(t)
	router := NewCommandRouter(session, newTestConfig(t))
	group := NewGroupCommand("admin", "admin", router.GetPermissionChecker())
	group.AddSubCommand(autoSub{testCommand{name: "load"}})
	router.RegisterCommand(group)

	i := discordtest.Interaction("admin", "guild", "user", discordtest.SubCommand("load",
		&discordgo.ApplicationCommandInteractionDataOption{Name: "module_name", Type: discordgo.ApplicationCommandOptionString, Value: "m", Focused: true},
	))
	i.Type = discordgo.InteractionApplicationCommandAutocomplete
	router.HandleInteraction(session, i)

	resp := singleResponse(t, srv)
	if resp.Type != discordgo.InteractionApplicationCommandAutocompleteResult {
		t.Fatalf("unexpected response type %d", resp.Type)
	}
	if len(resp.Data.Choices) != MaxAutocompleteChoices {
		t.Fatalf("expected %d choices, got %d", MaxAutocompleteChoices, len(resp.Data.Choices))
	}
	if resp.Data.Choices[0].Name != "module_name" {
		t.Fatalf("focused option not passed through: %q", resp.Data.Choices[0].Name)
	}
}

func TestGroupCommandDispatch(t *testing.T) {
	cfg := newTestConfig(t)
	checker := NewPermissionChecker(nil, cfg)
	group := NewGroupCommand("group", "", checker)

	handled := false
	group.AddSubCommand(testCommand{name: "runner", handler: func(*Context) error {
		handled = true
		return nil
	}})
	group.AddSubCommand(testCommand{name: "locked", requiresPermissions: true})

	if opts := group.Options(); len(opts) != 2 || opts[0].Name != "locked" || opts[1].Name != "runner" {
		t.Fatalf("options not sorted by name: %+v", opts)
	}

	builder := NewContextBuilder(nil, cfg)
	ctx := builder.BuildContext(discordtest.Interaction("group", "guild", "user", discordtest.SubCommand("runner")))
	if err := group.Handle(ctx); err != nil {
		t.Fatalf("group handle returned error: %v", err)
	}
	if !handled {
		t.Fatalf("expected subcommand handler to run")
	}

	ctx = builder.BuildContext(discordtest.Interaction("group", "guild", "user", discordtest.SubCommand("locked")))
	var cmdErr *CommandError
	if err := group.Handle(ctx); !errors.As(err, &cmdErr) || !cmdErr.Ephemeral {
		t.Fatalf("expected ephemeral permission error, got %v", err)
	}
}

func TestSyncCommands(t *testing.T) {
	session, srv := discordtest.New(t)
	cm := NewCommandManager(session, newTestConfig(t))

	keep := testCommand{name: "keep"}
	cm.GetRouter().RegisterCommand(keep)
	cm.GetRouter().RegisterCommand(testCommand{name: "fresh"})
	cm.GetRouter().RegisterCommand(NewSimpleCommand("changed", "new description", nil, func(*Context) error { return nil }, false, false))

	srv.Handle(http.MethodGet, "applications/*/commands", func(discordtest.Request) (int, any) {
		return http.StatusOK, []*discordgo.ApplicationCommand{
			{ID: "1", Name: "keep", Description: "keep"},
			{ID: "2", Name: "changed", Description: "old description"},
			{ID: "3", Name: "orphan", Description: "orphan"},
		}
	})

	res, err := cm.SyncCommands(context.Background())
	if err != nil {
		t.Fatalf("SyncCommands: %v", err)
	}
	want := SyncResult{Created: 1, Updated: 1, Deleted: 1, Unchanged: 1, Total: 3}
	if res != want {
		t.Fatalf("sync result = %+v, want %+v", res, want)
	}

	if n := len(srv.Find(http.MethodPost, "applications/*/commands")); n != 1 {
		t.Fatalf("expected 1 create, got %d", n)
	}
	if n := len(srv.Find(http.MethodPatch, "applications/*/commands/2")); n != 1 {
		t.Fatalf("expected edit of command 2, got %d", n)
	}
	if n := len(srv.Find(http.MethodDelete, "applications/*/commands/3")); n != 1 {
		t.Fatalf("expected delete of orphan, got %d", n)
	}
}

func TestOptionExtractor(t *testing.T) {
	i := discordtest.Interaction("liste_addrole", "guild", "user",
		discordtest.StringOption("list_name", "  staff "),
		&discordgo.ApplicationCommandInteractionDataOption{Name: "role", Type: discordgo.ApplicationCommandOptionRole, Value: "r1"},
		&discordgo.ApplicationCommandInteractionDataOption{Name: "count", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(3)},
	)
	data := i.ApplicationCommandData()
	data.Resolved = &discordgo.ApplicationCommandInteractionDataResolved{
		Roles: map[string]*discordgo.Role{"r1": {ID: "r1", Name: "Mods"}},
	}
	i.Data = data

	opts := OptionsFor(i)
	if opts.String("list_name") != "staff" {
		t.Fatalf("string option not trimmed: %q", opts.String("list_name"))
	}
	if r := opts.Role("role"); r == nil || r.Name != "Mods" {
		t.Fatalf("role not resolved: %+v", r)
	}
	if opts.Int("count") != 3 {
		t.Fatalf("int option = %d", opts.Int("count"))
	}
	if _, err := opts.StringRequired("missing"); err == nil {
		t.Fatalf("expected validation error")
	}
	if opts.Role("missing") != nil {
		t.Fatalf("missing role should be nil")
	}
}
