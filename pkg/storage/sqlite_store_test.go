package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	_ "modernc.org/sqlite"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store := NewStore(dbPath)
	if err := store.Init(); err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSchemaInitialized(t *testing.T) {
	store := newTempStore(t)
	for table, want := range map[string][]string{
		"lists":      {"id", "guild_id", "name", "title", "color", "sorting_alphabetical", "message_id", "channel_id", "show_usernames"},
		"list_roles": {"id", "list_id", "role_id", "custom_name"},
	} {
		cols, err := tableColumns(store.db, table)
		if err != nil {
			t.Fatalf("columns %s: %v", table, err)
		}
		for _, c := range want {
			if !slices.Contains(cols, c) {
				t.Fatalf("table %s missing column %s (have %v)", table, c, cols)
			}
		}
	}
}

func TestMigrationAddsMissingColumns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	legacy := []string{
		`CREATE TABLE lists (id INTEGER PRIMARY KEY AUTOINCREMENT, guild_id TEXT NOT NULL, name TEXT NOT NULL, title TEXT NOT NULL, color TEXT NOT NULL, sorting_alphabetical INTEGER DEFAULT 0, message_id TEXT, channel_id TEXT)`,
		`CREATE TABLE list_roles (id INTEGER PRIMARY KEY AUTOINCREMENT, list_id INTEGER NOT NULL, role_id TEXT NOT NULL)`,
		`INSERT INTO lists (guild_id, name, title, color) VALUES ('g1', 'team', 'Team', '#ff0000')`,
	}
	for _, stmt := range legacy {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("legacy schema: %v", err)
		}
	}
	_ = db.Close()

	store := NewStore(dbPath)
	if err := store.Init(); err != nil {
		t.Fatalf("init over legacy db: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	l, err := store.ListByName(context.Background(), "g1", "team")
	if err != nil {
		t.Fatalf("legacy row unreadable: %v", err)
	}
	if l.ShowUsernames {
		t.Fatalf("migrated show_usernames should default to false")
	}
}

func TestListLifecycle(t *testing.T) {
	store := newTempStore(t)
	ctx := context.Background()

	id, err := store.CreateList(ctx, MemberList{GuildID: "g1", Name: "staff", Title: "Staff", Color: "#5865F2"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateList(ctx, MemberList{GuildID: "g1", Name: "staff", Title: "x", Color: "#000000"}); !errors.Is(err, ErrListExists) {
		t.Fatalf("expected ErrListExists, got %v", err)
	}
	if _, err := store.CreateList(ctx, MemberList{GuildID: "g2", Name: "staff", Title: "x", Color: "#000000"}); err != nil {
		t.Fatalf("same name in other guild should be allowed: %v", err)
	}

	if ok, err := store.UpdateListAppearance(ctx, id, "Team", ""); err != nil || !ok {
		t.Fatalf("update appearance: %v %v", ok, err)
	}
	if ok, _ := store.UpdateListAppearance(ctx, id, "", ""); ok {
		t.Fatalf("empty update must be a no-op")
	}
	if _, err := store.UpdateListSorting(ctx, id, true); err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpdateListUsernameDisplay(ctx, id, true); err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpdateListMessage(ctx, id, "m1", "c1"); err != nil {
		t.Fatal(err)
	}

	l, err := store.ListByName(ctx, "g1", "staff")
	if err != nil {
		t.Fatal(err)
	}
	if l.Title != "Team" || l.Color != "#5865F2" || !l.SortingAlphabetical || !l.ShowUsernames || !l.Posted() {
		t.Fatalf("unexpected list state: %+v", l)
	}

	lists, err := store.ListsForGuild(ctx, "g1")
	if err != nil || len(lists) != 1 {
		t.Fatalf("ListsForGuild: %v %v", lists, err)
	}

	if err := store.DeleteList(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ListByName(ctx, "g1", "staff"); !errors.Is(err, ErrListNotFound) {
		t.Fatalf("expected ErrListNotFound, got %v", err)
	}
}

func TestListRoles(t *testing.T) {
	store := newTempStore(t)
	ctx := context.Background()

	id, err := store.CreateList(ctx, MemberList{GuildID: "g1", Name: "mods", Title: "Mods", Color: "#00ff00"})
	if err != nil {
		t.Fatal(err)
	}

	added, err := store.AddRoleToList(ctx, id, "r1", nil)
	if err != nil || !added {
		t.Fatalf("add r1: %v %v", added, err)
	}
	name := "Leitung"
	added, err = store.AddRoleToList(ctx, id, "r2", &name)
	if err != nil || !added {
		t.Fatalf("add r2: %v %v", added, err)
	}

	renamed := "Chefs"
	added, err = store.AddRoleToList(ctx, id, "r1", &renamed)
	if err != nil || added {
		t.Fatalf("re-adding should update, not insert: %v %v", added, err)
	}

	roles, err := store.RolesForList(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	want := []ListRole{{RoleID: "r1", CustomName: "Chefs"}, {RoleID: "r2", CustomName: "Leitung"}}
	if !slices.Equal(roles, want) {
		t.Fatalf("roles = %+v, want %+v", roles, want)
	}

	if ok, err := store.UpdateRoleCustomName(ctx, id, "r2", ""); err != nil || !ok {
		t.Fatalf("reset name: %v %v", ok, err)
	}
	if ok, err := store.RemoveRoleFromList(ctx, id, "r1"); err != nil || !ok {
		t.Fatalf("remove: %v %v", ok, err)
	}
	if ok, _ := store.RemoveRoleFromList(ctx, id, "r1"); ok {
		t.Fatalf("second remove should report false")
	}

	roles, _ = store.RolesForList(ctx, id)
	if len(roles) != 1 || roles[0].CustomName != "" {
		t.Fatalf("unexpected roles after edits: %+v", roles)
	}

	if err := store.DeleteList(ctx, id); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM list_roles`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("cascade delete left %d roles", n)
	}
}

func TestUninitializedStore(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "x.db"))
	if _, err := s.ListsForGuild(context.Background(), "g"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
