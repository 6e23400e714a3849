package files

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path string, doc map[string]any) {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readRaw(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestLoadConfigCreatesExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	mgr := NewConfigManagerWithPath(path)

	err := mgr.LoadConfig()
	if !errors.Is(err, ErrExampleCreated) {
		t.Fatalf("expected ErrExampleCreated, got %v", err)
	}

	raw := readRaw(t, path)
	if raw["discord_token"] != PlaceholderToken {
		t.Fatalf("unexpected token in example: %v", raw["discord_token"])
	}
	mods, _ := raw["enabled_modules"].([]any)
	if len(mods) != 1 || mods[0] != MatchdayModule {
		t.Fatalf("unexpected enabled_modules: %v", raw["enabled_modules"])
	}
	if _, ok := raw["matchday"]; !ok {
		t.Fatalf("example must contain matchday section")
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := NewConfigManagerWithPath(path).LoadConfig()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadConfigAddsMissingModules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{"discord_token": "abc"})

	mgr := NewConfigManagerWithPath(path)
	if err := mgr.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg := mgr.Config()
	if !slices.Equal(cfg.EnabledModules, []string{MatchdayModule}) {
		t.Fatalf("unexpected modules: %v", cfg.EnabledModules)
	}
	if cfg.CommandPrefix != "!" || cfg.ActivityType != "playing" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	raw := readRaw(t, path)
	if _, ok := raw["enabled_modules"]; !ok {
		t.Fatalf("enabled_modules should have been persisted")
	}
}

func TestTokenHandling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{"discord_token": PlaceholderToken, "enabled_modules": []string{}})

	mgr := NewConfigManagerWithPath(path)
	if err := mgr.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, err := mgr.Token(); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("placeholder token must be rejected, got %v", err)
	}

	mgr.OverrideToken("env-token")
	tok, err := mgr.Token()
	if err != nil || tok != "env-token" {
		t.Fatalf("override not applied: %q %v", tok, err)
	}
	if raw := readRaw(t, path); raw["discord_token"] != PlaceholderToken {
		t.Fatalf("override must not be written to disk")
	}
}

func TestOverrideTokenSurvivesSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{
		"discord_token":   PlaceholderToken,
		"enabled_modules": []string{"a", "a"},
	})

	mgr := NewConfigManagerWithPath(path)
	mgr.OverrideToken("env-secret-token")
	if err := mgr.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, err := mgr.DedupeModules(); err != nil {
		t.Fatalf("DedupeModules: %v", err)
	}
	if err := mgr.ValidateMatchday(); err != nil {
		t.Fatalf("ValidateMatchday: %v", err)
	}

	if raw := readRaw(t, path); raw["discord_token"] != PlaceholderToken {
		t.Fatalf("file token = %v, want placeholder", raw["discord_token"])
	}
	if got := mgr.Config().DiscordToken; got != PlaceholderToken {
		t.Fatalf("config token = %q, want placeholder", got)
	}
	if tok, err := mgr.Token(); err != nil || tok != "env-secret-token" {
		t.Fatalf("Token() = %q, %v", tok, err)
	}
}

func TestDedupeModules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{
		"enabled_modules": []string{"a", "b", "a", MatchdayModule, "b", "a"},
	})
	mgr := NewConfigManagerWithPath(path)
	if err := mgr.LoadConfig(); err != nil {
		t.Fatal(err)
	}

	dups, err := mgr.DedupeModules()
	if err != nil {
		t.Fatalf("DedupeModules: %v", err)
	}
	if !slices.Equal(dups, []string{"a", "b"}) {
		t.Fatalf("unexpected duplicates: %v", dups)
	}
	if got := mgr.Config().EnabledModules; !slices.Equal(got, []string{"a", "b", MatchdayModule}) {
		t.Fatalf("unexpected modules after dedupe: %v", got)
	}

	dups, err = mgr.DedupeModules()
	if err != nil || dups != nil {
		t.Fatalf("second dedupe should be a no-op: %v %v", dups, err)
	}
}

func TestEnsureModuleOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{
		"enabled_modules": []string{MatchdayModule, "x", MatchdayModule},
	})
	mgr := NewConfigManagerWithPath(path)
	if err := mgr.LoadConfig(); err != nil {
		t.Fatal(err)
	}

	if err := mgr.EnsureModuleOnce(MatchdayModule); err != nil {
		t.Fatal(err)
	}
	if got := mgr.Config().EnabledModules; !slices.Equal(got, []string{"x", MatchdayModule}) {
		t.Fatalf("unexpected modules: %v", got)
	}

	if err := mgr.EnsureModuleOnce("y"); err != nil {
		t.Fatal(err)
	}
	if got := mgr.Config().EnabledModules; !slices.Equal(got, []string{"x", MatchdayModule, "y"}) {
		t.Fatalf("unexpected modules: %v", got)
	}
}

func TestValidateMatchday(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{"enabled_modules": []string{"other"}})
	mgr := NewConfigManagerWithPath(path)
	mgr.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	if err := mgr.LoadConfig(); err != nil {
		t.Fatal(err)
	}

	if err := mgr.ValidateMatchday(); err != nil {
		t.Fatalf("ValidateMatchday: %v", err)
	}
	cfg := mgr.Config()
	if !slices.Contains(cfg.EnabledModules, MatchdayModule) {
		t.Fatalf("matchday module not enabled: %v", cfg.EnabledModules)
	}
	if cfg.Matchday == nil || cfg.Matchday.ImageSize.Width != 1024 || cfg.Matchday.BackgroundColor != "#292929" {
		t.Fatalf("matchday defaults missing: %+v", cfg.Matchday)
	}
	if cfg.LastUpdated != "2024-03-01 12:00:00" {
		t.Fatalf("last_updated not stamped: %q", cfg.LastUpdated)
	}
}

func TestReloadIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{"enabled_modules": []string{"a"}, "log_level": "INFO"})
	mgr := NewConfigManagerWithPath(path)
	if err := mgr.LoadConfig(); err != nil {
		t.Fatal(err)
	}

	changed, err := mgr.ReloadIfChanged()
	if err != nil || changed {
		t.Fatalf("unchanged file reported as changed: %v %v", changed, err)
	}

	writeConfig(t, path, map[string]any{"enabled_modules": []string{"a"}, "log_level": "DEBUG"})
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	changed, err = mgr.ReloadIfChanged()
	if err != nil || !changed {
		t.Fatalf("expected reload: %v %v", changed, err)
	}
	if mgr.Config().LogLevel != "DEBUG" {
		t.Fatalf("reloaded config not applied: %q", mgr.Config().LogLevel)
	}
}

func TestAdminLookups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{
		"enabled_modules": []string{},
		"admin_users":     []string{"42"},
		"admin_roles":     []string{"7"},
	})
	mgr := NewConfigManagerWithPath(path)
	if err := mgr.LoadConfig(); err != nil {
		t.Fatal(err)
	}
	if !mgr.IsAdminUser("42") || mgr.IsAdminUser("43") {
		t.Fatalf("IsAdminUser mismatch")
	}
	if roles := mgr.AdminRoles(); !slices.Equal(roles, []string{"7"}) {
		t.Fatalf("unexpected roles: %v", roles)
	}
}
