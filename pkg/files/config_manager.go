package files

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	apperrors "github.com/small-frappuccino/zealox/pkg/errors"
	"github.com/small-frappuccino/zealox/pkg/log"
	"github.com/small-frappuccino/zealox/pkg/util"
	"github.com/spf13/viper"
)

// ConfigManager loads, mutates and persists config.json.
type ConfigManager struct {
	configFilePath string
	jsonManager    *util.JSONManager

	mu           sync.RWMutex
	config       *BotConfig
	lastModified time.Time
	tokenEnv     string
	now          func() time.Time
}

// NewConfigManagerWithPath creates a manager for the file at configPath.
func NewConfigManagerWithPath(configPath string) *ConfigManager {
	return &ConfigManager{
		configFilePath: configPath,
		jsonManager:    util.NewJSONManager(configPath),
		now:            time.Now,
	}
}

// ConfigPath returns the config file path.
func (mgr *ConfigManager) ConfigPath() string { return mgr.configFilePath }

func setDefaults(v *viper.Viper) {
	ex := ExampleConfig()
	v.SetDefault("command_prefix", ex.CommandPrefix)
	v.SetDefault("module_path", ex.ModulePath)
	v.SetDefault("enabled_modules", ex.EnabledModules)
	v.SetDefault("log_level", ex.LogLevel)
	v.SetDefault("admin_users", []string{})
	v.SetDefault("admin_roles", []string{})
	v.SetDefault("activity_type", ex.ActivityType)
	v.SetDefault("activity_name", ex.ActivityName)
	v.SetDefault("timezone", ex.Timezone)
}

// read parses the file with viper. It reports whether enabled_modules was
// present in the file itself.
func (mgr *ConfigManager) read() (*BotConfig, bool, error) {
	v := viper.New()
	v.SetConfigFile(mgr.configFilePath)
	v.SetConfigType("json")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var cfg BotConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &cfg, v.InConfig("enabled_modules"), nil
}

// LoadConfig reads config.json. A missing file is replaced by the example
// config and ErrExampleCreated is returned.
func (mgr *ConfigManager) LoadConfig() error {
	if _, err := os.Stat(mgr.configFilePath); errors.Is(err, os.ErrNotExist) {
		log.ApplicationLogger().Error("❌ Config file not found", "path", mgr.configFilePath)
		if err := mgr.writeExample(); err != nil {
			return err
		}
		log.ApplicationLogger().Info("📝 Example config created", "path", mgr.configFilePath)
		return ErrExampleCreated
	}

	cfg, hasModules, err := mgr.read()
	if err != nil {
		return apperrors.HandleConfigError("read", mgr.configFilePath, func() error { return err })
	}

	mgr.mu.Lock()
	mgr.config = cfg
	mgr.lastModified = mgr.modTime()
	mgr.mu.Unlock()

	if !hasModules {
		return mgr.Update(func(c *BotConfig) { c.EnabledModules = []string{MatchdayModule} })
	}
	return nil
}

func (mgr *ConfigManager) writeExample() error {
	ex := ExampleConfig()
	ex.LastUpdated = mgr.now().Format(timestampLayout)
	if err := mgr.jsonManager.Save(ex); err != nil {
		return apperrors.HandleConfigError("write", mgr.configFilePath, func() error { return err })
	}
	return nil
}

// SaveConfig writes the current configuration to disk.
func (mgr *ConfigManager) SaveConfig() error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return mgr.saveLocked()
}

func (mgr *ConfigManager) saveLocked() error {
	if mgr.config == nil {
		return ErrNotLoaded
	}
	if err := mgr.jsonManager.Save(mgr.config); err != nil {
		return apperrors.HandleConfigError("write", mgr.configFilePath, func() error { return err })
	}
	mgr.lastModified = mgr.modTime()
	log.ApplicationLogger().Info("💾 Config saved", "path", mgr.configFilePath)
	return nil
}

func (mgr *ConfigManager) modTime() time.Time {
	info, err := os.Stat(mgr.configFilePath)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Config returns a copy of the current configuration.
func (mgr *ConfigManager) Config() BotConfig {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	if mgr.config == nil {
		return ExampleConfig()
	}
	return mgr.config.Clone()
}

// Update applies fn, stamps last_updated and saves.
func (mgr *ConfigManager) Update(fn func(*BotConfig)) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if mgr.config == nil {
		return ErrNotLoaded
	}
	fn(mgr.config)
	mgr.config.LastUpdated = mgr.now().Format(timestampLayout)
	return mgr.saveLocked()
}

// ReloadIfChanged reloads the file when its modification time moved forward.
func (mgr *ConfigManager) ReloadIfChanged() (bool, error) {
	current := mgr.modTime()

	mgr.mu.RLock()
	last := mgr.lastModified
	mgr.mu.RUnlock()

	if !current.After(last) {
		return false, nil
	}

	cfg, _, err := mgr.read()
	if err != nil {
		log.ApplicationLogger().Error("❌ Config reload failed", "path", mgr.configFilePath, "err", err)
		return false, err
	}

	mgr.mu.Lock()
	mgr.config = cfg
	mgr.lastModified = current
	mgr.mu.Unlock()

	log.ApplicationLogger().Info("🔄 Config reloaded", "path", mgr.configFilePath)
	return true, nil
}

// OverrideToken sets a token that takes precedence over discord_token. It
// is kept apart from the config so saves never write it to disk.
func (mgr *ConfigManager) OverrideToken(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.tokenEnv = token
}

// Token returns the override token, else the configured one, or
// ErrTokenMissing.
func (mgr *ConfigManager) Token() (string, error) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	if mgr.tokenEnv != "" {
		return mgr.tokenEnv, nil
	}
	if mgr.config == nil {
		return "", ErrNotLoaded
	}
	token := strings.TrimSpace(mgr.config.DiscordToken)
	if token == "" || token == PlaceholderToken {
		return "", ErrTokenMissing
	}
	return token, nil
}

// DedupeModules removes repeated enabled_modules entries, keeping first
// occurrences, and saves when anything changed.
func (mgr *ConfigManager) DedupeModules() ([]string, error) {
	mgr.mu.RLock()
	if mgr.config == nil {
		mgr.mu.RUnlock()
		return nil, ErrNotLoaded
	}
	unique, duplicates := dedupe(mgr.config.EnabledModules)
	mgr.mu.RUnlock()

	if len(duplicates) == 0 {
		return nil, nil
	}
	log.ApplicationLogger().Info("🔧 Duplicate modules removed from config", "modules", strings.Join(duplicates, ", "))
	return duplicates, mgr.Update(func(c *BotConfig) { c.EnabledModules = unique })
}

func dedupe(modules []string) (unique, duplicates []string) {
	seen := make(map[string]bool, len(modules))
	for _, m := range modules {
		if seen[m] {
			if !slices.Contains(duplicates, m) {
				duplicates = append(duplicates, m)
			}
			continue
		}
		seen[m] = true
		unique = append(unique, m)
	}
	return unique, duplicates
}

// EnsureModuleOnce makes name appear exactly once in enabled_modules.
func (mgr *ConfigManager) EnsureModuleOnce(name string) error {
	cfg := mgr.Config()
	count := 0
	for _, m := range cfg.EnabledModules {
		if m == name {
			count++
		}
	}
	switch {
	case count == 0:
		log.ApplicationLogger().Info("✅ Module added to config", "module", name)
		return mgr.Update(func(c *BotConfig) { c.EnabledModules = append(c.EnabledModules, name) })
	case count > 1:
		log.ApplicationLogger().Info("🔧 Duplicate entries cleaned up", "module", name)
		return mgr.Update(func(c *BotConfig) {
			kept := c.EnabledModules[:0]
			for _, m := range c.EnabledModules {
				if m != name {
					kept = append(kept, m)
				}
			}
			c.EnabledModules = append(kept, name)
		})
	}
	return nil
}

// ValidateMatchday enables matchday_module and fills missing matchday settings.
func (mgr *ConfigManager) ValidateMatchday() error {
	if err := mgr.EnsureModuleOnce(MatchdayModule); err != nil {
		return err
	}
	return mgr.Update(func(c *BotConfig) {
		if c.Matchday == nil {
			md := DefaultMatchdayConfig()
			md.LastUpdated = mgr.now().Format(timestampLayout)
			c.Matchday = &md
		}
	})
}

// IsAdminUser reports whether userID is listed in admin_users.
func (mgr *ConfigManager) IsAdminUser(userID string) bool {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return mgr.config != nil && slices.Contains(mgr.config.AdminUsers, userID)
}

// AdminRoles returns the configured admin role IDs.
func (mgr *ConfigManager) AdminRoles() []string {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	if mgr.config == nil {
		return nil
	}
	return append([]string(nil), mgr.config.AdminRoles...)
}
