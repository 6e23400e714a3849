package files

import "errors"

const (
	// PlaceholderToken is written into the example config.
	PlaceholderToken = "DEIN_DISCORD_TOKEN_HIER"

	// MatchdayModule is always enabled.
	MatchdayModule = "matchday_module"

	timestampLayout = "2006-01-02 15:04:05"
)

var (
	// ErrExampleCreated is returned by Load when config.json was missing and an
	// example file was written in its place.
	ErrExampleCreated = errors.New("config file not found; example config created")
	// ErrInvalidConfig wraps JSON syntax or decoding failures.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrTokenMissing means no usable Discord token is configured.
	ErrTokenMissing = errors.New("discord token not found or not set")
	// ErrNotLoaded is returned by accessors used before Load.
	ErrNotLoaded = errors.New("config not loaded")
)

// ImageSize is a width/height pair in pixels.
type ImageSize struct {
	Width  int `mapstructure:"width" json:"width"`
	Height int `mapstructure:"height" json:"height"`
}

// MatchdayConfig holds the fallback canvas used when no base image exists.
type MatchdayConfig struct {
	ImageSize       ImageSize `mapstructure:"image_size" json:"image_size"`
	BackgroundColor string    `mapstructure:"background_color" json:"background_color"`
	TextColor       string    `mapstructure:"text_color" json:"text_color"`
	LastUpdated     string    `mapstructure:"last_updated" json:"last_updated,omitempty"`
}

// BotConfig mirrors config.json.
type BotConfig struct {
	DiscordToken   string          `mapstructure:"discord_token" json:"discord_token"`
	CommandPrefix  string          `mapstructure:"command_prefix" json:"command_prefix"`
	ModulePath     string          `mapstructure:"module_path" json:"module_path"`
	EnabledModules []string        `mapstructure:"enabled_modules" json:"enabled_modules"`
	LogLevel       string          `mapstructure:"log_level" json:"log_level"`
	AdminUsers     []string        `mapstructure:"admin_users" json:"admin_users"`
	AdminRoles     []string        `mapstructure:"admin_roles" json:"admin_roles"`
	ActivityType   string          `mapstructure:"activity_type" json:"activity_type"`
	ActivityName   string          `mapstructure:"activity_name" json:"activity_name"`
	User           string          `mapstructure:"user" json:"user,omitempty"`
	Timezone       string          `mapstructure:"timezone" json:"timezone"`
	Matchday       *MatchdayConfig `mapstructure:"matchday" json:"matchday,omitempty"`
	LastUpdated    string          `mapstructure:"last_updated" json:"last_updated"`
}

// Clone returns a deep copy.
func (c BotConfig) Clone() BotConfig {
	cp := c
	cp.EnabledModules = append([]string(nil), c.EnabledModules...)
	cp.AdminUsers = append([]string(nil), c.AdminUsers...)
	cp.AdminRoles = append([]string(nil), c.AdminRoles...)
	if c.Matchday != nil {
		md := *c.Matchday
		cp.Matchday = &md
	}
	return cp
}

// DefaultMatchdayConfig returns the matchday defaults.
func DefaultMatchdayConfig() MatchdayConfig {
	return MatchdayConfig{
		ImageSize:       ImageSize{Width: 1024, Height: 1024},
		BackgroundColor: "#292929",
		TextColor:       "#ffffff",
	}
}

// ExampleConfig returns the document written when config.json is missing.
func ExampleConfig() BotConfig {
	md := DefaultMatchdayConfig()
	return BotConfig{
		DiscordToken:   PlaceholderToken,
		CommandPrefix:  "!",
		ModulePath:     "modules",
		EnabledModules: []string{MatchdayModule},
		LogLevel:       "INFO",
		AdminUsers:     []string{},
		AdminRoles:     []string{},
		ActivityType:   "playing",
		ActivityName:   "mit Slash-Commands",
		Timezone:       "UTC",
		Matchday:       &md,
	}
}
