package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Settings holds process-level settings read from the environment.
// Values found in config.json are overridden by non-empty settings.
type Settings struct {
	Token       string `env:"DISCORD_TOKEN"`
	ConfigPath  string `env:"ZEALOX_CONFIG" envDefault:"config.json"`
	DataDir     string `env:"ZEALOX_DATA_DIR" envDefault:"."`
	DBPath      string `env:"ZEALOX_DB_PATH"`
	ControlAddr string `env:"ZEALOX_CONTROL_ADDR"`
	LogLevel    string `env:"LOG_LEVEL"`
	Theme       string `env:"ZEALOX_THEME"`
	MaxRetries  int    `env:"ZEALOX_MAX_RETRIES" envDefault:"5"`
}

// LoadSettings loads .env files and parses Settings from the environment.
func LoadSettings() (Settings, error) {
	LoadEnvFiles()
	settings, err := env.ParseAs[Settings]()
	if err != nil {
		return Settings{}, fmt.Errorf("parse environment: %w", err)
	}
	if settings.DBPath == "" {
		settings.DBPath = filepath.Join(settings.DataDir, "data", "bot.db")
	}
	return settings, nil
}

// LoadEnvFiles loads ./.env and then $HOME/.local/bin/.env. Neither file
// overrides variables that are already set, so the process environment wins
// over ./.env, which wins over the home fallback.
func LoadEnvFiles() []string {
	var loaded []string
	candidates := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		candidates = append(candidates, filepath.Join(home, ".local", "bin", ".env"))
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			loaded = append(loaded, path)
		}
	}
	return loaded
}

// LoadEnvWithLocalBinFallback loads the env files and returns the requested variable.
func LoadEnvWithLocalBinFallback(name string) (string, error) {
	LoadEnvFiles()
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("environment variable %q not set", name)
}

// EnvBool reports whether the variable holds a truthy value.
func EnvBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on", "ja":
		return true
	default:
		return false
	}
}

// EnvString returns the trimmed variable or def when it is blank.
func EnvString(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

// EnvInt64 returns the variable parsed as int64 or def.
func EnvInt64(name string, def int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(name)), 10, 64)
	if err != nil {
		return def
	}
	return v
}
