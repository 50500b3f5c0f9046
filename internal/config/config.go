package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the full TOML-driven server configuration. Every value can
// also be supplied through the environment; environment variables win over
// the file so container deployments can override a baked-in config.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Auth     AuthConfig     `toml:"auth"`
	Editor   EditorConfig   `toml:"editor"`
}

type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// DatabaseConfig identifies the diagram store backend. Driver is one of
// "postgres", "sqlite" or "memory"; the host/user fields apply to postgres,
// Path applies to sqlite.
type DatabaseConfig struct {
	Driver        string `toml:"driver"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	AdminUser     string `toml:"admin_user"`
	AdminPassword string `toml:"admin_password"`
	Name          string `toml:"name"`
	Path          string `toml:"path"`
}

// RedisConfig configures the draft store. An empty Addr disables Redis and
// drafts fall back to process memory.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// AuthConfig carries the JWT signing secret. When the secret is empty the
// API runs unauthenticated.
type AuthConfig struct {
	AccessTokenSecret string `toml:"access_token_secret"`
}

// EditorConfig tunes edit session behaviour shared by every session the
// server creates.
type EditorConfig struct {
	DebounceMillis int    `toml:"debounce_millis"`
	TriggerMode    string `toml:"trigger_mode"` // manual|auto
}

// Load reads an optional TOML config file and applies environment
// overrides. An empty path skips the file and configures from environment
// and defaults alone.
func Load(path string) (*Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver: "memory",
		},
		Editor: EditorConfig{
			DebounceMillis: 500,
			TriggerMode:    "manual",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if unknown := md.Undecoded(); len(unknown) > 0 {
			keys := make([]string, len(unknown))
			for i, k := range unknown {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
		}
	}

	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}

	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.Host, "DB_HOST")
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	setString(&cfg.Database.User, "DB_USERNAME")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.AdminUser, "DB_ADMIN_USER")
	setString(&cfg.Database.AdminPassword, "DB_ADMIN_PASSWORD")
	setString(&cfg.Database.Name, "DB_DATABASE")
	setString(&cfg.Database.Path, "DB_PATH")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}

	setString(&cfg.Auth.AccessTokenSecret, "ACCESS_TOKEN_SECRET")

	setString(&cfg.Editor.TriggerMode, "EDITOR_TRIGGER_MODE")
	if v := os.Getenv("EDITOR_DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Editor.DebounceMillis = ms
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("database.driver must be one of: postgres, sqlite, memory")
	}
	if cfg.Database.Driver == "postgres" {
		if cfg.Database.Host == "" {
			return fmt.Errorf("database.host is required for the postgres driver")
		}
		if cfg.Database.Port == 0 {
			return fmt.Errorf("database.port is required for the postgres driver")
		}
		if cfg.Database.User == "" {
			return fmt.Errorf("database.user is required for the postgres driver")
		}
		if cfg.Database.Name == "" {
			return fmt.Errorf("database.name is required for the postgres driver")
		}
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required for the sqlite driver")
	}

	switch cfg.Editor.TriggerMode {
	case "manual", "auto":
	default:
		return fmt.Errorf("editor.trigger_mode must be one of: manual, auto")
	}
	if cfg.Editor.DebounceMillis <= 0 {
		return fmt.Errorf("editor.debounce_millis must be positive")
	}
	return nil
}
