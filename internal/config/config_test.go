package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 9090
allowed_origins = ["https://app.example.com"]

[database]
driver = "postgres"
host = "db.internal"
port = 5432
user = "editor"
password = "secret"
name = "diagrams"

[redis]
addr = "localhost:6379"
db = 2

[auth]
access_token_secret = "sekrit"

[editor]
debounce_millis = 250
trigger_mode = "auto"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9090 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.Host != "db.internal" || cfg.Database.Name != "diagrams" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.Auth.AccessTokenSecret != "sekrit" {
		t.Errorf("AccessTokenSecret = %q", cfg.Auth.AccessTokenSecret)
	}
	if cfg.Editor.DebounceMillis != 250 || cfg.Editor.TriggerMode != "auto" {
		t.Errorf("Editor = %+v", cfg.Editor)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8080 {
		t.Errorf("default Server = %+v", cfg.Server)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("default Database.Driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.Editor.DebounceMillis != 500 {
		t.Errorf("default DebounceMillis = %d, want 500", cfg.Editor.DebounceMillis)
	}
	if cfg.Editor.TriggerMode != "manual" {
		t.Errorf("default TriggerMode = %q, want manual", cfg.Editor.TriggerMode)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("default Redis.Addr = %q, want empty", cfg.Redis.Addr)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090

[editor]
trigger_mode = "manual"
`)

	t.Setenv("PORT", "7070")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "/tmp/diagrams.db")
	t.Setenv("EDITOR_TRIGGER_MODE", "auto")
	t.Setenv("EDITOR_DEBOUNCE_MS", "100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want env override 7070", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "/tmp/diagrams.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Editor.TriggerMode != "auto" || cfg.Editor.DebounceMillis != 100 {
		t.Errorf("Editor = %+v", cfg.Editor)
	}
}

func TestLoadConfigUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090
listen_backlog = 128
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown config keys")
	}
}

func TestLoadConfigInvalidDriver(t *testing.T) {
	path := writeConfig(t, `
[database]
driver = "oracle"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid database driver")
	}
}

func TestLoadConfigPostgresRequiresConnection(t *testing.T) {
	path := writeConfig(t, `
[database]
driver = "postgres"
host = "db.internal"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for incomplete postgres settings")
	}
}

func TestLoadConfigSQLiteRequiresPath(t *testing.T) {
	path := writeConfig(t, `
[database]
driver = "sqlite"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for sqlite without a path")
	}
}

func TestLoadConfigInvalidTriggerMode(t *testing.T) {
	path := writeConfig(t, `
[editor]
trigger_mode = "eager"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid trigger mode")
	}
}
