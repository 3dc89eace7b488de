package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./plmigrate.db" {
			t.Errorf("expected database path ./plmigrate.db, got %s", config.Database.Path)
		}
		if config.Database.Driver != DriverSQLite {
			t.Errorf("expected driver %s, got %s", DriverSQLite, config.Database.Driver)
		}
		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}
		if config.Migration.CallTimeout != 30*time.Second {
			t.Errorf("expected call timeout 30s, got %v", config.Migration.CallTimeout)
		}
		if config.Migration.SearchLimit != 5 {
			t.Errorf("expected search limit 5, got %d", config.Migration.SearchLimit)
		}
		if config.Credentials.YouTube.TokenURL != "https://oauth2.googleapis.com/token" {
			t.Errorf("unexpected youtube token URL %s", config.Credentials.YouTube.TokenURL)
		}
		if config.Credentials.Spotify.TokenURL != "https://accounts.spotify.com/api/token" {
			t.Errorf("unexpected spotify token URL %s", config.Credentials.Spotify.TokenURL)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate, got %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[database]
driver = "sqlite3"
path = "/custom/path.db"

[migration]
call_timeout = "5s"
search_limit = 10

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}
		if config.Migration.CallTimeout != 5*time.Second {
			t.Errorf("expected call timeout 5s, got %v", config.Migration.CallTimeout)
		}
		if config.Migration.RequestsPerSecond != 5.0 {
			t.Errorf("unset keys should keep defaults, got requests_per_second %v", config.Migration.RequestsPerSecond)
		}
		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.APIBaseURL != "https://api.spotify.com/v1" {
			t.Errorf("unset api_base_url should keep default, got %s", config.Credentials.Spotify.APIBaseURL)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Server.Port = 4242

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Server.Port != 4242 {
			t.Errorf("expected port 4242, got %d", loaded.Server.Port)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Database.Driver = DriverPostgres }},
		{name: "sqlite without path", mutate: func(c *Config) { c.Database.Path = "" }},
		{name: "zero timeout", mutate: func(c *Config) { c.Migration.CallTimeout = 0 }},
		{name: "search limit too large", mutate: func(c *Config) { c.Migration.SearchLimit = 51 }},
		{name: "search limit zero", mutate: func(c *Config) { c.Migration.SearchLimit = 0 }},
		{name: "zero rate", mutate: func(c *Config) { c.Migration.RequestsPerSecond = 0 }},
		{name: "negative retries", mutate: func(c *Config) { c.Migration.Retries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestResolveSecret(t *testing.T) {
	keyring.MockInit()

	t.Run("config value wins", func(t *testing.T) {
		cfg := ServiceConfig{ClientSecret: "from-config"}
		secret, err := cfg.ResolveSecret("spotify")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if secret != "from-config" {
			t.Errorf("expected from-config, got %s", secret)
		}
	})

	t.Run("falls back to keychain", func(t *testing.T) {
		if err := StoreSecret("youtube", "from-keychain"); err != nil {
			t.Fatalf("failed to store secret: %v", err)
		}

		secret, err := ServiceConfig{}.ResolveSecret("youtube")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if secret != "from-keychain" {
			t.Errorf("expected from-keychain, got %s", secret)
		}

		if err := DeleteSecret("youtube"); err != nil {
			t.Fatalf("failed to delete secret: %v", err)
		}
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := ServiceConfig{}.ResolveSecret("nothing")
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("empty secret rejected", func(t *testing.T) {
		if err := StoreSecret("spotify", ""); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("deleting missing secret is not an error", func(t *testing.T) {
		if err := DeleteSecret("never-stored"); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}
