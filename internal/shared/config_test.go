package shared

import (
	"errors"
	"os"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./tmp/sputnik/registry.db" {
			t.Errorf("expected database path ./tmp/sputnik/registry.db, got %s", config.Database.Path)
		}

		if config.Acquisition.Workers != 4 {
			t.Errorf("expected 4 acquisition workers, got %d", config.Acquisition.Workers)
		}

		if config.CatalogB.ProxyURL != "http://localhost:8080" {
			t.Errorf("expected catalog B proxy URL http://localhost:8080, got %s", config.CatalogB.ProxyURL)
		}

		if config.CatalogA.ClientID != "your_spotify_client_id" {
			t.Errorf("expected catalogA clientId your_spotify_client_id, got %s", config.CatalogA.ClientID)
		}

		if len(config.Lyrics.Providers) != 3 {
			t.Errorf("expected 3 lyrics providers, got %d", len(config.Lyrics.Providers))
		}
	})

	t.Run("LoadConfig rejects missing required keys", func(t *testing.T) {
		dir := t.TempDir()
		path := dir + "/config.yaml"
		if err := os.WriteFile(path, []byte("output:\n  directory: /tmp\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(path)
		if err == nil {
			t.Fatal("expected error for missing catalogA.clientId")
		}

		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected *ConfigError, got %T: %v", err, err)
		}
		if cfgErr.Path != "catalogA.clientId" {
			t.Errorf("expected offending path catalogA.clientId, got %s", cfgErr.Path)
		}
	})
}
