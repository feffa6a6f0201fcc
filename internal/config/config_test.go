package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/facumancuso/minoil/internal/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default("/tmp/ws")
	if cfg.Server.Addr != ":8080" || cfg.Server.BasePath != "/v0" {
		t.Fatalf("server defaults = %+v", cfg.Server)
	}
	if cfg.Backup.Keep != 30 {
		t.Fatalf("backup keep = %d, want 30", cfg.Backup.Keep)
	}
	if cfg.Backup.Dir != filepath.Join("/tmp/ws", ".minoil", "backups") {
		t.Fatalf("backup dir = %s", cfg.Backup.Dir)
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	data := []byte("server:\n  addr: \":9999\"\nbackup:\n  keep: 5\n")
	cfg, err := config.FromYAML(data, ".")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("addr = %s", cfg.Server.Addr)
	}
	if cfg.Server.BasePath != "/v0" {
		t.Fatalf("unset field lost its default: %s", cfg.Server.BasePath)
	}
	if cfg.Backup.Keep != 5 {
		t.Fatalf("keep = %d", cfg.Backup.Keep)
	}
}

func TestFromYAMLRejectsNegativeKeep(t *testing.T) {
	if _, err := config.FromYAML([]byte("backup:\n  keep: -1\n"), "."); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadOptional(t *testing.T) {
	ws := t.TempDir()
	cfg, err := config.LoadOptional(ws)
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %s", cfg.Server.Addr)
	}

	if err := os.WriteFile(config.Path(ws), []byte("server:\n  addr: \":7070\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = config.LoadOptional(ws)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("addr = %s, want value from minoil.yml", cfg.Server.Addr)
	}
}
