package interpose

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "info" || cfg.Log.File != "" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
	if exp := filepath.Join(dir, "interpose-crash.txt"); cfg.Report.Path != exp {
		t.Fatalf("expected report path %s - got %s", exp, cfg.Report.Path)
	}
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`
[log]
level = "debug"
file = "interpose.log"

[report]
path = "/tmp/crash.txt"
`)
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug - got %s", cfg.Log.Level)
	}
	if exp := filepath.Join(dir, "interpose.log"); cfg.Log.File != exp {
		t.Fatalf("expected %s - got %s", exp, cfg.Log.File)
	}
	if cfg.Report.Path != "/tmp/crash.txt" {
		t.Fatalf("expected /tmp/crash.txt - got %s", cfg.Report.Path)
	}
	if cfg.Dir != dir {
		t.Fatalf("expected dir %s - got %s", dir, cfg.Dir)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("[log\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	if _, err := NewLogger(LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
