package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	conf, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if conf.DataPath != "./data" || conf.LogLevel != "info" || conf.Workers != 4 {
		t.Fatalf("unexpected defaults: %+v", conf)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "dataPath: /var/lib/sealchat\nlogLevel: debug\nworkers: 8\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	conf, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if conf.DataPath != "/var/lib/sealchat" {
		t.Fatalf("dataPath = %q", conf.DataPath)
	}
	if conf.LogLevel != "debug" || conf.Workers != 8 {
		t.Fatalf("overrides not applied: %+v", conf)
	}
	if conf.MinimumFreeGB != 1 {
		t.Fatalf("default not filled: %+v", conf)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("dataPath: [broken"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed YAML accepted")
	}
}
