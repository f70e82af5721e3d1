package config_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poltergeist/atlaspack/pkg/config"
	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "atlaspack.json")
	writeFile(t, configPath, `{
		"version": "1.0",
		"targets": [
			{
				"name": "sprites",
				"assetFolder": "assets/sprites",
				"packer": {"maxWidth": 2048, "filterMin": "Linear", "scale": [1, 0.5]}
			}
		],
		"parallelization": 3
	}`)

	cfg, err := config.NewManager().LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Version != "1.0" {
		t.Errorf("expected version 1.0, got %s", cfg.Version)
	}
	if cfg.Parallelization != 3 {
		t.Errorf("expected parallelization 3, got %d", cfg.Parallelization)
	}
	if len(cfg.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(cfg.Targets))
	}
	target := cfg.Targets[0]
	if target.AssetFolder != "assets/sprites" {
		t.Errorf("unexpected asset folder %s", target.AssetFolder)
	}
	if target.Packer["maxWidth"] != "2048" || target.Packer["scale"] != "1,0.5" {
		t.Errorf("unexpected packer overrides %v", target.Packer)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "atlaspack.yaml")
	writeFile(t, configPath, `
version: "1.0"
targets:
  - name: sprites
    packer:
      maxWidth: 2048
      filterMin: Linear
  - name: ui
    enabled: false
    settlingDelay: 50
notifications:
  enabled: true
logging:
  level: debug
`)

	cfg, err := config.NewManager().LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load YAML config: %v", err)
	}

	if len(cfg.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(cfg.Targets))
	}
	if cfg.Targets[0].Packer["maxWidth"] != "2048" {
		t.Errorf("expected maxWidth override, got %v", cfg.Targets[0].Packer)
	}
	if cfg.Targets[1].IsEnabled() {
		t.Error("expected ui target to be disabled")
	}
	if cfg.Targets[1].GetSettlingDelay() != 50 {
		t.Errorf("expected settling delay 50, got %d", cfg.Targets[1].GetSettlingDelay())
	}
	if !cfg.NotificationsEnabled() {
		t.Error("expected notifications to be enabled")
	}
	if cfg.Logging.Level != types.LogLevelDebug {
		t.Errorf("expected debug log level, got %s", cfg.Logging.Level)
	}
}

func TestValidateConfig(t *testing.T) {
	manager := config.NewManager()
	negative := -1

	tests := []struct {
		name    string
		config  types.AtlaspackConfig
		wantErr string
	}{
		{
			name:   "valid",
			config: types.AtlaspackConfig{Version: "1.0", Targets: []types.PackTarget{{Name: "sprites"}}},
		},
		{
			name:    "wrong version",
			config:  types.AtlaspackConfig{Version: "2.0", Targets: []types.PackTarget{{Name: "sprites"}}},
			wantErr: "unsupported config version",
		},
		{
			name:    "no targets",
			config:  types.AtlaspackConfig{Version: "1.0"},
			wantErr: "no targets defined",
		},
		{
			name:    "missing name",
			config:  types.AtlaspackConfig{Version: "1.0", Targets: []types.PackTarget{{Name: " "}}},
			wantErr: "missing name",
		},
		{
			name: "duplicate names",
			config: types.AtlaspackConfig{Version: "1.0", Targets: []types.PackTarget{
				{Name: "sprites"}, {Name: "sprites"},
			}},
			wantErr: "duplicate target name",
		},
		{
			name:    "negative settling delay",
			config:  types.AtlaspackConfig{Version: "1.0", Targets: []types.PackTarget{{Name: "a", SettlingDelay: &negative}}},
			wantErr: "settlingDelay",
		},
		{
			name:    "pack name with separator",
			config:  types.AtlaspackConfig{Version: "1.0", Targets: []types.PackTarget{{Name: "a", PackName: "ui/pack"}}},
			wantErr: "packName",
		},
		{
			name:    "negative parallelization",
			config:  types.AtlaspackConfig{Version: "1.0", Targets: []types.PackTarget{{Name: "a"}}, Parallelization: -2},
			wantErr: "parallelization",
		},
		{
			name: "bad log level",
			config: types.AtlaspackConfig{Version: "1.0", Targets: []types.PackTarget{{Name: "a"}},
				Logging: &types.LoggingConfig{Level: "loud"}},
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := manager.ValidateConfig(&tt.config)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	manager := config.NewManager()

	if _, err := manager.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	configPath := filepath.Join(t.TempDir(), "atlaspack.yaml")
	writeFile(t, configPath, "version: [unterminated")
	if _, err := manager.LoadConfig(configPath); err == nil {
		t.Error("expected error for malformed file")
	}

	writeFile(t, configPath, `{"version": "1.0", "targets": [{"name": "a", "packer": {"grid": {"on": true}}}]}`)
	if _, err := manager.LoadConfig(configPath); err == nil {
		t.Error("expected error for nested packer value")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	manager := config.NewManager()
	dir := t.TempDir()

	for _, name := range []string{"atlaspack.yaml", "atlaspack.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := manager.SaveConfig(path, manager.GetDefaultConfig()); err != nil {
				t.Fatalf("failed to save: %v", err)
			}
			cfg, err := manager.LoadConfig(path)
			if err != nil {
				t.Fatalf("failed to load saved config: %v", err)
			}
			if cfg.Targets[0].Name != "sprites" || cfg.Targets[0].Packer["maxWidth"] != "1024" {
				t.Errorf("unexpected config after save: %+v", cfg.Targets[0])
			}
		})
	}
}

func TestFindConfig(t *testing.T) {
	manager := config.NewManager()
	dir := t.TempDir()

	if _, err := manager.FindConfig(dir); !errors.Is(err, config.ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}

	writeFile(t, filepath.Join(dir, "atlaspack.json"), "{}")
	writeFile(t, filepath.Join(dir, "atlaspack.yaml"), "")
	path, err := manager.FindConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "atlaspack.yaml" {
		t.Errorf("expected yaml to take precedence, got %s", path)
	}
}

func TestReloadManager(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "atlaspack.yaml")
	writeFile(t, configPath, "version: \"1.0\"\ntargets:\n  - name: sprites\n")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(configPath, past, past); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	rm := config.NewReloadManager(configPath, logger.CreateLoggerWithOutput("", "debug", &buf))
	rm.SetDebouncePeriod(20 * time.Millisecond)

	reloaded := make(chan *types.AtlaspackConfig, 4)
	rm.AddCallback(func(cfg *types.AtlaspackConfig, err error) {
		if err == nil {
			reloaded <- cfg
		}
	})

	if err := rm.StartWatching(); err != nil {
		t.Fatalf("failed to start watching: %v", err)
	}
	defer rm.StopWatching()
	if !rm.IsWatching() {
		t.Fatal("expected manager to be watching")
	}
	if err := rm.StartWatching(); err == nil {
		t.Error("expected error when starting twice")
	}

	writeFile(t, configPath, "version: \"1.0\"\ntargets:\n  - name: sprites\n  - name: ui\n")

	select {
	case cfg := <-reloaded:
		if len(cfg.Targets) != 2 {
			t.Errorf("expected 2 targets after reload, got %d", len(cfg.Targets))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	if err := rm.StopWatching(); err != nil {
		t.Errorf("failed to stop watching: %v", err)
	}
	if rm.IsWatching() {
		t.Error("expected manager to have stopped")
	}
}
