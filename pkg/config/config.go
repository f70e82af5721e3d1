// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poltergeist/atlaspack/pkg/types"
	"gopkg.in/yaml.v3"
)

// Version is the only supported configuration version
const Version = "1.0"

// FileNames are the configuration files looked up in a project root, in
// order of preference
var FileNames = []string{"atlaspack.yaml", "atlaspack.yml", "atlaspack.json"}

// ErrConfigNotFound is returned when a project root has no config file
var ErrConfigNotFound = errors.New("no atlaspack configuration found")

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// FindConfig returns the path of the configuration file in root
func (m *Manager) FindConfig(root string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(root, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrConfigNotFound, root)
}

// LoadConfig loads and validates configuration from a file. JSON is tried
// first, then YAML.
func (m *Manager) LoadConfig(path string) (*types.AtlaspackConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := m.ParseConfig(data)
	if err != nil {
		return nil, err
	}
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes configuration without validating it
func (m *Manager) ParseConfig(data []byte) (*types.AtlaspackConfig, error) {
	var cfg types.AtlaspackConfig
	jsonErr := json.Unmarshal(data, &cfg)
	if jsonErr == nil {
		return &cfg, nil
	}

	cfg = types.AtlaspackConfig{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config as JSON or YAML: %w", err)
	}
	return &cfg, nil
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(config *types.AtlaspackConfig) error {
	if config.Version != Version {
		return fmt.Errorf("unsupported config version: %s", config.Version)
	}

	if len(config.Targets) == 0 {
		return fmt.Errorf("no targets defined")
	}

	targetNames := make(map[string]bool)
	for i := range config.Targets {
		target := &config.Targets[i]
		if strings.TrimSpace(target.Name) == "" {
			return fmt.Errorf("target %d: missing name", i)
		}
		if targetNames[target.Name] {
			return fmt.Errorf("duplicate target name: %s", target.Name)
		}
		targetNames[target.Name] = true

		if target.SettlingDelay != nil && *target.SettlingDelay < 0 {
			return fmt.Errorf("target '%s': settlingDelay must not be negative", target.Name)
		}
		if strings.ContainsAny(target.PackName, `/\`) {
			return fmt.Errorf("target '%s': packName must not contain path separators", target.Name)
		}
	}

	if config.Parallelization < 0 {
		return fmt.Errorf("parallelization must not be negative")
	}

	if config.Logging != nil && config.Logging.Level != "" {
		switch config.Logging.Level {
		case types.LogLevelDebug, types.LogLevelInfo, types.LogLevelWarn, types.LogLevelError:
		default:
			return fmt.Errorf("invalid log level: %s", config.Logging.Level)
		}
	}

	return nil
}

// GetDefaultConfig returns the starter configuration written by init
func (m *Manager) GetDefaultConfig() *types.AtlaspackConfig {
	enabled := false
	delay := types.DefaultSettlingDelay

	return &types.AtlaspackConfig{
		Version: Version,
		Targets: []types.PackTarget{
			{
				Name:            "sprites",
				AssetFolder:     "src/main/sprites",
				OutputDirectory: "build/resources",
				PackName:        "pack",
				SettlingDelay:   &delay,
				Packer: types.Overrides{
					"maxWidth":  "1024",
					"maxHeight": "1024",
					"filterMin": "Nearest",
					"filterMag": "Nearest",
				},
			},
		},
		Parallelization: 2,
		Notifications: &types.NotificationConfig{
			Enabled: &enabled,
		},
		Logging: &types.LoggingConfig{
			Level: types.LogLevelInfo,
		},
	}
}

// SaveConfig writes config to path, as JSON when path ends in .json and as
// YAML otherwise
func (m *Manager) SaveConfig(path string, config *types.AtlaspackConfig) error {
	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(config, "", "  ")
	} else {
		data, err = yaml.Marshal(config)
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
