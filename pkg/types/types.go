// Package types provides the configuration and status types shared by
// atlaspack packages
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSettlingDelay is the watch debounce in milliseconds
const DefaultSettlingDelay = 200

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// BuildStatus represents the outcome of the last pack of a target
type BuildStatus string

const (
	BuildStatusIdle      BuildStatus = "idle"
	BuildStatusPacking   BuildStatus = "packing"
	BuildStatusSucceeded BuildStatus = "succeeded"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusSkipped   BuildStatus = "skipped"
	BuildStatusCancelled BuildStatus = "cancelled"
)

// Overrides are raw packer settings keyed by settings field name. Config
// files may use any scalar or a list of scalars as a value; lists are
// joined with commas.
type Overrides map[string]string

// Merge returns a copy of o with other applied on top
func (o Overrides) Merge(other map[string]string) Overrides {
	out := make(Overrides, len(o)+len(other))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// UnmarshalJSON accepts strings, numbers, booleans and arrays of those
func (o *Overrides) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := make(Overrides, len(raw))
	for k, v := range raw {
		s, err := jsonScalar(v)
		if err != nil {
			return fmt.Errorf("packer setting %q: %w", k, err)
		}
		out[k] = s
	}
	*o = out
	return nil
}

func jsonScalar(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			if _, nested := item.([]interface{}); nested {
				return "", fmt.Errorf("nested lists are not supported")
			}
			s, err := jsonScalar(item)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ","), nil
	}
	return "", fmt.Errorf("unsupported value %v", v)
}

// UnmarshalYAML accepts a mapping of scalars or sequences of scalars
func (o *Overrides) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: packer settings must be a mapping", value.Line)
	}
	out := make(Overrides, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, node := value.Content[i].Value, value.Content[i+1]
		switch node.Kind {
		case yaml.ScalarNode:
			out[key] = yamlScalar(node)
		case yaml.SequenceNode:
			parts := make([]string, len(node.Content))
			for j, item := range node.Content {
				if item.Kind != yaml.ScalarNode {
					return fmt.Errorf("line %d: packer setting %q: lists may only hold scalars", item.Line, key)
				}
				parts[j] = yamlScalar(item)
			}
			out[key] = strings.Join(parts, ",")
		default:
			return fmt.Errorf("line %d: packer setting %q must be a scalar or a list", node.Line, key)
		}
	}
	*o = out
	return nil
}

func yamlScalar(node *yaml.Node) string {
	if node.Tag == "!!null" {
		return ""
	}
	return node.Value
}

// PackTarget is one configured atlas: an asset folder packed into an
// output directory under a pack name
type PackTarget struct {
	Name            string    `json:"name" yaml:"name"`
	AssetFolder     string    `json:"assetFolder,omitempty" yaml:"assetFolder,omitempty"`
	OutputDirectory string    `json:"outputDirectory,omitempty" yaml:"outputDirectory,omitempty"`
	PackName        string    `json:"packName,omitempty" yaml:"packName,omitempty"`
	Enabled         *bool     `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	SettlingDelay   *int      `json:"settlingDelay,omitempty" yaml:"settlingDelay,omitempty"`
	Packer          Overrides `json:"packer,omitempty" yaml:"packer,omitempty"`
}

func (t *PackTarget) GetName() string { return t.Name }
func (t *PackTarget) IsEnabled() bool { return t.Enabled == nil || *t.Enabled }

// GetSettlingDelay returns the watch debounce in milliseconds
func (t *PackTarget) GetSettlingDelay() int {
	if t.SettlingDelay == nil {
		return DefaultSettlingDelay
	}
	return *t.SettlingDelay
}

// NotificationConfig represents notification preferences
type NotificationConfig struct {
	Enabled      *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	SuccessSound string `json:"successSound,omitempty" yaml:"successSound,omitempty"`
	FailureSound string `json:"failureSound,omitempty" yaml:"failureSound,omitempty"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	File  string   `json:"file" yaml:"file"`
	Level LogLevel `json:"level" yaml:"level"`
}

// AtlaspackConfig represents the main configuration
type AtlaspackConfig struct {
	Version         string              `json:"version" yaml:"version"`
	Targets         []PackTarget        `json:"targets" yaml:"targets"`
	Parallelization int                 `json:"parallelization,omitempty" yaml:"parallelization,omitempty"`
	Notifications   *NotificationConfig `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	Logging         *LoggingConfig      `json:"logging,omitempty" yaml:"logging,omitempty"`
	// WatchExclude holds glob patterns, relative to each asset folder,
	// whose changes never trigger a pack in watch mode
	WatchExclude []string `json:"watchExclude,omitempty" yaml:"watchExclude,omitempty"`
}

// FindTarget returns the target with the given name
func (c *AtlaspackConfig) FindTarget(name string) (*PackTarget, bool) {
	for i := range c.Targets {
		if c.Targets[i].Name == name {
			return &c.Targets[i], true
		}
	}
	return nil, false
}

// EnabledTargets returns the targets that are not disabled
func (c *AtlaspackConfig) EnabledTargets() []*PackTarget {
	var out []*PackTarget
	for i := range c.Targets {
		if c.Targets[i].IsEnabled() {
			out = append(out, &c.Targets[i])
		}
	}
	return out
}

// SelectTargets returns the named targets, or every enabled target when no
// names are given
func (c *AtlaspackConfig) SelectTargets(names []string) ([]*PackTarget, error) {
	if len(names) == 0 {
		return c.EnabledTargets(), nil
	}
	out := make([]*PackTarget, 0, len(names))
	for _, name := range names {
		target, ok := c.FindTarget(name)
		if !ok {
			return nil, fmt.Errorf("target not found: %s", name)
		}
		out = append(out, target)
	}
	return out, nil
}

// NotificationsEnabled reports whether desktop notifications are on
func (c *AtlaspackConfig) NotificationsEnabled() bool {
	return c.Notifications != nil && c.Notifications.Enabled != nil && *c.Notifications.Enabled
}
