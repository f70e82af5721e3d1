package cli

import (
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the global CLI settings resolved from flags, environment
// and defaults
type Config struct {
	ConfigFile  string
	ProjectRoot string
	Verbosity   string
	Version     string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		ProjectRoot: ".",
	}
}

// resolve fills c from v, where flags and ATLASPACK_ variables are bound
func (c *Config) resolve(v *viper.Viper) {
	c.ConfigFile = v.GetString("config")
	c.ProjectRoot = v.GetString("root")
	c.Verbosity = v.GetString("verbosity")
	if c.ProjectRoot == "" {
		c.ProjectRoot = "."
	}
	if abs, err := filepath.Abs(c.ProjectRoot); err == nil {
		c.ProjectRoot = abs
	}
}
