// Package cli provides the command-line interface for atlaspack
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/poltergeist/atlaspack/pkg/config"
	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CLI holds the command tree and its output streams, so commands can run
// in tests without global state
type CLI struct {
	config   *Config
	viper    *viper.Viper
	rootCmd  *cobra.Command
	manager  *config.Manager
	output   io.Writer
	errorOut io.Writer
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	c := &CLI{
		config:   cfg,
		viper:    viper.New(),
		manager:  config.NewManager(),
		output:   os.Stdout,
		errorOut: os.Stderr,
	}

	c.setupCommands()
	return c
}

// NewCLIWithOutput creates a CLI with custom output writers
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	c := NewCLI(cfg)
	c.output = output
	c.errorOut = errorOut
	c.rootCmd.SetOut(output)
	c.rootCmd.SetErr(errorOut)
	return c
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

// Execute runs the atlaspack command line with os.Args
func Execute(version string) error {
	cfg := NewConfig()
	cfg.Version = version
	c := NewCLI(cfg)
	return c.rootCmd.Execute()
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "atlaspack",
		Short: "Pack sprite folders into texture atlases",
		Long: `📦 atlaspack - texture atlas packing for asset folders

atlaspack packs the images of each configured asset folder into texture
atlas pages plus a .atlas description. Packer settings come from the
configuration file and --set flags and are applied to the packer's
settings by name.`,

		SilenceUsage:      true,
		PersistentPreRunE: c.initializeConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("📦 atlaspack v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newPackCmd())
	c.rootCmd.AddCommand(c.newWatchCmd())
	c.rootCmd.AddCommand(c.newInitCmd())
	c.rootCmd.AddCommand(c.newStatusCmd())
	c.rootCmd.AddCommand(c.newListCmd())
	c.rootCmd.AddCommand(c.newCleanCmd())
	c.rootCmd.AddCommand(c.newLogsCmd())
	c.rootCmd.AddCommand(c.newValidateCmd())
	c.rootCmd.AddCommand(c.newSettingsCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.String("config", c.config.ConfigFile, "config file (default: atlaspack.yaml in the project root)")
	flags.String("root", c.config.ProjectRoot, "project root directory")
	flags.StringP("verbosity", "v", c.config.Verbosity, "log level (debug, info, warn, error)")

	for _, name := range []string{"config", "root", "verbosity"} {
		_ = c.viper.BindPFlag(name, flags.Lookup(name))
	}
	c.viper.SetEnvPrefix("ATLASPACK")
	c.viper.AutomaticEnv()
}

func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	c.config.resolve(c.viper)

	if c.config.ConfigFile == "" {
		if path, err := c.manager.FindConfig(c.config.ProjectRoot); err == nil {
			c.config.ConfigFile = path
		}
	}
	if c.config.Verbosity == "debug" && c.config.ConfigFile != "" {
		fmt.Fprintln(c.output, "Using config file:", c.config.ConfigFile)
	}
	return nil
}

// configPath returns the config file in use, or where init writes one
func (c *CLI) configPath() string {
	if c.config.ConfigFile != "" {
		return c.config.ConfigFile
	}
	return filepath.Join(c.config.ProjectRoot, config.FileNames[0])
}

// loadConfig loads the project configuration
func (c *CLI) loadConfig() (*types.AtlaspackConfig, error) {
	path := c.configPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w in %s; run 'atlaspack init' to create one", config.ErrConfigNotFound, c.config.ProjectRoot)
	}
	cfg, err := c.manager.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger creates the command logger. The verbosity flag wins over the
// config file's logging level.
func (c *CLI) newLogger(cfg *types.AtlaspackConfig) logger.Logger {
	level, file := c.config.Verbosity, ""
	if cfg != nil && cfg.Logging != nil {
		if level == "" {
			level = string(cfg.Logging.Level)
		}
		file = cfg.Logging.File
		if file != "" && !filepath.IsAbs(file) {
			file = filepath.Join(c.config.ProjectRoot, file)
		}
	}
	if level == "" {
		level = string(types.LogLevelInfo)
	}
	return logger.CreateLoggerWithOutput(file, level, c.output)
}

// Helper functions

func (c *CLI) printSuccess(message string) {
	fmt.Fprintf(c.output, "📦 %s %s\n", color.GreenString("[atlaspack]"), message)
}

func (c *CLI) printError(message string) {
	fmt.Fprintf(c.errorOut, "📦 %s %s\n", color.RedString("[atlaspack]"), message)
}

func (c *CLI) printInfo(message string) {
	fmt.Fprintf(c.output, "📦 %s %s\n", color.CyanString("[atlaspack]"), message)
}

func (c *CLI) printWarning(message string) {
	fmt.Fprintf(c.output, "📦 %s %s\n", color.YellowString("[atlaspack]"), message)
}
