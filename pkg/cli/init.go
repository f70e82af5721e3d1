package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) newInitCmd() *cobra.Command {
	var force bool
	var format string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter atlaspack configuration",
		Long: `Write a starter configuration to the project root. The starter config
packs src/main/sprites into build/resources as "pack".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(format, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")
	cmd.Flags().StringVar(&format, "format", "yaml", "config file format (yaml, json)")

	return cmd
}

func (c *CLI) runInit(format string, force bool) error {
	path := c.config.ConfigFile
	if path == "" {
		switch strings.ToLower(format) {
		case "yaml", "yml":
			path = filepath.Join(c.config.ProjectRoot, "atlaspack.yaml")
		case "json":
			path = filepath.Join(c.config.ProjectRoot, "atlaspack.json")
		default:
			return fmt.Errorf("unsupported format: %s", format)
		}
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s. Use --force to overwrite", path)
	}

	cfg := c.manager.GetDefaultConfig()
	if err := c.manager.SaveConfig(path, cfg); err != nil {
		return err
	}

	c.printSuccess(fmt.Sprintf("Created configuration at %s", path))
	target := cfg.Targets[0]
	if _, err := os.Stat(filepath.Join(c.config.ProjectRoot, target.AssetFolder)); os.IsNotExist(err) {
		c.printInfo(fmt.Sprintf("Put your sprites in %s, then run 'atlaspack pack'", target.AssetFolder))
	}
	return nil
}
