package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/poltergeist/atlaspack/internal/engine"
	"github.com/poltergeist/atlaspack/pkg/interfaces"
	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/pack"
	"github.com/poltergeist/atlaspack/pkg/types"
	"github.com/spf13/cobra"
)

func (c *CLI) newPackCmd() *cobra.Command {
	var sets []string
	var strict bool

	cmd := &cobra.Command{
		Use:   "pack [target...]",
		Short: "Pack targets once",
		Long: `Pack every enabled target, or the named targets, once.

--set key=value overrides a packer setting for every selected target on
top of the configuration file. With --strict, settings that cannot be
applied fail the command before anything is packed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseSets(sets)
			if err != nil {
				return err
			}
			return c.runPack(cmd, args, overrides, strict)
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "packer setting as key=value (repeatable)")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when a packer setting cannot be applied")

	return cmd
}

// parseSets turns key=value flags into overrides; later flags win
func parseSets(sets []string) (map[string]string, error) {
	overrides := make(map[string]string, len(sets))
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", s)
		}
		overrides[key] = value
	}
	return overrides, nil
}

func (c *CLI) runPack(cmd *cobra.Command, names []string, overrides map[string]string, strict bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	targets, err := cfg.SelectTargets(names)
	if err != nil {
		return err
	}
	applyOverrides(targets, overrides)

	if strict {
		if err := checkSettings(targets); err != nil {
			return err
		}
	}

	log := c.newLogger(cfg)
	deps := engine.NewDependencyFactory(c.config.ProjectRoot, log, cfg).CreateDefaults()
	defer closeWatcher(deps)

	runner := engine.New(cfg, c.config.ProjectRoot, log, deps, c.configPath())
	results, err := runner.PackOnce(cmd.Context(), names)
	c.printResults(results)
	return err
}

// applyOverrides layers flag overrides over each target's config settings
func applyOverrides(targets []*types.PackTarget, overrides map[string]string) {
	if len(overrides) == 0 {
		return
	}
	for _, target := range targets {
		target.Packer = target.Packer.Merge(overrides)
	}
}

// checkSettings applies every target's settings without packing and fails
// on the first target with problems
func checkSettings(targets []*types.PackTarget) error {
	invoker := pack.NewInvoker(nil, nil, logger.CreateLoggerWithOutput("", "error", io.Discard))
	for _, target := range targets {
		_, report, err := invoker.Settings(target.Packer)
		if err != nil {
			return err
		}
		if err := report.Err(); err != nil {
			return fmt.Errorf("target '%s': %w", target.Name, err)
		}
	}
	return nil
}

func (c *CLI) printResults(results []engine.TargetResult) {
	for _, res := range results {
		switch {
		case res.Failed():
			c.printError(fmt.Sprintf("%s failed: %v", res.Target, res.Err))
		case res.Skipped():
			c.printWarning(fmt.Sprintf("%s skipped: asset folder not found", res.Target))
		default:
			msg := fmt.Sprintf("%s packed", res.Target)
			if res.Result != nil && res.Result.Report.HasWarnings() {
				msg += fmt.Sprintf(" with %d setting warning(s)", len(res.Result.Report.Warnings))
			}
			c.printSuccess(msg)
		}
	}
}

func closeWatcher(deps interfaces.AtlaspackDependencies) {
	if deps.FileWatcher != nil {
		deps.FileWatcher.Close()
	}
}
