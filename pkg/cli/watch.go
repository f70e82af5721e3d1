package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poltergeist/atlaspack/internal/engine"
	"github.com/spf13/cobra"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [target]",
		Short: "Pack targets and re-pack them when images change",
		Long: `Start atlaspack in watch mode. Every enabled target (or the named one) is
packed, then packed again whenever images under its asset folder change.
Changes are batched until the target's settling delay passes without
further events. Edits to the configuration file are picked up live.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName := ""
			if len(args) > 0 {
				targetName = args[0]
			}
			return c.runWatch(cmd.Context(), targetName)
		},
	}
}

func (c *CLI) runWatch(parent context.Context, targetName string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	log := c.newLogger(cfg)
	deps := engine.NewDependencyFactory(c.config.ProjectRoot, log, cfg).CreateDefaults()
	runner := engine.New(cfg, c.config.ProjectRoot, log, deps, c.configPath())

	if targetName != "" {
		c.printInfo(fmt.Sprintf("Watching target: %s", targetName))
	} else {
		c.printInfo("Watching all enabled targets")
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := runner.Start(ctx, targetName); err != nil {
		closeWatcher(deps)
		return fmt.Errorf("failed to start: %w", err)
	}

	<-ctx.Done()
	c.printInfo("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	runner.StopWithContext(shutdownCtx)

	if err := runner.Cleanup(); err != nil {
		c.printWarning(fmt.Sprintf("Cleanup error: %v", err))
	}

	c.printSuccess("atlaspack stopped")
	return nil
}
