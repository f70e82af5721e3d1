package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"text/tabwriter"
	"unsafe"

	"github.com/fatih/color"
	"github.com/poltergeist/atlaspack/pkg/builders"
	"github.com/poltergeist/atlaspack/pkg/inject"
	"github.com/poltergeist/atlaspack/pkg/pack"
	"github.com/poltergeist/atlaspack/pkg/state"
	"github.com/poltergeist/atlaspack/pkg/texturepacker"
	"github.com/poltergeist/atlaspack/pkg/types"
	"github.com/poltergeist/atlaspack/pkg/validation"
	"github.com/spf13/cobra"
)

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show status of all targets",
		Long:  `Display the last pack result of every target, including when it ran and what it produced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus()
		},
	}
}

func (c *CLI) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured targets",
		Long:  `List all targets defined in the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runList()
		},
	}
}

func (c *CLI) newCleanCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clean [target...]",
		Short: "Remove packed atlases",
		Long: `Remove the atlas and page files recorded by the last successful pack.
With --all the target's state file is removed as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runClean(args, all)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "also remove state files")
	return cmd
}

func (c *CLI) newLogsCmd() *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "logs [target]",
		Short: "Show pack logs",
		Long:  `Display the pack logs of all targets or a specific target.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName := ""
			if len(args) > 0 {
				targetName = args[0]
			}
			return c.runLogs(targetName, lines)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")
	return cmd
}

func (c *CLI) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Check the configuration file and apply every target's packer settings
without packing, reporting settings that are unknown or cannot be parsed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate()
		},
	}
}

func (c *CLI) newSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "List the packer settings",
		Long:  `Print every packer setting that can be set in a target's packer map or with --set, with its type and default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.runSettings()
			return nil
		},
	}
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of atlaspack",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.output, "📦 atlaspack v%s\n", c.config.Version)
		},
	}
}

// Implementation functions

func (c *CLI) runStatus() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	sm := state.NewStateManager(c.config.ProjectRoot, nil)
	states, err := sm.DiscoverStates()
	if err != nil {
		return fmt.Errorf("failed to discover states: %w", err)
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tSTATUS\tLAST PACK\tPACKS\tFAILURES\tOUTPUTS")
	fmt.Fprintln(w, "------\t------\t---------\t-----\t--------\t-------")

	for _, target := range cfg.Targets {
		status := string(types.BuildStatusIdle)
		lastPack := "-"
		packs, failures, outputs := 0, 0, 0

		if s, ok := states[target.Name]; ok {
			status = string(s.BuildStatus)
			if !s.LastBuildTime.IsZero() {
				lastPack = s.LastBuildTime.Format("2006-01-02 15:04:05")
			}
			packs, failures, outputs = s.BuildCount, s.FailureCount, len(s.Outputs)
		}
		if !target.IsEnabled() {
			status = "disabled"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			target.Name, colorStatus(status), lastPack, packs, failures, outputs)
	}
	w.Flush()

	for _, target := range cfg.Targets {
		if s, ok := states[target.Name]; ok && s.BuildStatus == types.BuildStatusFailed && s.LastError != "" {
			c.printError(fmt.Sprintf("%s: %s", target.Name, s.LastError))
		}
	}
	return nil
}

func colorStatus(status string) string {
	switch types.BuildStatus(status) {
	case types.BuildStatusSucceeded:
		return color.GreenString(status)
	case types.BuildStatusFailed:
		return color.RedString(status)
	case types.BuildStatusPacking:
		return color.YellowString(status)
	case types.BuildStatusSkipped, types.BuildStatusCancelled:
		return color.HiBlackString(status)
	}
	return color.WhiteString(status)
}

func (c *CLI) runList() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tENABLED\tASSET FOLDER\tOUTPUT\tPACK\tSETTINGS")
	fmt.Fprintln(w, "----\t-------\t------------\t------\t----\t--------")

	for _, target := range cfg.Targets {
		enabled := "✓"
		if !target.IsEnabled() {
			enabled = "✗"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			target.Name,
			enabled,
			orDefault(target.AssetFolder, pack.DefaultAssetFolder),
			orDefault(target.OutputDirectory, pack.DefaultOutputDirectory),
			orDefault(target.PackName, pack.DefaultPackName),
			len(target.Packer),
		)
	}
	return w.Flush()
}

func (c *CLI) runClean(names []string, all bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	targets := make([]*types.PackTarget, 0, len(cfg.Targets))
	if len(names) == 0 {
		for i := range cfg.Targets {
			targets = append(targets, &cfg.Targets[i])
		}
	} else if targets, err = cfg.SelectTargets(names); err != nil {
		return err
	}

	log := c.newLogger(cfg)
	sm := state.NewStateManager(c.config.ProjectRoot, log)
	factory := builders.NewBuilderFactory(nil, nil)

	var errs []error
	for _, target := range targets {
		if _, err := sm.ReadState(target.Name); err != nil {
			continue
		}
		builder := factory.CreateBuilder(target, c.config.ProjectRoot, log, sm)
		if err := builder.Clean(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target.Name, err))
			continue
		}
		if all {
			if err := sm.RemoveState(target.Name); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		c.printSuccess(fmt.Sprintf("Cleaned %s", target.Name))
	}
	return errors.Join(errs...)
}

func (c *CLI) runLogs(targetName string, lines int) error {
	logDir := filepath.Join(c.config.ProjectRoot, state.DirName, "logs")

	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		c.printWarning("No logs found. Run 'atlaspack pack' to start logging.")
		return nil
	}

	var logFiles []string
	if targetName != "" {
		targetLogFile := filepath.Join(logDir, targetName+".log")
		if _, err := os.Stat(targetLogFile); os.IsNotExist(err) {
			return fmt.Errorf("no logs found for target: %s", targetName)
		}
		logFiles = []string{targetLogFile}
	} else {
		entries, err := os.ReadDir(logDir)
		if err != nil {
			return fmt.Errorf("failed to read log directory: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".log" {
				logFiles = append(logFiles, filepath.Join(logDir, entry.Name()))
			}
		}
		if len(logFiles) == 0 {
			c.printWarning("No log files found")
			return nil
		}
	}

	for _, logFile := range logFiles {
		content, err := readLastNLines(logFile, lines)
		if err != nil {
			c.printError(fmt.Sprintf("Failed to display %s: %v", filepath.Base(logFile), err))
			continue
		}
		fmt.Fprintf(c.output, "\n=== %s ===\n", strings.TrimSuffix(filepath.Base(logFile), ".log"))
		fmt.Fprint(c.output, content)
	}
	return nil
}

func readLastNLines(filename string, n int) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var allLines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	start := 0
	if len(allLines) > n {
		start = len(allLines) - n
	}
	if start == len(allLines) {
		return "", nil
	}
	return strings.Join(allLines[start:], "\n") + "\n", nil
}

func (c *CLI) runValidate() error {
	cfg, err := c.loadConfig()
	if err != nil {
		c.printError(fmt.Sprintf("Configuration is invalid: %v", err))
		return err
	}

	result := validation.NewTargetValidator(c.config.ProjectRoot).ValidateConfiguration(cfg)
	for _, issue := range result.Errors {
		switch issue.Level {
		case validation.ValidationLevelError:
			c.printError(issue.Error())
		case validation.ValidationLevelWarning:
			c.printWarning(issue.Error())
		default:
			c.printInfo(issue.Error())
		}
	}

	if !result.Valid {
		return fmt.Errorf("configuration has %d error(s)", result.Count(validation.ValidationLevelError))
	}
	c.printSuccess(fmt.Sprintf("Configuration is valid (%d target(s))", len(cfg.Targets)))
	return nil
}

func (c *CLI) runSettings() {
	defaults := texturepacker.NewSettings()
	holder := unsafe.Pointer(defaults)
	registry := pack.NewRegistry()

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTYPE\tDEFAULT")
	fmt.Fprintln(w, "---\t----\t-------")
	for _, field := range inject.Fields(reflect.TypeOf(defaults)).Fields() {
		typ := field.Descriptor()
		if _, ok := registry.Lookup(field.Type); !ok {
			typ += " (not settable)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", field.Name, typ, formatDefault(field.Value(holder)))
	}
	w.Flush()
}

// formatDefault renders a value the way it would be written as an override
func formatDefault(v interface{}) string {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return fmt.Sprint(v)
	}
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(rv.Index(i).Interface())
	}
	if len(parts) == 1 && parts[0] == "" {
		return `""`
	}
	return strings.Join(parts, ",")
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
