// Package builders packs configured targets and records the outcome
package builders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pcontext "github.com/poltergeist/atlaspack/pkg/context"
	"github.com/poltergeist/atlaspack/pkg/inject"
	"github.com/poltergeist/atlaspack/pkg/interfaces"
	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/pack"
	"github.com/poltergeist/atlaspack/pkg/state"
	"github.com/poltergeist/atlaspack/pkg/texturepacker"
	"github.com/poltergeist/atlaspack/pkg/types"
)

// PackBuilder packs one target's asset folder
type PackBuilder struct {
	Target       *types.PackTarget
	ProjectRoot  string
	Logger       logger.Logger
	StateManager interfaces.StateManager

	packer   pack.Packer
	registry *inject.Registry

	lastBuildTime time.Duration
	totalBuilds   int
	successBuilds int
	mu            sync.RWMutex
}

// NewPackBuilder creates a builder for target. A nil packer uses the
// default texture packer and a nil registry uses pack.NewRegistry.
func NewPackBuilder(
	target *types.PackTarget,
	projectRoot string,
	log logger.Logger,
	stateManager interfaces.StateManager,
	packer pack.Packer,
	registry *inject.Registry,
) *PackBuilder {
	if log == nil {
		log = logger.CreateLoggerWithOutput("", "error", io.Discard)
	}
	targetLogger := log.WithTarget(target.GetName())
	if packer == nil {
		packer = texturepacker.NewPacker(targetLogger)
	}
	if registry == nil {
		registry = pack.NewRegistry()
	}

	return &PackBuilder{
		Target:       target,
		ProjectRoot:  projectRoot,
		Logger:       targetLogger,
		StateManager: stateManager,
		packer:       packer,
		registry:     registry,
	}
}

// Request returns the pack request for the target with paths resolved
// against the project root
func (b *PackBuilder) Request() pack.Request {
	return pack.Request{
		SourceDir: b.resolvePath(orDefault(b.Target.AssetFolder, pack.DefaultAssetFolder)),
		OutputDir: b.resolvePath(orDefault(b.Target.OutputDirectory, pack.DefaultOutputDirectory)),
		PackName:  orDefault(b.Target.PackName, pack.DefaultPackName),
		Overrides: b.Target.Packer,
	}
}

// Validate checks that the target can be packed. A missing asset folder
// is not an error: packing it is a no-op.
func (b *PackBuilder) Validate() error {
	if _, err := os.Stat(b.ProjectRoot); os.IsNotExist(err) {
		return fmt.Errorf("project root does not exist: %s", b.ProjectRoot)
	}

	req := b.Request()
	if strings.ContainsAny(req.PackName, `/\`) {
		return fmt.Errorf("pack name must not contain path separators: %s", req.PackName)
	}
	if rel, err := filepath.Rel(req.SourceDir, req.OutputDir); err == nil &&
		rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output directory %s is inside asset folder %s", req.OutputDir, req.SourceDir)
	}
	return nil
}

// Build packs the target. The returned result is nil only when the
// overrides could not be applied at all.
func (b *PackBuilder) Build(ctx context.Context, changedFiles []string) (*pack.Result, error) {
	name := b.Target.GetName()
	if pcontext.GetRunID(ctx) == "" {
		ctx = pcontext.NewRun(ctx, name, pcontext.TriggerCommand)
	}
	log := logger.WithContext(ctx, b.Logger)
	startTime := time.Now()

	logFile, err := b.prepareLogFile()
	if err != nil {
		log.Warn(fmt.Sprintf("Failed to create log file: %v", err))
	}
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()

	b.logToFile(logFile, fmt.Sprintf("\n=== Pack started at %s (%s) ===\n",
		startTime.Format("2006-01-02 15:04:05"), pcontext.GetRunID(ctx)))
	if len(changedFiles) > 0 {
		log.Info(fmt.Sprintf("Packing with %d changed files", len(changedFiles)))
		b.logToFile(logFile, fmt.Sprintf("Changed files: %v\n", changedFiles))
	}

	b.updateStatus(log, types.BuildStatusPacking)

	result, err := pack.NewInvoker(b.packer, b.registry, log).Invoke(ctx, b.Request())
	duration := time.Since(startTime)

	record := state.BuildRecord{
		RunID:        pcontext.GetRunID(ctx),
		Duration:     duration,
		ChangedFiles: changedFiles,
		Err:          err,
	}
	if result != nil && result.Report != nil {
		for _, w := range result.Report.Warnings {
			record.Warnings = append(record.Warnings, w.String())
			b.logToFile(logFile, fmt.Sprintf("Warning: %s\n", w))
		}
	}

	switch {
	case err != nil && ctx.Err() != nil:
		record.Status = types.BuildStatusCancelled
	case err != nil:
		record.Status = types.BuildStatusFailed
	case result.Skipped:
		record.Status = types.BuildStatusSkipped
	default:
		record.Status = types.BuildStatusSucceeded
		record.Outputs = b.collectOutputs(log, result)
	}

	b.mu.Lock()
	b.lastBuildTime = duration
	if record.Status == types.BuildStatusSucceeded || record.Status == types.BuildStatusFailed {
		b.totalBuilds++
		if record.Status == types.BuildStatusSucceeded {
			b.successBuilds++
		}
	}
	b.mu.Unlock()

	if b.StateManager != nil {
		if serr := b.StateManager.RecordBuild(name, record); serr != nil {
			log.Warn("Failed to record pack state", logger.WithField("error", serr))
		}
	}

	switch record.Status {
	case types.BuildStatusSucceeded:
		log.Success(fmt.Sprintf("Packed in %s", duration.Round(time.Millisecond)),
			logger.WithField("outputs", len(record.Outputs)))
		b.logToFile(logFile, fmt.Sprintf("=== Pack SUCCEEDED after %s ===\n", duration))
	case types.BuildStatusSkipped:
		b.logToFile(logFile, "=== Pack SKIPPED: asset folder not found ===\n")
	default:
		b.logToFile(logFile, fmt.Sprintf("=== Pack %s after %s ===\nError: %v\n",
			strings.ToUpper(string(record.Status)), duration, err))
	}

	return result, err
}

// Clean removes the outputs recorded by the last successful pack
func (b *PackBuilder) Clean() error {
	if b.StateManager == nil {
		return nil
	}
	name := b.Target.GetName()

	s, err := b.StateManager.ReadState(name)
	if err != nil || len(s.Outputs) == 0 {
		b.Logger.Info("Nothing to clean")
		return nil
	}

	var errs []error
	removed := 0
	for _, output := range s.Outputs {
		err := os.Remove(b.resolvePath(output))
		switch {
		case err == nil:
			removed++
		case !os.IsNotExist(err):
			errs = append(errs, err)
		}
	}

	if err := b.StateManager.UpdateState(name, map[string]interface{}{
		"outputs":     []string{},
		"buildStatus": types.BuildStatusIdle,
	}); err != nil {
		errs = append(errs, err)
	}

	b.Logger.Info(fmt.Sprintf("Removed %d generated files", removed))
	return errors.Join(errs...)
}

// GetTarget returns the target
func (b *PackBuilder) GetTarget() *types.PackTarget {
	return b.Target
}

// GetLastBuildTime returns the last pack duration
func (b *PackBuilder) GetLastBuildTime() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastBuildTime
}

// GetSuccessRate returns the share of finished packs that succeeded
func (b *PackBuilder) GetSuccessRate() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.totalBuilds == 0 {
		return 1.0
	}
	return float64(b.successBuilds) / float64(b.totalBuilds)
}

func (b *PackBuilder) updateStatus(log logger.Logger, status types.BuildStatus) {
	if b.StateManager == nil {
		return
	}
	if err := b.StateManager.UpdateBuildStatus(b.Target.GetName(), status); err != nil {
		log.Debug("Failed to update pack status", logger.WithField("error", err))
	}
}

// collectOutputs lists the atlases of a pack and the pages they reference
func (b *PackBuilder) collectOutputs(log logger.Logger, result *pack.Result) []string {
	if result.Settings == nil {
		return nil
	}
	outputDir := result.Request.OutputDir

	seen := make(map[string]bool)
	var outputs []string
	add := func(path string) {
		rel := b.relativePath(path)
		if !seen[rel] {
			seen[rel] = true
			outputs = append(outputs, rel)
		}
	}

	for _, name := range result.Settings.AtlasFileNames(result.Request.PackName) {
		atlasPath := filepath.Join(outputDir, name)
		f, err := os.Open(atlasPath)
		if err != nil {
			continue
		}
		pages, err := texturepacker.ReadAtlas(f)
		f.Close()
		if err != nil {
			log.Warn("Failed to read written atlas", logger.WithField("atlas", atlasPath), logger.WithField("error", err))
			continue
		}

		add(atlasPath)
		for _, page := range pages {
			add(filepath.Join(outputDir, page.File))
		}
	}
	return outputs
}

func (b *PackBuilder) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.ProjectRoot, path)
}

func (b *PackBuilder) relativePath(path string) string {
	rel, err := filepath.Rel(b.ProjectRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// prepareLogFile opens the per-target pack log
func (b *PackBuilder) prepareLogFile() (*os.File, error) {
	logDir := filepath.Join(b.ProjectRoot, state.DirName, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, b.Target.GetName()+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logFile, nil
}

func (b *PackBuilder) logToFile(logFile *os.File, message string) {
	if logFile != nil {
		logFile.WriteString(message)
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
