// Package pack resolves a pack request into packer settings and runs the
// texture packer against an asset folder.
package pack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/poltergeist/atlaspack/pkg/inject"
	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/texturepacker"
)

const (
	// DefaultAssetFolder is scanned when a request names no source folder
	DefaultAssetFolder = "src/main/sprites"
	// DefaultOutputDirectory receives atlases when a request names none
	DefaultOutputDirectory = "build/resources"
	// DefaultPackName is the base name of atlas and page files
	DefaultPackName = "pack"
)

// Packer packs the images of input into output
type Packer interface {
	Process(ctx context.Context, settings *texturepacker.Settings, input, output, packName string) error
}

// Request describes one pack invocation
type Request struct {
	SourceDir string
	OutputDir string
	PackName  string
	// Overrides are raw settings keyed by field name
	Overrides map[string]string
}

// withDefaults fills empty request fields
func (r Request) withDefaults() Request {
	if r.SourceDir == "" {
		r.SourceDir = DefaultAssetFolder
	}
	if r.OutputDir == "" {
		r.OutputDir = DefaultOutputDirectory
	}
	if r.PackName == "" {
		r.PackName = DefaultPackName
	}
	return r
}

// Result describes a finished invocation
type Result struct {
	Request  Request
	Skipped  bool
	Settings *texturepacker.Settings
	Report   *inject.Report
	Duration time.Duration
}

// ExecutionError wraps a failure raised by the packer
type ExecutionError struct {
	PackName string
	Source   string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to pack %s from %s: %v", e.PackName, e.Source, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionError reports whether err came from the packer
func IsExecutionError(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}

// Invoker drives one packer with settings built from raw overrides
type Invoker struct {
	packer   Packer
	registry *inject.Registry
	log      logger.Logger
}

// NewInvoker creates an invoker. A nil registry uses NewRegistry.
func NewInvoker(packer Packer, registry *inject.Registry, log logger.Logger) *Invoker {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Invoker{
		packer:   packer,
		registry: registry,
		log:      log,
	}
}

// Invoke packs req.SourceDir. A missing source folder is not an error: the
// result is marked Skipped and nothing is packed. Configuration problems
// are logged as warnings and reported in Result.Report; a packer failure
// is returned as *ExecutionError.
func (i *Invoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	req = req.withDefaults()
	result := &Result{Request: req}

	info, err := os.Stat(req.SourceDir)
	if err != nil || !info.IsDir() {
		i.log.Info(fmt.Sprintf("Folder not found: %s ... no atlases to build.", req.SourceDir))
		result.Skipped = true
		return result, nil
	}

	settings, report, err := i.Settings(req.Overrides)
	if err != nil {
		return nil, err
	}
	result.Settings, result.Report = settings, report

	i.log.Info("Packing atlas",
		logger.WithField("source", req.SourceDir),
		logger.WithField("output", req.OutputDir),
		logger.WithField("pack", req.PackName))

	start := time.Now()
	err = i.packer.Process(ctx, settings, req.SourceDir, req.OutputDir, req.PackName)
	result.Duration = time.Since(start)
	if err != nil {
		i.log.Error("Packer failed", logger.WithField("pack", req.PackName), logger.WithField("error", err))
		return result, &ExecutionError{PackName: req.PackName, Source: req.SourceDir, Err: err}
	}
	return result, nil
}

// Settings builds packer settings from the defaults and overrides, logging
// one warning per override that could not be applied
func (i *Invoker) Settings(overrides map[string]string) (*texturepacker.Settings, *inject.Report, error) {
	settings := texturepacker.NewSettings()
	report, err := inject.Inject(settings, overrides, i.registry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to apply packer settings: %w", err)
	}
	for _, w := range report.Warnings {
		fields := []logger.Field{logger.WithField("key", w.Field), logger.WithField("kind", w.Kind)}
		if w.Err != nil {
			fields = append(fields, logger.WithField("error", w.Err))
		}
		i.log.Warn(w.String(), fields...)
	}
	for _, name := range report.Applied {
		i.log.Debug("Applied packer setting", logger.WithField("key", name), logger.WithField("value", overrides[name]))
	}
	return settings, report, nil
}
