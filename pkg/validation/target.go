// Package validation checks pack targets before they are packed
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poltergeist/atlaspack/internal/watcher"
	"github.com/poltergeist/atlaspack/pkg/inject"
	"github.com/poltergeist/atlaspack/pkg/pack"
	"github.com/poltergeist/atlaspack/pkg/texturepacker"
	"github.com/poltergeist/atlaspack/pkg/types"
)

// TargetValidator validates pack targets
type TargetValidator struct {
	projectRoot string
	registry    *inject.Registry
}

// NewTargetValidator creates a new target validator
func NewTargetValidator(projectRoot string) *TargetValidator {
	return &TargetValidator{
		projectRoot: projectRoot,
		registry:    pack.NewRegistry(),
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Target  string
	Field   string
	Message string
	Level   ValidationLevel
}

// ValidationLevel represents error severity
type ValidationLevel string

const (
	ValidationLevelError   ValidationLevel = "error"
	ValidationLevelWarning ValidationLevel = "warning"
	ValidationLevelInfo    ValidationLevel = "info"
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Level, e.Target, e.Field, e.Message)
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// AddError adds an error to the validation result
func (r *ValidationResult) AddError(target, field, message string, level ValidationLevel) {
	r.Errors = append(r.Errors, ValidationError{
		Target:  target,
		Field:   field,
		Message: message,
		Level:   level,
	})
	if level == ValidationLevelError {
		r.Valid = false
	}
}

// Count returns the number of entries at level
func (r *ValidationResult) Count(level ValidationLevel) int {
	n := 0
	for _, e := range r.Errors {
		if e.Level == level {
			n++
		}
	}
	return n
}

func (r *ValidationResult) merge(other *ValidationResult) {
	r.Errors = append(r.Errors, other.Errors...)
	if !other.Valid {
		r.Valid = false
	}
}

// Validate validates a target
func (v *TargetValidator) Validate(target *types.PackTarget) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if !v.validateName(target, result) {
		return result
	}
	v.validatePaths(target, result)
	v.validateSettings(target, result)

	return result
}

// ValidateMultiple validates multiple targets
func (v *TargetValidator) ValidateMultiple(targets []types.PackTarget) *ValidationResult {
	result := &ValidationResult{Valid: true}

	names := make(map[string]bool)
	for i := range targets {
		target := &targets[i]
		if names[target.Name] {
			result.AddError(target.Name, "name", "duplicate target name", ValidationLevelError)
		}
		names[target.Name] = true

		result.merge(v.Validate(target))
	}

	return result
}

// ValidateConfiguration validates an entire configuration
func (v *TargetValidator) ValidateConfiguration(config *types.AtlaspackConfig) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if len(config.Targets) == 0 {
		result.AddError("config", "targets", "no targets defined", ValidationLevelError)
		return result
	}
	if config.Parallelization < 0 {
		result.AddError("config", "parallelization", "must not be negative", ValidationLevelError)
	}
	if len(config.EnabledTargets()) == 0 {
		result.AddError("config", "targets", "every target is disabled", ValidationLevelWarning)
	}
	for _, pattern := range config.WatchExclude {
		if _, err := watcher.NewExclusionMatcher([]string{pattern}); err != nil {
			result.AddError("config", "watchExclude", err.Error(), ValidationLevelError)
		}
	}

	result.merge(v.ValidateMultiple(config.Targets))
	return result
}

func (v *TargetValidator) validateName(target *types.PackTarget, result *ValidationResult) bool {
	name := target.Name
	if strings.TrimSpace(name) == "" {
		result.AddError("", "name", "target name is required", ValidationLevelError)
		return false
	}
	if strings.ContainsAny(name, " \t") {
		result.AddError(name, "name", "target name cannot contain spaces", ValidationLevelError)
	}
	// names become state file names
	if strings.ContainsAny(name, `/\`) {
		result.AddError(name, "name", "target name cannot contain path separators", ValidationLevelError)
	}
	if strings.ContainsAny(target.PackName, `/\`) {
		result.AddError(name, "packName", "pack name cannot contain path separators", ValidationLevelError)
	}
	if target.SettlingDelay != nil && *target.SettlingDelay < 0 {
		result.AddError(name, "settlingDelay", "settling delay must not be negative", ValidationLevelError)
	}
	return true
}

func (v *TargetValidator) validatePaths(target *types.PackTarget, result *ValidationResult) {
	name := target.Name
	assets := v.resolve("assetFolder", target.AssetFolder, pack.DefaultAssetFolder, target, result)
	output := v.resolve("outputDirectory", target.OutputDirectory, pack.DefaultOutputDirectory, target, result)

	info, err := os.Stat(assets)
	switch {
	case os.IsNotExist(err):
		result.AddError(name, "assetFolder",
			fmt.Sprintf("asset folder does not exist, packing will be skipped: %s", assets), ValidationLevelWarning)
	case err != nil:
		result.AddError(name, "assetFolder", err.Error(), ValidationLevelError)
	case !info.IsDir():
		result.AddError(name, "assetFolder", fmt.Sprintf("asset folder is not a directory: %s", assets), ValidationLevelError)
	}

	if rel, err := filepath.Rel(assets, output); err == nil && !strings.HasPrefix(rel, "..") {
		// the watcher would repack its own output
		result.AddError(name, "outputDirectory", "output directory must not be inside the asset folder", ValidationLevelError)
	}
}

func (v *TargetValidator) resolve(field, path, fallback string, target *types.PackTarget, result *ValidationResult) string {
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		result.AddError(target.Name, field, fmt.Sprintf("path should be relative to project root: %s", path), ValidationLevelWarning)
		return filepath.Clean(path)
	}
	return filepath.Join(v.projectRoot, path)
}

// validateSettings applies the overrides to fresh settings without packing
func (v *TargetValidator) validateSettings(target *types.PackTarget, result *ValidationResult) {
	settings := texturepacker.NewSettings()
	report, err := inject.Inject(settings, target.Packer, v.registry)
	if err != nil {
		result.AddError(target.Name, "packer", err.Error(), ValidationLevelError)
		return
	}

	for _, w := range report.Warnings {
		result.AddError(target.Name, "packer."+w.Field, w.String(), ValidationLevelError)
	}
	if err := settings.Validate(); err != nil {
		result.AddError(target.Name, "packer", err.Error(), ValidationLevelError)
	}
	if len(settings.ScaleSuffix) > len(settings.Scale) {
		result.AddError(target.Name, "packer.scaleSuffix", "more suffixes than scales; extras are ignored", ValidationLevelInfo)
	}
}
