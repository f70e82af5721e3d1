// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"
	"time"

	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/pack"
	"github.com/poltergeist/atlaspack/pkg/state"
	"github.com/poltergeist/atlaspack/pkg/types"
)

// StateManager handles persistent state for targets
type StateManager interface {
	InitializeState(target *types.PackTarget) (*state.TargetState, error)
	ReadState(targetName string) (*state.TargetState, error)
	UpdateState(targetName string, updates map[string]interface{}) error
	UpdateBuildStatus(targetName string, status types.BuildStatus) error
	RecordBuild(targetName string, record state.BuildRecord) error
	RemoveState(targetName string) error
	IsLocked(targetName string) (bool, error)
	DiscoverStates() (map[string]*state.TargetState, error)
	StartHeartbeat(ctx context.Context)
	StopHeartbeat()
	Cleanup() error
}

// Builder packs one target
type Builder interface {
	Validate() error
	Build(ctx context.Context, changedFiles []string) (*pack.Result, error)
	Clean() error
	GetTarget() *types.PackTarget
	GetLastBuildTime() time.Duration
	GetSuccessRate() float64
}

// BuilderFactory creates builders for targets
type BuilderFactory interface {
	CreateBuilder(
		target *types.PackTarget,
		projectRoot string,
		logger logger.Logger,
		stateManager StateManager,
	) Builder
}

// BuildNotifier handles pack notifications
type BuildNotifier interface {
	NotifyBuildStart(target string)
	NotifyBuildSuccess(target string, duration time.Duration)
	NotifyBuildFailure(target string, err error)
}

// FileChangeCallback receives the files changed under a watched root once
// they have settled
type FileChangeCallback func(files []string)

// FileWatcher reports settled file changes under directory trees
type FileWatcher interface {
	Watch(root string, settling time.Duration, callback FileChangeCallback) error
	Remove(root string) error
	Close() error
}

// ConfigManager handles configuration loading and validation
type ConfigManager interface {
	FindConfig(root string) (string, error)
	LoadConfig(path string) (*types.AtlaspackConfig, error)
	ValidateConfig(config *types.AtlaspackConfig) error
	GetDefaultConfig() *types.AtlaspackConfig
	SaveConfig(path string, config *types.AtlaspackConfig) error
}

// AtlaspackDependencies contains all injectable dependencies
type AtlaspackDependencies struct {
	StateManager   StateManager
	BuilderFactory BuilderFactory
	Notifier       BuildNotifier
	FileWatcher    FileWatcher
	ConfigManager  ConfigManager
}
