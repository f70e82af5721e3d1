package engine

import (
	"github.com/poltergeist/atlaspack/internal/watcher"
	"github.com/poltergeist/atlaspack/pkg/builders"
	"github.com/poltergeist/atlaspack/pkg/config"
	"github.com/poltergeist/atlaspack/pkg/interfaces"
	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/notifier"
	"github.com/poltergeist/atlaspack/pkg/state"
	"github.com/poltergeist/atlaspack/pkg/types"
)

// DependencyFactory creates default implementations of dependencies, so
// constructors have no hidden concrete fallbacks
type DependencyFactory struct {
	projectRoot string
	logger      logger.Logger
	config      *types.AtlaspackConfig
}

// NewDependencyFactory creates a new dependency factory
func NewDependencyFactory(projectRoot string, log logger.Logger, config *types.AtlaspackConfig) *DependencyFactory {
	return &DependencyFactory{
		projectRoot: projectRoot,
		logger:      log,
		config:      config,
	}
}

// CreateDefaults creates all default dependencies. The file watcher is
// left nil when fsnotify cannot be initialised; watch mode then fails
// while one-shot packs still work.
func (f *DependencyFactory) CreateDefaults() interfaces.AtlaspackDependencies {
	deps := interfaces.AtlaspackDependencies{
		StateManager:   f.createStateManager(),
		BuilderFactory: f.createBuilderFactory(),
		ConfigManager:  config.NewManager(),
	}

	if w, err := watcher.NewFSNotifyWatcher(f.logger); err != nil {
		f.logger.Warn("File watching unavailable", logger.WithField("error", err))
	} else {
		if f.config != nil && len(f.config.WatchExclude) > 0 {
			if err := w.SetExclusions(f.config.WatchExclude); err != nil {
				f.logger.Warn("Ignoring watchExclude", logger.WithField("error", err))
			}
		}
		deps.FileWatcher = w
	}

	if f.config != nil && f.config.NotificationsEnabled() {
		deps.Notifier = f.createNotifier()
	}

	return deps
}

// CreateWithOverrides creates dependencies with specific overrides; non-nil
// values replace defaults
func (f *DependencyFactory) CreateWithOverrides(overrides interfaces.AtlaspackDependencies) interfaces.AtlaspackDependencies {
	deps := f.CreateDefaults()

	if overrides.StateManager != nil {
		deps.StateManager = overrides.StateManager
	}
	if overrides.BuilderFactory != nil {
		deps.BuilderFactory = overrides.BuilderFactory
	}
	if overrides.Notifier != nil {
		deps.Notifier = overrides.Notifier
	}
	if overrides.FileWatcher != nil {
		if deps.FileWatcher != nil {
			deps.FileWatcher.Close()
		}
		deps.FileWatcher = overrides.FileWatcher
	}
	if overrides.ConfigManager != nil {
		deps.ConfigManager = overrides.ConfigManager
	}

	return deps
}

func (f *DependencyFactory) createStateManager() interfaces.StateManager {
	return state.NewStateManager(f.projectRoot, f.logger)
}

func (f *DependencyFactory) createBuilderFactory() interfaces.BuilderFactory {
	return builders.NewBuilderFactory(nil, nil)
}

func (f *DependencyFactory) createNotifier() interfaces.BuildNotifier {
	return notifier.New(notifier.ConfigFrom(f.config.Notifications), f.logger)
}
