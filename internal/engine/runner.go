package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/poltergeist/atlaspack/pkg/config"
	pcontext "github.com/poltergeist/atlaspack/pkg/context"
	"github.com/poltergeist/atlaspack/pkg/interfaces"
	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/pack"
	"github.com/poltergeist/atlaspack/pkg/types"
)

// DefaultParallelization is used when the config leaves parallelization
// unset
const DefaultParallelization = 2

// TargetResult is the outcome of packing one target
type TargetResult struct {
	Target   string
	Result   *pack.Result
	Err      error
	Duration time.Duration
}

// Failed reports whether the pack failed
func (r TargetResult) Failed() bool { return r.Err != nil }

// Skipped reports whether the asset folder was missing
func (r TargetResult) Skipped() bool { return r.Err == nil && r.Result != nil && r.Result.Skipped }

// targetRun tracks one target during a watch session
type targetRun struct {
	target   *types.PackTarget
	builder  interfaces.Builder
	root     string
	watching bool
	building bool
	pending  map[string]struct{}
	mu       sync.Mutex
}

// Runner packs configured targets
type Runner struct {
	config         *types.AtlaspackConfig
	projectRoot    string
	configPath     string
	logger         logger.Logger
	stateManager   interfaces.StateManager
	builderFactory interfaces.BuilderFactory
	notifier       interfaces.BuildNotifier
	watcher        interfaces.FileWatcher
	reload         *config.ReloadManager

	targets map[string]*targetRun
	// packLocks serialise packs per target name across reloads, since a
	// replaced targetRun may still be packing
	packLocks map[string]*sync.Mutex

	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
}

// New creates a runner. StateManager and BuilderFactory are required;
// FileWatcher is only needed for watch sessions.
func New(
	cfg *types.AtlaspackConfig,
	projectRoot string,
	log logger.Logger,
	deps interfaces.AtlaspackDependencies,
	configPath string,
) *Runner {
	if abs, err := filepath.Abs(projectRoot); err != nil {
		log.Error(fmt.Sprintf("Failed to get absolute path for project root: %v", err))
	} else {
		projectRoot = abs
	}

	if deps.StateManager == nil {
		panic("StateManager dependency is required")
	}
	if deps.BuilderFactory == nil {
		panic("BuilderFactory dependency is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		config:         cfg,
		projectRoot:    projectRoot,
		configPath:     configPath,
		logger:         log,
		stateManager:   deps.StateManager,
		builderFactory: deps.BuilderFactory,
		notifier:       deps.Notifier,
		watcher:        deps.FileWatcher,
		targets:        make(map[string]*targetRun),
		packLocks:      make(map[string]*sync.Mutex),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// PackOnce packs the named targets, or every enabled target, in parallel.
// Every selected target gets a result; the error summarises failures.
func (r *Runner) PackOnce(ctx context.Context, names []string) ([]TargetResult, error) {
	r.mu.RLock()
	cfg := r.config
	r.mu.RUnlock()

	targets, err := cfg.SelectTargets(names)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets to pack")
	}

	runs := make([]*targetRun, len(targets))
	for i, target := range targets {
		runs[i] = r.prepare(target)
	}
	results := r.packAll(ctx, runs, pcontext.TriggerCommand)

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return results, fmt.Errorf("%d of %d target(s) failed", failed, len(results))
	}
	return results, nil
}

// prepare creates the builder and state file for target
func (r *Runner) prepare(target *types.PackTarget) *targetRun {
	builder := r.builderFactory.CreateBuilder(target, r.projectRoot, r.logger, r.stateManager)
	if _, err := r.stateManager.InitializeState(target); err != nil {
		r.logger.Warn(fmt.Sprintf("Failed to initialize state for %s", target.Name),
			logger.WithField("error", err))
	}
	return &targetRun{
		target:  target,
		builder: builder,
		root:    r.assetFolder(target),
		pending: make(map[string]struct{}),
	}
}

// packAll packs runs concurrently, bounded by the configured parallelization
func (r *Runner) packAll(ctx context.Context, runs []*targetRun, trigger pcontext.Trigger) []TargetResult {
	results := make([]TargetResult, len(runs))
	g, _ := NewSafeGroup(context.Background(), r.logger)
	g.SetLimit(r.parallelization())

	for i, run := range runs {
		i, run := i, run
		results[i] = TargetResult{Target: run.target.Name}
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					results[i].Err = fmt.Errorf("pack panicked: %v", rec)
					if r.notifier != nil {
						r.notifier.NotifyBuildFailure(run.target.Name, results[i].Err)
					}
					panic(rec)
				}
			}()
			results[i] = r.packTarget(pcontext.NewRun(ctx, run.target.Name, trigger), run, nil)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.logger.Error("Pack run aborted", logger.WithField("error", err))
	}
	return results
}

// packTarget validates and builds one target, notifying around the build
func (r *Runner) packTarget(ctx context.Context, run *targetRun, changedFiles []string) TargetResult {
	name := run.target.Name
	out := TargetResult{Target: name}

	lock := r.packLock(name)
	lock.Lock()
	defer lock.Unlock()

	if err := run.builder.Validate(); err != nil {
		out.Err = fmt.Errorf("target validation failed for %s: %w", name, err)
		r.logger.Error(out.Err.Error())
		if r.notifier != nil {
			r.notifier.NotifyBuildFailure(name, out.Err)
		}
		return out
	}

	if r.notifier != nil {
		r.notifier.NotifyBuildStart(name)
	}

	start := time.Now()
	result, err := run.builder.Build(ctx, changedFiles)
	out.Result, out.Err, out.Duration = result, err, time.Since(start)

	switch {
	case err != nil && ctx.Err() != nil:
		r.logger.Warn(fmt.Sprintf("Pack of %s cancelled", name))
	case err != nil:
		r.logger.Error(fmt.Sprintf("Pack of %s failed", name), logger.WithField("error", err))
		if r.notifier != nil {
			r.notifier.NotifyBuildFailure(name, err)
		}
	case result != nil && result.Skipped:
		r.logger.Info(fmt.Sprintf("Nothing to pack for %s", name))
	default:
		r.logger.Success(fmt.Sprintf("Packed %s in %s", name, out.Duration.Round(time.Millisecond)))
		if r.notifier != nil {
			r.notifier.NotifyBuildSuccess(name, out.Duration)
		}
	}
	return out
}

func (r *Runner) packLock(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.packLocks[name]
	if !ok {
		lock = &sync.Mutex{}
		r.packLocks[name] = lock
	}
	return lock
}

// Start packs the named target, or every enabled target, then re-packs
// whenever files settle under an asset folder. It returns once the session
// is set up; Stop ends it.
func (r *Runner) Start(ctx context.Context, targetName string) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return fmt.Errorf("runner is already running")
	}
	if r.watcher == nil {
		r.mu.Unlock()
		return fmt.Errorf("file watching is not available")
	}
	targets, err := r.watchTargets(targetName)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.isRunning = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.logger.Info("Starting atlaspack...")
	r.stateManager.StartHeartbeat(r.ctx)

	runs := make([]*targetRun, 0, len(targets))
	for _, target := range targets {
		run := r.prepare(target)
		r.mu.Lock()
		r.targets[target.Name] = run
		r.mu.Unlock()
		// changes during the initial pack wait for it
		run.building = true
		r.watchTarget(run)
		runs = append(runs, run)
	}

	r.logger.Info(fmt.Sprintf("Packing %d enabled target(s)", len(runs)))
	r.packAll(r.ctx, runs, pcontext.TriggerWatch)

	for _, run := range runs {
		run.mu.Lock()
		run.building = false
		queued := len(run.pending) > 0
		run.mu.Unlock()
		if queued {
			r.onFilesChanged(run.target.Name, nil)
		}
	}

	r.startConfigReload()

	r.logger.Info("atlaspack is now watching for changes...")
	return nil
}

// Run starts a watch session and blocks until ctx is done
func (r *Runner) Run(ctx context.Context, targetName string) error {
	if err := r.Start(ctx, targetName); err != nil {
		return err
	}
	<-ctx.Done()
	r.Stop()
	return nil
}

// IsRunning reports whether a watch session is active
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isRunning
}

// StopWithContext ends the watch session, waiting for running packs until
// ctx expires
func (r *Runner) StopWithContext(ctx context.Context) {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = false
	r.mu.Unlock()

	r.logger.Info("Stopping atlaspack...")
	r.cancel()

	done := make(chan struct{})
	go func() {
		if r.reload != nil {
			if err := r.reload.StopWatching(); err != nil {
				r.logger.Warn("Failed to stop config watcher", logger.WithField("error", err))
			}
		}
		if err := r.watcher.Close(); err != nil {
			r.logger.Warn("Failed to close file watcher", logger.WithField("error", err))
		}
		r.stateManager.StopHeartbeat()
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("atlaspack stopped gracefully")
	case <-ctx.Done():
		r.logger.Warn("atlaspack shutdown timed out", logger.WithField("error", ctx.Err()))
	}
}

// Stop ends the watch session with a 30 second grace period
func (r *Runner) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	r.StopWithContext(ctx)
}

// Cleanup marks packs interrupted by shutdown as cancelled
func (r *Runner) Cleanup() error {
	return r.stateManager.Cleanup()
}

// watchTargets selects the targets of a watch session
func (r *Runner) watchTargets(targetName string) ([]*types.PackTarget, error) {
	if targetName == "" {
		targets := r.config.EnabledTargets()
		if len(targets) == 0 {
			return nil, fmt.Errorf("no targets to watch")
		}
		return targets, nil
	}
	target, ok := r.config.FindTarget(targetName)
	if !ok {
		return nil, fmt.Errorf("target not found: %s", targetName)
	}
	if !target.IsEnabled() {
		return nil, fmt.Errorf("target is disabled: %s", targetName)
	}
	return []*types.PackTarget{target}, nil
}

func (r *Runner) watchTarget(run *targetRun) {
	name := run.target.Name
	settling := time.Duration(run.target.GetSettlingDelay()) * time.Millisecond
	err := r.watcher.Watch(run.root, settling, func(files []string) {
		r.onFilesChanged(name, files)
	})
	if err != nil {
		r.logger.Warn(fmt.Sprintf("Not watching %s", name),
			logger.WithField("folder", run.root), logger.WithField("error", err))
		return
	}
	run.watching = true
	r.logger.Info(fmt.Sprintf("Watching %s", run.root), logger.WithField("target", name))
}

// onFilesChanged queues files for a re-pack. A pack already running for
// the target picks them up when it finishes.
func (r *Runner) onFilesChanged(name string, files []string) {
	r.mu.RLock()
	run, ok := r.targets[name]
	if !ok || !r.isRunning {
		r.mu.RUnlock()
		return
	}

	run.mu.Lock()
	for _, f := range files {
		run.pending[f] = struct{}{}
	}
	if run.building {
		run.mu.Unlock()
		r.mu.RUnlock()
		return
	}
	run.building = true
	run.mu.Unlock()

	r.wg.Add(1)
	r.mu.RUnlock()

	r.logger.Debug(fmt.Sprintf("Files changed: %v", files), logger.WithField("target", name))
	go r.rebuild(run)
}

func (r *Runner) rebuild(run *targetRun) {
	defer r.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Pack panic recovered", logger.WithField("panic", rec),
				logger.WithField("target", run.target.Name))
			run.mu.Lock()
			run.building = false
			run.mu.Unlock()
		}
	}()

	for {
		r.mu.RLock()
		current := r.targets[run.target.Name]
		r.mu.RUnlock()

		run.mu.Lock()
		if current != run {
			// replaced by a config reload; the new run packs what is left
			files := make([]string, 0, len(run.pending))
			for f := range run.pending {
				files = append(files, f)
			}
			run.pending = make(map[string]struct{})
			run.building = false
			run.mu.Unlock()
			if current != nil && len(files) > 0 {
				r.onFilesChanged(run.target.Name, files)
			}
			return
		}
		if len(run.pending) == 0 || r.ctx.Err() != nil {
			run.building = false
			run.mu.Unlock()
			return
		}
		files := make([]string, 0, len(run.pending))
		for f := range run.pending {
			files = append(files, f)
		}
		run.pending = make(map[string]struct{})
		run.mu.Unlock()

		sort.Strings(files)
		r.packTarget(pcontext.NewRun(r.ctx, run.target.Name, pcontext.TriggerWatch), run, files)
	}
}

func (r *Runner) startConfigReload() {
	if r.configPath == "" {
		return
	}
	rm := config.NewReloadManager(r.configPath, r.logger)
	rm.AddCallback(r.handleConfigReload)
	if err := rm.StartWatching(); err != nil {
		r.logger.Warn("Failed to watch config file", logger.WithField("error", err))
		return
	}
	r.mu.Lock()
	r.reload = rm
	r.mu.Unlock()
	r.logger.Info("Watching configuration file for changes")
}

// exclusionSetter is implemented by watchers that support exclusion globs
type exclusionSetter interface {
	SetExclusions(patterns []string) error
}

// handleConfigReload applies a reloaded configuration: removed or disabled
// targets stop being watched, added or modified targets are re-created
// and packed. A broken file leaves the running session untouched.
func (r *Runner) handleConfigReload(cfg *types.AtlaspackConfig, err error) {
	if err != nil {
		r.logger.Error("Keeping previous configuration", logger.WithField("error", err))
		return
	}

	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return
	}
	r.config = cfg
	if ex, ok := r.watcher.(exclusionSetter); ok {
		if err := ex.SetExclusions(cfg.WatchExclude); err != nil {
			r.logger.Warn("Ignoring watchExclude", logger.WithField("error", err))
		}
	}

	var stale []*targetRun
	var changed []*types.PackTarget
	for name, run := range r.targets {
		next, ok := cfg.FindTarget(name)
		if !ok || !next.IsEnabled() || !reflect.DeepEqual(next, run.target) {
			stale = append(stale, run)
			delete(r.targets, name)
		}
	}
	for _, target := range cfg.EnabledTargets() {
		if _, ok := r.targets[target.Name]; !ok {
			changed = append(changed, target)
		}
	}
	r.mu.Unlock()

	for _, run := range stale {
		if run.watching {
			if err := r.watcher.Remove(run.root); err != nil {
				r.logger.Debug("Failed to stop watching", logger.WithField("error", err))
			}
		}
		r.logger.Info(fmt.Sprintf("Stopped watching %s", run.target.Name))
	}

	for _, target := range changed {
		run := r.prepare(target)
		r.mu.Lock()
		r.targets[target.Name] = run
		r.mu.Unlock()
		r.watchTarget(run)
		r.onFilesChanged(target.Name, []string{r.configPath})
	}
}

func (r *Runner) parallelization() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.config.Parallelization > 0 {
		return r.config.Parallelization
	}
	return DefaultParallelization
}

func (r *Runner) assetFolder(target *types.PackTarget) string {
	folder := target.AssetFolder
	if folder == "" {
		folder = pack.DefaultAssetFolder
	}
	if filepath.IsAbs(folder) {
		return filepath.Clean(folder)
	}
	return filepath.Join(r.projectRoot, folder)
}

// Targets returns the names of the targets in the current watch session
func (r *Runner) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
