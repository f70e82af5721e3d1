// Package mocks provides test doubles for the atlaspack interfaces.
// MockPacker is generated by mockgen; the others are hand-written.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/poltergeist/atlaspack/pkg/interfaces"
	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/pack"
	"github.com/poltergeist/atlaspack/pkg/state"
	"github.com/poltergeist/atlaspack/pkg/types"
)

// MockStateManager is an in-memory StateManager
type MockStateManager struct {
	mu           sync.RWMutex
	states       map[string]*state.TargetState
	records      map[string][]state.BuildRecord
	initError    error
	updateError  error
	cleanupError error
	heartbeatCh  chan struct{}
}

// NewMockStateManager creates a new mock state manager
func NewMockStateManager() *MockStateManager {
	return &MockStateManager{
		states:      make(map[string]*state.TargetState),
		records:     make(map[string][]state.BuildRecord),
		heartbeatCh: make(chan struct{}, 1),
	}
}

// InitializeState initializes state for a target
func (m *MockStateManager) InitializeState(target *types.PackTarget) (*state.TargetState, error) {
	if m.initError != nil {
		return nil, m.initError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.states[target.GetName()]; ok {
		s.BuildStatus = types.BuildStatusIdle
		copied := *s
		return &copied, nil
	}
	s := &state.TargetState{
		TargetName:  target.GetName(),
		BuildStatus: types.BuildStatusIdle,
	}
	m.states[target.GetName()] = s
	copied := *s
	return &copied, nil
}

// ReadState returns a copy of the stored state
func (m *MockStateManager) ReadState(targetName string) (*state.TargetState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[targetName]
	if !ok {
		return nil, fmt.Errorf("target state not found: %s", targetName)
	}
	copied := *s
	return &copied, nil
}

// UpdateState applies the updates the mock understands
func (m *MockStateManager) UpdateState(targetName string, updates map[string]interface{}) error {
	return m.mutate(targetName, func(s *state.TargetState) {
		if status, ok := updates["buildStatus"].(types.BuildStatus); ok {
			s.BuildStatus = status
		}
		if outputs, ok := updates["outputs"].([]string); ok {
			s.Outputs = outputs
		}
		if msg, ok := updates["lastError"].(string); ok {
			s.LastError = msg
		}
	})
}

// UpdateBuildStatus updates the status and counters
func (m *MockStateManager) UpdateBuildStatus(targetName string, status types.BuildStatus) error {
	return m.mutate(targetName, func(s *state.TargetState) {
		s.BuildStatus = status
		switch status {
		case types.BuildStatusSucceeded:
			s.BuildCount++
		case types.BuildStatusFailed:
			s.FailureCount++
		}
	})
}

// RecordBuild stores a pack outcome and remembers the record
func (m *MockStateManager) RecordBuild(targetName string, record state.BuildRecord) error {
	err := m.mutate(targetName, func(s *state.TargetState) {
		s.BuildStatus = record.Status
		s.RunID = record.RunID
		s.Warnings = record.Warnings
		switch record.Status {
		case types.BuildStatusSucceeded:
			s.BuildCount++
			s.Outputs = record.Outputs
			s.LastError = ""
		case types.BuildStatusFailed:
			s.FailureCount++
		}
		if record.Err != nil {
			s.LastError = record.Err.Error()
		}
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.records[targetName] = append(m.records[targetName], record)
	m.mu.Unlock()
	return nil
}

// RemoveState drops the state for a target
func (m *MockStateManager) RemoveState(targetName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, targetName)
	return nil
}

// IsLocked always reports unlocked
func (m *MockStateManager) IsLocked(targetName string) (bool, error) {
	return false, nil
}

// DiscoverStates returns copies of every stored state
func (m *MockStateManager) DiscoverStates() (map[string]*state.TargetState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*state.TargetState, len(m.states))
	for name, s := range m.states {
		copied := *s
		out[name] = &copied
	}
	return out, nil
}

// StartHeartbeat signals HeartbeatStarted
func (m *MockStateManager) StartHeartbeat(ctx context.Context) {
	select {
	case m.heartbeatCh <- struct{}{}:
	default:
	}
}

// StopHeartbeat is a no-op
func (m *MockStateManager) StopHeartbeat() {}

// Cleanup returns the configured cleanup error
func (m *MockStateManager) Cleanup() error {
	return m.cleanupError
}

// HeartbeatStarted is signalled by StartHeartbeat
func (m *MockStateManager) HeartbeatStarted() <-chan struct{} {
	return m.heartbeatCh
}

// Records returns the build records stored for a target
func (m *MockStateManager) Records(targetName string) []state.BuildRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]state.BuildRecord(nil), m.records[targetName]...)
}

// SetInitError sets the error to return from InitializeState
func (m *MockStateManager) SetInitError(err error) {
	m.initError = err
}

// SetUpdateError sets the error to return from every update
func (m *MockStateManager) SetUpdateError(err error) {
	m.updateError = err
}

// SetCleanupError sets the error to return from Cleanup
func (m *MockStateManager) SetCleanupError(err error) {
	m.cleanupError = err
}

func (m *MockStateManager) mutate(targetName string, apply func(*state.TargetState)) error {
	if m.updateError != nil {
		return m.updateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[targetName]
	if !ok {
		return fmt.Errorf("target state not found: %s", targetName)
	}
	apply(s)
	return nil
}

// MockBuilder is a scriptable Builder
type MockBuilder struct {
	mu             sync.RWMutex
	validateError  error
	buildError     error
	buildResult    *pack.Result
	buildDelay     time.Duration
	buildPanic     interface{}
	cleanError     error
	buildCallCount int
	cleanCallCount int
	lastBuildFiles []string
	target         *types.PackTarget
	lastBuildTime  time.Duration
	buildCh        chan []string
	inFlight       int
	maxInFlight    int
}

// NewMockBuilder creates a new mock builder
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{
		lastBuildTime: 100 * time.Millisecond,
		buildCh:       make(chan []string, 16),
	}
}

// Validate returns the configured validation error
func (m *MockBuilder) Validate() error {
	return m.validateError
}

// Build records the call and returns the configured result
func (m *MockBuilder) Build(ctx context.Context, changedFiles []string) (*pack.Result, error) {
	m.mu.Lock()
	m.buildCallCount++
	m.lastBuildFiles = changedFiles
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	delay, result, err, p := m.buildDelay, m.buildResult, m.buildError, m.buildPanic
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	select {
	case m.buildCh <- changedFiles:
	default:
	}

	if p != nil {
		panic(p)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if result == nil {
		result = &pack.Result{}
	}
	return result, err
}

// MaxConcurrentBuilds returns the most Build calls seen running at once
func (m *MockBuilder) MaxConcurrentBuilds() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxInFlight
}

// Clean records the call
func (m *MockBuilder) Clean() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanCallCount++
	return m.cleanError
}

// GetTarget returns the target for this builder
func (m *MockBuilder) GetTarget() *types.PackTarget {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.target
}

// GetLastBuildTime returns the last build time
func (m *MockBuilder) GetLastBuildTime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBuildTime
}

// GetSuccessRate returns a fixed success rate
func (m *MockBuilder) GetSuccessRate() float64 {
	return 0.9
}

// SetTarget sets the target for this builder
func (m *MockBuilder) SetTarget(target *types.PackTarget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.target = target
}

// SetValidateError sets the error to return from Validate
func (m *MockBuilder) SetValidateError(err error) {
	m.validateError = err
}

// SetBuildError sets the error to return from Build
func (m *MockBuilder) SetBuildError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildError = err
}

// SetBuildResult sets the result to return from Build
func (m *MockBuilder) SetBuildResult(result *pack.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildResult = result
}

// SetBuildDelay makes Build block for d or until its context ends
func (m *MockBuilder) SetBuildDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildDelay = d
}

// SetBuildPanic makes Build panic with v
func (m *MockBuilder) SetBuildPanic(v interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildPanic = v
}

// SetCleanError sets the error to return from Clean
func (m *MockBuilder) SetCleanError(err error) {
	m.cleanError = err
}

// GetBuildCallCount returns the number of times Build was called
func (m *MockBuilder) GetBuildCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buildCallCount
}

// GetCleanCallCount returns the number of times Clean was called
func (m *MockBuilder) GetCleanCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cleanCallCount
}

// GetLastBuildFiles returns the files from the last Build call
func (m *MockBuilder) GetLastBuildFiles() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBuildFiles
}

// Builds delivers the changed files of each Build call
func (m *MockBuilder) Builds() <-chan []string {
	return m.buildCh
}

// MockBuilderFactory hands out registered builders
type MockBuilderFactory struct {
	mu       sync.Mutex
	builders map[string]*MockBuilder
}

// NewMockBuilderFactory creates a new mock builder factory
func NewMockBuilderFactory() *MockBuilderFactory {
	return &MockBuilderFactory{
		builders: make(map[string]*MockBuilder),
	}
}

// CreateBuilder returns the registered builder for target, creating one
// when none is registered
func (f *MockBuilderFactory) CreateBuilder(target *types.PackTarget, projectRoot string, log logger.Logger, stateManager interfaces.StateManager) interfaces.Builder {
	f.mu.Lock()
	defer f.mu.Unlock()

	builder, ok := f.builders[target.GetName()]
	if !ok {
		builder = NewMockBuilder()
		f.builders[target.GetName()] = builder
	}
	builder.SetTarget(target)
	return builder
}

// RegisterBuilder registers a builder for a target
func (f *MockBuilderFactory) RegisterBuilder(targetName string, builder *MockBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[targetName] = builder
}

// Builder returns the builder handed out for a target
func (f *MockBuilderFactory) Builder(targetName string) *MockBuilder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builders[targetName]
}

// MockNotifier records notifications
type MockNotifier struct {
	mu        sync.Mutex
	Starts    []string
	Successes []string
	Failures  []string
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// NotifyBuildStart records a start
func (n *MockNotifier) NotifyBuildStart(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Starts = append(n.Starts, target)
}

// NotifyBuildSuccess records a success
func (n *MockNotifier) NotifyBuildSuccess(target string, duration time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Successes = append(n.Successes, target)
}

// NotifyBuildFailure records a failure
func (n *MockNotifier) NotifyBuildFailure(target string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Failures = append(n.Failures, target)
}

// Counts returns the number of start, success and failure notifications
func (n *MockNotifier) Counts() (starts, successes, failures int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Starts), len(n.Successes), len(n.Failures)
}

// MockFileWatcher lets tests trigger settled changes by hand
type MockFileWatcher struct {
	mu        sync.RWMutex
	callbacks map[string]interfaces.FileChangeCallback
	watchErr  error
	closed    bool
}

// NewMockFileWatcher creates a new mock file watcher
func NewMockFileWatcher() *MockFileWatcher {
	return &MockFileWatcher{
		callbacks: make(map[string]interfaces.FileChangeCallback),
	}
}

// Watch registers callback for root
func (w *MockFileWatcher) Watch(root string, settling time.Duration, callback interfaces.FileChangeCallback) error {
	if w.watchErr != nil {
		return w.watchErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks[root] = callback
	return nil
}

// Remove unregisters root
func (w *MockFileWatcher) Remove(root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.callbacks, root)
	return nil
}

// Close marks the watcher closed
func (w *MockFileWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// SetWatchError sets the error to return from Watch
func (w *MockFileWatcher) SetWatchError(err error) {
	w.watchErr = err
}

// Roots returns the watched roots
func (w *MockFileWatcher) Roots() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	roots := make([]string, 0, len(w.callbacks))
	for root := range w.callbacks {
		roots = append(roots, root)
	}
	return roots
}

// IsClosed reports whether Close was called
func (w *MockFileWatcher) IsClosed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

// Trigger delivers files to the callback of root, reporting whether one
// was registered
func (w *MockFileWatcher) Trigger(root string, files []string) bool {
	w.mu.RLock()
	callback, ok := w.callbacks[root]
	w.mu.RUnlock()

	if ok && callback != nil {
		callback(files)
	}
	return ok
}
