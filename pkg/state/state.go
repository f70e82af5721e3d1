// Package state provides persistent per-target pack state
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/types"
)

// DirName is the project-relative directory holding state files
const DirName = ".atlaspack"

// TargetState is the persisted state of one pack target
type TargetState struct {
	TargetName    string            `json:"targetName"`
	BuildStatus   types.BuildStatus `json:"buildStatus"`
	LastBuildTime time.Time         `json:"lastBuildTime"`
	BuildCount    int               `json:"buildCount"`
	FailureCount  int               `json:"failureCount"`
	ProcessID     int               `json:"processId"`
	Heartbeat     time.Time         `json:"heartbeat"`
	RunID         string            `json:"runId,omitempty"`
	LastError     string            `json:"lastError,omitempty"`
	BuildDuration time.Duration     `json:"buildDuration,omitempty"`
	Outputs       []string          `json:"outputs,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
	ChangedFiles  []string          `json:"changedFiles,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SuccessRate is the share of finished packs that succeeded
func (s *TargetState) SuccessRate() float64 {
	total := s.BuildCount + s.FailureCount
	if total == 0 {
		return 0
	}
	return float64(s.BuildCount) / float64(total)
}

func (s *TargetState) clone() *TargetState {
	c := *s
	c.Outputs = append([]string(nil), s.Outputs...)
	c.Warnings = append([]string(nil), s.Warnings...)
	c.ChangedFiles = append([]string(nil), s.ChangedFiles...)
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// BuildRecord is the outcome of one pack, applied by RecordBuild
type BuildRecord struct {
	Status       types.BuildStatus
	RunID        string
	Duration     time.Duration
	Outputs      []string
	Warnings     []string
	ChangedFiles []string
	Err          error
}

// StateManager handles persistent state files
type StateManager struct {
	stateDir          string
	logger            logger.Logger
	mu                sync.RWMutex
	states            map[string]*TargetState
	heartbeatStop     chan struct{}
	heartbeatTimer    *time.Ticker
	heartbeatInterval time.Duration
}

// NewStateManager creates a state manager storing files under
// projectRoot/.atlaspack/state
func NewStateManager(projectRoot string, log logger.Logger) *StateManager {
	if log == nil {
		log = logger.CreateLoggerWithOutput("", "error", io.Discard)
	}
	stateDir := filepath.Join(projectRoot, DirName, "state")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		log.Error("Failed to create state directory", logger.WithField("error", err))
	}

	return &StateManager{
		stateDir:          stateDir,
		logger:            log,
		states:            make(map[string]*TargetState),
		heartbeatInterval: 10 * time.Second,
	}
}

// StateDir returns the directory holding state files
func (sm *StateManager) StateDir() string {
	return sm.stateDir
}

// SetHeartbeatInterval changes the heartbeat period; it takes effect on the
// next StartHeartbeat
func (sm *StateManager) SetHeartbeatInterval(d time.Duration) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.heartbeatInterval = d
}

// InitializeState creates state for a target, keeping the statistics and
// outputs of an earlier run
func (sm *StateManager) InitializeState(target *types.PackTarget) (*TargetState, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state := &TargetState{
		TargetName:  target.GetName(),
		BuildStatus: types.BuildStatusIdle,
		ProcessID:   os.Getpid(),
		Heartbeat:   time.Now(),
	}

	if existing, err := sm.loadStateFile(target.GetName()); err == nil {
		state.BuildCount = existing.BuildCount
		state.FailureCount = existing.FailureCount
		state.LastBuildTime = existing.LastBuildTime
		state.BuildDuration = existing.BuildDuration
		state.LastError = existing.LastError
		state.Outputs = existing.Outputs
		state.RunID = existing.RunID
	}

	if err := sm.saveStateFile(state); err != nil {
		return nil, fmt.Errorf("failed to save initial state: %w", err)
	}

	sm.states[target.GetName()] = state
	return state.clone(), nil
}

// ReadState returns a copy of the state for a target
func (sm *StateManager) ReadState(targetName string) (*TargetState, error) {
	sm.mu.RLock()
	if state, ok := sm.states[targetName]; ok {
		defer sm.mu.RUnlock()
		return state.clone(), nil
	}
	sm.mu.RUnlock()

	return sm.loadStateFile(targetName)
}

// UpdateState applies updates keyed by state field name. Unknown keys are
// stored as metadata.
func (sm *StateManager) UpdateState(targetName string, updates map[string]interface{}) error {
	return sm.mutate(targetName, func(state *TargetState) {
		for key, value := range updates {
			switch key {
			case "buildStatus":
				if status, ok := value.(types.BuildStatus); ok {
					state.BuildStatus = status
				}
			case "lastBuildTime":
				if t, ok := value.(time.Time); ok {
					state.LastBuildTime = t
				}
			case "buildCount":
				if count, ok := value.(int); ok {
					state.BuildCount = count
				}
			case "failureCount":
				if count, ok := value.(int); ok {
					state.FailureCount = count
				}
			case "lastError":
				if err, ok := value.(string); ok {
					state.LastError = err
				}
			case "buildDuration":
				if duration, ok := value.(time.Duration); ok {
					state.BuildDuration = duration
				}
			case "runId":
				if id, ok := value.(string); ok {
					state.RunID = id
				}
			case "outputs":
				if files, ok := value.([]string); ok {
					state.Outputs = files
				}
			case "warnings":
				if warnings, ok := value.([]string); ok {
					state.Warnings = warnings
				}
			case "changedFiles":
				if files, ok := value.([]string); ok {
					state.ChangedFiles = files
				}
			default:
				if state.Metadata == nil {
					state.Metadata = make(map[string]string)
				}
				state.Metadata[key] = fmt.Sprint(value)
			}
		}
	})
}

// UpdateBuildStatus sets the status, counting finished packs
func (sm *StateManager) UpdateBuildStatus(targetName string, status types.BuildStatus) error {
	return sm.mutate(targetName, func(state *TargetState) {
		state.BuildStatus = status
		switch status {
		case types.BuildStatusSucceeded:
			state.LastBuildTime = time.Now()
			state.BuildCount++
		case types.BuildStatusFailed:
			state.LastBuildTime = time.Now()
			state.FailureCount++
		}
	})
}

// RecordBuild stores the outcome of a pack. Outputs are only replaced by a
// successful pack so a failure never forgets generated files.
func (sm *StateManager) RecordBuild(targetName string, record BuildRecord) error {
	return sm.mutate(targetName, func(state *TargetState) {
		state.BuildStatus = record.Status
		state.RunID = record.RunID
		state.BuildDuration = record.Duration
		state.Warnings = record.Warnings
		state.ChangedFiles = record.ChangedFiles
		state.LastBuildTime = time.Now()

		switch record.Status {
		case types.BuildStatusSucceeded:
			state.BuildCount++
			state.LastError = ""
			state.Outputs = record.Outputs
		case types.BuildStatusFailed:
			state.FailureCount++
		}
		if record.Err != nil {
			state.LastError = record.Err.Error()
		}
	})
}

// RemoveState removes the state for a target
func (sm *StateManager) RemoveState(targetName string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.states, targetName)

	if err := os.Remove(sm.getStateFilePath(targetName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// IsLocked reports whether another live process owns the target's state
func (sm *StateManager) IsLocked(targetName string) (bool, error) {
	state, err := sm.loadStateFile(targetName)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	if state.ProcessID == 0 || state.ProcessID == os.Getpid() {
		return false, nil
	}
	if time.Since(state.Heartbeat) > 30*time.Second {
		return false, nil
	}

	process, err := os.FindProcess(state.ProcessID)
	if err != nil {
		return false, nil
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, nil
	}
	return true, nil
}

// DiscoverStates loads every state file in the state directory
func (sm *StateManager) DiscoverStates() (map[string]*TargetState, error) {
	states := make(map[string]*TargetState)

	files, err := os.ReadDir(sm.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return states, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		targetName := strings.TrimSuffix(file.Name(), ".json")
		state, err := sm.loadStateFile(targetName)
		if err != nil {
			sm.logger.Warn("Failed to load state file",
				logger.WithField("target", targetName),
				logger.WithField("error", err))
			continue
		}
		states[targetName] = state
	}

	return states, nil
}

// StartHeartbeat periodically refreshes the heartbeat of owned states
func (sm *StateManager) StartHeartbeat(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatTimer != nil {
		return
	}

	stop := make(chan struct{})
	ticker := time.NewTicker(sm.heartbeatInterval)
	sm.heartbeatStop = stop
	sm.heartbeatTimer = ticker

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				sm.updateHeartbeats()
			}
		}
	}()
}

// StopHeartbeat stops the heartbeat updater
func (sm *StateManager) StopHeartbeat() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatTimer != nil {
		sm.heartbeatTimer.Stop()
		sm.heartbeatTimer = nil
	}
	if sm.heartbeatStop != nil {
		close(sm.heartbeatStop)
		sm.heartbeatStop = nil
	}
}

// Cleanup releases owned states. A target interrupted mid-pack is recorded
// as cancelled.
func (sm *StateManager) Cleanup() error {
	sm.StopHeartbeat()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, state := range sm.states {
		if state.BuildStatus == types.BuildStatusPacking {
			state.BuildStatus = types.BuildStatusCancelled
		}
		state.ProcessID = 0
		if err := sm.saveStateFile(state); err != nil {
			sm.logger.Warn("Failed to save final state",
				logger.WithField("target", state.TargetName),
				logger.WithField("error", err))
		}
	}
	return nil
}

func (sm *StateManager) mutate(targetName string, apply func(*TargetState)) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state, ok := sm.states[targetName]
	if !ok {
		loaded, err := sm.loadStateFile(targetName)
		if err != nil {
			return fmt.Errorf("target state not found: %s", targetName)
		}
		state = loaded
		sm.states[targetName] = state
	}

	apply(state)
	state.Heartbeat = time.Now()
	return sm.saveStateFile(state)
}

func (sm *StateManager) getStateFilePath(targetName string) string {
	return filepath.Join(sm.stateDir, targetName+".json")
}

func (sm *StateManager) loadStateFile(targetName string) (*TargetState, error) {
	data, err := os.ReadFile(sm.getStateFilePath(targetName))
	if err != nil {
		return nil, err
	}

	var state TargetState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &state, nil
}

func (sm *StateManager) saveStateFile(state *TargetState) error {
	stateFile := sm.getStateFilePath(state.TargetName)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// write then rename so readers never see a partial file
	tempFile := stateFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tempFile, stateFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

func (sm *StateManager) updateHeartbeats() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for _, state := range sm.states {
		state.Heartbeat = now
		if err := sm.saveStateFile(state); err != nil {
			sm.logger.Debug("Failed to update heartbeat",
				logger.WithField("target", state.TargetName),
				logger.WithField("error", err))
		}
	}
}
