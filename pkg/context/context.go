// Package context carries pack run metadata through context.Context
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Unexported struct pointers keep keys from colliding with other packages
var (
	runIDKey     = &struct{}{}
	targetKey    = &struct{}{}
	triggerKey   = &struct{}{}
	startTimeKey = &struct{}{}
)

// Trigger names what started a pack run
type Trigger string

const (
	TriggerCommand Trigger = "command"
	TriggerWatch   Trigger = "watch"
)

// NewRunID creates a unique pack run ID
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// WithRunID adds a run ID to the context, generating one when empty
func WithRunID(parent context.Context, runID string) context.Context {
	if runID == "" {
		runID = NewRunID()
	}
	return context.WithValue(parent, runIDKey, runID)
}

// GetRunID returns the run ID, or "" when none is set
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithTarget records the pack target a context belongs to
func WithTarget(parent context.Context, target string) context.Context {
	return context.WithValue(parent, targetKey, target)
}

// GetTarget returns the pack target, or ""
func GetTarget(ctx context.Context) string {
	target, _ := ctx.Value(targetKey).(string)
	return target
}

// WithTrigger records what started the run
func WithTrigger(parent context.Context, trigger Trigger) context.Context {
	return context.WithValue(parent, triggerKey, trigger)
}

// GetTrigger returns the run trigger, defaulting to TriggerCommand
func GetTrigger(ctx context.Context) Trigger {
	if trigger, ok := ctx.Value(triggerKey).(Trigger); ok {
		return trigger
	}
	return TriggerCommand
}

// WithStartTime adds the run start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetDuration returns the time elapsed since the start time, or 0 when the
// context carries none
func GetDuration(ctx context.Context) time.Duration {
	start, ok := ctx.Value(startTimeKey).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}

// NewRun returns a context for one pack run of target: a fresh run ID, the
// trigger and the start time
func NewRun(parent context.Context, target string, trigger Trigger) context.Context {
	ctx := WithRunID(parent, "")
	ctx = WithTarget(ctx, target)
	ctx = WithTrigger(ctx, trigger)
	return WithStartTime(ctx, time.Now())
}
