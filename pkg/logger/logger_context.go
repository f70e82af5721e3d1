package logger

import (
	"context"

	pcontext "github.com/poltergeist/atlaspack/pkg/context"
)

// WithContext returns a logger that adds the run metadata carried by ctx to
// every entry
func WithContext(ctx context.Context, logger Logger) Logger {
	if ctx == nil {
		return logger
	}
	return &contextualLogger{ctx: ctx, logger: logger}
}

// ContextFields returns the run metadata of ctx as log fields
func ContextFields(ctx context.Context) []Field {
	runID := pcontext.GetRunID(ctx)
	if runID == "" {
		return nil
	}
	fields := []Field{
		WithField("run", runID),
		WithField("trigger", pcontext.GetTrigger(ctx)),
	}
	if d := pcontext.GetDuration(ctx); d > 0 {
		fields = append(fields, WithField("elapsed_ms", d.Milliseconds()))
	}
	return fields
}

type contextualLogger struct {
	ctx    context.Context
	logger Logger
}

func (cl *contextualLogger) with(fields []Field) []Field {
	return append(ContextFields(cl.ctx), fields...)
}

func (cl *contextualLogger) Info(message string, fields ...Field) {
	cl.logger.Info(message, cl.with(fields)...)
}

func (cl *contextualLogger) Error(message string, fields ...Field) {
	cl.logger.Error(message, cl.with(fields)...)
}

func (cl *contextualLogger) Warn(message string, fields ...Field) {
	cl.logger.Warn(message, cl.with(fields)...)
}

func (cl *contextualLogger) Debug(message string, fields ...Field) {
	cl.logger.Debug(message, cl.with(fields)...)
}

func (cl *contextualLogger) Success(message string, fields ...Field) {
	cl.logger.Success(message, cl.with(fields)...)
}

func (cl *contextualLogger) WithTarget(target string) Logger {
	return &contextualLogger{
		ctx:    cl.ctx,
		logger: cl.logger.WithTarget(target),
	}
}
