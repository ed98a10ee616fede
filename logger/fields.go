package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across jitter.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldTriggerID = "trigger_id"
	FieldComponent = "component"

	// Symbols
	FieldTarget = "target" // qualified name of the pending function
	FieldSymbol = "symbol" // any qualified name being resolved or patched
	FieldScope  = "scope"  // import path of a loaded unit
	FieldAlias  = "alias"  // local name bound to another scope's symbol
	FieldKind   = "kind"

	// Source locations
	FieldFile  = "file"
	FieldLine  = "line"
	FieldRoot  = "root"
	FieldDepth = "depth"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError  = "error"
	FieldReason = "reason"

	// Counts and sizes
	FieldCount     = "count"
	FieldTypes     = "types"
	FieldFrames    = "frames"
	FieldPatched   = "patched"
	FieldFailures  = "failures"
	FieldTruncated = "truncated"
)

// Context keys for propagating logging context
type contextKey string

const (
	triggerIDKey contextKey = "logger_trigger_id"
	componentKey contextKey = "logger_component"
)

// WithTriggerID adds a triggering event ID to the context for logging
func WithTriggerID(ctx context.Context, triggerID string) context.Context {
	return context.WithValue(ctx, triggerIDKey, triggerID)
}

// TriggerIDFromContext returns the triggering event ID, or "" if none
func TriggerIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(triggerIDKey).(string)
	return id
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if id, ok := ctx.Value(triggerIDKey).(string); ok && id != "" {
		fields = append(fields, FieldTriggerID, id)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// LoggerFromContext returns a logger with fields extracted from context.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return Logger
	}
	return Logger.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	func New(snap *source.Snapshot) *Resolver {
//	    return &Resolver{
//	        log: logger.ComponentLogger("resolve"),
//	    }
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
//
// Example:
//
//	frameLog := logger.ChildLogger(r.log, logger.FieldFile, frame.File)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
