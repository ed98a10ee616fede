package engine

import (
	"context"
	"sync"

	"github.com/teranos/jitter/am"
	"github.com/teranos/jitter/callstack"
	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/logger"
)

// PendingError is returned by the Pending hook. It always matches
// errors.ErrNotImplemented. Discovery is nil when discovery itself failed;
// Cause then says why.
type PendingError struct {
	Discovery *Discovery
	Cause     error
}

func (e *PendingError) Error() string {
	if e.Discovery != nil {
		return e.Discovery.Target + ": not implemented"
	}
	if e.Cause != nil {
		return "not implemented (discovery failed: " + e.Cause.Error() + ")"
	}
	return "not implemented"
}

// Is makes a PendingError match errors.ErrNotImplemented
func (e *PendingError) Is(target error) bool {
	return target == errors.ErrNotImplemented
}

// Unwrap exposes the discovery failure, if any
func (e *PendingError) Unwrap() error { return e.Cause }

// AsPending returns the PendingError in err's chain, or nil
func AsPending(err error) *PendingError {
	var pe *PendingError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}

var (
	defaultMu     sync.RWMutex
	defaultEngine *Engine
)

// Default returns the engine used by the package-level Pending hook.
// Until SetDefault is called it is built from the loaded configuration.
func Default() *Engine {
	defaultMu.RLock()
	e := defaultEngine
	defaultMu.RUnlock()
	if e != nil {
		return e
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEngine == nil {
		opts := Options{Root: ".", MaxDepth: am.DefaultMaxDepth, IncludeArgs: true}
		if cfg, err := am.Load(); err == nil {
			opts = OptionsFromConfig(cfg)
		}
		defaultEngine = New(opts, nil)
	}
	return defaultEngine
}

// SetDefault replaces the engine used by the package-level Pending hook
func SetDefault(e *Engine) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultEngine = e
}

// Pending is the hook a not-yet-written function calls with its own
// arguments. It runs discovery on the spot, against the calling function
// and the stack that reached it, and returns the result as a
// *PendingError:
//
//	func Interpret(tokens []tokenizer.Token) (float64, error) {
//		return 0, engine.Pending(tokens)
//	}
//
// Functions without an error result panic with it instead.
func Pending(args ...interface{}) error {
	return Default().pending(args)
}

// Pending is the package-level hook bound to e
func (e *Engine) Pending(args ...interface{}) error {
	return e.pending(args)
}

// pending must be called directly from one of the Pending hooks so that
// the pending function sits two frames up
func (e *Engine) pending(args []interface{}) error {
	frames := callstack.Callers(2)
	d, err := e.Discover(context.Background(), Trigger{Frames: frames, Args: args})
	if err != nil {
		e.log.Warnw("Discovery failed at pending function", logger.FieldError, err)
		return &PendingError{Cause: err}
	}
	return &PendingError{Discovery: d}
}
