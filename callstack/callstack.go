// Package callstack rebuilds the chain of calls that led to a trigger.
//
// Frames come from runtime.Callers at the moment the trigger fires. Each
// frame is mapped back to the source snapshot: the enclosing declaration
// and the exact line of the call into the next frame.
package callstack

import (
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/jitter/logger"
	"github.com/teranos/jitter/resolve"
	"github.com/teranos/jitter/source"
)

// Frame is a raw program counter resolved to a function and position
type Frame struct {
	Function string `json:"function" yaml:"function"`
	File     string `json:"file" yaml:"file"` // absolute
	Line     int    `json:"line" yaml:"line"`
}

// Callers returns the active frames of the calling goroutine, innermost
// first. skip=0 starts at the caller of Callers.
func Callers(skip int) []Frame {
	pcs := make([]uintptr, 64)
	for {
		n := runtime.Callers(skip+2, pcs)
		if n < len(pcs) {
			pcs = pcs[:n]
			break
		}
		pcs = make([]uintptr, len(pcs)*2)
	}

	frames := runtime.CallersFrames(pcs)
	var out []Frame
	for {
		f, more := frames.Next()
		out = append(out, Frame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return out
}

// StackFrame is one caller in a reconstructed trail
type StackFrame struct {
	Function string               `json:"function" yaml:"function"`
	File     string               `json:"file" yaml:"file"` // relative to the source root
	Decl     *resolve.Declaration `json:"decl,omitempty" yaml:"decl,omitempty"`
	CallLine int                  `json:"call_line" yaml:"call_line"`
	CallText string               `json:"call_text" yaml:"call_text"`
}

// Trail is the reconstructed chain, outermost caller first
type Trail struct {
	Frames    []StackFrame `json:"frames" yaml:"frames"`
	Truncated bool         `json:"truncated" yaml:"truncated"`
	MaxDepth  int          `json:"max_depth" yaml:"max_depth"`
}

// Reconstructor maps runtime frames onto a source snapshot
type Reconstructor struct {
	snap    *source.Snapshot
	log     *zap.SugaredLogger
	entries map[string]bool
}

// Option configures a Reconstructor
type Option func(*Reconstructor)

// WithEntryFunctions adds functions that end the walk, excluded, in
// addition to runtime.main, runtime.goexit and testing.tRunner
func WithEntryFunctions(names ...string) Option {
	return func(r *Reconstructor) {
		for _, n := range names {
			r.entries[n] = true
		}
	}
}

// New creates a Reconstructor over snap
func New(snap *source.Snapshot, opts ...Option) *Reconstructor {
	r := &Reconstructor{
		snap: snap,
		log:  logger.ComponentLogger("callstack"),
		entries: map[string]bool{
			"runtime.main":    true,
			"runtime.goexit":  true,
			"testing.tRunner": true,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capture walks outward from frames[0], the trigger, which is not part of
// the trail. The walk stops at the program entry point or after maxDepth
// caller frames; a negative maxDepth means no bound. Frames outside the
// source root are skipped and not counted. When more caller frames remain
// than maxDepth allows, the trail is marked truncated. Missing frames are
// never invented.
func (r *Reconstructor) Capture(frames []Frame, maxDepth int) Trail {
	trail := Trail{MaxDepth: maxDepth}
	if len(frames) < 2 {
		return trail
	}

	var inner []StackFrame
	for _, f := range frames[1:] {
		if r.entries[f.Function] {
			break
		}
		if !r.snap.Contains(f.File) {
			continue
		}
		if maxDepth >= 0 && len(inner) == maxDepth {
			trail.Truncated = true
			break
		}

		inner = append(inner, r.frame(f))
		if f.Function == "main.main" {
			break
		}
	}

	// Reading order: how did we get here
	for i := len(inner) - 1; i >= 0; i-- {
		trail.Frames = append(trail.Frames, inner[i])
	}

	r.log.Debugw("Captured call stack",
		logger.FieldFrames, len(trail.Frames),
		logger.FieldDepth, maxDepth,
		logger.FieldTruncated, trail.Truncated)
	return trail
}

func (r *Reconstructor) frame(f Frame) StackFrame {
	sf := StackFrame{
		Function: displayName(f.Function),
		File:     r.snap.Rel(f.File),
		CallLine: f.Line,
	}

	if text, err := r.snap.Line(f.File, f.Line); err == nil {
		sf.CallText = text
	} else {
		r.log.Debugw("Call line unavailable", logger.FieldFile, sf.File, logger.FieldLine, f.Line, logger.FieldError, err)
	}

	if fn, err := r.snap.EnclosingFunc(f.File, f.Line); err == nil {
		sf.Decl = resolve.FuncDeclaration(fn)
		sf.Function = sf.Decl.QualifiedName
	}
	return sf
}

// displayName turns a runtime symbol such as "pkg/path.(*T).M.func1" into
// "pkg/path.T.M" so frames without a declaration still read like one
func displayName(fn string) string {
	fn = strings.ReplaceAll(fn, "[...]", "")
	slash := strings.LastIndex(fn, "/")
	head, tail := fn[:slash+1], fn[slash+1:]

	parts := strings.Split(tail, ".")
	kept := parts[:0]
	for _, p := range parts {
		if len(p) > 4 && strings.HasPrefix(p, "func") && strings.Trim(p[4:], "0123456789") == "" {
			break
		}
		p = strings.TrimSuffix(strings.TrimPrefix(p, "(*"), ")")
		kept = append(kept, p)
	}
	return head + strings.Join(kept, ".")
}
