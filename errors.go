package reel

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned by this package wraps one of these,
// so callers can classify failures with errors.Is.
var (
	// ErrProject marks invalid project edits: bad connections, missing
	// containers, cycles and out-of-range keyframe indices.
	ErrProject = errors.New("reel: project error")
	// ErrRender marks renderer failures.
	ErrRender = errors.New("reel: render error")
	// ErrPlugin marks a missing or misbehaving evaluator, converter or
	// property kind.
	ErrPlugin = errors.New("reel: plugin error")
)

// ProjectError describes a rejected project edit.
type ProjectError struct {
	Op  string
	Msg string
}

func (e *ProjectError) Error() string { return "reel: " + e.Op + ": " + e.Msg }

func (e *ProjectError) Unwrap() error { return ErrProject }

func projectErrorf(op, format string, args ...any) error {
	return &ProjectError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// RenderError wraps a renderer failure.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string { return "reel: " + e.Op + ": " + e.Err.Error() }

func (e *RenderError) Unwrap() []error { return []error{ErrRender, e.Err} }
