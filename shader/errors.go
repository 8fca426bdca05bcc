package shader

import (
	"errors"
	"fmt"

	"render-pipeline/internal/gpu"
)

var (
	// ErrIncludeCycle is returned when a file includes itself, directly or
	// through other files.
	ErrIncludeCycle = errors.New("include cycle")
	// ErrIncludeDepth is returned when includes nest deeper than maxIncludeDepth.
	ErrIncludeDepth = errors.New("include nesting too deep")
	// ErrNotLinked is returned when a program is activated before a successful link.
	ErrNotLinked = errors.New("program is not linked")
)

// CompileError carries the compiler log of a failed stage. Log is verbatim;
// Annotated maps line numbers back to source files where possible.
type CompileError struct {
	File      string
	Kind      gpu.ShaderKind
	Log       string
	Annotated string
	Err       error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compile %s shader %s: %v", e.Kind, e.File, e.Err)
	}
	return fmt.Sprintf("compile %s shader %s failed:\n%s", e.Kind, e.File, e.Annotated)
}

func (e *CompileError) Unwrap() error { return e.Err }

type LinkError struct {
	Program string
	Log     string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link program %s failed:\n%s", e.Program, e.Log)
}
