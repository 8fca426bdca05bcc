package shader

import (
	"fmt"

	"render-pipeline/internal/gpu"
	"render-pipeline/internal/logx"
)

// Object is one shader stage: its source file, the header injected into
// it and the native shader compiled from both.
type Object struct {
	dev    gpu.Device
	loader *Loader

	name string
	path string
	kind gpu.ShaderKind

	raw           string
	header        string
	processHeader bool

	source   string
	lines    lineTracker
	geometry GeometryParams

	handle   gpu.Handle
	compiled bool
	log      string
}

// NewObject creates a stage for file name. Nothing is read or compiled
// until LoadFile/SetSource and Compile.
func NewObject(dev gpu.Device, loader *Loader, kind gpu.ShaderKind, name string) *Object {
	return &Object{
		dev:      dev,
		loader:   loader,
		name:     name,
		path:     name,
		kind:     kind,
		geometry: DefaultGeometryParams(),
	}
}

// LoadFile reads the stage source through the loader.
func (o *Object) LoadFile() error {
	full, content, err := o.loader.ReadFile(o.name)
	if err != nil {
		return err
	}
	o.path = full
	o.raw = content
	return nil
}

// SetSource replaces the unprocessed source.
func (o *Object) SetSource(src string) {
	o.raw = src
}

// SetHeader replaces the header. It takes effect on the next Compile.
func (o *Object) SetHeader(header string, process bool) {
	o.header = header
	o.processHeader = process
}

func (o *Object) Header() (string, bool) { return o.header, o.processHeader }

// Compile preprocesses the source and compiles it into the stage's native
// shader, creating it on first use. Failures are returned as *CompileError
// and leave the object uncompiled.
func (o *Object) Compile() error {
	o.compiled = false
	o.log = ""

	src := o.raw
	header := BuildHeader(o.header, o.processHeader)
	if o.kind == gpu.GeometryShader {
		stripped, gp, err := scanGeometry(src)
		if err != nil {
			return o.fail(err)
		}
		src = stripped
		o.geometry = gp
		header += gp.layoutDeclaration(stripped)
	}

	processed, lines, err := preprocess(o.loader, o.path, src, header)
	if err != nil {
		return o.fail(err)
	}
	o.source = processed
	o.lines = lines

	if o.handle == 0 {
		o.handle = o.dev.CreateShader(o.kind)
	}
	ok, log := o.dev.CompileShader(o.handle, o.source)
	if !ok {
		o.log = log
		return &CompileError{File: o.path, Kind: o.kind, Log: log, Annotated: o.AnnotatedLog()}
	}
	if log != "" {
		logx.For("shader").Warn("compiler warnings", "file", o.path, "log", annotateLog(log, o.lines))
	}
	o.compiled = true
	return nil
}

func (o *Object) fail(err error) error {
	o.log = err.Error() + "\n"
	return &CompileError{File: o.path, Kind: o.kind, Log: o.log, Annotated: o.log, Err: err}
}

// RebuildFromFile re-reads the file and recompiles into the same native
// shader.
func (o *Object) RebuildFromFile() error {
	if err := o.LoadFile(); err != nil {
		logx.For("shader").Warn("failed to reload shader", "file", o.name, "err", err)
		return fmt.Errorf("reload %s: %w", o.name, err)
	}
	return o.Compile()
}

// Log is the compiler output of the last failed compile, verbatim. It is
// empty after a successful compile; warnings go to the shader logger.
func (o *Object) Log() string { return o.log }

// AnnotatedLog is Log with " [file:line]" appended to every message that
// refers to a line of the processed source.
func (o *Object) AnnotatedLog() string {
	return annotateLog(o.log, o.lines)
}

func (o *Object) IsCompiled() bool { return o.compiled }
func (o *Object) Kind() gpu.ShaderKind { return o.kind }
func (o *Object) Path() string { return o.path }
func (o *Object) Handle() gpu.Handle { return o.handle }
func (o *Object) Geometry() GeometryParams { return o.geometry }

// Source is the text last submitted to the compiler.
func (o *Object) Source() string { return o.source }

// Delete frees the native shader.
func (o *Object) Delete() {
	if o.handle != 0 {
		o.dev.DeleteShader(o.handle)
		o.handle = 0
	}
	o.compiled = false
}
