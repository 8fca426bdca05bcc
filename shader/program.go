package shader

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"render-pipeline/internal/gpu"
	"render-pipeline/internal/logx"
)

// Program owns its stage objects and the native program linked from them.
type Program struct {
	dev    gpu.Device
	name   string
	log    *slog.Logger
	handle gpu.Handle

	objects []*Object
	linked  bool
	linkLog string

	locations   map[string]int32
	ignoreError bool

	attribs  map[string]uint32
	fragData map[string]uint32
}

func NewProgram(dev gpu.Device, name string) *Program {
	return &Program{
		dev:       dev,
		name:      name,
		log:       logx.For("shader").With("program", name),
		locations: make(map[string]int32),
		attribs:   make(map[string]uint32),
		fragData:  make(map[string]uint32),
	}
}

func (p *Program) Name() string { return p.name }
func (p *Program) Handle() gpu.Handle { return p.handle }
func (p *Program) IsLinked() bool { return p.linked }
func (p *Program) LinkerLog() string { return p.linkLog }
func (p *Program) Objects() []*Object { return slices.Clone(p.objects) }

func (p *Program) ensureHandle() {
	if p.handle == 0 {
		p.handle = p.dev.CreateProgram()
	}
}

// Attach adds obj to the program. Attaching twice is a no-op.
func (p *Program) Attach(obj *Object) {
	if slices.Contains(p.objects, obj) {
		return
	}
	p.ensureHandle()
	p.objects = append(p.objects, obj)
	if obj.Handle() != 0 {
		p.dev.AttachShader(p.handle, obj.Handle())
	}
}

// Detach removes obj without deleting it.
func (p *Program) Detach(obj *Object) {
	i := slices.Index(p.objects, obj)
	if i < 0 {
		return
	}
	if p.handle != 0 && obj.Handle() != 0 {
		p.dev.DetachShader(p.handle, obj.Handle())
	}
	p.objects = slices.Delete(p.objects, i, i+1)
}

// DetachByKind detaches and deletes every object of the given stage kind.
func (p *Program) DetachByKind(kind gpu.ShaderKind) {
	for _, obj := range slices.Clone(p.objects) {
		if obj.Kind() == kind {
			p.Detach(obj)
			obj.Delete()
		}
	}
}

// BindAttribLocation fixes an attribute index. It applies from the next link.
func (p *Program) BindAttribLocation(index uint32, name string) {
	p.attribs[name] = index
}

// BindFragDataLocation fixes a fragment output's color number. It applies
// from the next link.
func (p *Program) BindFragDataLocation(color uint32, name string) {
	p.fragData[name] = color
}

func (p *Program) AttribLocation(name string) int32 {
	return p.dev.AttribLocation(p.handle, name)
}

// Link links the attached objects. Relinking a linked program reattaches
// every object first, so objects recompiled into new shaders are picked
// up. Geometry parameters and location bindings are pushed before each
// link. Cached uniform locations are dropped.
func (p *Program) Link() error {
	p.ensureHandle()
	clear(p.locations)

	for _, obj := range p.objects {
		if obj.Handle() == 0 {
			continue
		}
		p.dev.DetachShader(p.handle, obj.Handle())
		p.dev.AttachShader(p.handle, obj.Handle())
		if obj.Kind() == gpu.GeometryShader {
			g := obj.Geometry()
			p.dev.ProgramParameter(p.handle, gpu.GeometryInputType, int(g.Input))
			p.dev.ProgramParameter(p.handle, gpu.GeometryOutputType, int(g.Output))
			p.dev.ProgramParameter(p.handle, gpu.GeometryVerticesOut, g.VerticesOut)
		}
	}
	for name, idx := range p.attribs {
		p.dev.BindAttribLocation(p.handle, idx, name)
	}
	for name, color := range p.fragData {
		p.dev.BindFragDataLocation(p.handle, color, name)
	}

	ok, log := p.dev.LinkProgram(p.handle)
	p.linkLog = log
	p.linked = ok
	if !ok {
		return &LinkError{Program: p.name, Log: log}
	}
	return nil
}

// Activate makes the program current.
func (p *Program) Activate() error {
	if !p.linked {
		p.log.Error("activate on unlinked program")
		return fmt.Errorf("activate %s: %w", p.name, ErrNotLinked)
	}
	p.dev.UseProgram(p.handle)
	return nil
}

func (p *Program) Deactivate() {
	if p.IsActivated() {
		p.dev.UseProgram(0)
	}
}

// IsActivated reports whether the device's current program is this one.
func (p *Program) IsActivated() bool {
	return p.handle != 0 && p.dev.CurrentProgram() == p.handle
}

// SetHeaders replaces the header of every object. It does not recompile
// or relink; call Rebuild.
func (p *Program) SetHeaders(header string, processHeader bool) {
	for _, obj := range p.objects {
		obj.SetHeader(header, processHeader)
	}
}

// Rebuild recompiles every object from its current source and relinks.
func (p *Program) Rebuild() error {
	var errs []error
	for _, obj := range p.objects {
		if err := obj.Compile(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		p.linked = false
		return errors.Join(errs...)
	}
	return p.Link()
}

// RebuildFromFile re-reads every object from disk, recompiles and relinks.
func (p *Program) RebuildFromFile() error {
	var errs []error
	for _, obj := range p.objects {
		if err := obj.RebuildFromFile(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		p.linked = false
		return errors.Join(errs...)
	}
	return p.Link()
}

// Delete frees the program and every attached object.
func (p *Program) Delete() {
	p.Deactivate()
	for _, obj := range p.objects {
		if p.handle != 0 && obj.Handle() != 0 {
			p.dev.DetachShader(p.handle, obj.Handle())
		}
		obj.Delete()
	}
	p.objects = nil
	if p.handle != 0 {
		p.dev.DeleteProgram(p.handle)
		p.handle = 0
	}
	p.linked = false
	clear(p.locations)
}
