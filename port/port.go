// Package port models the render ports through which processing stages
// exchange render targets, and the size negotiation between them.
//
// An out-port owns its RenderTarget; in-ports borrow the target of the
// out-port they are connected to. The size of a shared target is
// dictated by at most one size origin at a time: a second consumer asking
// for a different size from a different origin is refused.
package port

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/c2h5oh/datasize"

	"render-pipeline/core"
	"render-pipeline/internal/gpu"
	"render-pipeline/internal/logx"
	"render-pipeline/math"
	"render-pipeline/shader"
)

type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "out"
}

var (
	ErrSizeOriginConflict = errors.New("size origin conflict")
	ErrNotConnectable     = errors.New("ports cannot be connected")
	ErrNoTarget           = errors.New("port has no render target")
	ErrSnapshotTooLarge   = errors.New("snapshot exceeds size limit")
)

var (
	DefaultColorFormat   = gpu.FormatRGBA16F
	DefaultDepthFormat   = gpu.FormatDepth24
	DefaultSize          = core.Size{W: 128, H: 128}
	DefaultSnapshotLimit = 256 * datasize.MB
)

// Origin is the identity of whoever dictates a size: a canvas, an
// offscreen renderer, a batch job. Only its address matters.
type Origin struct {
	name string
}

func NewOrigin(name string) *Origin { return &Origin{name: name} }

func (o *Origin) String() string {
	if o == nil {
		return "<none>"
	}
	return o.name
}

// Owner is the stage a port belongs to. It takes part in size
// propagation.
type Owner interface {
	Name() string
	// PortResized distributes a new size to the owner's ports.
	PortResized(p *RenderPort, size core.Size)
	// SizeOriginChanged pushes the origin of out-port p to the owner's in-ports.
	SizeOriginChanged(p *RenderPort)
	// TestSizeOrigin reports whether out-port p may adopt origin o without
	// conflicting with the owner's other ports or anything upstream.
	TestSizeOrigin(p *RenderPort, o *Origin) bool
	Invalidate()
}

type Option func(*RenderPort)

func AllowMultipleConnections() Option {
	return func(p *RenderPort) { p.multi = true }
}

// WithFormats sets the target formats. depth may be gpu.FormatNone.
func WithFormats(color, depth gpu.Format) Option {
	return func(p *RenderPort) {
		p.colorFormat = color
		p.depthFormat = depth
	}
}

func WithSize(size core.Size) Option {
	return func(p *RenderPort) { p.size = size }
}

// SharedTarget marks an out-port whose target lifetime is managed by its
// stage instead of following connectivity.
func SharedTarget() Option {
	return func(p *RenderPort) { p.shared = true }
}

type RenderPort struct {
	dir   Direction
	name  string
	owner Owner
	dev   gpu.Device
	log   *slog.Logger

	multi  bool
	shared bool

	colorFormat gpu.Format
	depthFormat gpu.Format
	size        core.Size
	origin      *Origin
	valid       bool

	connected     []*RenderPort
	target        *RenderTarget
	snapshotLimit datasize.ByteSize
}

func New(dir Direction, name string, opts ...Option) *RenderPort {
	p := &RenderPort{
		dir:           dir,
		name:          name,
		colorFormat:   DefaultColorFormat,
		depthFormat:   DefaultDepthFormat,
		size:          DefaultSize,
		snapshotLimit: DefaultSnapshotLimit,
		log:           logx.For("port").With("port", name),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func NewInPort(name string, opts ...Option) *RenderPort { return New(In, name, opts...) }
func NewOutPort(name string, opts ...Option) *RenderPort { return New(Out, name, opts...) }

// Bind attaches the port to its owner and the device its target lives on.
func (p *RenderPort) Bind(owner Owner, dev gpu.Device) {
	p.owner = owner
	p.dev = dev
	if owner != nil {
		p.log = logx.For("port").With("port", p.QualifiedName())
	}
}

func (p *RenderPort) Name() string { return p.name }
func (p *RenderPort) Direction() Direction { return p.dir }
func (p *RenderPort) IsInport() bool { return p.dir == In }
func (p *RenderPort) IsOutport() bool { return p.dir == Out }
func (p *RenderPort) Owner() Owner { return p.owner }
func (p *RenderPort) AllowsMultipleConnections() bool { return p.multi }
func (p *RenderPort) IsShared() bool { return p.shared }

// QualifiedName is "owner::port".
func (p *RenderPort) QualifiedName() string {
	if p.owner == nil {
		return p.name
	}
	return p.owner.Name() + "::" + p.name
}

func (p *RenderPort) IsConnected() bool { return len(p.connected) > 0 }

func (p *RenderPort) IsConnectedTo(q *RenderPort) bool {
	return slices.Contains(p.connected, q)
}

// Connected returns the peers in connection order.
func (p *RenderPort) Connected() []*RenderPort { return slices.Clone(p.connected) }

// ── Target ────────────────────────────────────────────────────────────────────

// Target is the port's own target for out-ports and the upstream target
// for connected in-ports.
func (p *RenderPort) Target() *RenderTarget {
	if p.dir == Out {
		return p.target
	}
	if len(p.connected) == 0 {
		return nil
	}
	return p.connected[0].target
}

func (p *RenderPort) HasTarget() bool {
	t := p.Target()
	return t != nil && t.isAllocated()
}

// Size is the target size when one is allocated, otherwise the size the
// port will allocate (out) or last requested (in).
func (p *RenderPort) Size() core.Size {
	if t := p.Target(); t != nil && t.isAllocated() {
		return t.Size()
	}
	return p.size
}

// Initialize allocates the target of an out-port at the port size.
func (p *RenderPort) Initialize() error {
	if p.dir != Out || p.HasTarget() {
		return nil
	}
	if p.dev == nil {
		return fmt.Errorf("port %s: no device", p.QualifiedName())
	}
	t := NewRenderTarget(p.dev, p.colorFormat, p.depthFormat)
	t.SetLabel(p.QualifiedName())
	if err := t.Initialize(p.size); err != nil {
		return fmt.Errorf("port %s: %w", p.QualifiedName(), err)
	}
	p.target = t
	p.valid = false
	return nil
}

// Deinitialize frees the target of an out-port.
func (p *RenderPort) Deinitialize() {
	if p.dir == Out && p.target != nil {
		p.target.Delete()
		p.target = nil
	}
	p.valid = false
}

// ChangeFormat reallocates the target with new formats, keeping the size.
func (p *RenderPort) ChangeFormat(color, depth gpu.Format) error {
	p.colorFormat = color
	p.depthFormat = depth
	if p.dir == Out && p.target != nil {
		p.size = p.Size()
		p.Deinitialize()
		return p.Initialize()
	}
	return nil
}

func (p *RenderPort) Formats() (color, depth gpu.Format) {
	return p.colorFormat, p.depthFormat
}

// ActivateTarget makes the port's target the current draw destination,
// allocating it first if needed. Only out-ports render; activating an
// in-port panics.
func (p *RenderPort) ActivateTarget(label string) error {
	if p.dir != Out {
		panic(fmt.Sprintf("port %s: activating an in-port", p.QualifiedName()))
	}
	if err := p.Initialize(); err != nil {
		return err
	}
	if label != "" {
		p.target.SetLabel(p.QualifiedName() + ": " + label)
	}
	p.target.Activate()
	return nil
}

func (p *RenderPort) DeactivateTarget() {
	if p.dir == Out && p.target != nil {
		p.target.Deactivate()
	}
}

// WithTarget runs fn with the target active and validates the result when
// fn succeeds.
func (p *RenderPort) WithTarget(label string, fn func() error) error {
	if err := p.ActivateTarget(label); err != nil {
		return err
	}
	err := fn()
	p.DeactivateTarget()
	if err != nil {
		return err
	}
	p.ValidateResult()
	return nil
}

// ClearTarget clears color and depth of the active target.
func (p *RenderPort) ClearTarget() {
	if p.dev != nil {
		p.dev.Clear(true, true)
	}
}

// ── Validity ──────────────────────────────────────────────────────────────────

func (p *RenderPort) ValidateResult() {
	if p.dir == Out && p.target != nil {
		p.valid = true
		p.target.increaseNumUpdates()
	}
}

func (p *RenderPort) InvalidateResult() {
	if p.dir == Out {
		p.valid = false
	}
}

// HasValidResult reports whether the (upstream) target holds a finished image.
func (p *RenderPort) HasValidResult() bool {
	if p.dir == Out {
		return p.valid && p.target != nil
	}
	if len(p.connected) == 0 {
		return false
	}
	return p.connected[0].HasValidResult()
}

// IsReady is true for out-ports. In-ports must be connected to a valid result.
func (p *RenderPort) IsReady() bool {
	if p.dir == Out {
		return true
	}
	return p.IsConnected() && p.HasValidResult()
}

// ── Texture binding ───────────────────────────────────────────────────────────

func (p *RenderPort) BindColorTexture(unit int) {
	if t := p.Target(); t != nil && t.isAllocated() {
		t.BindColorTexture(unit)
	}
}

// BindDepthTexture is a no-op when the target has no depth texture.
func (p *RenderPort) BindDepthTexture(unit int) {
	if t := p.Target(); t != nil && t.isAllocated() {
		t.BindDepthTexture(unit)
	}
}

func (p *RenderPort) BindTextures(colorUnit, depthUnit int) {
	p.BindColorTexture(colorUnit)
	p.BindDepthTexture(depthUnit)
}

// SetTextureParameters sets uniform.dimensions_ and uniform.dimensionsRCP_
// of the struct uniform describing this port's textures. Missing members
// are ignored.
func (p *RenderPort) SetTextureParameters(prog *shader.Program, uniform string) {
	if !p.HasTarget() {
		return
	}
	dims := math.NewVec2(float32(p.Size().W), float32(p.Size().H))
	prev := prog.IgnoreUniformErrors(true)
	prog.SetVec2(uniform+".dimensions_", dims)
	prog.SetVec2(uniform+".dimensionsRCP_", dims.Reciprocal())
	prog.IgnoreUniformErrors(prev)
}
