package port

import (
	"fmt"
	"slices"
	"strings"

	"render-pipeline/core"
	"render-pipeline/internal/gpu"
)

// Group renders into several out-ports at once through one framebuffer.
// Connected ports are attached to consecutive color attachments in
// registration order; GenerateHeader tells shaders which output index
// each port ended up at.
type Group struct {
	dev                gpu.Device
	ports              []*RenderPort
	ignoreConnectivity bool

	fbo         gpu.Handle
	attached    []*RenderPort
	attachedTex []gpu.Handle
	prevFBO     gpu.Handle
	active      bool
}

// NewGroup creates an empty group. With ignoreConnectivity every port is
// treated as connected.
func NewGroup(dev gpu.Device, ignoreConnectivity bool) *Group {
	return &Group{dev: dev, ignoreConnectivity: ignoreConnectivity}
}

// Add registers an out-port. Adding an in-port panics.
func (g *Group) Add(p *RenderPort) {
	if p.dir != Out {
		panic(fmt.Sprintf("port group: %s is not an out-port", p.QualifiedName()))
	}
	if !slices.Contains(g.ports, p) {
		g.ports = append(g.ports, p)
	}
}

func (g *Group) Remove(p *RenderPort) {
	g.ports = slices.DeleteFunc(g.ports, func(q *RenderPort) bool { return q == p })
}

func (g *Group) Contains(p *RenderPort) bool { return slices.Contains(g.ports, p) }

func (g *Group) Ports() []*RenderPort { return slices.Clone(g.ports) }

func (g *Group) participates(p *RenderPort) bool {
	return g.ignoreConnectivity || p.IsConnected()
}

func (g *Group) participating() []*RenderPort {
	var out []*RenderPort
	for _, p := range g.ports {
		if g.participates(p) {
			out = append(out, p)
		}
	}
	return out
}

// ActivateTargets binds the group framebuffer with every participating
// port's target attached. Attachments are rebuilt when the set of
// connected ports changed since the last call.
func (g *Group) ActivateTargets(label string) error {
	ports := g.participating()
	if len(ports) == 0 {
		return fmt.Errorf("port group %s: no connected ports", label)
	}
	for _, p := range ports {
		if err := p.Initialize(); err != nil {
			return fmt.Errorf("port group %s: %w", label, err)
		}
		if !p.HasTarget() {
			panic(fmt.Sprintf("port group: %s has no render target", p.QualifiedName()))
		}
	}

	if g.fbo == 0 {
		g.fbo = g.dev.CreateFramebuffer()
	}
	if !g.attachedMatches(ports) {
		if err := g.reattach(ports); err != nil {
			return fmt.Errorf("port group %s: %w", label, err)
		}
	}

	if !g.active {
		g.prevFBO = g.dev.CurrentFramebuffer()
	}
	g.dev.BindFramebuffer(g.fbo)
	g.dev.DrawBuffers(len(ports))
	size := ports[0].Size()
	g.dev.Viewport(0, 0, size.W, size.H)
	g.active = true
	return nil
}

// attachedMatches compares ports and the textures they hold, since a
// resize replaces textures.
func (g *Group) attachedMatches(ports []*RenderPort) bool {
	return slices.Equal(ports, g.attached) && !g.texturesChanged()
}

func (g *Group) texturesChanged() bool {
	for i, p := range g.attached {
		t := p.Target()
		if t == nil || g.attachedTex[i] != t.ColorTex {
			return true
		}
	}
	return false
}

func (g *Group) reattach(ports []*RenderPort) error {
	for i := range g.attached {
		g.dev.FramebufferTexture(g.fbo, gpu.ColorAttachment(i), 0)
	}
	g.dev.FramebufferTexture(g.fbo, gpu.DepthAttachment, 0)

	g.attachedTex = g.attachedTex[:0]
	for k, p := range ports {
		t := p.Target()
		g.dev.FramebufferTexture(g.fbo, gpu.ColorAttachment(k), t.ColorTex)
		g.attachedTex = append(g.attachedTex, t.ColorTex)
	}
	if t := ports[0].Target(); t.HasDepth() {
		g.dev.FramebufferTexture(g.fbo, gpu.DepthAttachment, t.DepthTex)
	}
	g.attached = slices.Clone(ports)
	return g.dev.FramebufferStatus(g.fbo)
}

// DeactivateTargets restores the framebuffer bound before activation.
func (g *Group) DeactivateTargets() {
	if !g.active {
		return
	}
	g.dev.BindFramebuffer(g.prevFBO)
	g.active = false
}

// ClearTargets clears all attachments of the active group.
func (g *Group) ClearTargets() {
	if g.active {
		g.dev.Clear(true, true)
	}
}

// ValidateResults marks every participating port's result valid.
func (g *Group) ValidateResults() {
	for _, p := range g.participating() {
		p.ValidateResult()
	}
}

func (g *Group) Resize(size core.Size) {
	for _, p := range g.ports {
		p.Resize(size)
	}
}

// GenerateHeader defines OP<i> for every participating port, where i is
// the port's registration index and the value is its attachment slot.
// Slots are contiguous over the participating ports only.
func (g *Group) GenerateHeader() string {
	var b strings.Builder
	k := 0
	for i, p := range g.ports {
		if !g.participates(p) {
			continue
		}
		fmt.Fprintf(&b, "#define OP%d %d\n", i, k)
		k++
	}
	return b.String()
}

// Delete frees the group framebuffer.
func (g *Group) Delete() {
	g.DeactivateTargets()
	if g.fbo != 0 {
		g.dev.DeleteFramebuffer(g.fbo)
		g.fbo = 0
	}
	g.attached = nil
	g.attachedTex = nil
}
