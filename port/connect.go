package port

import (
	"fmt"
	"slices"

	"render-pipeline/core"
)

// SizeOrigin is the origin dictating the port's size. For an out-port it
// is the first origin found among its connected in-ports, in connection
// order.
func (p *RenderPort) SizeOrigin() *Origin {
	if p.dir == In {
		return p.origin
	}
	for _, in := range p.connected {
		if in.origin != nil {
			return in.origin
		}
	}
	return nil
}

// Resize sets the size of an out-port's target. A zero size is ignored.
// On an in-port it forwards a request upstream with the port's current
// origin.
func (p *RenderPort) Resize(size core.Size) {
	if p.dir == In {
		if !p.RequestSize(size, p.origin) {
			p.log.Debug("resize refused upstream", "size", size, "origin", p.origin)
		}
		return
	}

	if size.IsZero() {
		p.log.Warn("ignoring invalid size", "size", size)
		return
	}
	if size == p.size && (p.target == nil || p.target.Size() == size) {
		return
	}
	p.size = size
	p.valid = false
	if p.target != nil {
		if err := p.target.Resize(size); err != nil {
			p.log.Error("failed to resize target", "size", size, "err", err)
		}
	}
}

// RequestSize asks the producer upstream of in-port p for a new size on
// behalf of origin. A request without origin is recorded but dictates
// nothing. The request is refused, and nothing changes, when another
// consumer of the same target or anything upstream already follows a
// different origin.
func (p *RenderPort) RequestSize(size core.Size, origin *Origin) bool {
	if p.dir == Out {
		if origin != nil {
			if so := p.SizeOrigin(); so != nil && so != origin {
				return false
			}
		}
		p.Resize(size)
		return true
	}
	if size.IsZero() {
		p.log.Warn("ignoring invalid size request", "size", size)
		return false
	}
	if origin == nil {
		p.size = size
		return true
	}
	if p.conflicts(origin) {
		p.log.Debug("size request rejected", "size", size, "origin", origin, "current", p.upstreamOrigin())
		return false
	}

	p.size = size
	p.SizeOriginChanged(origin)
	for _, out := range p.connected {
		if out.owner != nil {
			out.owner.PortResized(out, size)
		} else {
			out.Resize(size)
		}
	}
	return true
}

func (p *RenderPort) upstreamOrigin() *Origin {
	for _, out := range p.connected {
		if so := out.SizeOrigin(); so != nil {
			return so
		}
	}
	return nil
}

// conflicts reports whether in-port p adopting origin would clash with
// the other consumers of its upstream targets or with the producers.
func (p *RenderPort) conflicts(origin *Origin) bool {
	for _, out := range p.connected {
		for _, peer := range out.connected {
			if peer != p && peer.origin != nil && peer.origin != origin {
				return true
			}
		}
		if out.owner != nil && !out.owner.TestSizeOrigin(out, origin) {
			return true
		}
	}
	return false
}

// SizeOriginChanged records a new origin on an in-port and pushes it
// upstream. On an out-port it tells the owner to re-derive the origins of
// its in-ports and invalidates the result.
func (p *RenderPort) SizeOriginChanged(origin *Origin) {
	if p.dir == Out {
		if p.owner != nil {
			p.owner.SizeOriginChanged(p)
		}
		p.valid = false
		return
	}
	if p.origin == origin {
		return
	}
	p.origin = origin
	for _, out := range p.connected {
		out.SizeOriginChanged(origin)
	}
}

// ClearSizeOrigin drops the in-port's origin so another may claim the size.
func (p *RenderPort) ClearSizeOrigin() {
	if p.dir == In {
		p.SizeOriginChanged(nil)
	}
}

// CanConnect reports whether out may be connected to in, ignoring sizes.
func CanConnect(out, in *RenderPort) bool {
	switch {
	case out == nil || in == nil || out == in:
		return false
	case out.dir != Out || in.dir != In:
		return false
	case out.owner != nil && out.owner == in.owner:
		return false
	case out.IsConnectedTo(in):
		return false
	case in.IsConnected() && !in.multi:
		return false
	}
	return true
}

// Connect links out to in. The link is refused when in already follows a
// size origin that out or its producer cannot adopt.
func Connect(out, in *RenderPort) error {
	if !CanConnect(out, in) {
		return fmt.Errorf("connect %s to %s: %w", out.QualifiedName(), in.QualifiedName(), ErrNotConnectable)
	}
	if in.origin != nil {
		so := out.SizeOrigin()
		if (so != nil && so != in.origin) || (out.owner != nil && !out.owner.TestSizeOrigin(out, in.origin)) {
			return fmt.Errorf("connect %s to %s: %w", out.QualifiedName(), in.QualifiedName(), ErrSizeOriginConflict)
		}
	}

	out.connected = append(out.connected, in)
	in.connected = append(in.connected, out)

	out.SizeOriginChanged(in.origin)
	if in.origin != nil {
		if out.owner != nil {
			out.owner.PortResized(out, in.size)
		} else {
			out.Resize(in.size)
		}
	}
	invalidateOwners(out, in)
	return nil
}

func invalidateOwners(out, in *RenderPort) {
	if out.owner != nil {
		out.owner.Invalidate()
	}
	if in.owner != nil {
		in.owner.Invalidate()
	}
}

// Disconnect removes the link between out and in.
func Disconnect(out, in *RenderPort) {
	if !out.IsConnectedTo(in) {
		return
	}
	before := out.SizeOrigin()
	out.connected = slices.DeleteFunc(out.connected, func(q *RenderPort) bool { return q == in })
	in.connected = slices.DeleteFunc(in.connected, func(q *RenderPort) bool { return q == out })

	if out.SizeOrigin() != before && out.owner != nil {
		out.owner.SizeOriginChanged(out)
	}
	invalidateOwners(out, in)
}

// DisconnectAll removes every link of p.
func DisconnectAll(p *RenderPort) {
	for _, q := range slices.Clone(p.connected) {
		if p.dir == Out {
			Disconnect(p, q)
		} else {
			Disconnect(q, p)
		}
	}
}
