package port

import (
	"fmt"

	"github.com/c2h5oh/datasize"

	"render-pipeline/imageio"
)

// SetSnapshotLimit bounds the readback buffer of ReadColorBuffer. Zero
// disables the check.
func (p *RenderPort) SetSnapshotLimit(limit datasize.ByteSize) {
	p.snapshotLimit = limit
}

// ReadColorBuffer reads the color texture back as 8-bit RGBA, bottom row
// first. Requests larger than the snapshot limit fail with
// ErrSnapshotTooLarge instead of allocating.
func (p *RenderPort) ReadColorBuffer() (data []byte, err error) {
	t := p.Target()
	if t == nil || !t.isAllocated() {
		return nil, fmt.Errorf("read %s: %w", p.QualifiedName(), ErrNoTarget)
	}
	bpp := t.ColorFormat().ReadbackBytesPerPixel()
	need := datasize.ByteSize(uint64(t.Size().Area()) * uint64(bpp+4))
	if p.snapshotLimit > 0 && need > p.snapshotLimit {
		return nil, fmt.Errorf("read %s: %s needed, limit %s: %w",
			p.QualifiedName(), need.HumanReadable(), p.snapshotLimit.HumanReadable(), ErrSnapshotTooLarge)
	}

	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = fmt.Errorf("read %s: %v: %w", p.QualifiedName(), r, ErrSnapshotTooLarge)
		}
	}()
	return t.ReadColorBuffer()
}

// SaveToImage writes the color buffer to filename. The format follows the
// extension; see imageio.Save.
func (p *RenderPort) SaveToImage(filename string) error {
	data, err := p.ReadColorBuffer()
	if err != nil {
		return err
	}
	size := p.Size()
	return imageio.Save(filename, size.W, size.H, data)
}
