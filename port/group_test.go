package port

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/core"
	"render-pipeline/internal/gpu"
	"render-pipeline/internal/gpu/gputest"
)

type groupFixture struct {
	dev   *gputest.Device
	group *Group
	outs  []*RenderPort
	ins   []*RenderPort
}

func newGroupFixture(n int, ignoreConnectivity bool) *groupFixture {
	f := &groupFixture{dev: gputest.New()}
	f.group = NewGroup(f.dev, ignoreConnectivity)
	src := &stage{name: "split"}
	sink := &stage{name: "sink"}
	for i := 0; i < n; i++ {
		out := NewOutPort(fmt.Sprintf("out%d", i))
		in := NewInPort(fmt.Sprintf("in%d", i))
		out.Bind(src, f.dev)
		in.Bind(sink, f.dev)
		src.outs = append(src.outs, out)
		sink.ins = append(sink.ins, in)
		f.group.Add(out)
		f.outs = append(f.outs, out)
		f.ins = append(f.ins, in)
	}
	return f
}

func (f *groupFixture) setConnected(mask int) {
	for i := range f.outs {
		want := mask&(1<<i) != 0
		if want && !f.outs[i].IsConnected() {
			if err := Connect(f.outs[i], f.ins[i]); err != nil {
				panic(err)
			}
		}
		if !want && f.outs[i].IsConnected() {
			Disconnect(f.outs[i], f.ins[i])
		}
	}
}

func TestGroupHeaderOverAllSubsets(t *testing.T) {
	f := newGroupFixture(3, false)
	for mask := 0; mask < 8; mask++ {
		f.setConnected(mask)

		var want strings.Builder
		k := 0
		for i := 0; i < 3; i++ {
			if mask&(1<<i) != 0 {
				fmt.Fprintf(&want, "#define OP%d %d\n", i, k)
				k++
			}
		}
		assert.Equal(t, want.String(), f.group.GenerateHeader(), "mask %03b", mask)

		if mask == 0 {
			assert.Error(t, f.group.ActivateTargets("split"))
			continue
		}
		require.NoError(t, f.group.ActivateTargets("split"), "mask %03b", mask)
		fb := f.dev.Framebuffers[f.dev.CurrentFramebuffer()]
		require.NotNil(t, fb)
		assert.Equal(t, k, fb.DrawBuffers)

		k = 0
		for i, out := range f.outs {
			if mask&(1<<i) == 0 {
				continue
			}
			assert.Equal(t, out.Target().ColorTex, fb.Attachments[gpu.ColorAttachment(k)], "mask %03b port %d", mask, i)
			k++
		}
		_, extra := fb.Attachments[gpu.ColorAttachment(k)]
		assert.False(t, extra, "stale attachment at slot %d, mask %03b", k, mask)
		f.group.DeactivateTargets()
	}
}

func TestGroupIgnoreConnectivity(t *testing.T) {
	f := newGroupFixture(2, true)
	assert.Equal(t, "#define OP0 0\n#define OP1 1\n", f.group.GenerateHeader())
	require.NoError(t, f.group.ActivateTargets("split"))
	fb := f.dev.Framebuffers[f.dev.CurrentFramebuffer()]
	assert.Equal(t, 2, fb.DrawBuffers)
}

func TestGroupFirstDepthAttached(t *testing.T) {
	f := newGroupFixture(2, true)
	require.NoError(t, f.group.ActivateTargets("split"))
	fb := f.dev.Framebuffers[f.dev.CurrentFramebuffer()]
	assert.Equal(t, f.outs[0].Target().DepthTex, fb.Attachments[gpu.DepthAttachment])
}

func TestGroupDeactivateRestoresFramebuffer(t *testing.T) {
	f := newGroupFixture(2, true)
	prev := f.dev.CreateFramebuffer()
	f.dev.BindFramebuffer(prev)
	require.NoError(t, f.group.ActivateTargets("split"))
	assert.NotEqual(t, prev, f.dev.CurrentFramebuffer())
	f.group.DeactivateTargets()
	assert.Equal(t, prev, f.dev.CurrentFramebuffer())
}

func TestGroupReattachesAfterResize(t *testing.T) {
	f := newGroupFixture(2, true)
	require.NoError(t, f.group.ActivateTargets("split"))
	f.group.DeactivateTargets()

	f.group.Resize(core.Size{W: 256, H: 256})
	require.NoError(t, f.group.ActivateTargets("split"))
	fb := f.dev.Framebuffers[f.dev.CurrentFramebuffer()]
	assert.Equal(t, f.outs[1].Target().ColorTex, fb.Attachments[gpu.ColorAttachment(1)])
	assert.Equal(t, 256, f.dev.ViewportRect.Width)
}

func TestGroupValidateResults(t *testing.T) {
	f := newGroupFixture(2, false)
	f.setConnected(0b10)
	require.NoError(t, f.group.ActivateTargets("split"))
	f.group.DeactivateTargets()
	f.group.ValidateResults()
	assert.False(t, f.outs[0].HasValidResult())
	assert.True(t, f.outs[1].HasValidResult())
}

func TestGroupRejectsInport(t *testing.T) {
	g := NewGroup(gputest.New(), false)
	assert.Panics(t, func() { g.Add(NewInPort("in")) })

	out := NewOutPort("out")
	g.Add(out)
	g.Add(out)
	assert.Len(t, g.Ports(), 1)
	g.Remove(out)
	assert.False(t, g.Contains(out))
}
