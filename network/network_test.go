package network

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/internal/gpu/gputest"
	"render-pipeline/port"
	"render-pipeline/processor"
	"render-pipeline/shader"
)

type step struct {
	processor.RenderProcessor
	in   *port.RenderPort
	out  *port.RenderPort
	log  *[]string
	fail error
}

func newStep(name string, log *[]string, withIn, withOut bool) *step {
	s := &step{log: log}
	s.Init(name)
	if withIn {
		s.in = s.AddInPort(port.NewInPort("image.in"))
	}
	if withOut {
		s.out = s.AddOutPort(port.NewOutPort("image.out"))
	}
	return s
}

func (s *step) Process() error {
	*s.log = append(*s.log, s.Name())
	if s.fail != nil {
		return s.fail
	}
	if s.out != nil && s.out.IsConnected() {
		return s.out.WithTarget(s.Name(), func() error { return nil })
	}
	return nil
}

func newTestNetwork(t *testing.T) *Network {
	t.Helper()
	dev := gputest.New()
	ctx, err := processor.NewContext(dev, shader.NewManager(dev, shader.NewLoader(fstest.MapFS{})), nil)
	require.NoError(t, err)
	return New(ctx)
}

func TestEvaluateRunsInDependencyOrder(t *testing.T) {
	n := newTestNetwork(t)
	var log []string
	sink := newStep("sink", &log, true, false)
	filter := newStep("filter", &log, true, true)
	src := newStep("source", &log, false, true)
	n.Add(sink, filter, src)
	require.NoError(t, n.Connect(src.out, filter.in))
	require.NoError(t, n.Connect(filter.out, sink.in))
	require.NoError(t, n.Initialize())

	require.NoError(t, n.Evaluate())
	assert.Equal(t, []string{"source", "filter", "sink"}, log)

	log = nil
	require.NoError(t, n.Evaluate())
	assert.Empty(t, log, "valid processors are skipped")

	filter.Invalidate()
	require.NoError(t, n.Evaluate())
	assert.Equal(t, []string{"filter", "sink"}, log, "consumers of a re-run processor run again")
}

func TestEvaluateSkipsUnreadyProcessors(t *testing.T) {
	n := newTestNetwork(t)
	var log []string
	src := newStep("source", &log, false, true)
	orphan := newStep("orphan", &log, true, false)
	sink := newStep("sink", &log, true, false)
	n.Add(src, orphan, sink)
	require.NoError(t, n.Connect(src.out, sink.in))
	require.NoError(t, n.Initialize())

	require.NoError(t, n.Evaluate())
	assert.Equal(t, []string{"source", "sink"}, log)
}

func TestEvaluateContinuesAfterFailure(t *testing.T) {
	n := newTestNetwork(t)
	var log []string
	a := newStep("a", &log, false, false)
	b := newStep("b", &log, false, false)
	a.fail = errors.New("boom")
	n.Add(a, b)
	require.NoError(t, n.Initialize())

	err := n.Evaluate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "process a")
	assert.Equal(t, []string{"a", "b"}, log)
	assert.False(t, a.IsValid())
	assert.True(t, b.IsValid())
}

func TestFailedProcessorDropsResultsDownstream(t *testing.T) {
	n := newTestNetwork(t)
	var log []string
	src := newStep("source", &log, false, true)
	filter := newStep("filter", &log, true, true)
	blend := newStep("blend", &log, true, true)
	sink := newStep("sink", &log, true, false)
	n.Add(src, filter, blend, sink)
	require.NoError(t, n.Connect(src.out, filter.in))
	require.NoError(t, n.Connect(filter.out, blend.in))
	require.NoError(t, n.Connect(blend.out, sink.in))
	require.NoError(t, n.Initialize())
	require.NoError(t, n.Evaluate())
	require.True(t, blend.out.HasValidResult())

	log = nil
	src.Invalidate()
	filter.fail = errors.New("shader broke")
	err := n.Evaluate()
	assert.ErrorContains(t, err, "shader broke")
	assert.Equal(t, []string{"source", "filter"}, log)
	assert.False(t, filter.out.HasValidResult())
	assert.False(t, blend.in.IsReady())
	assert.False(t, blend.out.HasValidResult(), "stale image must not outlive its input")
	assert.False(t, sink.in.IsReady())

	log = nil
	assert.Error(t, n.Evaluate())
	assert.Equal(t, []string{"filter"}, log, "the failed processor is retried, its consumers wait")
	filter.fail = nil
	log = nil
	require.NoError(t, n.Evaluate())
	assert.Equal(t, []string{"filter", "blend", "sink"}, log)
	assert.True(t, sink.in.IsReady())
}

func TestRemoveDisconnectsPeers(t *testing.T) {
	n := newTestNetwork(t)
	var log []string
	src := newStep("source", &log, false, true)
	filter := newStep("filter", &log, true, true)
	sink := newStep("sink", &log, true, false)
	n.Add(src, filter, sink)
	require.NoError(t, n.Connect(src.out, filter.in))
	require.NoError(t, n.Connect(filter.out, sink.in))
	require.NoError(t, n.Initialize())
	require.NoError(t, n.Evaluate())

	n.Remove(filter)
	assert.False(t, src.out.IsConnected())
	assert.False(t, sink.in.IsConnected())
	assert.False(t, filter.IsInitialized())
	assert.False(t, filter.out.HasTarget())
	assert.NotContains(t, n.Processors(), processor.Processable(filter))

	order, err := n.Order()
	require.NoError(t, err)
	assert.Len(t, order, 2)

	n.Remove(filter)
	assert.Len(t, n.Processors(), 2, "removing twice is a no-op")
}

func TestOrderDetectsCycles(t *testing.T) {
	n := newTestNetwork(t)
	var log []string
	a := newStep("a", &log, true, true)
	b := newStep("b", &log, true, true)
	n.Add(a, b)
	require.NoError(t, n.Connect(a.out, b.in))
	require.NoError(t, n.Connect(b.out, a.in))

	_, err := n.Order()
	assert.ErrorIs(t, err, ErrCycle)
}

func TestDeinitializeFreesTargets(t *testing.T) {
	n := newTestNetwork(t)
	var log []string
	src := newStep("source", &log, false, true)
	sink := newStep("sink", &log, true, false)
	n.Add(src, sink)
	require.NoError(t, n.Connect(src.out, sink.in))
	require.NoError(t, n.Initialize())
	require.NoError(t, n.Evaluate())
	require.True(t, src.out.HasTarget())

	n.Deinitialize()
	assert.False(t, src.out.HasTarget())
	assert.False(t, src.IsInitialized())
}
