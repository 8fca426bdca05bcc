package texunit

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/internal/gpu"
	"render-pipeline/internal/gpu/gputest"
)

func TestRegisterAssignsDistinctUnits(t *testing.T) {
	a := New(8)
	names := []string{"color", "depth", "entry", "exit"}
	seen := map[int]string{}
	for _, n := range names {
		a.Register(n)
		u := a.Unit(n)
		_, dup := seen[u]
		require.False(t, dup, "unit %d handed out twice", u)
		seen[u] = n
	}
	assert.Equal(t, 4, a.Len())
}

func TestRegisterIsIdempotent(t *testing.T) {
	a := New(4)
	a.Register("color")
	u := a.Unit("color")
	a.Register("color")
	assert.Equal(t, u, a.Unit("color"))
	assert.Equal(t, 1, a.Len())
}

func TestUnregisterFreesLowestUnit(t *testing.T) {
	a := New(4)
	a.Register("a")
	a.Register("b")
	a.Register("c")
	a.Unregister("a")
	assert.False(t, a.Registered("a"))

	a.Register("d")
	assert.Equal(t, 0, a.Unit("d"))
	assert.Equal(t, 1, a.Unit("b"))
}

func TestGLUnit(t *testing.T) {
	a := New(4)
	a.Register("a")
	a.Register("b")
	assert.Equal(t, gpu.Texture0+1, a.GLUnit("b"))
}

func TestUnknownNamePanics(t *testing.T) {
	a := New(4)
	assert.Panics(t, func() { a.Unit("missing") })
	assert.Panics(t, func() { a.GLUnit("missing") })
}

func TestExhaustionPanics(t *testing.T) {
	a := New(2)
	a.Register("a")
	a.Register("b")
	assert.Panics(t, func() { a.Register("c") })
}

func TestUnitsStayUniqueUnderChurn(t *testing.T) {
	a := ForDevice(gputest.New())
	for i := 0; i < 10; i++ {
		a.Register(fmt.Sprint("t", i))
	}
	for i := 0; i < 10; i += 3 {
		a.Unregister(fmt.Sprint("t", i))
	}
	for i := 10; i < 14; i++ {
		a.Register(fmt.Sprint("t", i))
	}

	seen := map[int]bool{}
	for i := 0; i < 14; i++ {
		n := fmt.Sprint("t", i)
		if !a.Registered(n) {
			continue
		}
		u := a.Unit(n)
		assert.False(t, seen[u], "unit %d reused", u)
		seen[u] = true
	}

	a.Reset()
	assert.Equal(t, 0, a.Len())
}
