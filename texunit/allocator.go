// Package texunit hands out texture units by name for one render stage.
package texunit

import (
	"fmt"

	"render-pipeline/internal/gpu"
)

// Allocator maps names to texture units. Units are assigned lowest-free
// first and stay fixed until unregistered, so a name keeps its unit for
// the lifetime of a registration.
type Allocator struct {
	max   int
	units map[string]int
	used  []bool
}

func New(max int) *Allocator {
	if max <= 0 {
		max = 1
	}
	return &Allocator{
		max:   max,
		units: make(map[string]int),
		used:  make([]bool, max),
	}
}

// ForDevice sizes an allocator to the device's texture unit limit.
func ForDevice(dev gpu.Device) *Allocator {
	return New(dev.MaxTextureUnits())
}

// Register assigns a unit to name. Registering a known name is a no-op.
// Running out of units is a stage-graph error and panics.
func (a *Allocator) Register(name string) {
	if _, ok := a.units[name]; ok {
		return
	}
	for i, taken := range a.used {
		if !taken {
			a.used[i] = true
			a.units[name] = i
			return
		}
	}
	panic(fmt.Sprintf("texunit: all %d texture units in use, cannot register %q", a.max, name))
}

func (a *Allocator) Unregister(name string) {
	if i, ok := a.units[name]; ok {
		a.used[i] = false
		delete(a.units, name)
	}
}

// Unit returns the zero-based unit of name. Unknown names panic.
func (a *Allocator) Unit(name string) int {
	i, ok := a.units[name]
	if !ok {
		panic(fmt.Sprintf("texunit: %q is not registered", name))
	}
	return i
}

// GLUnit returns the native enum of name's unit (TEXTURE0 + unit).
func (a *Allocator) GLUnit(name string) uint32 {
	return gpu.Texture0 + uint32(a.Unit(name))
}

func (a *Allocator) Registered(name string) bool {
	_, ok := a.units[name]
	return ok
}

func (a *Allocator) Len() int { return len(a.units) }

func (a *Allocator) Max() int { return a.max }

// Reset frees every unit.
func (a *Allocator) Reset() {
	clear(a.units)
	clear(a.used)
}
