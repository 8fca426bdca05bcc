// Package processor defines the contract between the network evaluator and
// the stages of a render graph, and RenderProcessor, the base every
// render stage embeds.
package processor

import (
	"fmt"

	"render-pipeline/internal/gpu"
	"render-pipeline/port"
	"render-pipeline/scene"
	"render-pipeline/shader"
)

// Context carries the per-GL-context services a stage needs. It replaces
// global singletons: every stage of a network shares one Context.
type Context struct {
	Device  gpu.Device
	Shaders *shader.Manager
	Camera  *scene.Camera
	Caps    gpu.Caps
}

// NewContext queries the device capabilities and bundles the services.
func NewContext(dev gpu.Device, shaders *shader.Manager, cam *scene.Camera) (*Context, error) {
	caps, err := gpu.QueryCaps(dev)
	if err != nil {
		return nil, err
	}
	return &Context{Device: dev, Shaders: shaders, Camera: cam, Caps: caps}, nil
}

// Processable is what the evaluator drives. Stages implement it by
// embedding RenderProcessor and providing Process.
type Processable interface {
	Name() string
	Initialize(ctx *Context) error
	Deinitialize()
	IsInitialized() bool
	// IsReady reports whether Process may run.
	IsReady() bool
	IsValid() bool
	SetValid()
	Invalidate()
	// BeforeProcess prepares targets. The evaluator calls it right before Process.
	BeforeProcess()
	Process() error
	InPorts() []*port.RenderPort
	OutPorts() []*port.RenderPort
}

// InitializationError reports a stage that failed to initialize.
type InitializationError struct {
	Processor string
	Err       error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize %s: %v", e.Processor, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }
