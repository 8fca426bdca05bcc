package stages

import (
	"render-pipeline/port"
	"render-pipeline/processor"
	"render-pipeline/shader"
)

// ColorSplit writes the red, green and blue channels of its input to
// three outputs in a single pass through a port group. Only connected
// outputs are attached; the shader learns their draw buffers from the
// group header.
type ColorSplit struct {
	processor.RenderProcessor
	In               *port.RenderPort
	Red, Green, Blue *port.RenderPort

	group  *port.Group
	prog   *shader.Program
	header string
}

func NewColorSplit(name string) *ColorSplit {
	c := &ColorSplit{}
	c.Init(name)
	c.In = c.AddInPort(port.NewInPort("image.in"))
	c.Red = c.AddOutPort(port.NewOutPort("red.out"))
	c.Green = c.AddOutPort(port.NewOutPort("green.out"))
	c.Blue = c.AddOutPort(port.NewOutPort("blue.out"))
	return c
}

func (c *ColorSplit) Initialize(ctx *processor.Context) error {
	if err := c.RenderProcessor.Initialize(ctx); err != nil {
		return err
	}
	c.group = port.NewGroup(ctx.Device, false)
	for _, p := range []*port.RenderPort{c.Red, c.Green, c.Blue} {
		c.group.Add(p)
	}
	return nil
}

func (c *ColorSplit) Deinitialize() {
	releaseProgram(&c.RenderProcessor, c.prog)
	c.prog = nil
	c.header = ""
	if c.group != nil {
		c.group.Delete()
		c.group = nil
	}
	c.RenderProcessor.Deinitialize()
}

// Header returns the group defines the current program was built with.
func (c *ColorSplit) Header() string { return c.header }

// ensureProgram rebuilds the program when connectivity changed the group
// header.
func (c *ColorSplit) ensureProgram() error {
	header := c.group.GenerateHeader()
	if c.prog != nil && header == c.header {
		return nil
	}
	prog, err := loadProgram(&c.RenderProcessor, "colorsplit.frag", header)
	if err != nil {
		return err
	}
	releaseProgram(&c.RenderProcessor, c.prog)
	c.prog = prog
	c.header = header
	return nil
}

func (c *ColorSplit) Process() error {
	if err := c.ensureProgram(); err != nil {
		return err
	}
	if err := c.group.ActivateTargets(c.Name()); err != nil {
		return err
	}
	defer c.group.DeactivateTargets()
	c.group.ClearTargets()
	if err := draw(&c.RenderProcessor, c.prog, func() {
		c.BindInPort(c.prog, c.In, "colorTex_", "", "")
	}); err != nil {
		return err
	}
	c.group.ValidateResults()
	return nil
}
