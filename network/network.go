// Package network evaluates a graph of processors in dependency order.
package network

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"render-pipeline/internal/logx"
	"render-pipeline/port"
	"render-pipeline/processor"
)

var ErrCycle = errors.New("processor network contains a cycle")

// Network owns a set of processors and runs them. Everything happens on
// the thread that owns the GL context.
type Network struct {
	ctx   *processor.Context
	procs []processor.Processable
	log   *slog.Logger

	order []processor.Processable
	dirty bool
}

func New(ctx *processor.Context) *Network {
	return &Network{ctx: ctx, log: logx.For("network"), dirty: true}
}

func (n *Network) Context() *processor.Context { return n.ctx }

// Add appends processors. A processor added twice is kept once.
func (n *Network) Add(ps ...processor.Processable) {
	for _, p := range ps {
		if !slices.Contains(n.procs, p) {
			n.procs = append(n.procs, p)
		}
	}
	n.dirty = true
}

func (n *Network) Processors() []processor.Processable { return slices.Clone(n.procs) }

// Remove disconnects every port of p, deinitializes it and drops it from
// the network. Peers see the links go away at once.
func (n *Network) Remove(p processor.Processable) {
	i := slices.Index(n.procs, p)
	if i < 0 {
		return
	}
	for _, q := range p.InPorts() {
		port.DisconnectAll(q)
	}
	for _, q := range p.OutPorts() {
		port.DisconnectAll(q)
	}
	p.Deinitialize()
	n.procs = slices.Delete(n.procs, i, i+1)
	n.dirty = true
}

// Connect links two ports and invalidates the cached order.
func (n *Network) Connect(out, in *port.RenderPort) error {
	if err := port.Connect(out, in); err != nil {
		return err
	}
	n.dirty = true
	return nil
}

func (n *Network) Disconnect(out, in *port.RenderPort) {
	port.Disconnect(out, in)
	n.dirty = true
}

// Initialize initializes every processor, continuing past failures.
func (n *Network) Initialize() error {
	var errs []error
	for _, p := range n.procs {
		if p.IsInitialized() {
			continue
		}
		if err := p.Initialize(n.ctx); err != nil {
			n.log.Error("processor failed to initialize", "processor", p.Name(), "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Network) Deinitialize() {
	for i := len(n.procs) - 1; i >= 0; i-- {
		n.procs[i].Deinitialize()
	}
}

// Invalidate forces every processor to run on the next evaluation.
func (n *Network) Invalidate() {
	for _, p := range n.procs {
		p.Invalidate()
	}
}

// successors maps each processor to those fed by its out-ports.
func (n *Network) successors() map[processor.Processable][]processor.Processable {
	byOwner := make(map[port.Owner]processor.Processable)
	for _, p := range n.procs {
		for _, ports := range [][]*port.RenderPort{p.InPorts(), p.OutPorts()} {
			for _, q := range ports {
				if q.Owner() != nil {
					byOwner[q.Owner()] = p
				}
			}
		}
	}
	succ := make(map[processor.Processable][]processor.Processable)
	for _, p := range n.procs {
		for _, out := range p.OutPorts() {
			for _, in := range out.Connected() {
				if s, ok := byOwner[in.Owner()]; ok && !slices.Contains(succ[p], s) {
					succ[p] = append(succ[p], s)
				}
			}
		}
	}
	return succ
}

// Order returns the processors sorted so that producers come before
// their consumers. Ties keep insertion order.
func (n *Network) Order() ([]processor.Processable, error) {
	if !n.dirty {
		return n.order, nil
	}
	succ := n.successors()
	indeg := make(map[processor.Processable]int, len(n.procs))
	for _, ss := range succ {
		for _, s := range ss {
			indeg[s]++
		}
	}

	order := make([]processor.Processable, 0, len(n.procs))
	done := make(map[processor.Processable]bool, len(n.procs))
	for len(order) < len(n.procs) {
		progressed := false
		for _, p := range n.procs {
			if done[p] || indeg[p] > 0 {
				continue
			}
			done[p] = true
			order = append(order, p)
			for _, s := range succ[p] {
				indeg[s]--
			}
			progressed = true
			break
		}
		if !progressed {
			return nil, ErrCycle
		}
	}
	n.order = order
	n.dirty = false
	return order, nil
}

// Evaluate runs every ready processor in dependency order. A processor
// runs when it is invalid or one of its producers ran in this pass.
// Failures are logged and collected; the pass continues. A processor that
// fails or cannot run loses its out-port results, and its consumers are
// revisited so none of them keeps an image built from the stale input.
func (n *Network) Evaluate() error {
	order, err := n.Order()
	if err != nil {
		return err
	}
	succ := n.successors()
	dirty := make(map[processor.Processable]bool)

	var errs []error
	for _, p := range order {
		if !p.IsInitialized() {
			continue
		}
		if p.IsValid() && !dirty[p] {
			continue
		}
		if !p.IsReady() {
			n.log.Debug("skipping processor that is not ready", "processor", p.Name())
			dropResults(p, succ, dirty)
			continue
		}
		p.BeforeProcess()
		if err := p.Process(); err != nil {
			n.log.Error("processor failed", "processor", p.Name(), "err", err)
			errs = append(errs, fmt.Errorf("process %s: %w", p.Name(), err))
			dropResults(p, succ, dirty)
			continue
		}
		p.SetValid()
		for _, s := range succ[p] {
			dirty[s] = true
		}
	}
	return errors.Join(errs...)
}

// dropResults invalidates p's out-port results and queues its consumers.
func dropResults(p processor.Processable, succ map[processor.Processable][]processor.Processable, dirty map[processor.Processable]bool) {
	p.Invalidate()
	for _, s := range succ[p] {
		dirty[s] = true
	}
}
