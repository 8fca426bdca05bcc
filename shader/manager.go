package shader

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"render-pipeline/internal/gpu"
	"render-pipeline/internal/logx"
)

type cacheKey struct {
	vert, geom, frag string
	header           string
	processHeader    bool
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s#%s#%s#%q#%t", k.vert, k.geom, k.frag, k.header, k.processHeader)
}

type cached struct {
	key   cacheKey
	prog  *Program
	count int
}

// Manager loads programs and shares them between users. Loading the same
// files with the same header returns the same *Program; it is deleted when
// the last user releases it.
type Manager struct {
	dev    gpu.Device
	loader *Loader
	log    *slog.Logger

	bindFragData bool
	entries      map[cacheKey]*cached
	byProgram    map[*Program]*cached
}

func NewManager(dev gpu.Device, loader *Loader) *Manager {
	m := &Manager{
		dev:       dev,
		loader:    loader,
		log:       logx.For("shader"),
		entries:   make(map[cacheKey]*cached),
		byProgram: make(map[*Program]*cached),
	}
	if caps, err := gpu.QueryCaps(dev); err == nil {
		m.bindFragData = caps.AtLeast(">= 1.3")
	} else {
		m.log.Warn("cannot determine shading language version", "err", err)
	}
	return m
}

func (m *Manager) Loader() *Loader { return m.loader }

// Len is the number of live programs.
func (m *Manager) Len() int { return len(m.entries) }

// Load loads stem.vert and stem.frag, plus stem.geom when it exists.
func (m *Manager) Load(stem, header string, processHeader, activate bool) (*Program, error) {
	geom := ""
	if m.loader.Exists(stem + gpu.GeometryShader.Extension()) {
		geom = stem + gpu.GeometryShader.Extension()
	}
	return m.LoadSeparate(stem+gpu.VertexShader.Extension(), geom, stem+gpu.FragmentShader.Extension(),
		header, processHeader, activate)
}

// LoadSeparate loads a program from explicit files. geom may be empty. On
// error no program is returned and no reference is held.
func (m *Manager) LoadSeparate(vert, geom, frag, header string, processHeader, activate bool) (*Program, error) {
	key := cacheKey{header: header, processHeader: processHeader}
	var ok bool
	if key.vert, ok = m.loader.CompletePath(vert); !ok {
		return nil, fmt.Errorf("load program: vertex shader %q not found", vert)
	}
	if key.frag, ok = m.loader.CompletePath(frag); !ok {
		return nil, fmt.Errorf("load program: fragment shader %q not found", frag)
	}
	if geom != "" {
		if key.geom, ok = m.loader.CompletePath(geom); !ok {
			return nil, fmt.Errorf("load program: geometry shader %q not found", geom)
		}
	}

	if c, hit := m.entries[key]; hit {
		// A cached program left unlinked by a failed rebuild does not
		// gain a reference when activation fails.
		if activate {
			if err := c.prog.Activate(); err != nil {
				return nil, err
			}
		}
		c.count++
		return c.prog, nil
	}

	prog, err := m.build(key)
	if err != nil {
		m.log.Error("failed to load program", "key", key.String(), "err", err)
		return nil, err
	}
	c := &cached{key: key, prog: prog, count: 1}
	m.entries[key] = c
	m.byProgram[prog] = c
	m.log.Debug("loaded program", "key", key.String())

	if activate {
		if err := prog.Activate(); err != nil {
			m.Release(prog)
			return nil, err
		}
	}
	return prog, nil
}

func (m *Manager) build(key cacheKey) (*Program, error) {
	name := strings.TrimSuffix(key.vert, gpu.VertexShader.Extension())
	prog := NewProgram(m.dev, name)

	stages := []struct {
		kind gpu.ShaderKind
		file string
	}{
		{gpu.VertexShader, key.vert},
		{gpu.GeometryShader, key.geom},
		{gpu.FragmentShader, key.frag},
	}
	for _, s := range stages {
		if s.file == "" {
			continue
		}
		obj := NewObject(m.dev, m.loader, s.kind, s.file)
		obj.SetHeader(key.header, key.processHeader)
		prog.Attach(obj)
		if err := obj.LoadFile(); err != nil {
			prog.Delete()
			return nil, err
		}
		if err := obj.Compile(); err != nil {
			prog.Delete()
			return nil, err
		}
	}

	if m.bindFragData {
		prog.BindFragDataLocation(0, "FragData0")
	}
	if err := prog.Link(); err != nil {
		prog.Delete()
		return nil, err
	}
	return prog, nil
}

// Release drops one reference to p and deletes it when none remain. It
// reports whether p was deleted.
func (m *Manager) Release(p *Program) bool {
	c, ok := m.byProgram[p]
	if !ok {
		return false
	}
	c.count--
	if c.count > 0 {
		return false
	}
	delete(m.entries, c.key)
	delete(m.byProgram, p)
	p.Delete()
	return true
}

// RebuildAllFromFile reloads every live program from disk. A failed
// program does not stop the others; all failures are returned joined.
func (m *Manager) RebuildAllFromFile() error {
	keys := make([]cacheKey, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b cacheKey) int { return strings.Compare(a.String(), b.String()) })

	var errs []error
	for _, k := range keys {
		if err := m.entries[k].prog.RebuildFromFile(); err != nil {
			m.log.Error("failed to rebuild program", "key", k.String(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", m.entries[k].prog.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close deletes every program regardless of references.
func (m *Manager) Close() {
	for _, c := range m.entries {
		c.prog.Delete()
	}
	clear(m.entries)
	clear(m.byProgram)
}
