package domain

import (
	"hash/fnv"
	"sync"
)

// StackPalette assigns each stack name a stable display color. The color is
// derived from the name, so the same technology renders identically across
// screens and runs.
type StackPalette struct {
	mu     sync.Mutex
	colors map[string]uint32
}

// NewStackPalette creates a palette, optionally seeded with known colors.
func NewStackPalette(seed map[string]uint32) *StackPalette {
	colors := make(map[string]uint32, len(seed))
	for k, v := range seed {
		colors[k] = v
	}
	return &StackPalette{colors: colors}
}

// Pick returns the color for key, assigning one on first use.
func (p *StackPalette) Pick(key string) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.colors[key]; ok {
		return c
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	// opaque alpha
	c := h.Sum32() | 0xFF000000
	p.colors[key] = c
	return c
}

// Colors returns a snapshot of all assignments.
func (p *StackPalette) Colors() map[string]uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]uint32, len(p.colors))
	for k, v := range p.colors {
		out[k] = v
	}
	return out
}

// Colorize returns a copy of the project with every stack entry colored and
// the favorite flag computed for uid.
func (p *StackPalette) Colorize(project Project, uid string) Project {
	stack := make([]Stack, len(project.Stack))
	for i, s := range project.Stack {
		s.Color = p.Pick(s.Name)
		stack[i] = s
	}
	project.Stack = stack
	project.Favorite = project.FollowedBy(uid)
	return project
}
