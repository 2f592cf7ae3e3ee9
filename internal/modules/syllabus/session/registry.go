package session

import (
	"sync"

	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

// Registry holds the live workspace generators of one process.
type Registry struct {
	log     *logger.Logger
	factory func() *Generator

	mu   sync.RWMutex
	byID map[string]*Generator
}

// NewRegistry uses factory to build each new generator.
func NewRegistry(log *logger.Logger, factory func() *Generator) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		log:     log.With("component", "SessionRegistry"),
		factory: factory,
		byID:    make(map[string]*Generator),
	}
}

func (r *Registry) Create() *Generator {
	g := r.factory()
	r.mu.Lock()
	r.byID[g.ID()] = g
	n := len(r.byID)
	r.mu.Unlock()
	r.log.Info("Workspace session created", "session_id", g.ID(), "sessions", n)
	return g
}

func (r *Registry) Get(id string) (*Generator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byID[id]
	return g, ok
}

// Delete closes and forgets a generator. It reports whether id existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	g, ok := r.byID[id]
	delete(r.byID, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	g.Close()
	r.log.Info("Workspace session disposed", "session_id", id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// CloseAll disposes every generator, used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	gens := make([]*Generator, 0, len(r.byID))
	for id, g := range r.byID {
		gens = append(gens, g)
		delete(r.byID, id)
	}
	r.mu.Unlock()
	for _, g := range gens {
		g.Close()
	}
}
