package checkout

import (
	"sync"
	"time"

	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/user"
)

type registryKey struct {
	userID   string
	courseID string
}

// Registry hands out one Orchestrator per (user, course), so that concurrent requests share one state machine.
type Registry struct {
	deps *Deps

	mu    sync.Mutex
	items map[registryKey]*Orchestrator
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:  deps.withDefaults(),
		items: make(map[registryKey]*Orchestrator),
	}
}

// Get returns the Orchestrator of sess's user and crs, creating it on first use.
// Anonymous sessions get a throwaway Orchestrator (its Start fails with AuthRequired).
func (r *Registry) Get(sess user.Session, crs course.Course) *Orchestrator {
	userID := sess.UserID()
	if userID == "" {
		return newOrchestrator(sess, crs, r.deps)
	}
	k := registryKey{userID: userID, courseID: crs.ID}

	r.mu.Lock()
	o, ok := r.items[k]
	if !ok {
		o = newOrchestrator(sess, crs, r.deps)
		r.items[k] = o
	}
	r.mu.Unlock()

	if ok {
		o.refresh(sess, crs)
	}
	return o
}

// Lookup returns the existing Orchestrator of (userID, courseID).
func (r *Registry) Lookup(userID, courseID string) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.items[registryKey{userID: userID, courseID: courseID}]
	return o, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Prune forgets the orchestrators untouched for maxIdle that have no backend call running.
func (r *Registry) Prune(maxIdle time.Duration) int {
	before := time.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for k, o := range r.items {
		if o.idleSince(before) {
			delete(r.items, k)
			n++
		}
	}
	return n
}
