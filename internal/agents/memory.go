package agents

import (
	"context"
	"sync"
	"time"
)

// MemRegistry is an in-process Registry used by engine tests and by
// deployments that delegate identity to an upstream service.
type MemRegistry struct {
	mu     sync.Mutex
	byID   map[string]*Agent
	byName map[string]string
}

func NewMemRegistry() *MemRegistry {
	return &MemRegistry{byID: map[string]*Agent{}, byName: map[string]string{}}
}

// Add registers an agent directly. Test setup and seeding.
func (r *MemRegistry) Add(id, name string, verified bool) *Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &Agent{ID: id, Name: name, Verified: verified, CreatedAt: time.Now()}
	r.byID[id] = a
	r.byName[name] = id
	return a
}

func (r *MemRegistry) Get(_ context.Context, id string) (*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemRegistry) IsVerified(_ context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	return ok && a.Verified
}

func (r *MemRegistry) RecordWin(_ context.Context, id string, wagered int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	a.Wins++
	a.Wagered += wagered
	return nil
}

func (r *MemRegistry) RecordLoss(_ context.Context, id string, wagered int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	a.Losses++
	a.Wagered += wagered
	return nil
}
