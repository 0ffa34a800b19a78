package agents

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"

	"wagerhouse/internal/store"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{2,32}$`)

// StoreRegistry is the store-backed Registry used by the server.
type StoreRegistry struct {
	store *store.Store
}

func NewStoreRegistry(st *store.Store) *StoreRegistry {
	return &StoreRegistry{store: st}
}

// Register creates an agent in the unverified state and returns the API
// key exactly once; only its hash is stored.
func (r *StoreRegistry) Register(ctx context.Context, name string) (*Agent, string, error) {
	if !namePattern.MatchString(name) {
		return nil, "", ErrInvalidName
	}
	if _, err := r.store.GetAgentByName(ctx, name); err == nil {
		return nil, "", ErrNameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, "", err
	}
	key, err := newAPIKey()
	if err != nil {
		return nil, "", err
	}
	id, err := r.store.CreateAgent(ctx, name, key)
	if err != nil {
		return nil, "", err
	}
	if err := r.store.EnsureAccount(ctx, id, 0); err != nil {
		return nil, "", err
	}
	a, err := r.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return a, key, nil
}

// Authenticate resolves an API key to its agent.
func (r *StoreRegistry) Authenticate(ctx context.Context, apiKey string) (*Agent, error) {
	rec, err := r.store.GetAgentByAPIKey(ctx, apiKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRecord(rec), nil
}

// Verify flips the verification gate. Admin surface only.
func (r *StoreRegistry) Verify(ctx context.Context, id string, verified bool) error {
	err := r.store.SetAgentVerified(ctx, id, verified)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *StoreRegistry) Get(ctx context.Context, id string) (*Agent, error) {
	rec, err := r.store.GetAgent(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRecord(rec), nil
}

func (r *StoreRegistry) IsVerified(ctx context.Context, id string) bool {
	rec, err := r.store.GetAgent(ctx, id)
	return err == nil && rec.Verified
}

func (r *StoreRegistry) RecordWin(ctx context.Context, id string, wagered int64) error {
	return r.store.RecordResult(ctx, id, true, wagered)
}

func (r *StoreRegistry) RecordLoss(ctx context.Context, id string, wagered int64) error {
	return r.store.RecordResult(ctx, id, false, wagered)
}

func fromRecord(rec *store.Agent) *Agent {
	return &Agent{
		ID:        rec.ID,
		Name:      rec.Name,
		Verified:  rec.Verified,
		Wins:      rec.Wins,
		Losses:    rec.Losses,
		Wagered:   rec.WageredCC,
		CreatedAt: rec.CreatedAt,
	}
}

func newAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "wk_" + hex.EncodeToString(b), nil
}
