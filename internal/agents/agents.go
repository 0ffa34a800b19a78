// Package agents is the identity and registration service. The engine
// consumes it as a capability check: every staking entry point asks
// IsVerified before touching the ledger, and every settlement records the
// outcome on the participants' cumulative totals.
package agents

import (
	"context"
	"time"

	"wagerhouse/internal/fault"
)

var (
	ErrNotFound      = fault.Wrap(fault.ErrValidation, "agent_not_found")
	ErrNameTaken     = fault.Wrap(fault.ErrValidation, "name_taken")
	ErrInvalidName   = fault.Wrap(fault.ErrValidation, "invalid_name")
	ErrNotVerified   = fault.Wrap(fault.ErrAuthorization, "agent_not_verified")
)

// Agent is created on registration, mutated on every settlement, never
// deleted.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Verified  bool      `json:"verified"`
	Wins      int64     `json:"wins"`
	Losses    int64     `json:"losses"`
	Wagered   int64     `json:"wagered"`
	CreatedAt time.Time `json:"created_at"`
}

type Registry interface {
	Get(ctx context.Context, id string) (*Agent, error)
	IsVerified(ctx context.Context, id string) bool
	RecordWin(ctx context.Context, id string, wagered int64) error
	RecordLoss(ctx context.Context, id string, wagered int64) error
}

// RequireVerified is the shared gate used by staking entry points.
func RequireVerified(ctx context.Context, reg Registry, id string) error {
	if id == "" || !reg.IsVerified(ctx, id) {
		return ErrNotVerified
	}
	return nil
}
