package session

import (
	"time"

	"wagerhouse/internal/commitment"
)

// Variant is chosen explicitly at construction, never inferred from a
// sentinel counterpart value.
type Variant string

const (
	VariantOpen   Variant = "open"
	VariantDirect Variant = "direct_challenge"
)

type State string

const (
	StateCreated       State = "created"
	StateJoined        State = "joined"
	StateCancelled     State = "cancelled"
	StateExpired       State = "expired"
	StateResolved      State = "resolved"
	StateForceResolved State = "force_resolved"
	// StateFrozen marks a session whose settlement failed after funds had
	// started moving. Frozen sessions accept no further actions; the
	// remaining escrow needs operator reconciliation against the ledger
	// journal.
	StateFrozen State = "frozen"
)

// Session is a single commit-reveal wager. The initiator locks a hidden
// choice behind the commitment; the counterpart takes the opposite side by
// joining. Exactly one settlement action destroys it.
type Session struct {
	ID          string          `json:"id"`
	Variant     Variant         `json:"variant"`
	State       State           `json:"state"`
	Initiator   string          `json:"initiator"`
	Opponent    string          `json:"opponent,omitempty"` // named counterpart, direct challenges only
	Counterpart string          `json:"counterpart,omitempty"`
	Stake       int64           `json:"stake"`
	Commit      commitment.Hash `json:"commit"`
	Winner      string          `json:"winner,omitempty"`
	Pot         int64           `json:"pot,omitempty"`
	Fee         int64           `json:"fee,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	JoinedAt    time.Time       `json:"joined_at,omitempty"`
}
