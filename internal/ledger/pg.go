package ledger

import (
	"context"
	"errors"

	"wagerhouse/internal/store"
)

// escrowHolder is the account engine escrow moves through. Funds held
// there belong to in-flight sessions, rounds and bets, never to an agent.
const escrowHolder = "engine_escrow"

// PG is the store-backed Ledger. Each transfer is one database
// transaction with both legs journaled, which gives the all-or-nothing
// guarantee the settlement paths rely on.
type PG struct {
	store *store.Store
}

func NewPG(st *store.Store) *PG {
	return &PG{store: st}
}

// Init creates the engine-owned accounts. Run once at startup.
func (p *PG) Init(ctx context.Context) error {
	if err := p.store.EnsureAccount(ctx, escrowHolder, 0); err != nil {
		return err
	}
	return p.store.EnsureAccount(ctx, FeeCollector, 0)
}

func (p *PG) TransferIn(ctx context.Context, payer string, amount int64, reason, refType, refID string) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	return mapStoreErr(p.store.Transfer(ctx, payer, escrowHolder, amount, reason, refType, refID))
}

func (p *PG) TransferOut(ctx context.Context, payee string, amount int64, reason, refType, refID string) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	return mapStoreErr(p.store.Transfer(ctx, escrowHolder, payee, amount, reason, refType, refID))
}

func (p *PG) BalanceOf(ctx context.Context, holder string) (int64, error) {
	bal, err := p.store.GetAccountBalance(ctx, holder)
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrUnknownHolder
	}
	return bal, err
}

func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrInsufficientBalance):
		return ErrInsufficientFunds
	case errors.Is(err, store.ErrNotFound):
		return ErrUnknownHolder
	default:
		return err
	}
}
