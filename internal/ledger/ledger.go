// Package ledger is the engine's escrow boundary. Every stake enters
// through TransferIn and every payout, refund and fee leaves through
// TransferOut; each call is all-or-nothing, so a failed transfer aborts
// the whole settlement step with no state change.
package ledger

import (
	"context"

	"wagerhouse/internal/fault"
)

// FeeCollector receives the protocol fee of every settlement.
const FeeCollector = "fee_collector"

var (
	ErrInsufficientFunds = fault.Wrap(fault.ErrValidation, "insufficient_funds")
	ErrNonPositiveAmount = fault.Wrap(fault.ErrValidation, "non_positive_amount")
	ErrUnknownHolder     = fault.Wrap(fault.ErrValidation, "unknown_holder")
)

type Ledger interface {
	// TransferIn moves amount from payer into engine escrow.
	TransferIn(ctx context.Context, payer string, amount int64, reason, refType, refID string) error
	// TransferOut moves amount from engine escrow to payee.
	TransferOut(ctx context.Context, payee string, amount int64, reason, refType, refID string) error
	// BalanceOf reports holder's spendable balance.
	BalanceOf(ctx context.Context, holder string) (int64, error)
}
