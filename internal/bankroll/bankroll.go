// Package bankroll manages the pooled capital backing house-side games:
// staker principal, proportional reward accrual, and the exposure cap that
// bounds any single payout to a fraction of the pool.
package bankroll

import (
	"context"
	"sync"

	"wagerhouse/internal/agents"
	"wagerhouse/internal/fault"
	"wagerhouse/internal/ledger"
	"wagerhouse/internal/params"
)

// rewardPrecision scales the accumulated-reward-per-share fixed point.
const rewardPrecision = 1_000_000_000

var (
	ErrBelowMinFirstStake = fault.Wrap(fault.ErrValidation, "below_min_first_stake")
	ErrNoPosition         = fault.Wrap(fault.ErrState, "no_bankroll_position")
	ErrExceedsPrincipal   = fault.Wrap(fault.ErrValidation, "exceeds_principal")
	ErrExposureExceeded   = fault.Wrap(fault.ErrValidation, "exposure_exceeded")
	ErrNothingToClaim     = fault.Wrap(fault.ErrState, "nothing_to_claim")
)

// Position is one staker's stake in the pool. Reward is settled lazily:
// the per-share accumulator is sampled whenever the principal changes, so
// later stake/unstake by one party never distorts accruals already
// attributed to others.
type Position struct {
	Principal  int64
	reward     int64 // settled reward, may go negative on house losses
	rewardDebt int64 // principal * accPerShare / rewardPrecision at last settle
}

type Status struct {
	Balance     int64 `json:"balance"`
	TotalStaked int64 `json:"total_staked"`
	Stakers     int   `json:"stakers"`
}

type Manager struct {
	ledger ledger.Ledger
	reg    agents.Registry
	params *params.Params

	mu          sync.Mutex
	balance     int64 // pool funds currently escrowed for house games
	totalStaked int64
	accPerShare int64
	positions   map[string]*Position
}

func New(led ledger.Ledger, reg agents.Registry, p *params.Params) *Manager {
	return &Manager{ledger: led, reg: reg, params: p, positions: map[string]*Position{}}
}

// Stake adds principal. First-time stakes below the configured minimum are
// rejected; top-ups to an existing position are always allowed.
func (m *Manager) Stake(ctx context.Context, staker string, amount int64) error {
	if err := agents.RequireVerified(ctx, m.reg, staker); err != nil {
		return err
	}
	if amount <= 0 {
		return ledger.ErrNonPositiveAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[staker]
	if !ok {
		if amount < m.params.Snapshot().MinFirstStake {
			return ErrBelowMinFirstStake
		}
		pos = &Position{}
		m.positions[staker] = pos
	}
	if err := m.ledger.TransferIn(ctx, staker, amount, "bankroll_stake", "bankroll", staker); err != nil {
		if !ok {
			delete(m.positions, staker)
		}
		return err
	}
	m.settle(pos)
	pos.Principal += amount
	pos.rewardDebt = pos.Principal * m.accPerShare / rewardPrecision
	m.totalStaked += amount
	m.balance += amount
	return nil
}

// Unstake withdraws principal. A negative settled reward (the staker's
// share of realized house losses) is absorbed out of the withdrawal.
func (m *Manager) Unstake(ctx context.Context, staker string, amount int64) error {
	if amount <= 0 {
		return ledger.ErrNonPositiveAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[staker]
	if !ok {
		return ErrNoPosition
	}
	m.settle(pos)
	if amount > pos.Principal {
		return ErrExceedsPrincipal
	}
	payout := amount
	if pos.reward < 0 {
		absorb := -pos.reward
		if absorb > payout {
			absorb = payout
		}
		payout -= absorb
		pos.reward += absorb
	}
	if payout > 0 {
		if err := m.ledger.TransferOut(ctx, staker, payout, "bankroll_unstake", "bankroll", staker); err != nil {
			return err
		}
	}
	pos.Principal -= amount
	pos.rewardDebt = pos.Principal * m.accPerShare / rewardPrecision
	m.totalStaked -= amount
	m.balance -= payout
	return nil
}

// Claim pays out a staker's settled positive reward.
func (m *Manager) Claim(ctx context.Context, staker string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[staker]
	if !ok {
		return 0, ErrNoPosition
	}
	m.settle(pos)
	if pos.reward <= 0 {
		return 0, ErrNothingToClaim
	}
	amount := pos.reward
	if err := m.ledger.TransferOut(ctx, staker, amount, "bankroll_reward", "bankroll", staker); err != nil {
		return 0, err
	}
	pos.reward = 0
	m.balance -= amount
	return amount, nil
}

// EscrowBet admits a house-backed bet: the exposure check and the stake
// escrow execute under one lock hold so two concurrently admitted oversized
// bets cannot both pass against a stale balance. Rejection happens strictly
// before any fund movement.
func (m *Manager) EscrowBet(ctx context.Context, player string, stake, maxPayout int64, refType, refID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	capPct := m.params.Snapshot().ExposureCapPct
	if maxPayout > m.balance*capPct/100 {
		return ErrExposureExceeded
	}
	if err := m.ledger.TransferIn(ctx, player, stake, "bet_escrow", refType, refID); err != nil {
		return err
	}
	m.balance += stake
	return nil
}

// CheckExposure is EscrowBet's gate alone, for re-checks mid-hand before
// additional escrow (double-type actions).
func (m *Manager) CheckExposure(maxPayout int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	capPct := m.params.Snapshot().ExposureCapPct
	if maxPayout > m.balance*capPct/100 {
		return ErrExposureExceeded
	}
	return nil
}

// PayOut releases pool funds to a payee as part of a house settlement.
func (m *Manager) PayOut(ctx context.Context, payee string, amount int64, reason, refType, refID string) error {
	if amount <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ledger.TransferOut(ctx, payee, amount, reason, refType, refID); err != nil {
		return err
	}
	m.balance -= amount
	return nil
}

// Accrue distributes realized house profit (positive) or loss (negative)
// across current stakers, proportional to principal at this moment. Fund
// movement already happened through EscrowBet/PayOut; this is bookkeeping
// only.
func (m *Manager) Accrue(delta int64) {
	if delta == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totalStaked > 0 {
		m.accPerShare += delta * rewardPrecision / m.totalStaked
	}
}

// PositionOf reports a staker's principal and currently claimable reward.
func (m *Manager) PositionOf(staker string) (principal, pending int64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, found := m.positions[staker]
	if !found {
		return 0, 0, false
	}
	pending = pos.reward + pos.Principal*m.accPerShare/rewardPrecision - pos.rewardDebt
	return pos.Principal, pending, true
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Balance: m.balance, TotalStaked: m.totalStaked, Stakers: len(m.positions)}
}

// settle folds the accumulator delta since the last sample into the
// position's reward. Callers hold m.mu.
func (m *Manager) settle(pos *Position) {
	pos.reward += pos.Principal*m.accPerShare/rewardPrecision - pos.rewardDebt
	pos.rewardDebt = pos.Principal * m.accPerShare / rewardPrecision
}
