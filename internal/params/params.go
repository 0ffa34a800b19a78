// Package params holds the engine's tunable settlement parameters. Setters
// enforce sanity bounds regardless of caller privilege; the administrative
// surface can move values only inside the ranges the engine itself accepts.
package params

import (
	"sync"
	"time"

	"wagerhouse/internal/fault"
)

const (
	// MaxFeeBps caps the protocol fee at 5%.
	MaxFeeBps = 500
	// MaxExposureCapPct caps any single payout at half the bankroll.
	MaxExposureCapPct = 50
	// MaxHouseEdgeBps caps the dice house edge at 10%.
	MaxHouseEdgeBps = 1000
)

var ErrParamOutOfRange = fault.Wrap(fault.ErrValidation, "param_out_of_range")

// Snapshot is one consistent read of every parameter.
type Snapshot struct {
	StakeMin        int64         `json:"stake_min"`
	StakeMax        int64         `json:"stake_max"`
	FeeBps          int64         `json:"fee_bps"`
	JoinWindow      time.Duration `json:"join_window_ns"`
	RevealWindow    time.Duration `json:"reveal_window_ns"`
	ChallengeWindow time.Duration `json:"challenge_window_ns"`
	PoolTimeout     time.Duration `json:"pool_timeout_ns"`
	RoundExpiry     time.Duration `json:"round_expiry_ns"`
	ExposureCapPct  int64         `json:"exposure_cap_pct"`
	MinFirstStake   int64         `json:"min_first_stake"`
	DiceEdgeBps     int64         `json:"dice_edge_bps"`
}

type Params struct {
	mu   sync.RWMutex
	snap Snapshot
}

func New(initial Snapshot) (*Params, error) {
	if err := validate(initial); err != nil {
		return nil, err
	}
	return &Params{snap: initial}, nil
}

// Defaults mirror the engine's shipped configuration.
func Defaults() Snapshot {
	return Snapshot{
		StakeMin:        10,
		StakeMax:        100_000,
		FeeBps:          100,
		JoinWindow:      10 * time.Minute,
		RevealWindow:    5 * time.Minute,
		ChallengeWindow: 30 * time.Minute,
		PoolTimeout:     15 * time.Minute,
		RoundExpiry:     time.Hour,
		ExposureCapPct:  10,
		MinFirstStake:   1_000,
		DiceEdgeBps:     200,
	}
}

func (p *Params) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Update applies mutate to a copy and installs it only if the result stays
// inside the engine's sanity bounds.
func (p *Params) Update(mutate func(*Snapshot)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.snap
	mutate(&next)
	if err := validate(next); err != nil {
		return err
	}
	p.snap = next
	return nil
}

func (p *Params) SetStakeBounds(min, max int64) error {
	return p.Update(func(s *Snapshot) { s.StakeMin, s.StakeMax = min, max })
}

func (p *Params) SetFeeBps(bps int64) error {
	return p.Update(func(s *Snapshot) { s.FeeBps = bps })
}

func (p *Params) SetExposureCapPct(pct int64) error {
	return p.Update(func(s *Snapshot) { s.ExposureCapPct = pct })
}

func (p *Params) SetTimeouts(join, reveal, challenge, pool, round time.Duration) error {
	return p.Update(func(s *Snapshot) {
		s.JoinWindow, s.RevealWindow, s.ChallengeWindow = join, reveal, challenge
		s.PoolTimeout, s.RoundExpiry = pool, round
	})
}

func validate(s Snapshot) error {
	switch {
	case s.StakeMin < 1 || s.StakeMax < s.StakeMin:
		return ErrParamOutOfRange
	case s.FeeBps < 0 || s.FeeBps > MaxFeeBps:
		return ErrParamOutOfRange
	case s.ExposureCapPct < 1 || s.ExposureCapPct > MaxExposureCapPct:
		return ErrParamOutOfRange
	case s.DiceEdgeBps < 0 || s.DiceEdgeBps > MaxHouseEdgeBps:
		return ErrParamOutOfRange
	case s.JoinWindow <= 0 || s.RevealWindow <= 0 || s.ChallengeWindow <= 0:
		return ErrParamOutOfRange
	case s.PoolTimeout <= 0 || s.RoundExpiry <= 0:
		return ErrParamOutOfRange
	case s.MinFirstStake < 1:
		return ErrParamOutOfRange
	}
	return nil
}
