// Package house runs the games played against the pooled bankroll: a
// multi-step draw-to-threshold hand and a single-step dice bet. Every bet
// passes the bankroll exposure check strictly before escrow, and every
// settlement accrues the realized house profit or loss back to the pool.
package house

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"wagerhouse/internal/agents"
	"wagerhouse/internal/bankroll"
	"wagerhouse/internal/commitment"
	"wagerhouse/internal/entropy"
	"wagerhouse/internal/fault"
	"wagerhouse/internal/feed"
	"wagerhouse/internal/ledger"
	"wagerhouse/internal/params"
	"wagerhouse/internal/payout"
	"wagerhouse/internal/store"
)

const (
	// BustThreshold ends the player's hand when exceeded.
	BustThreshold = 21
	// HouseStand is the fixed house policy: draw below it, stop at or
	// above it.
	HouseStand = 17
	// drawMax bounds a single draw value to 1..drawMax.
	drawMax = 10

	handDomain = "hand_draw"
	diceDomain = "dice_roll"
)

var (
	ErrHandNotFound     = fault.Wrap(fault.ErrValidation, "hand_not_found")
	ErrStakeOutOfBounds = fault.Wrap(fault.ErrValidation, "stake_out_of_bounds")
	ErrInvalidCommit    = fault.Wrap(fault.ErrValidation, "malformed_commitment")
	ErrInvalidTarget    = fault.Wrap(fault.ErrValidation, "invalid_target")
	ErrNotAwaitingSeed  = fault.Wrap(fault.ErrState, "hand_not_awaiting_reveal")
	ErrNotInPlay        = fault.Wrap(fault.ErrState, "hand_not_in_play")
	ErrDoubleAfterHit   = fault.Wrap(fault.ErrState, "double_after_hit")
	ErrNotYourHand      = fault.Wrap(fault.ErrAuthorization, "not_your_hand")
	ErrRevealStillOpen  = fault.Wrap(fault.ErrTimeout, "reveal_window_open")
	ErrRevealLapsed     = fault.Wrap(fault.ErrTimeout, "reveal_window_closed")
)

type HandState string

const (
	HandCreated HandState = "created" // awaiting reveal
	HandInPlay  HandState = "in_play"
	HandSettled HandState = "settled"
	// HandFrozen marks a hand whose settlement failed after funds had
	// started moving. Frozen hands accept no further actions; the remaining
	// escrow needs operator reconciliation against the ledger journal.
	HandFrozen HandState = "frozen"
)

type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLose    Outcome = "lose"
	OutcomePush    Outcome = "push"
	OutcomeForfeit Outcome = "forfeit"
)

// Hand is one multi-step house-backed wager. The player's commitment seeds
// the draw stream at reveal, so the house cannot know the draws when the
// bet is escrowed and the player cannot pick a stream after seeing cards.
type Hand struct {
	ID         string          `json:"id"`
	Player     string          `json:"player"`
	Stake      int64           `json:"stake"` // escrowed total; doubles in place
	State      HandState       `json:"state"`
	Commit     commitment.Hash `json:"commit"`
	PlayerSum  int             `json:"player_sum"`
	HouseSum   int             `json:"house_sum"`
	Doubled    bool            `json:"doubled"`
	Outcome    Outcome         `json:"outcome,omitempty"`
	Payout     int64           `json:"payout,omitempty"`
	Fee        int64           `json:"fee,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	RevealedAt time.Time       `json:"revealed_at,omitempty"`

	seed  [32]byte
	drawN uint64
	hits  int
}

type Service struct {
	pool    *bankroll.Manager
	reg     agents.Registry
	params  *params.Params
	entropy entropy.Source
	sink    feed.Sink
	now     func() time.Time

	mu    sync.Mutex
	hands map[string]*Hand
}

func NewService(pool *bankroll.Manager, reg agents.Registry, p *params.Params, src entropy.Source, sink feed.Sink) *Service {
	if sink == nil {
		sink = feed.Nop{}
	}
	return &Service{
		pool:    pool,
		reg:     reg,
		params:  p,
		entropy: src,
		sink:    sink,
		now:     time.Now,
		hands:   map[string]*Hand{},
	}
}

// StartHand escrows the stake behind the exposure cap and waits for the
// seed reveal. The worst case paid out on an undoubled hand is twice the
// stake; Double re-checks before raising that.
func (s *Service) StartHand(ctx context.Context, player string, stake int64, commit commitment.Hash) (*Hand, error) {
	if err := agents.RequireVerified(ctx, s.reg, player); err != nil {
		return nil, err
	}
	ps := s.params.Snapshot()
	if stake < ps.StakeMin || stake > ps.StakeMax {
		return nil, ErrStakeOutOfBounds
	}
	if !commitment.Valid(commit) {
		return nil, ErrInvalidCommit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := store.NewID()
	if err := s.pool.EscrowBet(ctx, player, stake, 2*stake, "hand", id); err != nil {
		return nil, err
	}
	h := &Hand{
		ID:        id,
		Player:    player,
		Stake:     stake,
		State:     HandCreated,
		Commit:    commit,
		CreatedAt: s.now(),
	}
	s.hands[id] = h
	cp := *h
	return &cp, nil
}

// RevealHand consumes the commitment, derives the deterministic draw
// stream from the secret and a fresh entropy draw, and deals the opening
// two cards.
func (s *Service) RevealHand(ctx context.Context, id, player, secret string) (*Hand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hands[id]
	if !ok {
		return nil, ErrHandNotFound
	}
	if h.Player != player {
		return nil, ErrNotYourHand
	}
	if h.State != HandCreated {
		return nil, ErrNotAwaitingSeed
	}
	if s.now().After(h.CreatedAt.Add(s.params.Snapshot().RevealWindow)) {
		return nil, ErrRevealLapsed
	}
	if err := commitment.Verify(h.Commit, 0, secret); err != nil {
		return nil, err
	}
	h.seed = entropy.Mix(s.entropy.Draw(), []byte(handDomain), []byte(secret), []byte(id))
	h.State = HandInPlay
	h.RevealedAt = s.now()
	h.PlayerSum = h.draw() + h.draw()
	cp := *h
	return &cp, nil
}

// Hit draws one more card; exceeding the bust threshold settles the hand
// as a loss in the same call.
func (s *Service) Hit(ctx context.Context, id, player string) (*Hand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.inPlayLocked(id, player)
	if err != nil {
		return nil, err
	}
	h.hits++
	h.PlayerSum += h.draw()
	if h.PlayerSum > BustThreshold {
		if err := s.settleLocked(ctx, h, OutcomeLose); err != nil {
			return nil, err
		}
	}
	cp := *h
	return &cp, nil
}

// Stand stops the player; the fixed house policy plays to completion and
// the hand settles on the comparison.
func (s *Service) Stand(ctx context.Context, id, player string) (*Hand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.inPlayLocked(id, player)
	if err != nil {
		return nil, err
	}
	if err := s.playHouseAndSettleLocked(ctx, h); err != nil {
		return nil, err
	}
	cp := *h
	return &cp, nil
}

// Double doubles the escrowed stake before the first hit, draws exactly
// once and stands. The extra escrow re-runs the exposure check against
// the doubled worst-case payout.
func (s *Service) Double(ctx context.Context, id, player string) (*Hand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.inPlayLocked(id, player)
	if err != nil {
		return nil, err
	}
	if h.hits > 0 || h.Doubled {
		return nil, ErrDoubleAfterHit
	}
	if err := s.pool.EscrowBet(ctx, player, h.Stake, 4*h.Stake, "hand", h.ID); err != nil {
		return nil, err
	}
	h.Stake *= 2
	h.Doubled = true
	h.PlayerSum += h.draw()
	if h.PlayerSum > BustThreshold {
		if err := s.settleLocked(ctx, h, OutcomeLose); err != nil {
			return nil, err
		}
	} else if err := s.playHouseAndSettleLocked(ctx, h); err != nil {
		return nil, err
	}
	cp := *h
	return &cp, nil
}

// ExpireHand forfeits an unrevealed hand once the reveal window lapses:
// the withholding party is the player, so the stake accrues to the pool.
// Anyone may call it.
func (s *Service) ExpireHand(ctx context.Context, id string) (*Hand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hands[id]
	if !ok {
		return nil, ErrHandNotFound
	}
	if h.State != HandCreated {
		return nil, ErrNotAwaitingSeed
	}
	if !s.now().After(h.CreatedAt.Add(s.params.Snapshot().RevealWindow)) {
		return nil, ErrRevealStillOpen
	}
	if err := s.settleLocked(ctx, h, OutcomeForfeit); err != nil {
		return nil, err
	}
	cp := *h
	return &cp, nil
}

// GetHand returns a read-only copy for the presentation layer.
func (s *Service) GetHand(id string) (*Hand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hands[id]
	if !ok {
		return nil, ErrHandNotFound
	}
	cp := *h
	return &cp, nil
}

func (s *Service) inPlayLocked(id, player string) (*Hand, error) {
	h, ok := s.hands[id]
	if !ok {
		return nil, ErrHandNotFound
	}
	if h.Player != player {
		return nil, ErrNotYourHand
	}
	if h.State != HandInPlay {
		return nil, ErrNotInPlay
	}
	return h, nil
}

func (s *Service) playHouseAndSettleLocked(ctx context.Context, h *Hand) error {
	for h.HouseSum < HouseStand {
		h.HouseSum += h.draw()
	}
	outcome := OutcomePush
	switch {
	case h.HouseSum > BustThreshold || h.PlayerSum > h.HouseSum:
		outcome = OutcomeWin
	case h.PlayerSum < h.HouseSum:
		outcome = OutcomeLose
	}
	return s.settleLocked(ctx, h, outcome)
}

// settleLocked moves funds for the final outcome and accrues the realized
// house profit or loss. A transfer failure freezes the hand instead of
// leaving it replayable with legs already paid. Callers hold s.mu.
func (s *Service) settleLocked(ctx context.Context, h *Hand, outcome Outcome) error {
	switch outcome {
	case OutcomeWin:
		pot := 2 * h.Stake
		fee := payout.Fee(pot, s.params.Snapshot().FeeBps)
		h.Payout = pot - fee
		h.Fee = fee
		if err := s.pool.PayOut(ctx, h.Player, pot-fee, "hand_payout", "hand", h.ID); err != nil {
			s.freezeLocked(h, outcome, err)
			return err
		}
		if err := s.pool.PayOut(ctx, ledger.FeeCollector, fee, "protocol_fee", "hand", h.ID); err != nil {
			s.freezeLocked(h, outcome, err)
			return err
		}
		s.pool.Accrue(h.Stake - pot)
		if err := s.reg.RecordWin(ctx, h.Player, h.Stake); err != nil {
			log.Warn().Err(err).Str("agent_id", h.Player).Msg("record win failed")
		}
	case OutcomeLose, OutcomeForfeit:
		s.pool.Accrue(h.Stake)
		if err := s.reg.RecordLoss(ctx, h.Player, h.Stake); err != nil {
			log.Warn().Err(err).Str("agent_id", h.Player).Msg("record loss failed")
		}
	case OutcomePush:
		if err := s.pool.PayOut(ctx, h.Player, h.Stake, "stake_refund", "hand", h.ID); err != nil {
			s.freezeLocked(h, outcome, err)
			return err
		}
		h.Payout = h.Stake
	}
	h.State = HandSettled
	h.Outcome = outcome
	ev := feed.NewEvent(feed.TypeHandSettled, h.ID)
	if outcome == OutcomeWin {
		ev.Winners = []string{h.Player}
	} else if outcome != OutcomePush {
		ev.Losers = []string{h.Player}
	}
	ev.Pot = 2 * h.Stake
	ev.Fee = h.Fee
	s.sink.Publish(ev)
	log.Info().Str("hand_id", h.ID).Str("outcome", string(outcome)).Int("player", h.PlayerSum).Int("house", h.HouseSum).Msg("hand settled")
	return nil
}

// freezeLocked makes a half-paid settlement unrepeatable: the hand keeps
// its decided outcome for reconciliation but no state guard will ever let
// it settle again. Callers hold s.mu.
func (s *Service) freezeLocked(h *Hand, outcome Outcome, cause error) {
	h.State = HandFrozen
	h.Outcome = outcome
	log.Error().Err(cause).Str("hand_id", h.ID).Str("outcome", string(outcome)).Msg("settlement frozen")
}

// draw yields the next value of the hand's deterministic stream, 1..drawMax.
func (h *Hand) draw() int {
	h.drawN++
	var n8 [8]byte
	binary.BigEndian.PutUint64(n8[:], h.drawN)
	d := entropy.Mix(h.seed, n8[:])
	return 1 + entropy.Mod(d, drawMax)
}
