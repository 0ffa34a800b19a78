// Package elimination runs pari-mutuel elimination rounds: exactly six
// equal stakes enter, the fairness draw picks one loser, and the pot minus
// fee is split equally across the five survivors. Admission of the sixth
// participant and settlement are the same atomic action; a full round
// never sits unsettled.
package elimination

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"wagerhouse/internal/agents"
	"wagerhouse/internal/entropy"
	"wagerhouse/internal/fault"
	"wagerhouse/internal/feed"
	"wagerhouse/internal/ledger"
	"wagerhouse/internal/params"
	"wagerhouse/internal/payout"
	"wagerhouse/internal/store"
)

// Slots per round. The split across survivors assumes equal stakes, which
// the fixed tier guarantees.
const RoundSize = 6

const drawDomain = "elimination_draw"

var (
	ErrRoundNotFound    = fault.Wrap(fault.ErrValidation, "round_not_found")
	ErrStakeOutOfBounds = fault.Wrap(fault.ErrValidation, "stake_out_of_bounds")
	ErrNoInvitees       = fault.Wrap(fault.ErrValidation, "no_invitees")
	ErrAlreadyEntered   = fault.Wrap(fault.ErrState, "already_entered")
	ErrRoundSettled     = fault.Wrap(fault.ErrState, "round_settled")
	ErrRoundFull        = fault.Wrap(fault.ErrState, "round_full")
	ErrRoundFrozen      = fault.Wrap(fault.ErrState, "round_frozen")
	ErrNotInvited       = fault.Wrap(fault.ErrAuthorization, "not_invited")
	ErrRoundNotExpired  = fault.Wrap(fault.ErrTimeout, "round_not_expired")
)

type State string

const (
	StateOpen      State = "open"
	StateSettled   State = "settled"
	StateCancelled State = "cancelled"
	// StateFrozen marks a round whose settlement failed after some payout
	// legs had gone through. Frozen rounds accept no admissions and no
	// cancellation; the remaining escrow needs operator reconciliation
	// against the ledger journal.
	StateFrozen State = "frozen"
)

type Round struct {
	ID           string    `json:"id"`
	Tier         int64     `json:"tier"`
	Private      bool      `json:"private"`
	State        State     `json:"state"`
	Participants []string  `json:"participants"`
	Eliminated   string    `json:"eliminated,omitempty"`
	Share        int64     `json:"share,omitempty"`
	Fee          int64     `json:"fee,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	invitees map[string]bool
}

type Service struct {
	ledger  ledger.Ledger
	reg     agents.Registry
	params  *params.Params
	entropy entropy.Source
	sink    feed.Sink
	now     func() time.Time

	mu         sync.Mutex
	rounds     map[string]*Round
	openByTier map[int64]string
}

func NewService(led ledger.Ledger, reg agents.Registry, p *params.Params, src entropy.Source, sink feed.Sink) *Service {
	if sink == nil {
		sink = feed.Nop{}
	}
	return &Service{
		ledger:     led,
		reg:        reg,
		params:     p,
		entropy:    src,
		sink:       sink,
		now:        time.Now,
		rounds:     map[string]*Round{},
		openByTier: map[int64]string{},
	}
}

// Enter admits the caller into the tier's open public round, creating one
// if none exists. Admitting the sixth participant settles the round in
// this same call.
func (s *Service) Enter(ctx context.Context, caller string, tier int64) (*Round, error) {
	if err := agents.RequireVerified(ctx, s.reg, caller); err != nil {
		return nil, err
	}
	ps := s.params.Snapshot()
	if tier < ps.StakeMin || tier > ps.StakeMax {
		return nil, ErrStakeOutOfBounds
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var round *Round
	if id, ok := s.openByTier[tier]; ok {
		round = s.rounds[id]
	} else {
		round = &Round{ID: store.NewID(), Tier: tier, State: StateOpen, CreatedAt: s.now()}
		s.rounds[round.ID] = round
		s.openByTier[tier] = round.ID
	}
	return s.admitLocked(ctx, round, caller)
}

// CreatePrivate opens an invite-gated round; the creator is admitted as
// the first participant and stakes in the same call.
func (s *Service) CreatePrivate(ctx context.Context, creator string, tier int64, invitees []string) (*Round, error) {
	if err := agents.RequireVerified(ctx, s.reg, creator); err != nil {
		return nil, err
	}
	ps := s.params.Snapshot()
	if tier < ps.StakeMin || tier > ps.StakeMax {
		return nil, ErrStakeOutOfBounds
	}
	if len(invitees) == 0 {
		return nil, ErrNoInvitees
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	round := &Round{
		ID:        store.NewID(),
		Tier:      tier,
		Private:   true,
		State:     StateOpen,
		CreatedAt: s.now(),
		invitees:  map[string]bool{creator: true},
	}
	for _, inv := range invitees {
		round.invitees[inv] = true
	}
	s.rounds[round.ID] = round
	return s.admitLocked(ctx, round, creator)
}

// EnterRound admits the caller into a specific (typically private) round.
func (s *Service) EnterRound(ctx context.Context, roundID, caller string) (*Round, error) {
	if err := agents.RequireVerified(ctx, s.reg, caller); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	round, ok := s.rounds[roundID]
	if !ok {
		return nil, ErrRoundNotFound
	}
	if round.Private && !round.invitees[caller] {
		return nil, ErrNotInvited
	}
	return s.admitLocked(ctx, round, caller)
}

// CancelExpired refunds every occupant of an incomplete round past its
// expiry. Anyone may call it.
func (s *Service) CancelExpired(ctx context.Context, roundID string) (*Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, ok := s.rounds[roundID]
	if !ok {
		return nil, ErrRoundNotFound
	}
	if round.State == StateFrozen {
		return nil, ErrRoundFrozen
	}
	if round.State != StateOpen {
		return nil, ErrRoundSettled
	}
	if !s.now().After(round.CreatedAt.Add(s.params.Snapshot().RoundExpiry)) {
		return nil, ErrRoundNotExpired
	}
	for _, p := range round.Participants {
		if err := s.ledger.TransferOut(ctx, p, round.Tier, "stake_refund", "round", round.ID); err != nil {
			return nil, err
		}
	}
	round.State = StateCancelled
	if !round.Private {
		delete(s.openByTier, round.Tier)
	}
	ev := feed.NewEvent(feed.TypeRefund, round.ID)
	ev.Pot = round.Tier * int64(len(round.Participants))
	s.sink.Publish(ev)
	cp := s.copyLocked(round)
	return cp, nil
}

// Get returns a read-only copy for the presentation layer.
func (s *Service) Get(roundID string) (*Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, ok := s.rounds[roundID]
	if !ok {
		return nil, ErrRoundNotFound
	}
	return s.copyLocked(round), nil
}

// OpenAt reports the tier's current open public round, if any.
func (s *Service) OpenAt(tier int64) (*Round, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.openByTier[tier]
	if !ok {
		return nil, false
	}
	return s.copyLocked(s.rounds[id]), true
}

func (s *Service) admitLocked(ctx context.Context, round *Round, caller string) (*Round, error) {
	switch {
	case round.State == StateFrozen:
		return nil, ErrRoundFrozen
	case round.State != StateOpen:
		return nil, ErrRoundSettled
	case len(round.Participants) >= RoundSize:
		return nil, ErrRoundFull
	}
	for _, p := range round.Participants {
		if p == caller {
			return nil, ErrAlreadyEntered
		}
	}
	if err := s.ledger.TransferIn(ctx, caller, round.Tier, "stake_escrow", "round", round.ID); err != nil {
		return nil, err
	}
	round.Participants = append(round.Participants, caller)
	if len(round.Participants) < RoundSize {
		return s.copyLocked(round), nil
	}
	if err := s.settleLocked(ctx, round); err != nil {
		return nil, err
	}
	return s.copyLocked(round), nil
}

// settleLocked eliminates one slot uniformly and splits pot minus fee
// equally across the survivors; the integer remainder of the split folds
// into the collected fee so conservation is exact. A transfer failure
// freezes the round instead of leaving it re-settleable with survivors
// already paid. Callers hold s.mu.
func (s *Service) settleLocked(ctx context.Context, round *Round) error {
	parts := make([][]byte, 0, RoundSize+2)
	parts = append(parts, []byte(drawDomain), []byte(round.ID))
	for _, p := range round.Participants {
		parts = append(parts, []byte(p))
	}
	draw := entropy.Mix(s.entropy.Draw(), parts...)
	loserIdx := entropy.Mod(draw, RoundSize)
	loser := round.Participants[loserIdx]

	pot := round.Tier * RoundSize
	fee := payout.Fee(pot, s.params.Snapshot().FeeBps)
	share, rem := payout.SplitEqual(pot-fee, RoundSize-1)
	fee += rem
	round.Eliminated = loser
	round.Share = share
	round.Fee = fee

	winners := make([]string, 0, RoundSize-1)
	for _, p := range round.Participants {
		if p == loser {
			continue
		}
		if err := s.ledger.TransferOut(ctx, p, share, "round_payout", "round", round.ID); err != nil {
			s.freezeLocked(round, err)
			return err
		}
		winners = append(winners, p)
	}
	if fee > 0 {
		if err := s.ledger.TransferOut(ctx, ledger.FeeCollector, fee, "protocol_fee", "round", round.ID); err != nil {
			s.freezeLocked(round, err)
			return err
		}
	}
	round.State = StateSettled
	if !round.Private {
		delete(s.openByTier, round.Tier)
	}
	for _, w := range winners {
		if err := s.reg.RecordWin(ctx, w, round.Tier); err != nil {
			log.Warn().Err(err).Str("agent_id", w).Msg("record win failed")
		}
	}
	if err := s.reg.RecordLoss(ctx, loser, round.Tier); err != nil {
		log.Warn().Err(err).Str("agent_id", loser).Msg("record loss failed")
	}
	ev := feed.NewEvent(feed.TypeRoundSettled, round.ID)
	ev.Winners = winners
	ev.Losers = []string{loser}
	ev.Pot = pot
	ev.Fee = fee
	s.sink.Publish(ev)
	log.Info().Str("round_id", round.ID).Int64("tier", round.Tier).Str("eliminated", loser).Msg("round settled")
	return nil
}

// freezeLocked makes a half-paid settlement unrepeatable: the round keeps
// its draw result for reconciliation and the tier slot reopens for a fresh
// round. Callers hold s.mu.
func (s *Service) freezeLocked(round *Round, cause error) {
	round.State = StateFrozen
	if !round.Private {
		delete(s.openByTier, round.Tier)
	}
	log.Error().Err(cause).Str("round_id", round.ID).Str("eliminated", round.Eliminated).Msg("settlement frozen")
}

func (s *Service) copyLocked(round *Round) *Round {
	cp := *round
	cp.Participants = append([]string(nil), round.Participants...)
	cp.invitees = nil
	return &cp
}
