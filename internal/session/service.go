// Package session runs the generic per-wager lifecycle for symmetric
// commit-reveal games: open sessions anyone may join and direct challenges
// naming a specific counterpart. Every settlement-affecting call completes
// or rejects under one lock hold.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"wagerhouse/internal/agents"
	"wagerhouse/internal/commitment"
	"wagerhouse/internal/entropy"
	"wagerhouse/internal/feed"
	"wagerhouse/internal/ledger"
	"wagerhouse/internal/params"
	"wagerhouse/internal/payout"
	"wagerhouse/internal/store"
)

const flipDomain = "flip_outcome"

type Service struct {
	ledger  ledger.Ledger
	reg     agents.Registry
	params  *params.Params
	entropy entropy.Source
	sink    feed.Sink
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	active   map[activeKey]string
}

type activeKey struct {
	initiator string
	variant   Variant
}

func NewService(led ledger.Ledger, reg agents.Registry, p *params.Params, src entropy.Source, sink feed.Sink) *Service {
	if sink == nil {
		sink = feed.Nop{}
	}
	return &Service{
		ledger:   led,
		reg:      reg,
		params:   p,
		entropy:  src,
		sink:     sink,
		now:      time.Now,
		sessions: map[string]*Session{},
		active:   map[activeKey]string{},
	}
}

// Create opens a session and escrows the initiator's stake. Direct
// challenges must name a counterpart other than the initiator; open
// sessions must not name one.
func (s *Service) Create(ctx context.Context, initiator string, stake int64, variant Variant, opponent string, commit commitment.Hash) (*Session, error) {
	if err := agents.RequireVerified(ctx, s.reg, initiator); err != nil {
		return nil, err
	}
	ps := s.params.Snapshot()
	if stake < ps.StakeMin || stake > ps.StakeMax {
		return nil, ErrStakeOutOfBounds
	}
	if !commitment.Valid(commit) {
		return nil, ErrInvalidCommitment
	}
	switch variant {
	case VariantOpen:
		if opponent != "" {
			return nil, ErrInvalidOpponent
		}
	case VariantDirect:
		if opponent == "" || opponent == initiator {
			return nil, ErrInvalidOpponent
		}
	default:
		return nil, ErrInvalidOpponent
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := activeKey{initiator: initiator, variant: variant}
	if _, exists := s.active[key]; exists {
		return nil, ErrActiveSession
	}
	id := store.NewID()
	if err := s.ledger.TransferIn(ctx, initiator, stake, "stake_escrow", "session", id); err != nil {
		return nil, err
	}
	sess := &Session{
		ID:        id,
		Variant:   variant,
		State:     StateCreated,
		Initiator: initiator,
		Opponent:  opponent,
		Stake:     stake,
		Commit:    commit,
		CreatedAt: s.now(),
	}
	s.sessions[id] = sess
	s.active[key] = id
	log.Info().Str("session_id", id).Str("variant", string(variant)).Int64("stake", stake).Msg("session created")
	cp := *sess
	return &cp, nil
}

// Join escrows the counterpart's matching stake. The counterpart takes the
// side opposite the initiator's committed choice. Open sessions accept a
// counterpart only within the join window; direct challenges within their
// accept-by deadline.
func (s *Service) Join(ctx context.Context, id, caller string) (*Session, error) {
	if err := agents.RequireVerified(ctx, s.reg, caller); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.State != StateCreated {
		return nil, ErrNotJoinable
	}
	if caller == sess.Initiator {
		return nil, ErrSelfJoin
	}
	ps := s.params.Snapshot()
	switch sess.Variant {
	case VariantOpen:
		if s.now().After(sess.CreatedAt.Add(ps.JoinWindow)) {
			return nil, ErrJoinWindowClosed
		}
	case VariantDirect:
		if caller != sess.Opponent {
			return nil, ErrNotTheOpponent
		}
		if s.now().After(sess.CreatedAt.Add(ps.ChallengeWindow)) {
			return nil, ErrChallengeExpired
		}
	}
	if err := s.ledger.TransferIn(ctx, caller, sess.Stake, "stake_escrow", "session", id); err != nil {
		return nil, err
	}
	sess.State = StateJoined
	sess.Counterpart = caller
	sess.JoinedAt = s.now()
	cp := *sess
	return &cp, nil
}

// Reveal consumes the commitment and settles. The fairness bit is a pure
// function of the revealed secret and a fresh entropy draw, both fixed
// only after commitment, so neither side can bias it post hoc. The
// initiator wins iff the committed choice equals the bit.
func (s *Service) Reveal(ctx context.Context, id, caller string, choice int, secret string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.State != StateJoined {
		return nil, ErrNotRevealable
	}
	if caller != sess.Initiator {
		return nil, ErrNotYourSession
	}
	if s.now().After(sess.JoinedAt.Add(s.params.Snapshot().RevealWindow)) {
		return nil, ErrRevealWindowClosed
	}
	if err := commitment.Verify(sess.Commit, choice, secret); err != nil {
		return nil, err
	}

	draw := entropy.Mix(s.entropy.Draw(), []byte(flipDomain), []byte(secret))
	winner, loser := sess.Counterpart, sess.Initiator
	if entropy.Bit(draw) == choice&1 {
		winner, loser = sess.Initiator, sess.Counterpart
	}
	if err := s.settleLocked(ctx, sess, winner, loser, StateResolved); err != nil {
		return nil, err
	}
	cp := *sess
	return &cp, nil
}

// Cancel refunds the initiator's stake in full while no counterpart has
// joined.
func (s *Service) Cancel(ctx context.Context, id, caller string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if caller != sess.Initiator {
		return nil, ErrNotYourSession
	}
	if sess.State != StateCreated {
		return nil, ErrNotCancellable
	}
	if err := s.ledger.TransferOut(ctx, sess.Initiator, sess.Stake, "stake_refund", "session", id); err != nil {
		return nil, err
	}
	sess.State = StateCancelled
	s.finishLocked(sess)
	s.sink.Publish(refundEvent(id, sess.Stake))
	cp := *sess
	return &cp, nil
}

// ForceResolve declares the counterpart winner by default once the
// initiator has let the reveal window lapse. This bounds the wait and
// removes the initiator's incentive to withhold a losing reveal.
func (s *Service) ForceResolve(ctx context.Context, id, caller string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.State != StateJoined {
		return nil, ErrNotRevealable
	}
	if caller != sess.Counterpart {
		return nil, ErrNotYourSession
	}
	if !s.now().After(sess.JoinedAt.Add(s.params.Snapshot().RevealWindow)) {
		return nil, ErrRevealWindowOpen
	}
	if err := s.settleLocked(ctx, sess, sess.Counterpart, sess.Initiator, StateForceResolved); err != nil {
		return nil, err
	}
	cp := *sess
	return &cp, nil
}

// Expire refunds an unjoined session once its window is past: the join
// window for open sessions, the accept-by deadline for direct challenges.
// Anyone may call it.
func (s *Service) Expire(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.State != StateCreated {
		return nil, ErrNotCancellable
	}
	ps := s.params.Snapshot()
	window, stillOpen := ps.JoinWindow, ErrJoinWindowOpen
	if sess.Variant == VariantDirect {
		window, stillOpen = ps.ChallengeWindow, ErrChallengeStillOpen
	}
	if !s.now().After(sess.CreatedAt.Add(window)) {
		return nil, stillOpen
	}
	if err := s.ledger.TransferOut(ctx, sess.Initiator, sess.Stake, "stake_refund", "session", id); err != nil {
		return nil, err
	}
	sess.State = StateExpired
	s.finishLocked(sess)
	s.sink.Publish(refundEvent(id, sess.Stake))
	cp := *sess
	return &cp, nil
}

// Get returns a read-only copy for the presentation layer.
func (s *Service) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

// settleLocked pays pot minus fee to the winner and the fee to the
// collector, then marks the terminal state. A transfer failure freezes the
// session instead of leaving it re-settleable with legs already paid.
// Callers hold s.mu.
func (s *Service) settleLocked(ctx context.Context, sess *Session, winner, loser string, terminal State) error {
	pot := 2 * sess.Stake
	fee := payout.Fee(pot, s.params.Snapshot().FeeBps)
	sess.Winner = winner
	sess.Pot = pot
	sess.Fee = fee
	if err := s.ledger.TransferOut(ctx, winner, pot-fee, "pot_payout", "session", sess.ID); err != nil {
		s.freezeLocked(sess, err)
		return err
	}
	if fee > 0 {
		if err := s.ledger.TransferOut(ctx, ledger.FeeCollector, fee, "protocol_fee", "session", sess.ID); err != nil {
			s.freezeLocked(sess, err)
			return err
		}
	}
	sess.State = terminal
	s.finishLocked(sess)
	if err := s.reg.RecordWin(ctx, winner, sess.Stake); err != nil {
		log.Warn().Err(err).Str("agent_id", winner).Msg("record win failed")
	}
	if err := s.reg.RecordLoss(ctx, loser, sess.Stake); err != nil {
		log.Warn().Err(err).Str("agent_id", loser).Msg("record loss failed")
	}
	ev := feed.NewEvent(feed.TypeSessionResolved, sess.ID)
	ev.Winners = []string{winner}
	ev.Losers = []string{loser}
	ev.Pot = pot
	ev.Fee = fee
	s.sink.Publish(ev)
	log.Info().Str("session_id", sess.ID).Str("winner", winner).Int64("pot", pot).Int64("fee", fee).Msg("session settled")
	return nil
}

func (s *Service) finishLocked(sess *Session) {
	delete(s.active, activeKey{initiator: sess.Initiator, variant: sess.Variant})
}

// freezeLocked makes a half-paid settlement unrepeatable: the session keeps
// its decided outcome for reconciliation but no state guard will ever let it
// settle again. Callers hold s.mu.
func (s *Service) freezeLocked(sess *Session, cause error) {
	sess.State = StateFrozen
	s.finishLocked(sess)
	log.Error().Err(cause).Str("session_id", sess.ID).Str("winner", sess.Winner).Msg("settlement frozen")
}

func refundEvent(refID string, amount int64) feed.Event {
	ev := feed.NewEvent(feed.TypeRefund, refID)
	ev.Pot = amount
	return ev
}
