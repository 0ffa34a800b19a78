// Package pool implements instant matching: one-step settlement for
// symmetric latency-sensitive bets. Each stake tier holds at most one
// waiting entrant; a second arrival settles immediately and atomically in
// the same call, trading commit-reveal security for environment-derived
// entropy. A direct-challenge variant names a specific opponent.
package pool

import (
	"context"
	"encoding/binary"
	"strconv"
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

const matchDomain = "pool_match"

var (
	ErrInvalidChoice      = fault.Wrap(fault.ErrValidation, "invalid_choice")
	ErrStakeOutOfBounds   = fault.Wrap(fault.ErrValidation, "stake_out_of_bounds")
	ErrInvalidOpponent    = fault.Wrap(fault.ErrValidation, "invalid_opponent")
	ErrAlreadyWaiting     = fault.Wrap(fault.ErrState, "already_waiting")
	ErrNotWaiting         = fault.Wrap(fault.ErrState, "not_waiting")
	ErrChallengeNotFound  = fault.Wrap(fault.ErrValidation, "challenge_not_found")
	ErrNotTheOpponent     = fault.Wrap(fault.ErrAuthorization, "not_the_named_opponent")
	ErrEntryNotStale      = fault.Wrap(fault.ErrTimeout, "entry_not_stale")
	ErrChallengeStillOpen = fault.Wrap(fault.ErrTimeout, "challenge_still_open")
	ErrChallengeExpired   = fault.Wrap(fault.ErrTimeout, "challenge_expired")
)

// Entry is the lone waiting entrant of a tier.
type Entry struct {
	Tier      int64     `json:"tier"`
	Agent     string    `json:"agent"`
	Choice    int       `json:"choice"`
	EnteredAt time.Time `json:"entered_at"`
}

// Challenge is a pending instant direct challenge.
type Challenge struct {
	ID         string    `json:"id"`
	Tier       int64     `json:"tier"`
	Challenger string    `json:"challenger"`
	Opponent   string    `json:"opponent"`
	Choice     int       `json:"choice"`
	CreatedAt  time.Time `json:"created_at"`
}

// Match is the outcome of an instant settlement.
type Match struct {
	MatchID string `json:"match_id"`
	Tier    int64  `json:"tier"`
	Winner  string `json:"winner"`
	Loser   string `json:"loser"`
	Pot     int64  `json:"pot"`
	Fee     int64  `json:"fee"`
	Payout  int64  `json:"payout"`
}

type Service struct {
	ledger  ledger.Ledger
	reg     agents.Registry
	params  *params.Params
	entropy entropy.Source
	sink    feed.Sink
	now     func() time.Time

	mu         sync.Mutex
	waiting    map[int64]*Entry
	challenges map[string]*Challenge
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
		waiting:    map[int64]*Entry{},
		challenges: map[string]*Challenge{},
	}
}

// Enter queues the caller when the tier slot is empty, or settles
// immediately against the waiting entrant. No pool state survives a match.
func (s *Service) Enter(ctx context.Context, caller string, tier int64, choice int) (*Match, error) {
	if err := agents.RequireVerified(ctx, s.reg, caller); err != nil {
		return nil, err
	}
	if choice != 0 && choice != 1 {
		return nil, ErrInvalidChoice
	}
	ps := s.params.Snapshot()
	if tier < ps.StakeMin || tier > ps.StakeMax {
		return nil, ErrStakeOutOfBounds
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	waiting := s.waiting[tier]
	if waiting == nil {
		if err := s.ledger.TransferIn(ctx, caller, tier, "stake_escrow", "pool", tierRef(tier)); err != nil {
			return nil, err
		}
		s.waiting[tier] = &Entry{Tier: tier, Agent: caller, Choice: choice, EnteredAt: s.now()}
		return nil, nil
	}
	if waiting.Agent == caller {
		return nil, ErrAlreadyWaiting
	}
	if err := s.ledger.TransferIn(ctx, caller, tier, "stake_escrow", "pool", tierRef(tier)); err != nil {
		return nil, err
	}
	delete(s.waiting, tier)
	m, err := s.settleLocked(ctx, tier, waiting.Agent, waiting.Choice, caller, choice)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Exit refunds the caller's waiting entry in full, no fee charged.
func (s *Service) Exit(ctx context.Context, caller string, tier int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	waiting := s.waiting[tier]
	if waiting == nil || waiting.Agent != caller {
		return ErrNotWaiting
	}
	if err := s.ledger.TransferOut(ctx, caller, tier, "stake_refund", "pool", tierRef(tier)); err != nil {
		return err
	}
	delete(s.waiting, tier)
	s.sink.Publish(refundEvent(tierRef(tier), tier))
	return nil
}

// ExpireStale refunds a waiting entry older than the pool timeout. Anyone
// may call it.
func (s *Service) ExpireStale(ctx context.Context, tier int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	waiting := s.waiting[tier]
	if waiting == nil {
		return ErrNotWaiting
	}
	if !s.now().After(waiting.EnteredAt.Add(s.params.Snapshot().PoolTimeout)) {
		return ErrEntryNotStale
	}
	if err := s.ledger.TransferOut(ctx, waiting.Agent, tier, "stake_refund", "pool", tierRef(tier)); err != nil {
		return err
	}
	delete(s.waiting, tier)
	s.sink.Publish(refundEvent(tierRef(tier), tier))
	return nil
}

// CreateChallenge escrows the challenger's stake against a named opponent
// on the instant path.
func (s *Service) CreateChallenge(ctx context.Context, caller string, tier int64, opponent string, choice int) (*Challenge, error) {
	if err := agents.RequireVerified(ctx, s.reg, caller); err != nil {
		return nil, err
	}
	if choice != 0 && choice != 1 {
		return nil, ErrInvalidChoice
	}
	if opponent == "" || opponent == caller {
		return nil, ErrInvalidOpponent
	}
	ps := s.params.Snapshot()
	if tier < ps.StakeMin || tier > ps.StakeMax {
		return nil, ErrStakeOutOfBounds
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := store.NewID()
	if err := s.ledger.TransferIn(ctx, caller, tier, "stake_escrow", "pool_challenge", id); err != nil {
		return nil, err
	}
	ch := &Challenge{ID: id, Tier: tier, Challenger: caller, Opponent: opponent, Choice: choice, CreatedAt: s.now()}
	s.challenges[id] = ch
	cp := *ch
	return &cp, nil
}

// AcceptChallenge settles a pending challenge in the accepting call.
func (s *Service) AcceptChallenge(ctx context.Context, id, caller string, choice int) (*Match, error) {
	if err := agents.RequireVerified(ctx, s.reg, caller); err != nil {
		return nil, err
	}
	if choice != 0 && choice != 1 {
		return nil, ErrInvalidChoice
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	if caller != ch.Opponent {
		return nil, ErrNotTheOpponent
	}
	if s.now().After(ch.CreatedAt.Add(s.params.Snapshot().ChallengeWindow)) {
		return nil, ErrChallengeExpired
	}
	if err := s.ledger.TransferIn(ctx, caller, ch.Tier, "stake_escrow", "pool_challenge", id); err != nil {
		return nil, err
	}
	delete(s.challenges, id)
	return s.settleLocked(ctx, ch.Tier, ch.Challenger, ch.Choice, caller, choice)
}

// ExpireChallenge refunds an unaccepted challenge past its deadline.
// Anyone may call it.
func (s *Service) ExpireChallenge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[id]
	if !ok {
		return ErrChallengeNotFound
	}
	if !s.now().After(ch.CreatedAt.Add(s.params.Snapshot().ChallengeWindow)) {
		return ErrChallengeStillOpen
	}
	if err := s.ledger.TransferOut(ctx, ch.Challenger, ch.Tier, "stake_refund", "pool_challenge", id); err != nil {
		return err
	}
	delete(s.challenges, id)
	s.sink.Publish(refundEvent(id, ch.Tier))
	return nil
}

// WaitingAt reports the tier's current waiting entry, if any.
func (s *Service) WaitingAt(tier int64) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.waiting[tier]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// settleLocked computes the outcome from both entrants' identities and
// declared choices mixed with fresh environment entropy, pays the winner
// pot minus fee, and records both results. Callers hold s.mu.
func (s *Service) settleLocked(ctx context.Context, tier int64, first string, firstChoice int, second string, secondChoice int) (*Match, error) {
	draw := entropy.Mix(s.entropy.Draw(),
		[]byte(matchDomain),
		i64bytes(tier),
		[]byte(first), []byte{byte(firstChoice)},
		[]byte(second), []byte{byte(secondChoice)},
	)
	winner, loser := first, second
	if entropy.Bit(draw) == 1 {
		winner, loser = second, first
	}
	pot := 2 * tier
	fee := payout.Fee(pot, s.params.Snapshot().FeeBps)
	matchID := store.NewID()
	// The waiting entry or challenge was removed before this call, so a
	// failed leg can never be replayed; the stranded escrow is reconciled
	// from the ledger journal.
	if err := s.ledger.TransferOut(ctx, winner, pot-fee, "pot_payout", "pool_match", matchID); err != nil {
		log.Error().Err(err).Str("match_id", matchID).Str("winner", winner).Msg("settlement frozen")
		return nil, err
	}
	if fee > 0 {
		if err := s.ledger.TransferOut(ctx, ledger.FeeCollector, fee, "protocol_fee", "pool_match", matchID); err != nil {
			log.Error().Err(err).Str("match_id", matchID).Str("winner", winner).Msg("settlement frozen")
			return nil, err
		}
	}
	if err := s.reg.RecordWin(ctx, winner, tier); err != nil {
		log.Warn().Err(err).Str("agent_id", winner).Msg("record win failed")
	}
	if err := s.reg.RecordLoss(ctx, loser, tier); err != nil {
		log.Warn().Err(err).Str("agent_id", loser).Msg("record loss failed")
	}
	ev := feed.NewEvent(feed.TypePoolMatched, matchID)
	ev.Winners = []string{winner}
	ev.Losers = []string{loser}
	ev.Pot = pot
	ev.Fee = fee
	s.sink.Publish(ev)
	log.Info().Str("match_id", matchID).Int64("tier", tier).Str("winner", winner).Msg("pool matched")
	return &Match{MatchID: matchID, Tier: tier, Winner: winner, Loser: loser, Pot: pot, Fee: fee, Payout: pot - fee}, nil
}

func tierRef(tier int64) string {
	return "tier_" + strconv.FormatInt(tier, 10)
}

func i64bytes(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

func refundEvent(refID string, amount int64) feed.Event {
	ev := feed.NewEvent(feed.TypeRefund, refID)
	ev.Pot = amount
	return ev
}
