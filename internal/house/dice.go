package house

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"wagerhouse/internal/agents"
	"wagerhouse/internal/entropy"
	"wagerhouse/internal/feed"
	"wagerhouse/internal/ledger"
	"wagerhouse/internal/payout"
	"wagerhouse/internal/store"
)

// DiceResult is a completed roll-under bet. The bet is single-step: escrow,
// roll, and settlement all happen in the one call.
type DiceResult struct {
	ID     string    `json:"id"`
	Player string    `json:"player"`
	Stake  int64     `json:"stake"`
	Target int       `json:"target"`
	Roll   int       `json:"roll"`
	Won    bool      `json:"won"`
	Payout int64     `json:"payout"`
	Fee    int64     `json:"fee"`
	At     time.Time `json:"at"`
}

// RollDice settles a roll-under bet against the bankroll. The roll is
// uniform in [0, 100) and wins strictly below target; the gross payout is
// stake times the edge-adjusted multiplier, and that gross is the figure
// the exposure cap is checked against before escrow.
func (s *Service) RollDice(ctx context.Context, player string, stake int64, target int) (*DiceResult, error) {
	if err := agents.RequireVerified(ctx, s.reg, player); err != nil {
		return nil, err
	}
	ps := s.params.Snapshot()
	if stake < ps.StakeMin || stake > ps.StakeMax {
		return nil, ErrStakeOutOfBounds
	}
	if target < 2 || target > 99 {
		return nil, ErrInvalidTarget
	}
	gross := payout.DiceGross(stake, target, ps.DiceEdgeBps)

	s.mu.Lock()
	defer s.mu.Unlock()
	id := store.NewID()
	if err := s.pool.EscrowBet(ctx, player, stake, gross, "dice", id); err != nil {
		return nil, err
	}
	draw := entropy.Mix(s.entropy.Draw(), []byte(diceDomain), []byte(id), []byte(player))
	roll := entropy.Mod(draw, 100)

	res := &DiceResult{
		ID:     id,
		Player: player,
		Stake:  stake,
		Target: target,
		Roll:   roll,
		Won:    roll < target,
		At:     s.now(),
	}
	ev := feed.NewEvent(feed.TypeDiceRolled, id)
	if res.Won {
		fee := payout.Fee(gross, ps.FeeBps)
		if err := s.pool.PayOut(ctx, player, gross-fee, "dice_payout", "dice", id); err != nil {
			return nil, err
		}
		if err := s.pool.PayOut(ctx, ledger.FeeCollector, fee, "protocol_fee", "dice", id); err != nil {
			return nil, err
		}
		res.Payout = gross - fee
		res.Fee = fee
		s.pool.Accrue(stake - gross)
		ev.Winners = []string{player}
		if err := s.reg.RecordWin(ctx, player, stake); err != nil {
			log.Warn().Err(err).Str("agent_id", player).Msg("record win failed")
		}
	} else {
		s.pool.Accrue(stake)
		ev.Losers = []string{player}
		if err := s.reg.RecordLoss(ctx, player, stake); err != nil {
			log.Warn().Err(err).Str("agent_id", player).Msg("record loss failed")
		}
	}
	ev.Pot = gross
	ev.Fee = res.Fee
	s.sink.Publish(ev)
	log.Info().Str("dice_id", id).Int("target", target).Int("roll", roll).Bool("won", res.Won).Msg("dice rolled")
	return res, nil
}
