// Package public is the read-only query surface: spectators and bots poll
// it without authentication. It never mutates engine state.
package public

import (
	"context"

	"wagerhouse/internal/agents"
	"wagerhouse/internal/bankroll"
	"wagerhouse/internal/elimination"
	"wagerhouse/internal/fault"
	"wagerhouse/internal/house"
	"wagerhouse/internal/params"
	"wagerhouse/internal/pool"
	"wagerhouse/internal/session"
	"wagerhouse/internal/store"
)

const leaderboardMaxRows = 100

var (
	ErrInvalidRequest = fault.Wrap(fault.ErrValidation, "invalid_request")
	ErrUnavailable    = fault.Wrap(fault.ErrState, "feature_unavailable")
)

type Service struct {
	sessions *session.Service
	pool     *pool.Service
	rounds   *elimination.Service
	house    *house.Service
	bank     *bankroll.Manager
	reg      agents.Registry
	params   *params.Params
	store    *store.Store // nil when running without postgres
}

func NewService(sessions *session.Service, p *pool.Service, rounds *elimination.Service, h *house.Service, bank *bankroll.Manager, reg agents.Registry, ps *params.Params, st *store.Store) *Service {
	return &Service{
		sessions: sessions,
		pool:     p,
		rounds:   rounds,
		house:    h,
		bank:     bank,
		reg:      reg,
		params:   ps,
		store:    st,
	}
}

func (s *Service) Session(id string) (*session.Session, error) {
	if id == "" {
		return nil, ErrInvalidRequest
	}
	return s.sessions.Get(id)
}

// PoolStatus reports whether the tier currently has a waiting entrant.
// The waiting agent's declared choice is not exposed.
func (s *Service) PoolStatus(tier int64) *PoolStatusResponse {
	resp := &PoolStatusResponse{Tier: tier}
	if e, ok := s.pool.WaitingAt(tier); ok {
		resp.Waiting = true
		resp.Agent = e.Agent
		resp.EnteredAt = &e.EnteredAt
	}
	return resp
}

func (s *Service) Round(id string) (*elimination.Round, error) {
	if id == "" {
		return nil, ErrInvalidRequest
	}
	return s.rounds.Get(id)
}

// OpenRound reports the tier's joinable public round, if any.
func (s *Service) OpenRound(tier int64) (*elimination.Round, bool) {
	return s.rounds.OpenAt(tier)
}

func (s *Service) Hand(id string) (*house.Hand, error) {
	if id == "" {
		return nil, ErrInvalidRequest
	}
	return s.house.GetHand(id)
}

func (s *Service) AgentProfile(ctx context.Context, id string) (*AgentProfile, error) {
	if id == "" {
		return nil, ErrInvalidRequest
	}
	a, err := s.reg.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AgentProfile{
		ID:        a.ID,
		Name:      a.Name,
		Verified:  a.Verified,
		Wins:      a.Wins,
		Losses:    a.Losses,
		Wagered:   a.Wagered,
		CreatedAt: a.CreatedAt,
	}, nil
}

func (s *Service) Bankroll() bankroll.Status {
	return s.bank.Status()
}

func (s *Service) Params() params.Snapshot {
	return s.params.Snapshot()
}

// Leaderboard ranks agents by net ledger position. Needs the store.
func (s *Service) Leaderboard(ctx context.Context, limit, offset int) (*LeaderboardResponse, error) {
	if s.store == nil {
		return nil, ErrUnavailable
	}
	if limit <= 0 || limit > leaderboardMaxRows {
		limit = leaderboardMaxRows
	}
	items, err := s.store.ListLeaderboard(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardItem, 0, len(items))
	for _, it := range items {
		out = append(out, LeaderboardItem{AgentID: it.AgentID, Name: it.Name, NetCC: it.NetCC})
	}
	return &LeaderboardResponse{Items: out, Limit: limit, Offset: offset}, nil
}
