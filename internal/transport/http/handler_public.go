package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apppublic "wagerhouse/internal/app/public"
	"wagerhouse/internal/elimination"
	"wagerhouse/internal/house"
	"wagerhouse/internal/pool"
	"wagerhouse/internal/session"
	"wagerhouse/internal/store"
)

type PublicHandlers struct {
	publicSvc *apppublic.Service
	sessions  *session.Service
	pool      *pool.Service
	rounds    *elimination.Service
	house     *house.Service
	store     *store.Store // nil when running without postgres
}

func NewPublicHandlers(publicSvc *apppublic.Service, sessions *session.Service, p *pool.Service, rounds *elimination.Service, h *house.Service, st *store.Store) *PublicHandlers {
	return &PublicHandlers{publicSvc: publicSvc, sessions: sessions, pool: p, rounds: rounds, house: h, store: st}
}

func (h *PublicHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store != nil {
			if err := h.store.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *PublicHandlers) Session() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.Session(chi.URLParam(r, "session_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PublicHandlers) PoolStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tier, err := parseTier(r)
		if err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_tier")
			return
		}
		_ = json.NewEncoder(w).Encode(h.publicSvc.PoolStatus(tier))
	}
}

func (h *PublicHandlers) Round() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.Round(chi.URLParam(r, "round_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PublicHandlers) OpenRound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tier, err := parseTier(r)
		if err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_tier")
			return
		}
		round, ok := h.publicSvc.OpenRound(tier)
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{"open": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"open": true, "round": round})
	}
}

func (h *PublicHandlers) Hand() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.Hand(chi.URLParam(r, "hand_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PublicHandlers) AgentProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.AgentProfile(r.Context(), chi.URLParam(r, "agent_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PublicHandlers) Bankroll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(h.publicSvc.Bankroll())
	}
}

func (h *PublicHandlers) Params() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(h.publicSvc.Params())
	}
}

func (h *PublicHandlers) Leaderboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		resp, err := h.publicSvc.Leaderboard(r.Context(), limit, offset)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Maintenance endpoints. Deadlines are enforced by the engine, so these
// are safe for anyone to call; they exist so any participant can force a
// stuck counterpart's hand.

func (h *PublicHandlers) ExpireSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.sessions.Expire(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PublicHandlers) ExpirePoolEntry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tier, err := parseTier(r)
		if err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_tier")
			return
		}
		if err := h.pool.ExpireStale(r.Context(), tier); err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *PublicHandlers) ExpirePoolChallenge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.pool.ExpireChallenge(r.Context(), chi.URLParam(r, "challenge_id")); err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *PublicHandlers) CancelExpiredRound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.rounds.CancelExpired(r.Context(), chi.URLParam(r, "round_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PublicHandlers) ExpireHand() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.house.ExpireHand(r.Context(), chi.URLParam(r, "hand_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
