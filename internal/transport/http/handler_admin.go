package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wagerhouse/internal/params"
	"wagerhouse/internal/store"
)

// Verifier flips an agent's verified flag; nil when identity is immutable.
type Verifier interface {
	Verify(ctx context.Context, id string, verified bool) error
}

type AdminHandlers struct {
	verifier Verifier
	params   *params.Params
	store    *store.Store // nil when running without postgres
}

func NewAdminHandlers(verifier Verifier, p *params.Params, st *store.Store) *AdminHandlers {
	return &AdminHandlers{verifier: verifier, params: p, store: st}
}

func (h *AdminHandlers) VerifyAgent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.verifier == nil {
			WriteHTTPError(w, http.StatusNotImplemented, "verification_disabled")
			return
		}
		var body struct {
			Verified *bool `json:"verified"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		verified := true
		if body.Verified != nil {
			verified = *body.Verified
		}
		if err := h.verifier.Verify(r.Context(), chi.URLParam(r, "agent_id"), verified); err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "verified": verified})
	}
}

func (h *AdminHandlers) ListAgents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			WriteHTTPError(w, http.StatusNotImplemented, "store_unavailable")
			return
		}
		limit, offset := ParsePagination(r)
		agents, err := h.store.ListAgents(r.Context(), limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"agents": agents})
	}
}

func (h *AdminHandlers) ListLedger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			WriteHTTPError(w, http.StatusNotImplemented, "store_unavailable")
			return
		}
		limit, offset := ParsePagination(r)
		q := r.URL.Query()
		filter := store.LedgerFilter{
			HolderID: q.Get("holder_id"),
			RefType:  q.Get("ref_type"),
			RefID:    q.Get("ref_id"),
		}
		if v := q.Get("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_from")
				return
			}
			filter.From = &t
		}
		if v := q.Get("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_to")
				return
			}
			filter.To = &t
		}
		entries, err := h.store.ListLedgerEntries(r.Context(), filter, limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"entries": entries})
	}
}

// Topup credits an agent account out of band. Test and faucet use only.
func (h *AdminHandlers) Topup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			WriteHTTPError(w, http.StatusNotImplemented, "store_unavailable")
			return
		}
		var body struct {
			HolderID string `json:"holder_id"`
			Amount   int64  `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.HolderID == "" || body.Amount <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_topup")
			return
		}
		balance, err := h.store.Credit(r.Context(), body.HolderID, body.Amount, "admin_topup", "admin", "")
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"balance": balance})
	}
}

func (h *AdminHandlers) GetParams() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(h.params.Snapshot())
	}
}

// UpdateParams applies a partial update; absent fields keep their value.
func (h *AdminHandlers) UpdateParams() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			StakeMin       *int64 `json:"stake_min"`
			StakeMax       *int64 `json:"stake_max"`
			FeeBps         *int64 `json:"fee_bps"`
			ExposureCapPct *int64 `json:"exposure_cap_pct"`
			MinFirstStake  *int64 `json:"min_first_stake"`
			DiceEdgeBps    *int64 `json:"dice_edge_bps"`
			JoinWindowMS   *int64 `json:"join_window_ms"`
			RevealWindowMS *int64 `json:"reveal_window_ms"`
			ChallengeWinMS *int64 `json:"challenge_window_ms"`
			PoolTimeoutMS  *int64 `json:"pool_timeout_ms"`
			RoundExpiryMS  *int64 `json:"round_expiry_ms"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		err := h.params.Update(func(s *params.Snapshot) {
			setInt64 := func(dst *int64, src *int64) {
				if src != nil {
					*dst = *src
				}
			}
			setDur := func(dst *time.Duration, src *int64) {
				if src != nil {
					*dst = time.Duration(*src) * time.Millisecond
				}
			}
			setInt64(&s.StakeMin, body.StakeMin)
			setInt64(&s.StakeMax, body.StakeMax)
			setInt64(&s.FeeBps, body.FeeBps)
			setInt64(&s.ExposureCapPct, body.ExposureCapPct)
			setInt64(&s.MinFirstStake, body.MinFirstStake)
			setInt64(&s.DiceEdgeBps, body.DiceEdgeBps)
			setDur(&s.JoinWindow, body.JoinWindowMS)
			setDur(&s.RevealWindow, body.RevealWindowMS)
			setDur(&s.ChallengeWindow, body.ChallengeWinMS)
			setDur(&s.PoolTimeout, body.PoolTimeoutMS)
			setDur(&s.RoundExpiry, body.RoundExpiryMS)
		})
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(h.params.Snapshot())
	}
}
