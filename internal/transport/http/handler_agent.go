package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wagerhouse/internal/agents"
	"wagerhouse/internal/bankroll"
	"wagerhouse/internal/commitment"
	"wagerhouse/internal/elimination"
	"wagerhouse/internal/house"
	"wagerhouse/internal/pool"
	"wagerhouse/internal/session"
)

// Registrar is the mutable half of agent identity; nil when the server
// delegates registration elsewhere.
type Registrar interface {
	Register(ctx context.Context, name string) (*agents.Agent, string, error)
}

type AgentHandlers struct {
	registrar Registrar
	tokens    *agents.TokenService
	sessions  *session.Service
	pool      *pool.Service
	rounds    *elimination.Service
	house     *house.Service
	bank      *bankroll.Manager
}

func NewAgentHandlers(registrar Registrar, tokens *agents.TokenService, sessions *session.Service, p *pool.Service, rounds *elimination.Service, h *house.Service, bank *bankroll.Manager) *AgentHandlers {
	return &AgentHandlers{
		registrar: registrar,
		tokens:    tokens,
		sessions:  sessions,
		pool:      p,
		rounds:    rounds,
		house:     h,
		bank:      bank,
	}
}

func (h *AgentHandlers) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.registrar == nil {
			WriteHTTPError(w, http.StatusNotImplemented, "registration_disabled")
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		agent, apiKey, err := h.registrar.Register(r.Context(), body.Name)
		if err != nil {
			WriteError(w, err)
			return
		}
		// The only response that ever carries the key.
		_ = json.NewEncoder(w).Encode(map[string]any{"agent": agent, "api_key": apiKey})
	}
}

func (h *AgentHandlers) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		_ = json.NewEncoder(w).Encode(agent)
	}
}

// Token trades an authenticated API-key request for a short-lived token.
func (h *AgentHandlers) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.tokens == nil {
			WriteHTTPError(w, http.StatusNotImplemented, "tokens_disabled")
			return
		}
		agent, _ := AgentFromContext(r.Context())
		token, err := h.tokens.Issue(agent.ID)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"token": token})
	}
}

func (h *AgentHandlers) CreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		var body struct {
			Stake    int64           `json:"stake"`
			Variant  session.Variant `json:"variant"`
			Opponent string          `json:"opponent"`
			Commit   commitment.Hash `json:"commit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.Variant == "" {
			body.Variant = session.VariantOpen
		}
		resp, err := h.sessions.Create(r.Context(), agent.ID, body.Stake, body.Variant, body.Opponent, body.Commit)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *AgentHandlers) JoinSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		resp, err := h.sessions.Join(r.Context(), chi.URLParam(r, "session_id"), agent.ID)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *AgentHandlers) RevealSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		var body struct {
			Choice int    `json:"choice"`
			Secret string `json:"secret"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.sessions.Reveal(r.Context(), chi.URLParam(r, "session_id"), agent.ID, body.Choice, body.Secret)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *AgentHandlers) CancelSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		resp, err := h.sessions.Cancel(r.Context(), chi.URLParam(r, "session_id"), agent.ID)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *AgentHandlers) ForceResolveSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		resp, err := h.sessions.ForceResolve(r.Context(), chi.URLParam(r, "session_id"), agent.ID)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *AgentHandlers) EnterPool() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		var body struct {
			Tier   int64 `json:"tier"`
			Choice int   `json:"choice"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		match, err := h.pool.Enter(r.Context(), agent.ID, body.Tier, body.Choice)
		if err != nil {
			WriteError(w, err)
			return
		}
		if match == nil {
			_ = json.NewEncoder(w).Encode(map[string]any{"matched": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"matched": true, "match": match})
	}
}

func (h *AgentHandlers) ExitPool() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		var body struct {
			Tier int64 `json:"tier"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := h.pool.Exit(r.Context(), agent.ID, body.Tier); err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *AgentHandlers) CreatePoolChallenge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		var body struct {
			Tier     int64  `json:"tier"`
			Opponent string `json:"opponent"`
			Choice   int    `json:"choice"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.pool.CreateChallenge(r.Context(), agent.ID, body.Tier, body.Opponent, body.Choice)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *AgentHandlers) AcceptPoolChallenge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		var body struct {
			Choice int `json:"choice"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		match, err := h.pool.AcceptChallenge(r.Context(), chi.URLParam(r, "challenge_id"), agent.ID, body.Choice)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(match)
	}
}

func (h *AgentHandlers) EnterElimination() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		var body struct {
			Tier int64 `json:"tier"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.rounds.Enter(r.Context(), agent.ID, body.Tier)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *AgentHandlers) CreatePrivateRound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		var body struct {
			Tier     int64    `json:"tier"`
			Invitees []string `json:"invitees"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.rounds.CreatePrivate(r.Context(), agent.ID, body.Tier, body.Invitees)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *AgentHandlers) EnterRound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		resp, err := h.rounds.EnterRound(r.Context(), chi.URLParam(r, "round_id"), agent.ID)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *AgentHandlers) StartHand() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		var body struct {
			Stake  int64           `json:"stake"`
			Commit commitment.Hash `json:"commit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.house.StartHand(r.Context(), agent.ID, body.Stake, body.Commit)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *AgentHandlers) RevealHand() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		var body struct {
			Secret string `json:"secret"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.house.RevealHand(r.Context(), chi.URLParam(r, "hand_id"), agent.ID, body.Secret)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *AgentHandlers) HandAction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		id := chi.URLParam(r, "hand_id")
		var resp *house.Hand
		var err error
		switch chi.URLParam(r, "action") {
		case "hit":
			resp, err = h.house.Hit(r.Context(), id, agent.ID)
		case "stand":
			resp, err = h.house.Stand(r.Context(), id, agent.ID)
		case "double":
			resp, err = h.house.Double(r.Context(), id, agent.ID)
		default:
			WriteHTTPError(w, http.StatusBadRequest, "invalid_action")
			return
		}
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *AgentHandlers) RollDice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		var body struct {
			Stake  int64 `json:"stake"`
			Target int   `json:"target"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.house.RollDice(r.Context(), agent.ID, body.Stake, body.Target)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *AgentHandlers) StakeBankroll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		var body struct {
			Amount int64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := h.bank.Stake(r.Context(), agent.ID, body.Amount); err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *AgentHandlers) UnstakeBankroll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		var body struct {
			Amount int64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := h.bank.Unstake(r.Context(), agent.ID, body.Amount); err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *AgentHandlers) ClaimBankroll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		amount, err := h.bank.Claim(r.Context(), agent.ID)
		if err != nil {
			WriteError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"claimed": amount})
	}
}

func (h *AgentHandlers) BankrollPosition() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, _ := AgentFromContext(r.Context())
		principal, pending, ok := h.bank.PositionOf(agent.ID)
		_ = json.NewEncoder(w).Encode(map[string]any{"staked": ok, "principal": principal, "pending_reward": pending})
	}
}
