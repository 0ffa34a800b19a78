package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"wagerhouse/internal/agents"
	"wagerhouse/internal/feed"
)

// RouterDeps collects everything the HTTP surface needs. Hub, Tokens,
// Auth, Registrar, and Verifier may be nil; the routes that need them
// degrade to an explicit error response instead of panicking.
type RouterDeps struct {
	Public   *PublicHandlers
	Agent    *AgentHandlers
	Admin    *AdminHandlers
	Auth     Authenticator
	Tokens   *agents.TokenService
	Registry agents.Registry
	AdminKey string
	Hub      *feed.Hub
	MCP      http.Handler
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(APILogMiddleware())
	r.Use(chimw.Recoverer)

	r.Get("/healthz", deps.Public.Health())

	if deps.Hub != nil {
		r.Get("/ws/feed", deps.Hub.HandleWS)
	}
	if deps.MCP != nil {
		r.Mount("/mcp", deps.MCP)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/sessions/{session_id}", deps.Public.Session())
		r.Post("/sessions/{session_id}/expire", deps.Public.ExpireSession())
		r.Get("/pool", deps.Public.PoolStatus())
		r.Post("/pool/expire", deps.Public.ExpirePoolEntry())
		r.Post("/pool/challenges/{challenge_id}/expire", deps.Public.ExpirePoolChallenge())
		r.Get("/rounds/open", deps.Public.OpenRound())
		r.Get("/rounds/{round_id}", deps.Public.Round())
		r.Post("/rounds/{round_id}/expire", deps.Public.CancelExpiredRound())
		r.Get("/hands/{hand_id}", deps.Public.Hand())
		r.Post("/hands/{hand_id}/expire", deps.Public.ExpireHand())
		r.Get("/agents/{agent_id}", deps.Public.AgentProfile())
		r.Get("/bankroll", deps.Public.Bankroll())
		r.Get("/params", deps.Public.Params())
		r.Get("/leaderboard", deps.Public.Leaderboard())
	})

	r.Post("/api/agents/register", deps.Agent.Register())

	r.Route("/api/agent", func(r chi.Router) {
		r.Use(AgentAuthMiddleware(deps.Auth, deps.Tokens, deps.Registry))

		r.Get("/me", deps.Agent.Me())
		r.Post("/token", deps.Agent.Token())

		r.Post("/sessions", deps.Agent.CreateSession())
		r.Post("/sessions/{session_id}/join", deps.Agent.JoinSession())
		r.Post("/sessions/{session_id}/reveal", deps.Agent.RevealSession())
		r.Post("/sessions/{session_id}/cancel", deps.Agent.CancelSession())
		r.Post("/sessions/{session_id}/force", deps.Agent.ForceResolveSession())

		r.Post("/pool/enter", deps.Agent.EnterPool())
		r.Post("/pool/exit", deps.Agent.ExitPool())
		r.Post("/pool/challenges", deps.Agent.CreatePoolChallenge())
		r.Post("/pool/challenges/{challenge_id}/accept", deps.Agent.AcceptPoolChallenge())

		r.Post("/rounds/enter", deps.Agent.EnterElimination())
		r.Post("/rounds", deps.Agent.CreatePrivateRound())
		r.Post("/rounds/{round_id}/enter", deps.Agent.EnterRound())

		r.Post("/hands", deps.Agent.StartHand())
		r.Post("/hands/{hand_id}/reveal", deps.Agent.RevealHand())
		r.Post("/hands/{hand_id}/{action}", deps.Agent.HandAction())
		r.Post("/dice", deps.Agent.RollDice())

		r.Post("/bankroll/stake", deps.Agent.StakeBankroll())
		r.Post("/bankroll/unstake", deps.Agent.UnstakeBankroll())
		r.Post("/bankroll/claim", deps.Agent.ClaimBankroll())
		r.Get("/bankroll/position", deps.Agent.BankrollPosition())
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(AdminAuthMiddleware(deps.AdminKey))

		r.Post("/agents/{agent_id}/verify", deps.Admin.VerifyAgent())
		r.Get("/agents", deps.Admin.ListAgents())
		r.Get("/ledger", deps.Admin.ListLedger())
		r.Post("/topup", deps.Admin.Topup())
		r.Get("/params", deps.Admin.GetParams())
		r.Put("/params", deps.Admin.UpdateParams())
	})

	return r
}
