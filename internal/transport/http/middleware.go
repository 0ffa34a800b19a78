// Package httptransport exposes the engine over HTTP: public reads,
// authenticated agent actions, and the admin surface.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"

	"wagerhouse/internal/agents"
	"wagerhouse/internal/fault"
	"wagerhouse/internal/logging"
)

type agentContextKey struct{}

// AgentFromContext returns the authenticated agent placed by
// AgentAuthMiddleware.
func AgentFromContext(ctx context.Context) (*agents.Agent, bool) {
	agent, ok := ctx.Value(agentContextKey{}).(*agents.Agent)
	return agent, ok
}

// Authenticator resolves a bearer API key to its agent.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*agents.Agent, error)
}

func APILogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:              slog.LevelInfo,
			Schema:             httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogRequestBody:     func(*http.Request) bool { return false },
			LogResponseBody:    func(*http.Request) bool { return false },
			LogRequestHeaders:  []string{},
			LogResponseHeaders: []string{},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				rc := chi.RouteContext(req.Context())
				route := req.URL.Path
				if rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
					slog.String("route", route),
					slog.String("path", req.URL.Path),
				}
			},
		},
	)
}

func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}

// WriteError maps an engine error onto a status through its fault
// category and emits its code.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, fault.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, fault.ErrAuthorization):
		status = http.StatusForbidden
	case errors.Is(err, fault.ErrState), errors.Is(err, fault.ErrTimeout):
		status = http.StatusConflict
	}
	WriteHTTPError(w, status, fault.Code(err))
}

// AgentAuthMiddleware accepts either a raw API key or a signed token as
// the bearer credential. Tokens are optional; a nil token service means
// API keys only.
func AgentAuthMiddleware(auth Authenticator, tokens *agents.TokenService, reg agents.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, ok := bearerToken(r)
			if !ok {
				WriteHTTPError(w, http.StatusUnauthorized, "missing_credentials")
				return
			}
			var agent *agents.Agent
			if tokens != nil {
				if id, err := tokens.Validate(cred); err == nil {
					if a, err := reg.Get(r.Context(), id); err == nil {
						agent = a
					}
				}
			}
			if agent == nil && auth != nil {
				if a, err := auth.Authenticate(r.Context(), cred); err == nil {
					agent = a
				}
			}
			if agent == nil {
				WriteHTTPError(w, http.StatusUnauthorized, "invalid_credentials")
				return
			}
			ctx := context.WithValue(r.Context(), agentContextKey{}, agent)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminAuthMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" || !checkAdminAuth(r, adminKey) {
				WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func checkAdminAuth(r *http.Request, adminKey string) bool {
	if v := r.Header.Get("X-Admin-Key"); v == adminKey {
		return true
	}
	cred, ok := bearerToken(r)
	return ok && cred == adminKey
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}

func ParsePagination(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseTier(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("tier")
	if v == "" {
		return 0, errors.New("missing tier")
	}
	return strconv.ParseInt(v, 10, 64)
}
