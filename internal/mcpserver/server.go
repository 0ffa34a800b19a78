// Package mcpserver exposes the engine over the Model Context Protocol so
// tool-calling agents can wager without an HTTP client of their own. Every
// mutating tool authenticates with the same API keys as the HTTP surface.
package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"wagerhouse/internal/agents"
	apppublic "wagerhouse/internal/app/public"
	"wagerhouse/internal/bankroll"
	"wagerhouse/internal/elimination"
	"wagerhouse/internal/house"
	"wagerhouse/internal/pool"
	"wagerhouse/internal/session"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// Authenticator resolves an API key to its agent.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*agents.Agent, error)
}

type Deps struct {
	Auth      Authenticator
	PublicSvc *apppublic.Service
	Sessions  *session.Service
	Pool      *pool.Service
	Rounds    *elimination.Service
	House     *house.Service
	Bank      *bankroll.Manager
}

type Server struct {
	auth      Authenticator
	publicSvc *apppublic.Service
	sessions  *session.Service
	pool      *pool.Service
	rounds    *elimination.Service
	house     *house.Service
	bank      *bankroll.Manager

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(deps Deps) *Server {
	mcpSrv := server.NewMCPServer(
		"wagerhouse",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		auth:       deps.Auth,
		publicSvc:  deps.PublicSvc,
		sessions:   deps.Sessions,
		pool:       deps.Pool,
		rounds:     deps.Rounds,
		house:      deps.House,
		bank:       deps.Bank,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerPublicTools()
	s.registerMatchmakingTools()
	s.registerGameplayTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"session://{session_id}/public_state",
			"session_public_state",
			mcp.WithTemplateDescription("Public wager session state by id"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := request.Params.URI
			if !strings.HasPrefix(raw, "session://") || !strings.HasSuffix(raw, "/public_state") {
				return nil, nil
			}
			id := strings.TrimSuffix(strings.TrimPrefix(raw, "session://"), "/public_state")
			if id == "" {
				return nil, nil
			}
			sess, err := s.publicSvc.Session(id)
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(sess)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}

// authAgent resolves the api_key tool argument. Tool callers carry no
// ambient identity, so every mutating tool passes the key explicitly.
func (s *Server) authAgent(ctx context.Context, request mcp.CallToolRequest) (*agents.Agent, *mcp.CallToolResult) {
	apiKey := strings.TrimSpace(request.GetString("api_key", ""))
	if apiKey == "" {
		return nil, toolError("invalid_request", "api_key is required")
	}
	agent, err := s.auth.Authenticate(ctx, apiKey)
	if err != nil {
		return nil, toolError("unauthorized", "invalid api_key")
	}
	return agent, nil
}

func clampPagination(limit, offset, max int) (int, int) {
	if limit < 1 {
		limit = 1
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
