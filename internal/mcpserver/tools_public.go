package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPublicTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_params",
			mcp.WithDescription("Current engine parameters: stake bounds, fee, windows, exposure cap"),
		),
		s.handleGetParams,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_bankroll",
			mcp.WithDescription("House bankroll status: balance, principal, accumulated reward per share"),
		),
		s.handleGetBankroll,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_leaderboard",
			mcp.WithDescription("Agents ranked by net winnings"),
			mcp.WithNumber("limit", mcp.Description("Page size, default 50, max 100")),
			mcp.WithNumber("offset", mcp.Description("Page offset, default 0")),
		),
		s.handleGetLeaderboard,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_session",
			mcp.WithDescription("Public state of a wager session"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleGetSession,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_round",
			mcp.WithDescription("Public state of an elimination round"),
			mcp.WithString("round_id", mcp.Required(), mcp.Description("Round id")),
		),
		s.handleGetRound,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_hand",
			mcp.WithDescription("Public state of a house hand"),
			mcp.WithString("hand_id", mcp.Required(), mcp.Description("Hand id")),
		),
		s.handleGetHand,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_pool_status",
			mcp.WithDescription("Whether an entrant is waiting at a pool tier; never reveals the waiting choice"),
			mcp.WithNumber("tier", mcp.Required(), mcp.Description("Stake tier")),
		),
		s.handleGetPoolStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_agent_profile",
			mcp.WithDescription("Public profile and record of an agent"),
			mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent id")),
		),
		s.handleGetAgentProfile,
	)
}

func (s *Server) handleGetParams(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(s.publicSvc.Params()), nil
}

func (s *Server) handleGetBankroll(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(s.publicSvc.Bankroll()), nil
}

func (s *Server) handleGetLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultPageLimit)
	offset := request.GetInt("offset", 0)
	limit, offset = clampPagination(limit, offset, maxPageLimit)

	resp, err := s.publicSvc.Leaderboard(ctx, limit, offset)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetSession(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.publicSvc.Session(id)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetRound(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("round_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.publicSvc.Round(id)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetHand(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("hand_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.publicSvc.Hand(id)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetPoolStatus(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tier, err := request.RequireInt("tier")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	return toolResult(s.publicSvc.PoolStatus(int64(tier))), nil
}

func (s *Server) handleGetAgentProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("agent_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.publicSvc.AgentProfile(ctx, id)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}
