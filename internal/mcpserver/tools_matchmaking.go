package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"wagerhouse/internal/commitment"
	"wagerhouse/internal/session"
)

func (s *Server) registerMatchmakingTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_session",
			mcp.WithDescription("Open a commit-reveal wager session. The commit hides your choice until reveal."),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithNumber("stake", mcp.Required(), mcp.Description("Stake amount")),
			mcp.WithString("commit", mcp.Required(), mcp.Description("Commitment hash of choice and secret")),
			mcp.WithString("opponent", mcp.Description("Agent id for a direct challenge; omit for an open session")),
		),
		s.handleCreateSession,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"join_session",
			mcp.WithDescription("Join an open session, taking the opposite side of the hidden choice"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleJoinSession,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"reveal_session",
			mcp.WithDescription("Reveal choice and secret to settle a joined session"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithNumber("choice", mcp.Required(), mcp.Description("The committed choice, 0 or 1")),
			mcp.WithString("secret", mcp.Required(), mcp.Description("The committed secret")),
		),
		s.handleRevealSession,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"cancel_session",
			mcp.WithDescription("Cancel your own session before anyone joins"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleCancelSession,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"force_resolve_session",
			mcp.WithDescription("As the joined counterpart, claim the pot after the initiator's reveal window lapses"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleForceResolveSession,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"pool_enter",
			mcp.WithDescription("Enter an instant-match pool tier; matches immediately if someone is waiting"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithNumber("tier", mcp.Required(), mcp.Description("Stake tier")),
			mcp.WithNumber("choice", mcp.Required(), mcp.Description("Your side, 0 or 1")),
		),
		s.handlePoolEnter,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"pool_exit",
			mcp.WithDescription("Withdraw your waiting pool entry and recover the stake"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithNumber("tier", mcp.Required(), mcp.Description("Stake tier")),
		),
		s.handlePoolExit,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_pool_challenge",
			mcp.WithDescription("Challenge a named opponent at a pool tier"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithNumber("tier", mcp.Required(), mcp.Description("Stake tier")),
			mcp.WithString("opponent", mcp.Required(), mcp.Description("Opponent agent id")),
			mcp.WithNumber("choice", mcp.Required(), mcp.Description("Your side, 0 or 1")),
		),
		s.handleCreatePoolChallenge,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"accept_pool_challenge",
			mcp.WithDescription("Accept a challenge addressed to you; settles immediately"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithString("challenge_id", mcp.Required(), mcp.Description("Challenge id")),
			mcp.WithNumber("choice", mcp.Required(), mcp.Description("Your side, 0 or 1")),
		),
		s.handleAcceptPoolChallenge,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"enter_elimination",
			mcp.WithDescription("Take a slot in the open public elimination round at a tier, creating one if needed"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithNumber("tier", mcp.Required(), mcp.Description("Stake tier")),
		),
		s.handleEnterElimination,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"enter_round",
			mcp.WithDescription("Take a slot in a specific elimination round by id"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithString("round_id", mcp.Required(), mcp.Description("Round id")),
		),
		s.handleEnterRound,
	)
}

func (s *Server) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	stake, err := request.RequireInt("stake")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	commit, err := request.RequireString("commit")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	opponent := request.GetString("opponent", "")
	variant := session.VariantOpen
	if opponent != "" {
		variant = session.VariantDirect
	}
	resp, svcErr := s.sessions.Create(ctx, agent.ID, int64(stake), variant, opponent, commitment.Hash(commit))
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleJoinSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	id, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.sessions.Join(ctx, id, agent.ID)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleRevealSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	id, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	choice, err := request.RequireInt("choice")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	secret, err := request.RequireString("secret")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.sessions.Reveal(ctx, id, agent.ID, choice, secret)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleCancelSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	id, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.sessions.Cancel(ctx, id, agent.ID)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleForceResolveSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	id, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.sessions.ForceResolve(ctx, id, agent.ID)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handlePoolEnter(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	tier, err := request.RequireInt("tier")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	choice, err := request.RequireInt("choice")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	match, svcErr := s.pool.Enter(ctx, agent.ID, int64(tier), choice)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	if match == nil {
		return toolResult(map[string]any{"matched": false}), nil
	}
	return toolResult(map[string]any{"matched": true, "match": match}), nil
}

func (s *Server) handlePoolExit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	tier, err := request.RequireInt("tier")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if svcErr := s.pool.Exit(ctx, agent.ID, int64(tier)); svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(map[string]any{"ok": true}), nil
}

func (s *Server) handleCreatePoolChallenge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	tier, err := request.RequireInt("tier")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	opponent, err := request.RequireString("opponent")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	choice, err := request.RequireInt("choice")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.pool.CreateChallenge(ctx, agent.ID, int64(tier), opponent, choice)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleAcceptPoolChallenge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	id, err := request.RequireString("challenge_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	choice, err := request.RequireInt("choice")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.pool.AcceptChallenge(ctx, id, agent.ID, choice)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleEnterElimination(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	tier, err := request.RequireInt("tier")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.rounds.Enter(ctx, agent.ID, int64(tier))
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleEnterRound(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	id, err := request.RequireString("round_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.rounds.EnterRound(ctx, id, agent.ID)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}
