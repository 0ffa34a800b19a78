package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"wagerhouse/internal/commitment"
)

func (s *Server) registerGameplayTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"start_hand",
			mcp.WithDescription("Open a house hand. The commit seeds the deterministic draw stream alongside the hand id."),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithNumber("stake", mcp.Required(), mcp.Description("Stake amount")),
			mcp.WithString("commit", mcp.Required(), mcp.Description("Commitment hash over a secret")),
		),
		s.handleStartHand,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"reveal_hand",
			mcp.WithDescription("Reveal the hand secret to deal the opening draws"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithString("hand_id", mcp.Required(), mcp.Description("Hand id")),
			mcp.WithString("secret", mcp.Required(), mcp.Description("The committed secret")),
		),
		s.handleRevealHand,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"hand_action",
			mcp.WithDescription("Act on an in-play hand: hit, stand or double"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithString("hand_id", mcp.Required(), mcp.Description("Hand id")),
			mcp.WithString("action", mcp.Required(), mcp.Description("hit|stand|double")),
		),
		s.handleHandAction,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"roll_dice",
			mcp.WithDescription("Roll-under dice bet against the bankroll; wins strictly below target"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithNumber("stake", mcp.Required(), mcp.Description("Stake amount")),
			mcp.WithNumber("target", mcp.Required(), mcp.Description("Win threshold, 2 to 99")),
		),
		s.handleRollDice,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"bankroll_stake",
			mcp.WithDescription("Stake into the house bankroll and share its profit and loss"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithNumber("amount", mcp.Required(), mcp.Description("Amount to stake")),
		),
		s.handleBankrollStake,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"bankroll_unstake",
			mcp.WithDescription("Withdraw bankroll principal"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
			mcp.WithNumber("amount", mcp.Required(), mcp.Description("Amount to withdraw")),
		),
		s.handleBankrollUnstake,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"bankroll_claim",
			mcp.WithDescription("Claim accrued bankroll reward"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
		),
		s.handleBankrollClaim,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"bankroll_position",
			mcp.WithDescription("Your bankroll principal and pending reward"),
			mcp.WithString("api_key", mcp.Required(), mcp.Description("Agent API key")),
		),
		s.handleBankrollPosition,
	)
}

func (s *Server) handleStartHand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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
	resp, svcErr := s.house.StartHand(ctx, agent.ID, int64(stake), commitment.Hash(commit))
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleRevealHand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	id, err := request.RequireString("hand_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	secret, err := request.RequireString("secret")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.house.RevealHand(ctx, id, agent.ID, secret)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleHandAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	id, err := request.RequireString("hand_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	action, err := request.RequireString("action")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	switch action {
	case "hit":
		resp, svcErr := s.house.Hit(ctx, id, agent.ID)
		if svcErr != nil {
			return mapDomainError(svcErr), nil
		}
		return toolResult(resp), nil
	case "stand":
		resp, svcErr := s.house.Stand(ctx, id, agent.ID)
		if svcErr != nil {
			return mapDomainError(svcErr), nil
		}
		return toolResult(resp), nil
	case "double":
		resp, svcErr := s.house.Double(ctx, id, agent.ID)
		if svcErr != nil {
			return mapDomainError(svcErr), nil
		}
		return toolResult(resp), nil
	default:
		return toolError("invalid_request", "action must be hit|stand|double"), nil
	}
}

func (s *Server) handleRollDice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	stake, err := request.RequireInt("stake")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	target, err := request.RequireInt("target")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.house.RollDice(ctx, agent.ID, int64(stake), target)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleBankrollStake(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	amount, err := request.RequireInt("amount")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if svcErr := s.bank.Stake(ctx, agent.ID, int64(amount)); svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(map[string]any{"ok": true}), nil
}

func (s *Server) handleBankrollUnstake(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	amount, err := request.RequireInt("amount")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if svcErr := s.bank.Unstake(ctx, agent.ID, int64(amount)); svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(map[string]any{"ok": true}), nil
}

func (s *Server) handleBankrollClaim(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	claimed, svcErr := s.bank.Claim(ctx, agent.ID)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(map[string]any{"claimed": claimed}), nil
}

func (s *Server) handleBankrollPosition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, errResp := s.authAgent(ctx, request)
	if errResp != nil {
		return errResp, nil
	}
	principal, pending, ok := s.bank.PositionOf(agent.ID)
	return toolResult(map[string]any{"staked": ok, "principal": principal, "pending_reward": pending}), nil
}
