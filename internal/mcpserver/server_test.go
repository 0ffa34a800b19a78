package mcpserver

import (
	"context"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"wagerhouse/internal/agents"
	apppublic "wagerhouse/internal/app/public"
	"wagerhouse/internal/bankroll"
	"wagerhouse/internal/commitment"
	"wagerhouse/internal/elimination"
	"wagerhouse/internal/entropy"
	"wagerhouse/internal/feed"
	"wagerhouse/internal/house"
	"wagerhouse/internal/ledger"
	"wagerhouse/internal/params"
	"wagerhouse/internal/pool"
	"wagerhouse/internal/session"
)

type authMap map[string]*agents.Agent

func (a authMap) Authenticate(_ context.Context, apiKey string) (*agents.Agent, error) {
	agent, ok := a[apiKey]
	if !ok {
		return nil, agents.ErrNotFound
	}
	return agent, nil
}

func newMCPFixture(t *testing.T) (*client.Client, func()) {
	t.Helper()

	reg := agents.NewMemRegistry()
	sybil := reg.Add("agent_sybil", "sybil", true)
	pat := reg.Add("agent_pat", "pat", true)

	led := ledger.NewMemory()
	led.Deposit(sybil.ID, 100_000)
	led.Deposit(pat.ID, 100_000)

	ps, err := params.New(params.Defaults())
	if err != nil {
		t.Fatalf("params.New: %v", err)
	}
	src := entropy.NewEnv()
	sink := feed.Nop{}

	sessions := session.NewService(led, reg, ps, src, sink)
	p := pool.NewService(led, reg, ps, src, sink)
	rounds := elimination.NewService(led, reg, ps, src, sink)
	bank := bankroll.New(led, reg, ps)
	hs := house.NewService(bank, reg, ps, src, sink)

	srv := New(Deps{
		Auth:      authMap{"key-sybil": sybil, "key-pat": pat},
		PublicSvc: apppublic.NewService(sessions, p, rounds, hs, bank, reg, ps, nil),
		Sessions:  sessions,
		Pool:      p,
		Rounds:    rounds,
		House:     hs,
		Bank:      bank,
	})
	httpSrv := httptest.NewServer(srv.Handler())

	mcpClient, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	return mcpClient, func() {
		closeClient()
		httpSrv.Close()
	}
}

func TestMCPToolsAndSessionFlow(t *testing.T) {
	mcpClient, cleanup := newMCPFixture(t)
	defer cleanup()

	tools := mustListTools(t, mcpClient)
	assertToolNames(t, tools,
		"get_params",
		"get_bankroll",
		"get_leaderboard",
		"get_session",
		"get_round",
		"get_hand",
		"get_pool_status",
		"get_agent_profile",
		"create_session",
		"join_session",
		"reveal_session",
		"cancel_session",
		"force_resolve_session",
		"pool_enter",
		"pool_exit",
		"create_pool_challenge",
		"accept_pool_challenge",
		"enter_elimination",
		"enter_round",
		"start_hand",
		"reveal_hand",
		"hand_action",
		"roll_dice",
		"bankroll_stake",
		"bankroll_unstake",
		"bankroll_claim",
		"bankroll_position",
	)

	for _, toolName := range []string{"get_params", "get_bankroll"} {
		res := mustCallTool(t, mcpClient, toolName, map[string]any{})
		if res.IsError {
			t.Fatalf("%s expected success, got: %v", toolName, res.StructuredContent)
		}
	}

	created := mustCallTool(t, mcpClient, "create_session", map[string]any{
		"api_key": "key-sybil",
		"stake":   500,
		"commit":  string(commitment.Commit(1, "mcp-secret")),
	})
	if created.IsError {
		t.Fatalf("create_session error: %v", created.StructuredContent)
	}
	sessionID := asString(mapFromStructured(t, created)["id"])
	if sessionID == "" {
		t.Fatalf("create_session payload missing id: %v", created.StructuredContent)
	}

	joined := mustCallTool(t, mcpClient, "join_session", map[string]any{
		"api_key":    "key-pat",
		"session_id": sessionID,
	})
	if joined.IsError {
		t.Fatalf("join_session error: %v", joined.StructuredContent)
	}

	revealed := mustCallTool(t, mcpClient, "reveal_session", map[string]any{
		"api_key":    "key-sybil",
		"session_id": sessionID,
		"choice":     1,
		"secret":     "mcp-secret",
	})
	if revealed.IsError {
		t.Fatalf("reveal_session error: %v", revealed.StructuredContent)
	}
	if state := asString(mapFromStructured(t, revealed)["state"]); state != "resolved" {
		t.Fatalf("state = %q, want resolved", state)
	}
}

func TestMCPToolErrors(t *testing.T) {
	mcpClient, cleanup := newMCPFixture(t)
	defer cleanup()

	missingKey := mustCallTool(t, mcpClient, "roll_dice", map[string]any{"stake": 100, "target": 50})
	assertToolErrorCode(t, missingKey, "invalid_request")

	badKey := mustCallTool(t, mcpClient, "roll_dice", map[string]any{"api_key": "nope", "stake": 100, "target": 50})
	assertToolErrorCode(t, badKey, "unauthorized")

	badTarget := mustCallTool(t, mcpClient, "roll_dice", map[string]any{"api_key": "key-sybil", "stake": 100, "target": 1})
	assertToolErrorCode(t, badTarget, "invalid_target")

	unknown := mustCallTool(t, mcpClient, "get_session", map[string]any{"session_id": "nope"})
	assertToolErrorCode(t, unknown, "session_not_found")
}

func newMCPClient(t *testing.T, endpoint string) (*client.Client, func()) {
	t.Helper()
	ctx := context.Background()
	trans, err := transport.NewStreamableHTTP(endpoint)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	if err := trans.Start(ctx); err != nil {
		t.Fatalf("transport start: %v", err)
	}
	c := client.NewClient(trans)
	_, err = c.Initialize(ctx, mcp.InitializeRequest{Params: mcp.InitializeParams{ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION}})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return c, func() { _ = trans.Close() }
}

func mustListTools(t *testing.T, c *client.Client) []mcp.Tool {
	t.Helper()
	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	return res.Tools
}

func assertToolNames(t *testing.T, tools []mcp.Tool, expected ...string) {
	t.Helper()
	got := make([]string, 0, len(tools))
	for _, tool := range tools {
		got = append(got, tool.Name)
	}
	sort.Strings(got)
	sort.Strings(expected)
	if len(got) != len(expected) {
		t.Fatalf("tool count mismatch got=%v expected=%v", got, expected)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Fatalf("tool list mismatch got=%v expected=%v", got, expected)
		}
	}
}

func mustCallTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := c.CallTool(context.Background(), mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
	if err != nil {
		t.Fatalf("call tool %s: %v", name, err)
	}
	return res
}

func assertToolErrorCode(t *testing.T, res *mcp.CallToolResult, code string) {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected error %q, got success: %v", code, res.StructuredContent)
	}
	payload := mapFromStructured(t, res)
	errObj, _ := payload["error"].(map[string]any)
	if asString(errObj["code"]) != code {
		t.Fatalf("error code = %v, want %q", errObj, code)
	}
}

func mapFromStructured(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	payload, ok := res.StructuredContent.(map[string]any)
	if !ok {
		t.Fatalf("structured content is %T, want map", res.StructuredContent)
	}
	return payload
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
