package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

// keyAuth maps raw API keys to agents for tests.
type keyAuth map[string]*agents.Agent

func (a keyAuth) Authenticate(_ context.Context, apiKey string) (*agents.Agent, error) {
	agent, ok := a[apiKey]
	if !ok {
		return nil, agents.ErrNotFound
	}
	return agent, nil
}

type testServer struct {
	srv  *httptest.Server
	led  *ledger.Memory
	keys keyAuth
}

func newTestServer(t *testing.T) *testServer {
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
	publicSvc := apppublic.NewService(sessions, p, rounds, hs, bank, reg, ps, nil)

	keys := keyAuth{"key-sybil": sybil, "key-pat": pat}
	tokens := agents.NewTokenService("test-secret", time.Hour)

	router := NewRouter(RouterDeps{
		Public:   NewPublicHandlers(publicSvc, sessions, p, rounds, hs, nil),
		Agent:    NewAgentHandlers(nil, tokens, sessions, p, rounds, hs, bank),
		Admin:    NewAdminHandlers(nil, ps, nil),
		Auth:     keys,
		Tokens:   tokens,
		Registry: reg,
		AdminKey: "admin-secret",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, led: led, keys: keys}
}

func (ts *testServer) do(t *testing.T, method, path, apiKey string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]any
	if status := ts.do(t, http.MethodGet, "/healthz", "", nil, &body); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["ok"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestAgentAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]any
	if status := ts.do(t, http.MethodGet, "/api/agent/me", "", nil, &body); status != http.StatusUnauthorized {
		t.Fatalf("no credential: status = %d, want 401", status)
	}
	if body["error"] != "missing_credentials" {
		t.Fatalf("error = %v", body["error"])
	}
	if status := ts.do(t, http.MethodGet, "/api/agent/me", "bogus", nil, &body); status != http.StatusUnauthorized {
		t.Fatalf("bad credential: status = %d, want 401", status)
	}
	if body["error"] != "invalid_credentials" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestAgentMeAndToken(t *testing.T) {
	ts := newTestServer(t)

	var me agents.Agent
	if status := ts.do(t, http.MethodGet, "/api/agent/me", "key-sybil", nil, &me); status != http.StatusOK {
		t.Fatalf("me: status = %d", status)
	}
	if me.ID != "agent_sybil" {
		t.Fatalf("me.ID = %q", me.ID)
	}

	var issued struct {
		Token string `json:"token"`
	}
	if status := ts.do(t, http.MethodPost, "/api/agent/token", "key-sybil", nil, &issued); status != http.StatusOK {
		t.Fatalf("token: status = %d", status)
	}
	if issued.Token == "" {
		t.Fatal("empty token")
	}

	// The signed token works as a bearer credential on its own.
	if status := ts.do(t, http.MethodGet, "/api/agent/me", issued.Token, nil, &me); status != http.StatusOK {
		t.Fatalf("me via token: status = %d", status)
	}
	if me.ID != "agent_sybil" {
		t.Fatalf("me.ID via token = %q", me.ID)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	commit := commitment.Commit(1, "sybil-secret")
	var created session.Session
	status := ts.do(t, http.MethodPost, "/api/agent/sessions", "key-sybil",
		map[string]any{"stake": 500, "commit": commit}, &created)
	if status != http.StatusOK {
		t.Fatalf("create: status = %d", status)
	}
	if created.State != session.StateCreated {
		t.Fatalf("state = %q, want created", created.State)
	}

	var joined session.Session
	status = ts.do(t, http.MethodPost, "/api/agent/sessions/"+created.ID+"/join", "key-pat", nil, &joined)
	if status != http.StatusOK {
		t.Fatalf("join: status = %d", status)
	}
	if joined.State != session.StateJoined {
		t.Fatalf("state = %q, want joined", joined.State)
	}

	var revealed session.Session
	status = ts.do(t, http.MethodPost, "/api/agent/sessions/"+created.ID+"/reveal", "key-sybil",
		map[string]any{"choice": 1, "secret": "sybil-secret"}, &revealed)
	if status != http.StatusOK {
		t.Fatalf("reveal: status = %d", status)
	}
	if revealed.State != session.StateResolved {
		t.Fatalf("state = %q, want resolved", revealed.State)
	}
	if ts.led.Escrowed() != 0 {
		t.Fatalf("escrow after settle = %d, want 0", ts.led.Escrowed())
	}

	// Settled sessions read back publicly.
	var public session.Session
	if status := ts.do(t, http.MethodGet, "/api/public/sessions/"+created.ID, "", nil, &public); status != http.StatusOK {
		t.Fatalf("public read: status = %d", status)
	}
	if public.Winner == "" {
		t.Fatal("settled session has no winner")
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)

	// Stake below the floor is a validation fault.
	var body map[string]any
	status := ts.do(t, http.MethodPost, "/api/agent/sessions", "key-sybil",
		map[string]any{"stake": 1, "commit": commitment.Commit(0, "s")}, &body)
	if status != http.StatusBadRequest {
		t.Fatalf("low stake: status = %d, want 400", status)
	}

	if body["error"] != "stake_out_of_bounds" {
		t.Fatalf("error = %v", body["error"])
	}

	// Revealing before anyone joins is a state fault.
	var created session.Session
	status = ts.do(t, http.MethodPost, "/api/agent/sessions", "key-sybil",
		map[string]any{"stake": 500, "commit": commitment.Commit(1, "s")}, &created)
	if status != http.StatusOK {
		t.Fatalf("create: status = %d", status)
	}
	status = ts.do(t, http.MethodPost, "/api/agent/sessions/"+created.ID+"/reveal", "key-sybil",
		map[string]any{"choice": 1, "secret": "s"}, &body)
	if status != http.StatusConflict {
		t.Fatalf("early reveal: status = %d, want 409", status)
	}

	// A third party cannot cancel someone else's challenge.
	status = ts.do(t, http.MethodPost, "/api/agent/sessions/"+created.ID+"/cancel", "key-pat", nil, &body)
	if status != http.StatusForbidden {
		t.Fatalf("foreign cancel: status = %d, want 403", status)
	}
}

func TestAdminAuthAndParams(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]any
	if status := ts.do(t, http.MethodGet, "/api/admin/params", "", nil, &body); status != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d, want 401", status)
	}
	if status := ts.do(t, http.MethodGet, "/api/admin/params", "admin-secret", nil, &body); status != http.StatusOK {
		t.Fatalf("bearer admin key: status = %d, want 200", status)
	}

	var snap params.Snapshot
	status := ts.do(t, http.MethodPut, "/api/admin/params", "admin-secret",
		map[string]any{"fee_bps": 250}, &snap)
	if status != http.StatusOK {
		t.Fatalf("update: status = %d", status)
	}
	if snap.FeeBps != 250 {
		t.Fatalf("FeeBps = %d, want 250", snap.FeeBps)
	}

	// Out-of-range updates are rejected and nothing sticks.
	status = ts.do(t, http.MethodPut, "/api/admin/params", "admin-secret",
		map[string]any{"fee_bps": 10_000}, &body)
	if status != http.StatusBadRequest {
		t.Fatalf("bad update: status = %d, want 400", status)
	}
	if status := ts.do(t, http.MethodGet, "/api/admin/params", "admin-secret", nil, &snap); status != http.StatusOK {
		t.Fatalf("reread: status = %d", status)
	}
	if snap.FeeBps != 250 {
		t.Fatalf("FeeBps after rejected update = %d, want 250", snap.FeeBps)
	}
}

func TestPublicPoolHidesChoice(t *testing.T) {
	ts := newTestServer(t)

	var entered map[string]any
	status := ts.do(t, http.MethodPost, "/api/agent/pool/enter", "key-sybil",
		map[string]any{"tier": 100, "choice": 1}, &entered)
	if status != http.StatusOK {
		t.Fatalf("enter: status = %d", status)
	}
	if entered["matched"] != false {
		t.Fatalf("matched = %v, want false", entered["matched"])
	}

	var raw map[string]json.RawMessage
	if status := ts.do(t, http.MethodGet, "/api/public/pool?tier=100", "", nil, &raw); status != http.StatusOK {
		t.Fatalf("pool status: status = %d", status)
	}
	if _, leaked := raw["choice"]; leaked {
		t.Fatal("public pool status leaks the waiting choice")
	}
}
