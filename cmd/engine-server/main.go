package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"wagerhouse/internal/agents"
	apppublic "wagerhouse/internal/app/public"
	"wagerhouse/internal/bankroll"
	"wagerhouse/internal/config"
	"wagerhouse/internal/elimination"
	"wagerhouse/internal/entropy"
	"wagerhouse/internal/feed"
	"wagerhouse/internal/house"
	"wagerhouse/internal/ledger"
	"wagerhouse/internal/logging"
	"wagerhouse/internal/mcpserver"
	"wagerhouse/internal/notify"
	"wagerhouse/internal/params"
	"wagerhouse/internal/pool"
	"wagerhouse/internal/session"
	"wagerhouse/internal/store"
	httptransport "wagerhouse/internal/transport/http"
)

const tokenTTL = 24 * time.Hour

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}

	st, err := store.New(cfg.Server.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	led := ledger.NewPG(st)
	if err := led.Init(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("ledger init failed")
	}
	reg := agents.NewStoreRegistry(st)

	ps, err := params.New(engineSnapshot(cfg.Engine))
	if err != nil {
		log.Fatal().Err(err).Msg("engine params invalid")
	}

	hub := feed.NewHub()
	sink := feed.Multi{hub}
	if cfg.Server.RedisAddr != "" {
		rp, err := feed.NewRedisPublisher(cfg.Server.RedisAddr, cfg.Server.RedisPassword, cfg.Server.RedisDB, cfg.Server.FeedChannel)
		if err != nil {
			log.Fatal().Err(err).Msg("redis feed init failed")
		}
		defer rp.Close()
		sink = append(sink, rp)
		log.Info().Str("channel", cfg.Server.FeedChannel).Msg("redis feed enabled")
	}

	var notifyTargets []notify.Target
	if cfg.Server.DiscordWebhook != "" {
		notifyTargets = append(notifyTargets, notify.Target{Platform: "discord", Endpoint: cfg.Server.DiscordWebhook})
	}
	if cfg.Server.FeishuWebhook != "" {
		notifyTargets = append(notifyTargets, notify.Target{Platform: "feishu", Endpoint: cfg.Server.FeishuWebhook, Secret: cfg.Server.FeishuSecret})
	}
	if len(notifyTargets) > 0 {
		notifier := notify.New(notifyTargets, notify.Options{})
		defer notifier.Close()
		sink = append(sink, notifier)
		log.Info().Int("targets", len(notifyTargets)).Msg("webhook notifications enabled")
	}

	src := entropy.NewEnv()
	sessions := session.NewService(led, reg, ps, src, sink)
	p := pool.NewService(led, reg, ps, src, sink)
	rounds := elimination.NewService(led, reg, ps, src, sink)
	bank := bankroll.New(led, reg, ps)
	hs := house.NewService(bank, reg, ps, src, sink)
	publicSvc := apppublic.NewService(sessions, p, rounds, hs, bank, reg, ps, st)

	var tokens *agents.TokenService
	if cfg.Server.JWTSecret != "" {
		tokens = agents.NewTokenService(cfg.Server.JWTSecret, tokenTTL)
	}

	mcpSrv := mcpserver.New(mcpserver.Deps{
		Auth:      reg,
		PublicSvc: publicSvc,
		Sessions:  sessions,
		Pool:      p,
		Rounds:    rounds,
		House:     hs,
		Bank:      bank,
	})

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Public:   httptransport.NewPublicHandlers(publicSvc, sessions, p, rounds, hs, st),
		Agent:    httptransport.NewAgentHandlers(reg, tokens, sessions, p, rounds, hs, bank),
		Admin:    httptransport.NewAdminHandlers(reg, ps, st),
		Auth:     reg,
		Tokens:   tokens,
		Registry: reg,
		AdminKey: cfg.Server.AdminAPIKey,
		Hub:      hub,
		MCP:      mcpSrv.Handler(),
	})
	logRoutes(router)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}

func engineSnapshot(cfg config.EngineConfig) params.Snapshot {
	return params.Snapshot{
		StakeMin:        cfg.StakeMin,
		StakeMax:        cfg.StakeMax,
		FeeBps:          cfg.FeeBps,
		JoinWindow:      cfg.JoinWindow,
		RevealWindow:    cfg.RevealWindow,
		ChallengeWindow: cfg.ChallengeWindow,
		PoolTimeout:     cfg.PoolTimeout,
		RoundExpiry:     cfg.RoundExpiry,
		ExposureCapPct:  cfg.ExposureCapPct,
		MinFirstStake:   cfg.MinFirstStake,
		DiceEdgeBps:     cfg.DiceEdgeBps,
	}
}

func logRoutes(h http.Handler) {
	r, ok := h.(chi.Router)
	if !ok {
		return
	}
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
