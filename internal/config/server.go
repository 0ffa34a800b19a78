package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`
	JWTSecret   string `env:"JWT_SECRET"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	FeedChannel   string `env:"FEED_CHANNEL" envDefault:"wagerhouse.events"`

	DiscordWebhook string `env:"DISCORD_WEBHOOK"`
	FeishuWebhook  string `env:"FEISHU_WEBHOOK"`
	FeishuSecret   string `env:"FEISHU_SECRET"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// EngineConfig seeds the runtime parameter set. Every field is adjustable
// later through the admin surface, within the same bounds.
type EngineConfig struct {
	StakeMin        int64         `env:"STAKE_MIN" envDefault:"10"`
	StakeMax        int64         `env:"STAKE_MAX" envDefault:"100000"`
	FeeBps          int64         `env:"FEE_BPS" envDefault:"100"`
	JoinWindow      time.Duration `env:"JOIN_WINDOW" envDefault:"10m"`
	RevealWindow    time.Duration `env:"REVEAL_WINDOW" envDefault:"5m"`
	ChallengeWindow time.Duration `env:"CHALLENGE_WINDOW" envDefault:"30m"`
	PoolTimeout     time.Duration `env:"POOL_TIMEOUT" envDefault:"15m"`
	RoundExpiry     time.Duration `env:"ROUND_EXPIRY" envDefault:"1h"`
	ExposureCapPct  int64         `env:"EXPOSURE_CAP_PCT" envDefault:"10"`
	MinFirstStake   int64         `env:"MIN_FIRST_STAKE" envDefault:"1000"`
	DiceEdgeBps     int64         `env:"DICE_EDGE_BPS" envDefault:"200"`
}

func LoadEngine() (EngineConfig, error) {
	var cfg EngineConfig
	err := env.Parse(&cfg)
	return cfg, err
}
