package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Nats    NatsConfig    `mapstructure:"nats"`
	Game    GameConfig    `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress      string `mapstructure:"http_address"`
	RPCAddress       string `mapstructure:"rpc_address"`
	MetricsNamespace string `mapstructure:"metrics_namespace"`
	RateLimit        int    `mapstructure:"rate_limit"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type NatsConfig struct {
	URL           string `mapstructure:"url"`
	Token         string `mapstructure:"token"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// GameConfig holds the rules that vary between salons and table variants.
type GameConfig struct {
	RoundLimit        int                   `mapstructure:"round_limit"`
	BotRoundLimit     int                   `mapstructure:"bot_round_limit"`
	HeartbeatInterval time.Duration         `mapstructure:"heartbeat_interval"`
	ChargeEntry       bool                  `mapstructure:"charge_entry"`
	RankRewards       []int                 `mapstructure:"rank_rewards"`
	DefaultReward     int                   `mapstructure:"default_reward"`
	DefaultTier       string                `mapstructure:"default_tier"`
	BotTableSize      int                   `mapstructure:"bot_table_size"`
	Tiers             map[string]TierConfig `mapstructure:"tiers"`
}

// TierConfig describes one salon tier. RoundLimit of zero means the game-wide limit.
type TierConfig struct {
	Bet        float64 `mapstructure:"bet"`
	PayoutRate float64 `mapstructure:"payout_rate"`
	RoundLimit int     `mapstructure:"round_limit"`
	Bots       bool    `mapstructure:"bots"`
}

// Entry is the cost charged to each human participant when a game starts.
func (t TierConfig) Entry() decimal.Decimal {
	return decimal.NewFromFloat(t.Bet)
}

// Payout is the currency credited to the winner, bet times payout rate, truncated
// to whole units.
func (t TierConfig) Payout() decimal.Decimal {
	return decimal.NewFromFloat(t.Bet).Mul(decimal.NewFromFloat(t.PayoutRate)).Truncate(0)
}

// Tier returns the tier for a salon, falling back to the default tier.
func (g GameConfig) Tier(salonID string) TierConfig {
	if t, ok := g.Tiers[salonID]; ok {
		return t
	}
	return g.Tiers[g.DefaultTier]
}

// RoundLimitFor resolves the number of rolls each participant owes at a table.
func (g GameConfig) RoundLimitFor(salonID string, bots bool) int {
	if t := g.Tier(salonID); t.RoundLimit > 0 {
		return t.RoundLimit
	}
	if bots {
		return g.BotRoundLimit
	}
	return g.RoundLimit
}

// RankReward is the reputation boost, in percent, for a zero-based rank.
func (g GameConfig) RankReward(rank int) int {
	if rank >= 0 && rank < len(g.RankRewards) {
		return g.RankRewards[rank]
	}
	return g.DefaultReward
}

func (c *Config) Validate() error {
	if c.Game.RoundLimit < 1 || c.Game.BotRoundLimit < 1 {
		return fmt.Errorf("round limits must be positive, got %d and %d", c.Game.RoundLimit, c.Game.BotRoundLimit)
	}
	if c.Game.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %s", c.Game.HeartbeatInterval)
	}
	if _, ok := c.Game.Tiers[c.Game.DefaultTier]; !ok {
		return fmt.Errorf("default tier %q is not configured", c.Game.DefaultTier)
	}
	for id, t := range c.Game.Tiers {
		if t.PayoutRate <= 0 || t.PayoutRate > 1 {
			return fmt.Errorf("tier %s: payout rate %v outside (0,1]", id, t.PayoutRate)
		}
		if t.Bet < 0 {
			return fmt.Errorf("tier %s: negative bet %v", id, t.Bet)
		}
	}
	switch c.Storage.Backend {
	case "memory", "mongo", "postgres":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":9090")
	v.SetDefault("server.metrics_namespace", "dice")
	v.SetDefault("server.rate_limit", 120)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo.database", "dice")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.user", "postgres")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.dbname", "dice")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.token", "")
	v.SetDefault("nats.subject_prefix", "dice")

	v.SetDefault("game.round_limit", 5)
	v.SetDefault("game.bot_round_limit", 10)
	v.SetDefault("game.heartbeat_interval", time.Second)
	v.SetDefault("game.charge_entry", true)
	v.SetDefault("game.rank_rewards", []int{20, 10, 5})
	v.SetDefault("game.default_reward", 1)
	v.SetDefault("game.default_tier", "1")
	v.SetDefault("game.bot_table_size", 4)
	v.SetDefault("game.tiers", map[string]interface{}{
		"1": map[string]interface{}{"bet": 20, "payout_rate": 0.80},
		"2": map[string]interface{}{"bet": 60, "payout_rate": 0.85},
		"3": map[string]interface{}{"bet": 100, "payout_rate": 0.90},
		"4": map[string]interface{}{"bet": 200, "payout_rate": 0.95},
		"5": map[string]interface{}{"bet": 600, "payout_rate": 0.98},
	})
}

// LoadConfig reads path/.env (optional), path/config.yaml (optional) and DICE_*
// environment variables on top of built-in defaults.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("DICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without touching the filesystem or
// the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("default config does not decode: " + err.Error())
	}
	return &cfg
}
