// Package config loads server configuration from a YAML file and
// GRINDDECK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/mathcards/grinddeck-server/internal/game/cards"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// GRINDDECK_SERVER_HTTP_ADDRESS.
const EnvPrefix = "GRINDDECK"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Storage StorageConfig `mapstructure:"storage"`
	Game    GameConfig    `mapstructure:"game"`
}

type ServerConfig struct {
	HTTP         HTTPConfig      `mapstructure:"http"`
	WebSocket    WebSocketConfig `mapstructure:"websocket"`
	TickInterval time.Duration   `mapstructure:"tick_interval"`
	SessionTTL   time.Duration   `mapstructure:"session_ttl"`
}

type HTTPConfig struct {
	Address        string        `mapstructure:"address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type WebSocketConfig struct {
	Path         string        `mapstructure:"path"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	History   HistoryConfig `mapstructure:"history"`
	KV        KVConfig      `mapstructure:"kv"`
	ReplayDir string        `mapstructure:"replay_dir"`
}

type HistoryConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	MaxSessions int    `mapstructure:"max_sessions"`
}

type KVConfig struct {
	Driver       string `mapstructure:"driver"`
	Service      string `mapstructure:"service"`
	FallbackPath string `mapstructure:"fallback_path"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

type GameConfig struct {
	DefaultDifficulty cards.Difficulty `mapstructure:"default_difficulty"`
	// Seed fixes the card RNG of every game; zero seeds from the clock.
	Seed uint64 `mapstructure:"seed"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.address", ":8080")
	v.SetDefault("server.http.request_timeout", 30*time.Second)
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.websocket.write_timeout", 10*time.Second)
	v.SetDefault("server.tick_interval", time.Second)
	v.SetDefault("server.session_ttl", 30*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("storage.history.driver", "sqlite")
	v.SetDefault("storage.history.dsn", "grinddeck.db")
	v.SetDefault("storage.history.max_sessions", 100)
	v.SetDefault("storage.kv.driver", "keyring")
	v.SetDefault("storage.kv.service", "grinddeck")
	v.SetDefault("storage.kv.fallback_path", "data/kv.json")
	v.SetDefault("storage.kv.key_prefix", "mathCardGame_")
	v.SetDefault("storage.replay_dir", "data/replays")

	v.SetDefault("game.default_difficulty", string(cards.DifficultyBasic))
	v.SetDefault("game.seed", 0)
}

// Load reads path, applies environment overrides and validates the result.
// A missing file is not an error; defaults and the environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
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

// Validate checks driver names, the default difficulty and intervals.
func (c *Config) Validate() error {
	switch c.Storage.History.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("storage.history.driver: unknown driver %q", c.Storage.History.Driver)
	}
	if c.Storage.History.Driver != "memory" && c.Storage.History.DSN == "" {
		return fmt.Errorf("storage.history.dsn is required for driver %q", c.Storage.History.Driver)
	}
	if c.Storage.History.MaxSessions <= 0 {
		return fmt.Errorf("storage.history.max_sessions must be positive")
	}
	switch c.Storage.KV.Driver {
	case "keyring", "memory":
	default:
		return fmt.Errorf("storage.kv.driver: unknown driver %q", c.Storage.KV.Driver)
	}
	if !c.Game.DefaultDifficulty.Valid() {
		return fmt.Errorf("game.default_difficulty: unknown difficulty %q", c.Game.DefaultDifficulty)
	}
	if c.Server.TickInterval <= 0 {
		return fmt.Errorf("server.tick_interval must be positive")
	}
	if !strings.HasPrefix(c.Server.WebSocket.Path, "/") {
		return fmt.Errorf("server.websocket.path must start with /")
	}
	return nil
}
