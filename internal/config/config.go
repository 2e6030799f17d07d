package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	InstrumentFuture = "future"
	InstrumentETF    = "etf"

	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	State     StateConfig     `yaml:"state"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type GatewayConfig struct {
	URL            string        `yaml:"url"`
	Codec          string        `yaml:"codec"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	// MessageRate is the exchange's outbound message allowance per second.
	MessageRate  float64       `yaml:"message_rate"`
	MessageBurst int           `yaml:"message_burst"`
	SendTimeout  time.Duration `yaml:"send_timeout"`
}

// StrategyConfig holds the fixed quoting constants. Prices are in the
// smallest currency unit.
type StrategyConfig struct {
	LotSize             int64  `yaml:"lot_size"`
	MaxOrderDepth       int    `yaml:"max_order_depth"`
	PositionLimit       int64  `yaml:"position_limit"`
	TickSize            int64  `yaml:"tick_size"`
	MinPrice            int64  `yaml:"min_price"`
	MaxPrice            int64  `yaml:"max_price"`
	ReferenceInstrument string `yaml:"reference_instrument"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	QueueSize  int    `yaml:"queue_size"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled != nil && *m.Enabled
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

// Default returns a configuration with every default applied, for tools
// that run without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.File != "" {
		if cfg.Log.MaxSizeMB == 0 {
			cfg.Log.MaxSizeMB = 100
		}
		if cfg.Log.MaxBackups == 0 {
			cfg.Log.MaxBackups = 5
		}
	}
	if cfg.Gateway.URL == "" {
		cfg.Gateway.URL = "ws://127.0.0.1:12345/ws"
	}
	cfg.Gateway.Codec = strings.ToLower(strings.TrimSpace(cfg.Gateway.Codec))
	if cfg.Gateway.Codec == "" {
		cfg.Gateway.Codec = CodecJSON
	}
	if cfg.Gateway.ReconnectDelay == 0 {
		cfg.Gateway.ReconnectDelay = 3 * time.Second
	}
	if cfg.Gateway.PingInterval == 0 {
		cfg.Gateway.PingInterval = 15 * time.Second
	}
	if cfg.Gateway.MessageRate == 0 {
		cfg.Gateway.MessageRate = 50
	}
	if cfg.Gateway.MessageBurst == 0 {
		cfg.Gateway.MessageBurst = 10
	}
	if cfg.Gateway.SendTimeout == 0 {
		cfg.Gateway.SendTimeout = 2 * time.Second
	}
	if cfg.Strategy.LotSize == 0 {
		cfg.Strategy.LotSize = 10
	}
	if cfg.Strategy.MaxOrderDepth == 0 {
		cfg.Strategy.MaxOrderDepth = 5
	}
	if cfg.Strategy.PositionLimit == 0 {
		cfg.Strategy.PositionLimit = 100
	}
	if cfg.Strategy.TickSize == 0 {
		cfg.Strategy.TickSize = 100
	}
	if cfg.Strategy.MinPrice == 0 {
		cfg.Strategy.MinPrice = 1
	}
	if cfg.Strategy.MaxPrice == 0 {
		cfg.Strategy.MaxPrice = 2147483647
	}
	cfg.Strategy.ReferenceInstrument = strings.ToLower(strings.TrimSpace(cfg.Strategy.ReferenceInstrument))
	if cfg.Strategy.ReferenceInstrument == "" {
		cfg.Strategy.ReferenceInstrument = InstrumentFuture
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/etf-mm-bot.db"
	}
	if cfg.State.QueueSize == 0 {
		cfg.State.QueueSize = 64
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Timescale.DSN == "" {
		cfg.Timescale.DSN = os.Getenv("TIMESCALE_DSN")
	}
	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	}
	if cfg.Telegram.ChatID == "" {
		cfg.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")
	}
}

func validate(cfg *Config) error {
	s := cfg.Strategy
	if s.LotSize <= 0 {
		return errors.New("strategy.lot_size must be > 0")
	}
	if s.MaxOrderDepth <= 0 {
		return errors.New("strategy.max_order_depth must be > 0")
	}
	if s.PositionLimit < s.LotSize {
		return errors.New("strategy.position_limit must be >= strategy.lot_size")
	}
	if s.TickSize <= 0 {
		return errors.New("strategy.tick_size must be > 0")
	}
	if s.MinPrice <= 0 || s.MinPrice >= s.MaxPrice {
		return errors.New("strategy.min_price must be > 0 and below strategy.max_price")
	}
	if s.MaxPrice < s.TickSize {
		return errors.New("strategy.max_price must be >= strategy.tick_size")
	}
	switch s.ReferenceInstrument {
	case InstrumentFuture, InstrumentETF:
	default:
		return fmt.Errorf("strategy.reference_instrument %q is not supported", s.ReferenceInstrument)
	}
	switch cfg.Gateway.Codec {
	case CodecJSON, CodecMsgpack:
	default:
		return fmt.Errorf("gateway.codec %q is not supported", cfg.Gateway.Codec)
	}
	if cfg.Gateway.MessageRate < 0 {
		return errors.New("gateway.message_rate must be >= 0")
	}
	if cfg.Timescale.Enabled && strings.TrimSpace(cfg.Timescale.DSN) == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	return nil
}
