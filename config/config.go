package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Driftbook DriftbookConfig `yaml:"driftbook"`
	RPC       RPCConfig       `yaml:"rpc"`
	Market    MarketConfig    `yaml:"market"`
	Book      BookConfig      `yaml:"book"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type DriftbookConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type RPCConfig struct {
	URL            string               `yaml:"url"`
	WSURL          string               `yaml:"ws_url"`
	Env            string               `yaml:"env"`
	ProgramID      string               `yaml:"program_id"`
	Timeout        time.Duration        `yaml:"timeout"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// MarketConfig selects the target perp market. Exactly one of Symbol or
// Index is required; Index is -1 when unset.
type MarketConfig struct {
	Symbol string `yaml:"symbol"`
	Index  int    `yaml:"index"`
}

type BookConfig struct {
	Depth      int `yaml:"depth"`
	RefreshMs  int `yaml:"refresh_ms"`
	UserSyncMs int `yaml:"user_sync_ms"`
}

// RefreshInterval returns the book refresh period.
func (b BookConfig) RefreshInterval() time.Duration {
	return time.Duration(b.RefreshMs) * time.Millisecond
}

// UserSyncInterval returns how long the participant universe may go without
// a bulk refresh.
func (b BookConfig) UserSyncInterval() time.Duration {
	return time.Duration(b.UserSyncMs) * time.Millisecond
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Namespace       string `yaml:"namespace"`
	Dashboard       string `yaml:"dashboard"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		RPC: RPCConfig{
			Env:     NetworkMainnet,
			Timeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 10,
				BurstSize:         20,
			},
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    8,
				MaxConnsPerHost: 8,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		Market: MarketConfig{Index: -1},
		Book: BookConfig{
			Depth:      20,
			RefreshMs:  1000,
			UserSyncMs: 30000,
		},
		Server:  ServerConfig{Address: ":8788"},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	config.RPC.Env = NormalizeNetwork(config.RPC.Env)
	if config.RPC.ProgramID == "" {
		config.RPC.ProgramID = ProgramIDForNetwork(config.RPC.Env)
	}
	config.Market.Symbol = strings.TrimSpace(config.Market.Symbol)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides keeps the original deployment surface working: the
// service can be pointed at a market and endpoint entirely through
// environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.RPC.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("RPC_WS_URL"); v != "" {
		cfg.RPC.WSURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("DRIFT_ENV"); v != "" {
		cfg.RPC.Env = strings.TrimSpace(v)
	}
	if v := os.Getenv("MARKET_SYMBOL"); v != "" {
		cfg.Market.Symbol = strings.TrimSpace(v)
	}
	if v := os.Getenv("PERP_MARKET_INDEX"); v != "" {
		if idx, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Market.Index = idx
		}
	}
	if v := os.Getenv("DEPTH"); v != "" {
		if depth, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Book.Depth = depth
		}
	}
	if v := os.Getenv("REFRESH_MS"); v != "" {
		if ms, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Book.RefreshMs = ms
		}
	}
	if v := os.Getenv("USER_SYNC_MS"); v != "" {
		if ms, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Book.UserSyncMs = ms
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Address = ":" + strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_REGION"); v != "" && cfg.Metrics.CloudWatch.Enabled {
		cfg.Metrics.CloudWatch.Region = strings.TrimSpace(v)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Driftbook.Name == "" {
		return fmt.Errorf("driftbook.name is required")
	}
	if cfg.Driftbook.Version == "" {
		return fmt.Errorf("driftbook.version is required")
	}

	if cfg.RPC.URL == "" {
		return fmt.Errorf("rpc.url is required")
	}
	if cfg.RPC.Timeout <= 0 {
		return fmt.Errorf("rpc.timeout must be greater than 0")
	}

	if cfg.Market.Symbol == "" && cfg.Market.Index < 0 {
		return fmt.Errorf("market.symbol or market.index is required")
	}

	if cfg.Book.Depth <= 0 {
		return fmt.Errorf("book.depth must be greater than 0")
	}
	if cfg.Book.RefreshMs <= 0 {
		return fmt.Errorf("book.refresh_ms must be greater than 0")
	}
	if cfg.Book.UserSyncMs <= 0 {
		return fmt.Errorf("book.user_sync_ms must be greater than 0")
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Region == "" {
		return fmt.Errorf("metrics.cloudwatch.region is required when CloudWatch is enabled")
	}

	return nil
}
