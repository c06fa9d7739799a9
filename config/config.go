package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Derivflow   DerivflowConfig    `yaml:"derivflow"`
	Logging     LoggingConfig      `yaml:"logging"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Pipeline    PipelineConfig     `yaml:"pipeline"`
	Reader      ReaderConfig       `yaml:"reader"`
	Source      SourceConfig       `yaml:"source"`
	Instruments []InstrumentConfig `yaml:"instruments"`
}

type DerivflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
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
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type PipelineConfig struct {
	LookbackDays int    `yaml:"lookback_days"`
	MinItems     int    `yaml:"min_items"`
	OutputPath   string `yaml:"output_path"`
	SnapshotDir  string `yaml:"snapshot_dir"`
	SnapshotCap  int    `yaml:"snapshot_cap"`
}

type ReaderConfig struct {
	Timeout        time.Duration        `yaml:"timeout"`
	Retry          RetryConfig          `yaml:"retry"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	BackoffMultiplier int           `yaml:"backoff_multiplier"`
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

type SourceConfig struct {
	Bybit     SourceEndpointConfig `yaml:"bybit"`
	Okx       SourceEndpointConfig `yaml:"okx"`
	Binance   SourceEndpointConfig `yaml:"binance"`
	Sentiment SourceEndpointConfig `yaml:"sentiment"`
}

type SourceEndpointConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Base         string `yaml:"base"`
	FallbackBase string `yaml:"fallback_base"`
	PageLimit    int    `yaml:"page_limit"`
	MaxPages     int    `yaml:"max_pages"`
}

// Bases returns the ordered base-URL list: primary then optional fallback.
func (s SourceEndpointConfig) Bases() []string {
	bases := []string{strings.TrimSpace(s.Base)}
	if fb := strings.TrimSpace(s.FallbackBase); fb != "" {
		bases = append(bases, fb)
	}
	return bases
}

type InstrumentConfig struct {
	ID      string `yaml:"id"`
	Bybit   string `yaml:"bybit"`
	Okx     string `yaml:"okx"`
	Binance string `yaml:"binance"`
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Pipeline: PipelineConfig{
			LookbackDays: 90,
			MinItems:     1,
			SnapshotCap:  200,
		},
		Reader: ReaderConfig{
			Timeout: 30 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:       3,
				BaseDelay:         400 * time.Millisecond,
				BackoffMultiplier: 2,
			},
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets deployment environments repoint source bases
// without editing the config file, matching the variables the pipeline
// has historically been driven by.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BYBIT_BASE"); v != "" {
		cfg.Source.Bybit.Base = strings.TrimSpace(v)
	}
	if v := os.Getenv("BYBIT_BASE_FALLBACK"); v != "" {
		cfg.Source.Bybit.FallbackBase = strings.TrimSpace(v)
	}
	if v := os.Getenv("OKX_BASE"); v != "" {
		cfg.Source.Okx.Base = strings.TrimSpace(v)
	}
	if v := os.Getenv("BINANCE_BASE"); v != "" {
		cfg.Source.Binance.Base = strings.TrimSpace(v)
	}
	if v := os.Getenv("DERIVS_OUTPUT_PATH"); v != "" {
		cfg.Pipeline.OutputPath = strings.TrimSpace(v)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Derivflow.Name == "" {
		return fmt.Errorf("derivflow.name is required")
	}

	if cfg.Derivflow.Version == "" {
		return fmt.Errorf("derivflow.version is required")
	}

	if cfg.Pipeline.LookbackDays <= 0 {
		return fmt.Errorf("pipeline.lookback_days must be greater than 0")
	}
	if cfg.Pipeline.OutputPath == "" {
		return fmt.Errorf("pipeline.output_path is required")
	}
	if cfg.Pipeline.SnapshotDir == "" {
		return fmt.Errorf("pipeline.snapshot_dir is required")
	}
	if cfg.Pipeline.MinItems < 1 && IsProductionLike(AppEnvironment()) {
		return fmt.Errorf("pipeline.min_items must be at least 1 outside development")
	}

	if cfg.Reader.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("reader.retry.max_attempts must be greater than 0")
	}

	if len(cfg.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	for i, inst := range cfg.Instruments {
		if inst.ID == "" {
			return fmt.Errorf("instruments[%d].id is required", i)
		}
		if inst.Bybit == "" && inst.Okx == "" && inst.Binance == "" {
			return fmt.Errorf("instrument %q needs a symbol for at least one source", inst.ID)
		}
	}

	for _, src := range []struct {
		name string
		cfg  SourceEndpointConfig
	}{
		{"bybit", cfg.Source.Bybit},
		{"okx", cfg.Source.Okx},
		{"binance", cfg.Source.Binance},
		{"sentiment", cfg.Source.Sentiment},
	} {
		if !src.cfg.Enabled {
			continue
		}
		if src.cfg.Base == "" {
			return fmt.Errorf("source.%s.base is required when the source is enabled", src.name)
		}
		if !isValidBaseURL(src.cfg.Base) {
			return fmt.Errorf("source.%s.base '%s' is invalid", src.name, src.cfg.Base)
		}
		if src.cfg.FallbackBase != "" && !isValidBaseURL(src.cfg.FallbackBase) {
			return fmt.Errorf("source.%s.fallback_base '%s' is invalid", src.name, src.cfg.FallbackBase)
		}
	}

	return nil
}

func isValidBaseURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
