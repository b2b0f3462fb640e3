package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/northcover/parametric-cli/internal/classifier"
	"github.com/northcover/parametric-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig           `yaml:"store" mapstructure:"store"`
	Arbiter    ArbiterConfig         `yaml:"arbiter" mapstructure:"arbiter"`
	Flights    SourceConfig          `yaml:"flights" mapstructure:"flights"`
	Properties SourceConfig          `yaml:"properties" mapstructure:"properties"`
	Weather    SourceConfig          `yaml:"weather" mapstructure:"weather"`
	Thresholds classifier.Thresholds `yaml:"thresholds" mapstructure:"thresholds"`
	Pricing    PricingConfig         `yaml:"pricing" mapstructure:"pricing"`
	Simulation SimulationConfig      `yaml:"simulation" mapstructure:"simulation"`
	Settlement SettlementConfig      `yaml:"settlement" mapstructure:"settlement"`
	Server     ServerConfig          `yaml:"server" mapstructure:"server"`
	Log        LogConfig             `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ArbiterConfig holds Anthropic arbiter settings.
type ArbiterConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// SourceConfig configures one upstream signal source. BaseURLs are tried in
// order until one answers.
type SourceConfig struct {
	BaseURLs    []string `yaml:"base_urls" mapstructure:"base_urls"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PricingConfig holds premium derivation parameters.
type PricingConfig struct {
	TicketPrice float64 `yaml:"ticket_price" mapstructure:"ticket_price"`
	Tier1Bps    int     `yaml:"tier1_bps" mapstructure:"tier1_bps"`
	Tier2Bps    int     `yaml:"tier2_bps" mapstructure:"tier2_bps"`
	MarginPct   float64 `yaml:"margin_pct" mapstructure:"margin_pct"`
	MinSamples  int     `yaml:"min_samples" mapstructure:"min_samples"`
}

// SimulationConfig holds Monte Carlo defaults.
type SimulationConfig struct {
	Trials     int     `yaml:"trials" mapstructure:"trials"`
	Confidence float64 `yaml:"confidence" mapstructure:"confidence"`
	Seed       uint64  `yaml:"seed" mapstructure:"seed"`
}

// SettlementConfig configures verdict reconciliation.
type SettlementConfig struct {
	ArbiterTimeoutSecs int  `yaml:"arbiter_timeout_secs" mapstructure:"arbiter_timeout_secs"`
	TimeoutAsRateLimit bool `yaml:"timeout_as_rate_limit" mapstructure:"timeout_as_rate_limit"`
	Replicas           int  `yaml:"replicas" mapstructure:"replicas"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PARAMETRIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "parametric.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("arbiter.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("arbiter.max_tokens", 1024)
	v.SetDefault("arbiter.requests_per_second", 2.0)
	v.SetDefault("flights.timeout_secs", 10)
	v.SetDefault("properties.timeout_secs", 10)
	v.SetDefault("weather.timeout_secs", 10)
	v.SetDefault("thresholds.noise_db_max", 70.0)
	v.SetDefault("thresholds.safety_index_min", 5.0)
	v.SetDefault("thresholds.precipitation_mm_max", 5.0)
	v.SetDefault("thresholds.wind_speed_kmh_max", 30.0)
	v.SetDefault("thresholds.delay_minutes", 45)
	v.SetDefault("pricing.ticket_price", 100.0)
	v.SetDefault("pricing.tier1_bps", 5000)
	v.SetDefault("pricing.tier2_bps", 10000)
	v.SetDefault("pricing.margin_pct", 20.0)
	v.SetDefault("pricing.min_samples", 30)
	v.SetDefault("simulation.trials", 100000)
	v.SetDefault("simulation.confidence", 0.99)
	v.SetDefault("simulation.seed", 1)
	v.SetDefault("settlement.arbiter_timeout_secs", 30)
	v.SetDefault("settlement.replicas", 1)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
