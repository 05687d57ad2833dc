package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config is the engine's full configuration surface, captured at
// construction and re-materialized on Healer.UpdateConfig.
type Config struct {
	AppConfig     *AppConfig
	BrowserConfig *BrowserConfig
	Healing       *HealingConfig
	Ollama        *OllamaConfig
	Retry         *RetryConfig
	Telemetry     *TelemetryConfig
}

type AppConfig struct {
	Debug bool `envconfig:"DEBUG" mapstructure:"debug" default:"false"`
}

type BrowserConfig struct {
	Headless    bool   `envconfig:"BROWSER_HEADLESS" mapstructure:"headless" default:"true"`
	SlowMo      int    `envconfig:"BROWSER_SLOW_MO" mapstructure:"slow_mo" default:"0"`
	Timeout     int    `envconfig:"BROWSER_TIMEOUT" mapstructure:"timeout" default:"30000"`
	UserDataDir string `envconfig:"BROWSER_USER_DATA_DIR" mapstructure:"user_data_dir" default:""`
}

// HealingConfig is the engine master switch and strategy dispatch
// configuration.
type HealingConfig struct {
	Enabled      bool     `envconfig:"HEALING_ENABLED" mapstructure:"enabled" default:"true"`
	Strategies   []string `envconfig:"HEALING_STRATEGIES" mapstructure:"strategies"`
	MaxAttempts  int      `envconfig:"HEALING_MAX_ATTEMPTS" mapstructure:"max_attempts" default:"3"`
	CacheHealing bool     `envconfig:"HEALING_CACHE" mapstructure:"cache_healing" default:"true"`
}

type OllamaConfig struct {
	URL     string        `envconfig:"OLLAMA_URL" mapstructure:"url" default:"http://localhost:11434"`
	Model   string        `envconfig:"OLLAMA_MODEL" mapstructure:"model" default:"llama3.1"`
	Timeout time.Duration `envconfig:"OLLAMA_TIMEOUT" mapstructure:"timeout" default:"30s"`
}

type RetryConfig struct {
	OnTimeout      bool          `envconfig:"RETRY_ON_TIMEOUT" mapstructure:"on_timeout" default:"true"`
	OnFlakiness    bool          `envconfig:"RETRY_ON_FLAKINESS" mapstructure:"on_flakiness" default:"true"`
	MaxRetries     int           `envconfig:"RETRY_MAX_RETRIES" mapstructure:"max_retries" default:"2"`
	InitialBackoff time.Duration `envconfig:"RETRY_INITIAL_BACKOFF" mapstructure:"initial_backoff" default:"1s"`
	MaxBackoff     time.Duration `envconfig:"RETRY_MAX_BACKOFF" mapstructure:"max_backoff" default:"10s"`
}

type TelemetryConfig struct {
	Enabled  bool   `envconfig:"TELEMETRY_ENABLED" mapstructure:"enabled" default:"true"`
	LogLevel string `envconfig:"TELEMETRY_LOG_LEVEL" mapstructure:"log_level" default:"info"`
}

// defaultStrategyOrder is applied when no strategies are configured:
// all four strategies, in the order they should be attempted.
var defaultStrategyOrder = []string{
	"testid-recovery",
	"text-matching",
	"css-hierarchy",
	"llm-analysis",
}

// GetConfig loads configuration from, in increasing priority: struct
// defaults, a healer.{yaml,json,toml} file in the working directory,
// HEALER_-prefixed environment variables, then any programmatic
// Options supplied by the caller.
func GetConfig(opts ...Option) (*Config, error) {
	_ = godotenv.Load()

	var envDefaults Config

	envDefaults.AppConfig = &AppConfig{}
	envDefaults.BrowserConfig = &BrowserConfig{}
	envDefaults.Healing = &HealingConfig{}
	envDefaults.Ollama = &OllamaConfig{}
	envDefaults.Retry = &RetryConfig{}
	envDefaults.Telemetry = &TelemetryConfig{}

	if err := envconfig.Process("", &envDefaults); err != nil {
		return nil, fmt.Errorf("read config defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigName("healer")
	v.AddConfigPath(".")
	v.SetEnvPrefix("HEALER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, &envDefaults)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	conf := &Config{
		AppConfig:     &AppConfig{},
		BrowserConfig: &BrowserConfig{},
		Healing:       &HealingConfig{},
		Ollama:        &OllamaConfig{},
		Retry:         &RetryConfig{},
		Telemetry:     &TelemetryConfig{},
	}

	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(conf.Healing.Strategies) == 0 {
		conf.Healing.Strategies = append([]string{}, defaultStrategyOrder...)
	}

	for _, opt := range opts {
		opt(conf)
	}

	return conf, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("appconfig.debug", d.AppConfig.Debug)
	v.SetDefault("browserconfig.headless", d.BrowserConfig.Headless)
	v.SetDefault("browserconfig.slow_mo", d.BrowserConfig.SlowMo)
	v.SetDefault("browserconfig.timeout", d.BrowserConfig.Timeout)
	v.SetDefault("browserconfig.user_data_dir", d.BrowserConfig.UserDataDir)
	v.SetDefault("healing.enabled", d.Healing.Enabled)
	v.SetDefault("healing.max_attempts", d.Healing.MaxAttempts)
	v.SetDefault("healing.cache_healing", d.Healing.CacheHealing)
	v.SetDefault("ollama.url", d.Ollama.URL)
	v.SetDefault("ollama.model", d.Ollama.Model)
	v.SetDefault("ollama.timeout", d.Ollama.Timeout)
	v.SetDefault("retry.on_timeout", d.Retry.OnTimeout)
	v.SetDefault("retry.on_flakiness", d.Retry.OnFlakiness)
	v.SetDefault("retry.max_retries", d.Retry.MaxRetries)
	v.SetDefault("retry.initial_backoff", d.Retry.InitialBackoff)
	v.SetDefault("retry.max_backoff", d.Retry.MaxBackoff)
	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.log_level", d.Telemetry.LogLevel)
}

// Option applies a programmatic override on top of file+env config.
// Programmatic overrides always win.
type Option func(*Config)

func WithHealingEnabled(enabled bool) Option {
	return func(c *Config) { c.Healing.Enabled = enabled }
}

func WithStrategies(strategies []string) Option {
	return func(c *Config) {
		if len(strategies) > 0 {
			c.Healing.Strategies = strategies
		}
	}
}

func WithOllamaURL(url string) Option {
	return func(c *Config) { c.Ollama.URL = url }
}

// Partial mirrors Config but with optional fields, used by
// Healer.UpdateConfig to apply a partial override without disturbing
// unspecified fields.
type Partial struct {
	Enabled      *bool
	Strategies   []string
	MaxAttempts  *int
	CacheHealing *bool
	OllamaURL    *string
	OllamaModel  *string
	OllamaTimeout *time.Duration
	RetryOnTimeout   *bool
	RetryOnFlakiness *bool
	RetryMaxRetries  *int
	RetryInitialBackoff *time.Duration
	RetryMaxBackoff     *time.Duration
	TelemetryEnabled  *bool
	TelemetryLogLevel *string
}

// Apply merges p onto a copy of c and returns the result. c is left
// untouched.
func (c *Config) Apply(p Partial) *Config {
	next := c.clone()

	if p.Enabled != nil {
		next.Healing.Enabled = *p.Enabled
	}

	if p.Strategies != nil {
		next.Healing.Strategies = p.Strategies
	}

	if p.MaxAttempts != nil {
		next.Healing.MaxAttempts = *p.MaxAttempts
	}

	if p.CacheHealing != nil {
		next.Healing.CacheHealing = *p.CacheHealing
	}

	if p.OllamaURL != nil {
		next.Ollama.URL = *p.OllamaURL
	}

	if p.OllamaModel != nil {
		next.Ollama.Model = *p.OllamaModel
	}

	if p.OllamaTimeout != nil {
		next.Ollama.Timeout = *p.OllamaTimeout
	}

	if p.RetryOnTimeout != nil {
		next.Retry.OnTimeout = *p.RetryOnTimeout
	}

	if p.RetryOnFlakiness != nil {
		next.Retry.OnFlakiness = *p.RetryOnFlakiness
	}

	if p.RetryMaxRetries != nil {
		next.Retry.MaxRetries = *p.RetryMaxRetries
	}

	if p.RetryInitialBackoff != nil {
		next.Retry.InitialBackoff = *p.RetryInitialBackoff
	}

	if p.RetryMaxBackoff != nil {
		next.Retry.MaxBackoff = *p.RetryMaxBackoff
	}

	if p.TelemetryEnabled != nil {
		next.Telemetry.Enabled = *p.TelemetryEnabled
	}

	if p.TelemetryLogLevel != nil {
		next.Telemetry.LogLevel = *p.TelemetryLogLevel
	}

	return next
}

func (c *Config) clone() *Config {
	app := *c.AppConfig
	browser := *c.BrowserConfig
	healing := *c.Healing
	ollama := *c.Ollama
	retry := *c.Retry
	telemetry := *c.Telemetry

	healing.Strategies = append([]string{}, c.Healing.Strategies...)

	return &Config{
		AppConfig:     &app,
		BrowserConfig: &browser,
		Healing:       &healing,
		Ollama:        &ollama,
		Retry:         &retry,
		Telemetry:     &telemetry,
	}
}
