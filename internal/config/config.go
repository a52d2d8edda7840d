// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Browser modes.
const (
	BrowserModeRemote   = "remote"
	BrowserModeLocal    = "local"
	BrowserModeDisabled = "disabled"
)

// LLM providers.
const (
	LLMProviderOpenAI = "openai"
	LLMProviderGemini = "gemini"
	LLMProviderNone   = "none"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverGCS      = "gcs"
	DriverLocal    = "local"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Actor    ActorConfig    `mapstructure:"actor"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Store    StoreConfig    `mapstructure:"store"`
	Messages MessagesConfig `mapstructure:"messages"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// BrowserConfig configures the remote-browser scrape provider.
type BrowserConfig struct {
	Mode               string  `mapstructure:"mode"`
	APIKey             string  `mapstructure:"api_key"`
	ProjectID          string  `mapstructure:"project_id"`
	BaseURL            string  `mapstructure:"base_url"`
	ReplayBaseURL      string  `mapstructure:"replay_base_url"`
	UserAgent          string  `mapstructure:"user_agent"`
	NavTimeoutSeconds  int     `mapstructure:"nav_timeout_seconds"`
	SettleSeconds      int     `mapstructure:"settle_seconds"`
	MaxParallel        int     `mapstructure:"max_parallel"`
	SessionsPerSecond  float64 `mapstructure:"sessions_per_second"`
	LowestRatingPass   bool    `mapstructure:"lowest_rating_pass"`
	ReleaseTimeoutSecs int     `mapstructure:"release_timeout_seconds"`
}

// ActorConfig configures the managed scraping-actor provider.
type ActorConfig struct {
	Token           string  `mapstructure:"token"`
	ActorID         string  `mapstructure:"actor_id"`
	BaseURL         string  `mapstructure:"base_url"`
	WaitSeconds     int     `mapstructure:"wait_seconds"`
	MaxReviews      int     `mapstructure:"max_reviews"`
	RequestsPerSec  float64 `mapstructure:"requests_per_second"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	MaxRetries      int     `mapstructure:"max_retries"`
	PollIntervalSec int     `mapstructure:"poll_interval_seconds"`
}

// LLMConfig selects and configures the analysis model. APIKey is what gets
// sent to Provider; when empty it is filled from that vendor's own key.
type LLMConfig struct {
	Provider       string  `mapstructure:"provider"`
	APIKey         string  `mapstructure:"api_key"`
	OpenAIAPIKey   string  `mapstructure:"openai_api_key"`
	GeminiAPIKey   string  `mapstructure:"gemini_api_key"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	HarnessVariant string  `mapstructure:"harness_variant"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// StoreConfig selects the whole-document store used for profiles.
type StoreConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// MessagesConfig selects the object store backing conversation logs.
type MessagesConfig struct {
	Driver  string `mapstructure:"driver"`
	Bucket  string `mapstructure:"bucket"`
	BaseDir string `mapstructure:"base_dir"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// TracingConfig toggles the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Load builds a Config from .env, disk, and environment.
func Load(path string) (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("DISCOVERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindSecrets(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyImplicitModes()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadDotEnv reads a .env file into the process environment when present.
// Variables already set in the environment win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// bindSecrets maps the provider-native variable names onto config keys so a
// deployment can keep using BROWSERBASE_API_KEY and friends.
func bindSecrets(v *viper.Viper) error {
	bindings := map[string][]string{
		"browser.api_key":    {"DISCOVERY_BROWSER_API_KEY", "BROWSERBASE_API_KEY"},
		"browser.project_id": {"DISCOVERY_BROWSER_PROJECT_ID", "BROWSERBASE_PROJECT_ID"},
		"actor.token":        {"DISCOVERY_ACTOR_TOKEN", "APIFY_API_TOKEN"},
		"llm.api_key":        {"DISCOVERY_LLM_API_KEY"},
		"llm.openai_api_key": {"DISCOVERY_LLM_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"llm.gemini_api_key": {"DISCOVERY_LLM_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"auth.api_key":       {"DISCOVERY_AUTH_API_KEY"},
		"store.dsn":          {"DISCOVERY_STORE_DSN", "DATABASE_URL"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")

	v.SetDefault("browser.mode", "")
	v.SetDefault("browser.base_url", "https://api.browserbase.com")
	v.SetDefault("browser.replay_base_url", "https://www.browserbase.com/sessions")
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("browser.settle_seconds", 12)
	v.SetDefault("browser.max_parallel", 2)
	v.SetDefault("browser.sessions_per_second", 1)
	v.SetDefault("browser.lowest_rating_pass", true)
	v.SetDefault("browser.release_timeout_seconds", 10)

	v.SetDefault("actor.actor_id", "compass~crawler-google-places")
	v.SetDefault("actor.base_url", "https://api.apify.com")
	v.SetDefault("actor.wait_seconds", 120)
	v.SetDefault("actor.max_reviews", 30)
	v.SetDefault("actor.requests_per_second", 2)
	v.SetDefault("actor.timeout_seconds", 30)
	v.SetDefault("actor.max_retries", 3)
	v.SetDefault("actor.poll_interval_seconds", 5)

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.harness_variant", "metric")
	v.SetDefault("llm.timeout_seconds", 90)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.table", "documents")
	v.SetDefault("store.max_open_conns", 4)
	v.SetDefault("messages.driver", DriverMemory)
	v.SetDefault("messages.base_dir", "data/messages")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "business-discovery")
}

// applyImplicitModes derives feature flags from credential presence when the
// mode was not set explicitly.
func (c *Config) applyImplicitModes() {
	if c.Browser.Mode == "" {
		c.Browser.Mode = BrowserModeDisabled
		if c.Browser.APIKey != "" {
			c.Browser.Mode = BrowserModeRemote
		}
	}
	c.LLM.resolveProvider()
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case LLMProviderOpenAI:
			c.LLM.Model = "gpt-4o"
		case LLMProviderGemini:
			c.LLM.Model = "gemini-2.0-flash"
		}
	}
}

// resolveProvider picks the provider from whichever key is present and fills
// APIKey from that vendor's key only. A generic key without a provider means
// OpenAI; OpenAI wins when both vendor keys are set.
func (l *LLMConfig) resolveProvider() {
	if l.Provider == "" {
		switch {
		case l.APIKey != "", l.OpenAIAPIKey != "":
			l.Provider = LLMProviderOpenAI
		case l.GeminiAPIKey != "":
			l.Provider = LLMProviderGemini
		default:
			l.Provider = LLMProviderNone
		}
	}
	if l.APIKey != "" {
		return
	}
	switch l.Provider {
	case LLMProviderOpenAI:
		l.APIKey = l.OpenAIAPIKey
	case LLMProviderGemini:
		l.APIKey = l.GeminiAPIKey
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Browser.Mode {
	case BrowserModeRemote:
		if c.Browser.APIKey == "" {
			return fmt.Errorf("browser.api_key must be set when browser.mode is remote")
		}
	case BrowserModeLocal, BrowserModeDisabled:
	default:
		return fmt.Errorf("browser.mode %q is not supported", c.Browser.Mode)
	}
	if c.BrowserEnabled() && c.Browser.MaxParallel <= 0 {
		return fmt.Errorf("browser.max_parallel must be > 0 when the browser provider is enabled")
	}
	if c.Actor.WaitSeconds <= 0 {
		return fmt.Errorf("actor.wait_seconds must be > 0")
	}
	switch c.LLM.Provider {
	case LLMProviderOpenAI, LLMProviderGemini:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key must be set for provider %s", c.LLM.Provider)
		}
	case LLMProviderNone:
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider)
	}
	switch c.LLM.HarnessVariant {
	case "metric", "judge":
	default:
		return fmt.Errorf("llm.harness_variant must be metric or judge")
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
	switch c.Messages.Driver {
	case DriverMemory, "":
	case DriverGCS:
		if c.Messages.Bucket == "" {
			return fmt.Errorf("messages.bucket is required for driver gcs")
		}
	case DriverLocal:
		if c.Messages.BaseDir == "" {
			return fmt.Errorf("messages.base_dir is required for driver local")
		}
	default:
		return fmt.Errorf("messages.driver %q is not supported", c.Messages.Driver)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic_name is set")
	}
	return nil
}

// BrowserEnabled reports whether the remote-browser provider is reachable.
func (c Config) BrowserEnabled() bool {
	return c.Browser.Mode == BrowserModeRemote || c.Browser.Mode == BrowserModeLocal
}

// ActorEnabled reports whether the scraping-actor provider is reachable.
func (c Config) ActorEnabled() bool {
	return c.Actor.Token != ""
}

// LLMEnabled reports whether analysis calls a real model.
func (c Config) LLMEnabled() bool {
	return c.LLM.Provider != LLMProviderNone
}

// RequestTimeout converts the server timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// pipelineMargin covers storage writes and response encoding after the last
// provider gives up.
const pipelineMargin = 30 * time.Second

// PipelineTimeout bounds one discovery plus analysis run. It is the sum of the
// provider ceilings, so a chain that walks every provider to its limit still
// finishes in time to answer. The browser may load the listing twice when the
// lowest-rating pass is on. RequestTimeout wins when it is larger.
func (c Config) PipelineTimeout() time.Duration {
	loads := 1
	if c.Browser.LowestRatingPass {
		loads = 2
	}
	browser := time.Duration(loads)*Seconds(c.Browser.NavTimeoutSeconds+c.Browser.SettleSeconds) +
		Seconds(c.Browser.ReleaseTimeoutSecs)
	actor := Seconds(c.Actor.WaitSeconds + c.Actor.TimeoutSeconds)
	total := browser + actor + Seconds(c.LLM.TimeoutSeconds) + pipelineMargin
	return max(total, c.RequestTimeout())
}

// Seconds converts an integer seconds setting into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
