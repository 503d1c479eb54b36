// Package config handles configuration loading for moodpulse.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// APIKeyEnv is the environment variable that must carry the Gemini API key.
const APIKeyEnv = "GEMINI_API_KEY"

// Config represents the complete application configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"      yaml:"llm"`
	Feed     FeedConfig     `mapstructure:"feed"     yaml:"feed"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Output   OutputConfig   `mapstructure:"output"   yaml:"output"`
	Store    StoreConfig    `mapstructure:"store"    yaml:"store"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// LLMConfig holds the Gemini client and retry settings.
type LLMConfig struct {
	APIKey            string        `mapstructure:"api_key"             yaml:"api_key"             json:"-"`
	BaseURL           string        `mapstructure:"base_url"            yaml:"base_url"`
	Model             string        `mapstructure:"model"               yaml:"model"`
	Temperature       float64       `mapstructure:"temperature"         yaml:"temperature"`
	Timeout           time.Duration `mapstructure:"timeout"             yaml:"timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"        yaml:"max_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"         yaml:"retry_delay"`         // non-rate-limit errors
	RateLimitMargin   time.Duration `mapstructure:"rate_limit_margin"   yaml:"rate_limit_margin"`   // added to server-suggested delay
	RateLimitCooldown time.Duration `mapstructure:"rate_limit_cooldown" yaml:"rate_limit_cooldown"` // when no delay is suggested
}

// FeedConfig holds feed fetching settings.
type FeedConfig struct {
	MaxHeadlines int           `mapstructure:"max_headlines" yaml:"max_headlines"`
	Timeout      time.Duration `mapstructure:"timeout"       yaml:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"    yaml:"user_agent"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	EntitiesFile  string        `mapstructure:"entities_file"  yaml:"entities_file"`
	ScheduleHours []int         `mapstructure:"schedule_hours" yaml:"schedule_hours"` // KST
	Pacing        time.Duration `mapstructure:"pacing"         yaml:"pacing"`         // min spacing between model calls
	RunOnStart    bool          `mapstructure:"run_on_start"   yaml:"run_on_start"`
}

// OutputConfig holds artifact locations.
type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// StoreConfig holds the optional Redis mirror settings.
type StoreConfig struct {
	RedisURL    string `mapstructure:"redis_url"    yaml:"redis_url"    json:"-"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
	File   string `mapstructure:"file"   yaml:"file"`
}

// ConfigError reports a configuration problem that must stop the process
// before any network activity.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrMissingAPIKey is wrapped by the ConfigError returned when no key is set.
var ErrMissingAPIKey = errors.New("API key not set")

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.moodpulse/config.yaml (home directory)
//  3. /etc/moodpulse/config.yaml (system)
//
// Environment variables override config file values.
// Format: MOODPULSE_<SECTION>_<KEY>, e.g., MOODPULSE_OUTPUT_DIR
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".moodpulse"))
	v.AddConfigPath("/etc/moodpulse")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &ConfigError{Field: "file", Err: err}
		}
	}
	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Field: "file", Err: fmt.Errorf("read %s: %w", path, err)}
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	// A .env file in the working directory may carry the API key.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MOODPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Field: "file", Err: fmt.Errorf("unmarshal: %w", err)}
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.retry_delay", 5*time.Second)
	v.SetDefault("llm.rate_limit_margin", 5*time.Second)
	v.SetDefault("llm.rate_limit_cooldown", 70*time.Second)

	v.SetDefault("feed.max_headlines", 15)
	v.SetDefault("feed.timeout", 30*time.Second)
	v.SetDefault("feed.user_agent", "moodpulse/1.0 (+https://github.com/seenimoa/moodpulse)")

	v.SetDefault("pipeline.entities_file", "./config/entities.yaml")
	v.SetDefault("pipeline.schedule_hours", []int{0, 8, 12, 16, 20})
	v.SetDefault("pipeline.pacing", 65*time.Second)
	v.SetDefault("pipeline.run_on_start", false)

	v.SetDefault("output.dir", "./data")

	v.SetDefault("store.redis_prefix", "moodpulse")

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(APIKeyEnv); key != "" {
		cfg.LLM.APIKey = key
	}
}

// RequireAPIKey returns a ConfigError when no Gemini key is configured.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return &ConfigError{Field: APIKeyEnv, Err: ErrMissingAPIKey}
	}
	return nil
}

// Validate checks value ranges that would make a run misbehave.
func (c *Config) Validate() error {
	if c.LLM.MaxAttempts < 1 {
		return &ConfigError{Field: "llm.max_attempts", Err: fmt.Errorf("must be >= 1, got %d", c.LLM.MaxAttempts)}
	}
	if c.Feed.MaxHeadlines < 1 {
		return &ConfigError{Field: "feed.max_headlines", Err: fmt.Errorf("must be >= 1, got %d", c.Feed.MaxHeadlines)}
	}
	if c.Pipeline.Pacing < 0 {
		return &ConfigError{Field: "pipeline.pacing", Err: fmt.Errorf("must not be negative, got %s", c.Pipeline.Pacing)}
	}
	for _, h := range c.Pipeline.ScheduleHours {
		if h < 0 || h > 23 {
			return &ConfigError{Field: "pipeline.schedule_hours", Err: fmt.Errorf("hour %d out of range", h)}
		}
	}
	if c.Output.Dir == "" {
		return &ConfigError{Field: "output.dir", Err: errors.New("must not be empty")}
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
