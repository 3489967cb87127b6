// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Captcha CaptchaConfig `mapstructure:"captcha" yaml:"captcha"`
	Bridge  BridgeConfig  `mapstructure:"bridge" yaml:"bridge"`
	Filler  FillerConfig  `mapstructure:"filler" yaml:"filler"`
	Run     RunConfig     `mapstructure:"run" yaml:"run"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the driven browser instance.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// LLMConfig defines the completion service used for fallback answers.
type LLMConfig struct {
	APIKey              string        `mapstructure:"api_key" yaml:"-"`
	Model               string        `mapstructure:"model" yaml:"model"`
	Endpoint            string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout          time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature         float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens           int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	JobDescriptionLimit int           `mapstructure:"job_description_limit" yaml:"job_description_limit"`
}

// CaptchaConfig configures the external solving service client.
type CaptchaConfig struct {
	APIKey       string        `mapstructure:"api_key" yaml:"-"`
	ServiceURL   string        `mapstructure:"service_url" yaml:"service_url"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	SolveTimeout time.Duration `mapstructure:"solve_timeout" yaml:"solve_timeout"`
}

// BridgeConfig configures the local HTTP facade used by the browser extension.
type BridgeConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
}

// FillerConfig tunes the form resolution engine.
type FillerConfig struct {
	MinQuestionLength   int `mapstructure:"min_question_length" yaml:"min_question_length"`
	DedupePrefixLength  int `mapstructure:"dedupe_prefix_length" yaml:"dedupe_prefix_length"`
	KeyboardSearchLimit int `mapstructure:"keyboard_search_limit" yaml:"keyboard_search_limit"`
	CoverLetterMinLen   int `mapstructure:"cover_letter_min_len" yaml:"cover_letter_min_len"`
	// AssumeSuccessOnUnverifiedCommit keeps a keyboard dropdown commit marked
	// as filled when neither the closed-state nor the changed-text check is
	// conclusive. Trades a possible false positive for forward progress on
	// composite widgets that re-render while we read them.
	AssumeSuccessOnUnverifiedCommit bool `mapstructure:"assume_success_on_unverified_commit" yaml:"assume_success_on_unverified_commit"`
}

// RunConfig holds per-run settings populated from CLI flags and the config file.
type RunConfig struct {
	ProfilePath     string        `mapstructure:"profile_path" yaml:"profile_path"`
	ResultDir       string        `mapstructure:"result_dir" yaml:"result_dir"`
	InspectionDelay time.Duration `mapstructure:"inspection_delay" yaml:"inspection_delay"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "applypilot")
	v.SetDefault("logger.log_file", "applypilot.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.args", []string{
		"--disable-blink-features=AutomationControlled",
		"--no-sandbox",
		"--disable-dev-shm-usage",
	})
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.settle_delay", "3s")

	// -- LLM --
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_timeout", "45s")
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("llm.max_tokens", 400)
	v.SetDefault("llm.job_description_limit", 2000)

	// -- Captcha --
	v.SetDefault("captcha.service_url", "http://2captcha.com")
	v.SetDefault("captcha.poll_interval", "5s")
	v.SetDefault("captcha.solve_timeout", "120s")

	// -- Bridge --
	v.SetDefault("bridge.enabled", true)
	v.SetDefault("bridge.host", "127.0.0.1")
	v.SetDefault("bridge.port", 8765)

	// -- Filler --
	v.SetDefault("filler.min_question_length", 10)
	v.SetDefault("filler.dedupe_prefix_length", 30)
	v.SetDefault("filler.keyboard_search_limit", 10)
	v.SetDefault("filler.cover_letter_min_len", 50)
	v.SetDefault("filler.assume_success_on_unverified_commit", true)

	// -- Run --
	v.SetDefault("run.profile_path", "./data/profile.json")
	v.SetDefault("run.result_dir", ".")
	v.SetDefault("run.inspection_delay", "30s")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values come from the environment, never the config file.
	v.BindEnv("llm.api_key", "APPLYPILOT_LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("captcha.api_key", "APPLYPILOT_CAPTCHA_API_KEY", "CAPTCHA_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if c.Captcha.PollInterval <= 0 {
		return fmt.Errorf("captcha.poll_interval must be a positive duration")
	}
	if c.Captcha.SolveTimeout < c.Captcha.PollInterval {
		return fmt.Errorf("captcha.solve_timeout must be at least one poll interval")
	}
	if c.Bridge.Enabled && (c.Bridge.Port <= 0 || c.Bridge.Port > 65535) {
		return fmt.Errorf("bridge.port must be a valid TCP port")
	}
	if c.Filler.MinQuestionLength <= 0 {
		return fmt.Errorf("filler.min_question_length must be a positive integer")
	}
	if c.Filler.DedupePrefixLength <= 0 {
		return fmt.Errorf("filler.dedupe_prefix_length must be a positive integer")
	}
	return nil
}
