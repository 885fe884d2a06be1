// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Ollama     OllamaConfig     `mapstructure:"ollama" yaml:"ollama"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Navigation NavigationConfig `mapstructure:"navigation" yaml:"navigation"`
	Memory     MemoryConfig     `mapstructure:"memory" yaml:"memory"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
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

// ColorConfig defines the color names for terminal log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ModelRoles maps each reasoning role to the Ollama model that serves it.
type ModelRoles struct {
	General   string `mapstructure:"general" yaml:"general"`
	Planning  string `mapstructure:"planning" yaml:"planning"`
	Coding    string `mapstructure:"coding" yaml:"coding"`
	Reasoning string `mapstructure:"reasoning" yaml:"reasoning"`
	Embedding string `mapstructure:"embedding" yaml:"embedding"`
}

// OllamaConfig holds the connection and model settings for the inference backend.
type OllamaConfig struct {
	Host              string        `mapstructure:"host" yaml:"host"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Models            ModelRoles    `mapstructure:"models" yaml:"models"`
}

// BrowserConfig holds settings for the browser session.
type BrowserConfig struct {
	Headless              bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent             string        `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth           int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight          int           `mapstructure:"window_height" yaml:"window_height"`
	Args                  []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout     time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	QuietPeriod           time.Duration `mapstructure:"quiet_period" yaml:"quiet_period"`
	CaptureResponseBodies bool          `mapstructure:"capture_response_bodies" yaml:"capture_response_bodies"`
	MaxBodySize           int64         `mapstructure:"max_body_size" yaml:"max_body_size"`
}

// NavigationConfig tunes plan execution inside the navigation engine.
type NavigationConfig struct {
	MaxSteps    int           `mapstructure:"max_steps" yaml:"max_steps"`
	StepTimeout time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	ContentCap  int           `mapstructure:"content_cap" yaml:"content_cap"`
	AnalyzeUI   bool          `mapstructure:"analyze_ui" yaml:"analyze_ui"`
}

// MemoryConfig tunes the in-process semantic memory index.
type MemoryConfig struct {
	EmbeddingDim    int           `mapstructure:"embedding_dim" yaml:"embedding_dim"`
	MaxEntries      int           `mapstructure:"max_entries" yaml:"max_entries"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval" yaml:"janitor_interval"`
	DefaultTopK     int           `mapstructure:"default_top_k" yaml:"default_top_k"`
}

// DatabaseConfig holds the long-term storage connection details.
// An empty URL disables persistence entirely.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// Enabled reports whether long-term persistence is configured.
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// NewDefaultConfig creates a configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; an unmarshal failure here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "wayfarer")
	v.SetDefault("logger.log_file", "wayfarer.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Ollama --
	v.SetDefault("ollama.host", "http://127.0.0.1:11434")
	v.SetDefault("ollama.request_timeout", "180s")
	v.SetDefault("ollama.requests_per_minute", 60)
	v.SetDefault("ollama.models.general", "hermes3:8b")
	v.SetDefault("ollama.models.planning", "hermes3:8b")
	v.SetDefault("ollama.models.coding", "granite-code:8b")
	v.SetDefault("ollama.models.reasoning", "deepseek-r1:8b")
	v.SetDefault("ollama.models.embedding", "mxbai-embed-large")

	// -- Browser --
	// Visible by default: the default session is meant to be watched.
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.window_width", 1440)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.quiet_period", "2s")
	v.SetDefault("browser.capture_response_bodies", true)
	v.SetDefault("browser.max_body_size", 1<<20)

	// -- Navigation --
	v.SetDefault("navigation.max_steps", 15)
	v.SetDefault("navigation.step_timeout", "60s")
	v.SetDefault("navigation.content_cap", 8000)
	v.SetDefault("navigation.analyze_ui", true)

	// -- Memory --
	v.SetDefault("memory.embedding_dim", 768)
	v.SetDefault("memory.max_entries", 2048)
	v.SetDefault("memory.janitor_interval", "60s")
	v.SetDefault("memory.default_top_k", 5)

	// -- Database --
	v.SetDefault("database.url", "")
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The database URL is sensitive and commonly supplied via the environment.
	v.BindEnv("database.url", "WAYFARER_DATABASE_URL")

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
	if c.Ollama.Host == "" {
		return fmt.Errorf("ollama.host is a required configuration field")
	}
	if c.Ollama.RequestTimeout <= 0 {
		return fmt.Errorf("ollama.request_timeout must be a positive duration")
	}
	if c.Ollama.RequestsPerMinute <= 0 {
		return fmt.Errorf("ollama.requests_per_minute must be a positive integer")
	}
	if err := c.Ollama.Models.Validate(); err != nil {
		return fmt.Errorf("ollama.models configuration invalid: %w", err)
	}
	if c.Navigation.MaxSteps <= 0 {
		return fmt.Errorf("navigation.max_steps must be a positive integer")
	}
	if c.Navigation.StepTimeout <= 0 {
		return fmt.Errorf("navigation.step_timeout must be a positive duration")
	}
	if c.Memory.EmbeddingDim <= 0 {
		return fmt.Errorf("memory.embedding_dim must be a positive integer")
	}
	if c.Memory.DefaultTopK <= 0 {
		return fmt.Errorf("memory.default_top_k must be a positive integer")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	return nil
}

// Validate checks that every model role is bound to a model name.
func (m *ModelRoles) Validate() error {
	for role, model := range map[string]string{
		"general":   m.General,
		"planning":  m.Planning,
		"coding":    m.Coding,
		"reasoning": m.Reasoning,
		"embedding": m.Embedding,
	} {
		if model == "" {
			return fmt.Errorf("model role %q has no model configured", role)
		}
	}
	return nil
}

// DefaultConfigDir returns the per-user configuration directory, with the
// home-relative path expanded.
func DefaultConfigDir() (string, error) {
	dir, err := homedir.Expand("~/.wayfarer")
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return dir, nil
}
