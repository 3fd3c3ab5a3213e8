package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppName is used for the config directory and the env prefix.
const AppName = "calm"

// Defaults
const (
	DefaultTimeZone = "Asia/Taipei"
	DefaultModel    = "gemini-2.5-flash-lite"
	DefaultBaseURL  = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultMaxSteps = 4
)

// Config is the explicit configuration passed to the calendar access layer,
// the agent and the commands. Nothing in the module reads process-wide
// settings after Load returns.
type Config struct {
	// ConfigDir holds credentials.json, token.json, gemini.key and config.yaml
	ConfigDir string

	// TimeZone is the IANA name of the default zone
	TimeZone string

	// Location is TimeZone resolved
	Location *time.Location

	Agent AgentConfig
	Chat  ChatConfig
	Log   LogConfig

	Instrumentation InstrumentationConfig
}

// AgentConfig configures the natural-language agent.
type AgentConfig struct {
	Model   string
	BaseURL string
	APIKey  string

	// MaxSteps bounds the number of model round-trips
	MaxSteps int

	// StreamDecisions streams every decision turn instead of re-issuing a
	// streaming request for the final answer
	StreamDecisions bool
}

// ChatConfig configures the one-shot chat command.
type ChatConfig struct {
	Model string
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

// InstrumentationConfig mirrors the subset of OpenTelemetry settings exposed
// through the config file.
type InstrumentationConfig struct {
	Enabled         bool
	MetricsExporter string
	TracingExporter string
	OTLPEndpoint    string
	OTLPInsecure    bool
	SamplingRate    float64
}

// DefaultConfigDir returns ~/.config/calm.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", "."+AppName)
	}
	return filepath.Join(home, ".config", AppName)
}

// SetDefaults registers every known key with its default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("config_dir", DefaultConfigDir())
	v.SetDefault("timezone", DefaultTimeZone)
	v.SetDefault("agent.model", DefaultModel)
	v.SetDefault("agent.base_url", DefaultBaseURL)
	v.SetDefault("agent.api_key", "")
	v.SetDefault("agent.max_steps", DefaultMaxSteps)
	v.SetDefault("agent.stream_decisions", false)
	v.SetDefault("chat.model", DefaultModel)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("instrumentation.enabled", false)
	v.SetDefault("instrumentation.metrics_exporter", "prometheus")
	v.SetDefault("instrumentation.tracing_exporter", "none")
	v.SetDefault("instrumentation.otlp_endpoint", "")
	v.SetDefault("instrumentation.otlp_insecure", false)
	v.SetDefault("instrumentation.sampling_rate", 1.0)
}

// Load reads configuration from (in increasing precedence) defaults, the
// config file, CALM_* environment variables and any flags already bound on v.
// If configFile is empty, config.yaml in the config directory is used when
// present.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("config_dir"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		ConfigDir: v.GetString("config_dir"),
		TimeZone:  v.GetString("timezone"),
		Agent: AgentConfig{
			Model:           v.GetString("agent.model"),
			BaseURL:         v.GetString("agent.base_url"),
			APIKey:          v.GetString("agent.api_key"),
			MaxSteps:        v.GetInt("agent.max_steps"),
			StreamDecisions: v.GetBool("agent.stream_decisions"),
		},
		Chat: ChatConfig{
			Model: v.GetString("chat.model"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Instrumentation: InstrumentationConfig{
			Enabled:         v.GetBool("instrumentation.enabled"),
			MetricsExporter: v.GetString("instrumentation.metrics_exporter"),
			TracingExporter: v.GetString("instrumentation.tracing_exporter"),
			OTLPEndpoint:    v.GetString("instrumentation.otlp_endpoint"),
			OTLPInsecure:    v.GetBool("instrumentation.otlp_insecure"),
			SamplingRate:    v.GetFloat64("instrumentation.sampling_rate"),
		},
	}
}

// Default returns a validated configuration built from defaults only, without
// consulting files or the environment.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		// Defaults are constants; a failure here means the zone database is missing.
		loc := time.UTC
		return &Config{
			ConfigDir: DefaultConfigDir(),
			TimeZone:  loc.String(),
			Location:  loc,
			Agent:     AgentConfig{Model: DefaultModel, BaseURL: DefaultBaseURL, MaxSteps: DefaultMaxSteps},
			Chat:      ChatConfig{Model: DefaultModel},
			Log:       LogConfig{Level: "warn", Format: "text"},
		}
	}
	return cfg
}

// ForZone returns a copy of c using the named zone.
func (c *Config) ForZone(name string) (*Config, error) {
	cp := *c
	cp.TimeZone = name
	cp.Location = nil
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Validate checks the configuration and resolves Location.
func (c *Config) Validate() error {
	if c.TimeZone == "" {
		return fmt.Errorf("timezone must not be empty")
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.TimeZone, err)
	}
	c.Location = loc

	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("agent.max_steps must be at least 1, got %d", c.Agent.MaxSteps)
	}
	if c.Instrumentation.SamplingRate < 0 || c.Instrumentation.SamplingRate > 1 {
		return fmt.Errorf("instrumentation.sampling_rate must be between 0.0 and 1.0, got %f", c.Instrumentation.SamplingRate)
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", c.Log.Format)
	}
	return nil
}

// CredentialsPath is the OAuth desktop client JSON.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.ConfigDir, "credentials.json")
}

// TokenPath is the persisted OAuth token.
func (c *Config) TokenPath() string {
	return filepath.Join(c.ConfigDir, "token.json")
}

// APIKeyPath is the file fallback for the model API key.
func (c *Config) APIKeyPath() string {
	return filepath.Join(c.ConfigDir, "gemini.key")
}

// EnsureDir creates the config directory with owner-only permissions.
func (c *Config) EnsureDir() error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}
