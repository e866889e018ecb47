// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest priority first:
//  1. Environment variables (LLAMAGATE_* overrides)
//  2. Config file (~/.llamagate/config.yaml or ./config.yaml)
//  3. Default values
//
// Validation is comprehensive and fail-fast: Load returns a wrapped
// sentinel error (check with errors.Is) rather than letting a bad value
// reach the serving path.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/koopa0/llamagate/internal/model"
	"github.com/koopa0/llamagate/internal/session"
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidEngine indicates an unknown engine kind.
	ErrInvalidEngine = errors.New("invalid engine")

	// ErrInvalidModelName indicates the default model does not resolve.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidMaxTurns indicates a negative turn limit.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrInvalidGeneration indicates an out-of-range sampling parameter.
	ErrInvalidGeneration = errors.New("invalid generation parameter")

	// ErrInvalidAddr indicates a missing listen address.
	ErrInvalidAddr = errors.New("invalid listen address")

	// ErrInvalidUploadLimit indicates a non-positive upload size limit.
	ErrInvalidUploadLimit = errors.New("invalid upload limit")
)

// Engine kinds selectable via the "engine" key.
const (
	EngineSim    = "sim"
	EngineOllama = "ollama"
)

// Config stores application configuration.
type Config struct {
	// HTTP server
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst"`

	// Engine selection
	Engine       string `mapstructure:"engine"`       // "sim" or "ollama"
	OllamaHost   string `mapstructure:"ollama_host"`  // used when engine is "ollama"
	DefaultModel string `mapstructure:"default_model"`

	// Session behavior
	MaxTurns     int    `mapstructure:"max_turns"`
	SystemPrompt string `mapstructure:"system_prompt"`

	// Generation defaults applied when a request omits parameters
	MaxNewTokens int     `mapstructure:"max_new_tokens"`
	Temperature  float64 `mapstructure:"temperature"`
	TopP         float64 `mapstructure:"top_p"`
	Seed         uint64  `mapstructure:"seed"`

	// Upload handling
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	// SSE keep-alive interval in seconds
	KeepAliveSecs int `mapstructure:"keepalive_secs"`

	// Logging
	LogJSON  bool   `mapstructure:"log_json"`
	LogLevel string `mapstructure:"log_level"`

	// Tracing (optional, off by default)
	Otel OtelConfig `mapstructure:"otel"`
}

// OtelConfig configures the OTLP trace exporter.
type OtelConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
}

// Load loads configuration with the documented priority.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".llamagate")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("addr", "0.0.0.0:8080")
	viper.SetDefault("cors_origins", []string{"*"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 60)

	viper.SetDefault("engine", EngineSim)
	viper.SetDefault("ollama_host", "http://localhost:11434")
	viper.SetDefault("default_model", model.Default.Name())

	viper.SetDefault("max_turns", session.DefaultMaxTurns)
	viper.SetDefault("system_prompt", "")

	gen := model.DefaultGenerationConfig()
	viper.SetDefault("max_new_tokens", gen.MaxNewTokens)
	viper.SetDefault("temperature", gen.Temperature)
	viper.SetDefault("top_p", gen.TopP)
	viper.SetDefault("seed", gen.Seed)

	viper.SetDefault("max_upload_bytes", int64(10<<20))
	viper.SetDefault("keepalive_secs", 15)

	viper.SetDefault("log_json", false)
	viper.SetDefault("log_level", "info")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "localhost:4318")
	viper.SetDefault("otel.service_name", "llamagate")
	viper.SetDefault("otel.environment", "dev")
}

// bindEnvVariables binds runtime overrides explicitly. Hardcoded keys
// cannot fail to bind; a panic here is a bug, not a runtime error.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("addr", "LLAMAGATE_ADDR")
	mustBind("engine", "LLAMAGATE_ENGINE")
	mustBind("ollama_host", "LLAMAGATE_OLLAMA_HOST")
	mustBind("default_model", "LLAMAGATE_MODEL")
	mustBind("cors_origins", "LLAMAGATE_CORS_ORIGINS")
	mustBind("trust_proxy", "LLAMAGATE_TRUST_PROXY")
	mustBind("rate_burst", "LLAMAGATE_RATE_BURST")
	mustBind("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// Validate checks every value range. Returns the first violation wrapped
// around its sentinel error.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return ErrInvalidAddr
	}

	switch c.Engine {
	case EngineSim, EngineOllama:
	default:
		return fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidEngine, c.Engine, EngineSim, EngineOllama)
	}

	if _, err := model.Resolve(c.DefaultModel); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidModelName, c.DefaultModel)
	}

	if c.MaxTurns < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTurns, c.MaxTurns)
	}

	if c.MaxNewTokens <= 0 {
		return fmt.Errorf("%w: max_new_tokens %d", ErrInvalidGeneration, c.MaxNewTokens)
	}
	if c.Temperature < 0 {
		return fmt.Errorf("%w: temperature %v", ErrInvalidGeneration, c.Temperature)
	}
	if c.TopP <= 0 || c.TopP > 1 {
		return fmt.Errorf("%w: top_p %v", ErrInvalidGeneration, c.TopP)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidUploadLimit, c.MaxUploadBytes)
	}
	if c.KeepAliveSecs <= 0 {
		return fmt.Errorf("%w: keepalive_secs %d", ErrInvalidGeneration, c.KeepAliveSecs)
	}
	return nil
}

// SessionConfig returns the trim configuration for new sessions.
func (c *Config) SessionConfig() session.Config {
	return session.Config{MaxTurns: c.MaxTurns, SystemPrompt: c.SystemPrompt}
}

// GenerationDefaults returns the sampling defaults from configuration.
func (c *Config) GenerationDefaults() model.GenerationConfig {
	return model.GenerationConfig{
		MaxNewTokens: c.MaxNewTokens,
		Temperature:  c.Temperature,
		TopP:         c.TopP,
		Seed:         c.Seed,
	}
}
