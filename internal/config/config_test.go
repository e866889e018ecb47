package config

import (
	"errors"
	"testing"

	"github.com/koopa0/llamagate/internal/model"
	"github.com/koopa0/llamagate/internal/session"
)

func validConfig() Config {
	return Config{
		Addr:           "0.0.0.0:8080",
		CORSOrigins:    []string{"*"},
		RateBurst:      60,
		Engine:         EngineSim,
		OllamaHost:     "http://localhost:11434",
		DefaultModel:   model.Default.Name(),
		MaxTurns:       session.DefaultMaxTurns,
		MaxNewTokens:   256,
		Temperature:    0.6,
		TopP:           0.9,
		Seed:           42,
		MaxUploadBytes: 10 << 20,
		KeepAliveSecs:  15,
		LogLevel:       "info",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid config passes",
			mutate: func(*Config) {},
		},
		{
			name:    "empty addr",
			mutate:  func(c *Config) { c.Addr = "" },
			wantErr: ErrInvalidAddr,
		},
		{
			name:    "unknown engine",
			mutate:  func(c *Config) { c.Engine = "vllm" },
			wantErr: ErrInvalidEngine,
		},
		{
			name:    "unresolvable default model",
			mutate:  func(c *Config) { c.DefaultModel = "gpt-4" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "negative max turns",
			mutate:  func(c *Config) { c.MaxTurns = -1 },
			wantErr: ErrInvalidMaxTurns,
		},
		{
			name:    "zero max new tokens",
			mutate:  func(c *Config) { c.MaxNewTokens = 0 },
			wantErr: ErrInvalidGeneration,
		},
		{
			name:    "negative temperature",
			mutate:  func(c *Config) { c.Temperature = -0.1 },
			wantErr: ErrInvalidGeneration,
		},
		{
			name:    "top_p above one",
			mutate:  func(c *Config) { c.TopP = 1.5 },
			wantErr: ErrInvalidGeneration,
		},
		{
			name:    "top_p zero",
			mutate:  func(c *Config) { c.TopP = 0 },
			wantErr: ErrInvalidGeneration,
		},
		{
			name:    "zero upload limit",
			mutate:  func(c *Config) { c.MaxUploadBytes = 0 },
			wantErr: ErrInvalidUploadLimit,
		},
		{
			name:   "zero max turns is allowed",
			mutate: func(c *Config) { c.MaxTurns = 0 },
		},
		{
			name:   "model alias resolves",
			mutate: func(c *Config) { c.DefaultModel = "llama32_1b" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDerivedConfigs(t *testing.T) {
	cfg := validConfig()
	cfg.MaxTurns = 4
	cfg.SystemPrompt = "pinned"
	cfg.MaxNewTokens = 128

	sc := cfg.SessionConfig()
	if sc.MaxTurns != 4 || sc.SystemPrompt != "pinned" {
		t.Errorf("SessionConfig = %+v", sc)
	}

	gen := cfg.GenerationDefaults()
	if gen.MaxNewTokens != 128 || gen.Temperature != 0.6 || gen.TopP != 0.9 || gen.Seed != 42 {
		t.Errorf("GenerationDefaults = %+v", gen)
	}
}
