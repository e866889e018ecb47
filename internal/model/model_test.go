package model

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ID
	}{
		{"canonical 8b", "llama-3.1-8b-instruct", Llama31_8B},
		{"dotted alias", "llama3.1-8b", Llama31_8B},
		{"dashed alias", "llama31-8b", Llama31_8B},
		{"underscore alias", "llama31_8b", Llama31_8B},
		{"canonical 1b", "llama-3.2-1b-instruct", Llama32_1B},
		{"canonical 3b", "llama-3.2-3b-instruct", Llama32_3B},
		{"alias 3b", "llama32_3b", Llama32_3B},
		{"uppercase is accepted", "LLAMA-3.2-1B-INSTRUCT", Llama32_1B},
		{"surrounding whitespace trimmed", "  llama32-1b  ", Llama32_1B},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.input)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	for _, input := range []string{"", "gpt-4", "llama-2-7b"} {
		if _, err := Resolve(input); !errors.Is(err, ErrUnknownModel) {
			t.Errorf("Resolve(%q) error = %v, want ErrUnknownModel", input, err)
		}
	}
}

func TestVariantProperties(t *testing.T) {
	if len(All()) != 3 {
		t.Fatalf("All() returned %d variants, want 3", len(All()))
	}

	seqLens := map[ID]int{
		Llama31_8B: 8192,
		Llama32_1B: 4096,
		Llama32_3B: 4096,
	}

	for _, id := range All() {
		if id.Name() == "" {
			t.Errorf("%v has empty name", id)
		}
		if id.Description() == "" {
			t.Errorf("%v has empty description", id)
		}
		if got := id.MaxSeqLen(); got != seqLens[id] {
			t.Errorf("%v MaxSeqLen = %d, want %d", id, got, seqLens[id])
		}
	}
}

func TestDefaultGenerationConfig(t *testing.T) {
	cfg := DefaultGenerationConfig()
	if cfg.MaxNewTokens != 256 {
		t.Errorf("MaxNewTokens = %d, want 256", cfg.MaxNewTokens)
	}
	if cfg.Temperature != 0.6 {
		t.Errorf("Temperature = %v, want 0.6", cfg.Temperature)
	}
	if cfg.TopP != 0.9 {
		t.Errorf("TopP = %v, want 0.9", cfg.TopP)
	}
	if cfg.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Seed)
	}
}
