// Package model defines the closed set of supported model variants and the
// generation parameter types shared by the dispatcher, the engine adapters
// and the HTTP layer.
//
// The variant set is intentionally closed: adding a model means adding an ID
// constant, its entry in the tables below and its aliases in Resolve. Every
// switch over ID in this package covers all variants so an unhandled one is
// caught at review time rather than at runtime.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownModel indicates a model name that does not resolve to any
// supported variant. Check with errors.Is().
var ErrUnknownModel = errors.New("unknown model")

// ID identifies one supported model variant.
type ID int

// Supported model variants.
const (
	Llama31_8B ID = iota
	Llama32_1B
	Llama32_3B
)

// Default is the variant loaded at startup when config names none.
// The smallest model keeps cold start cheap.
const Default = Llama32_1B

// All lists every supported variant in listing order.
func All() []ID {
	return []ID{Llama31_8B, Llama32_1B, Llama32_3B}
}

// Name returns the canonical wire name of the variant.
func (id ID) Name() string {
	switch id {
	case Llama31_8B:
		return "llama-3.1-8b-instruct"
	case Llama32_1B:
		return "llama-3.2-1b-instruct"
	case Llama32_3B:
		return "llama-3.2-3b-instruct"
	}
	return fmt.Sprintf("ID(%d)", int(id))
}

// String implements fmt.Stringer with the human display name.
func (id ID) String() string {
	switch id {
	case Llama31_8B:
		return "Llama-3.1-8B-Instruct"
	case Llama32_1B:
		return "Llama-3.2-1B-Instruct"
	case Llama32_3B:
		return "Llama-3.2-3B-Instruct"
	}
	return id.Name()
}

// MaxSeqLen returns the maximum context length in tokens.
func (id ID) MaxSeqLen() int {
	switch id {
	case Llama31_8B:
		return 8192
	case Llama32_1B, Llama32_3B:
		return 4096
	}
	return 0
}

// Description returns a one-line human description of the variant.
func (id ID) Description() string {
	switch id {
	case Llama31_8B:
		return "Llama 3.1 8B Instruct - highest quality, needs ~16GB of memory"
	case Llama32_1B:
		return "Llama 3.2 1B Instruct - lightweight, fits constrained hosts (~4GB)"
	case Llama32_3B:
		return "Llama 3.2 3B Instruct - balanced quality and footprint (~8GB)"
	}
	return ""
}

// Resolve parses a free-form model name into an ID. Matching is
// case-insensitive and accepts the historical aliases alongside the
// canonical names. Unknown names return ErrUnknownModel, never a panic.
func Resolve(name string) (ID, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "llama-3.1-8b-instruct", "llama3.1-8b", "llama31-8b", "llama31_8b":
		return Llama31_8B, nil
	case "llama-3.2-1b-instruct", "llama3.2-1b", "llama32-1b", "llama32_1b":
		return Llama32_1B, nil
	case "llama-3.2-3b-instruct", "llama3.2-3b", "llama32-3b", "llama32_3b":
		return Llama32_3B, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownModel, name)
}

// Info describes one variant for the model listing endpoints.
type Info struct {
	Name        string `json:"name"`
	Loaded      bool   `json:"loaded"`
	Description string `json:"description"`
}

// GenerationConfig carries the sampling parameters for one generation call.
type GenerationConfig struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
	Seed         uint64  `json:"seed"`
}

// DefaultGenerationConfig returns the documented defaults applied when a
// request omits sampling parameters.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxNewTokens: 256,
		Temperature:  0.6,
		TopP:         0.9,
		Seed:         42,
	}
}

// Finish reasons carried on the terminal stream chunk.
const (
	FinishStop   = "stop"
	FinishLength = "length"
	FinishError  = "error"
)

// StreamChunk is one unit of streaming output: the new token fragment, the
// running concatenation so far and the finish flag. FinishReason is empty
// while generating.
type StreamChunk struct {
	TokenText     string `json:"token_text"`
	GeneratedText string `json:"generated_text"`
	IsFinished    bool   `json:"is_finished"`
	FinishReason  string `json:"finish_reason,omitempty"`
}

// GenerationResult is the outcome of a non-streaming generation call.
type GenerationResult struct {
	Text               string  `json:"text"`
	TokensGenerated    int     `json:"tokens_generated"`
	GenerationTimeSecs float64 `json:"generation_time_secs"`
	ModelUsed          string  `json:"model_used"`
}
