// Package engine defines the inference engine boundary and its adapters.
//
// The gateway core never touches model weights directly: it loads a Handle
// through an Engine and generates through the Handle. Two adapters exist,
// Sim (in-process, deterministic, used by tests and demo mode) and Ollama
// (Genkit's Ollama plugin fronting a local model server).
package engine

import (
	"context"
	"errors"

	"github.com/koopa0/llamagate/internal/model"
	"github.com/koopa0/llamagate/internal/session"
)

// Sentinel errors surfaced across the engine boundary. Check with
// errors.Is(); the HTTP layer maps them onto status codes.
var (
	// ErrModelNotLoaded indicates no usable model instance is available.
	ErrModelNotLoaded = errors.New("model not loaded")

	// ErrGenerationFailed indicates the engine reported a failure while
	// producing output.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrTokenization indicates the prompt could not be tokenized.
	ErrTokenization = errors.New("tokenization error")
)

// Engine loads model variants. Load blocks until the weights are usable;
// it is the caller's job (the dispatcher's) to serialize loads and to close
// the previous Handle first so at most one model is resident.
type Engine interface {
	Load(ctx context.Context, id model.ID) (Handle, error)
}

// Handle is one loaded model instance, exclusively owned by its caller.
type Handle interface {
	// Generate produces a complete response for the conversation.
	Generate(ctx context.Context, messages []session.Message, cfg model.GenerationConfig) (*model.GenerationResult, error)

	// Stream produces the response one token fragment at a time, calling
	// emit for every chunk. It returns when the final chunk has been
	// emitted, when emit returns an error, or when ctx is canceled.
	// The last chunk carries IsFinished and a finish reason.
	Stream(ctx context.Context, messages []session.Message, cfg model.GenerationConfig, emit func(model.StreamChunk) error) error

	// Close releases the instance. The handle is unusable afterwards.
	Close() error
}
