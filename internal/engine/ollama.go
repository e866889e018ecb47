package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/koopa0/llamagate/internal/model"
	"github.com/koopa0/llamagate/internal/session"
)

// ollamaProvider is the Genkit model name prefix for the Ollama plugin.
const ollamaProvider = "ollama"

// OllamaConfig configures the Ollama-backed engine.
type OllamaConfig struct {
	// Host is the Ollama server address, e.g. "http://localhost:11434".
	Host string

	// Logger for engine lifecycle events. Nil falls back to slog.Default.
	Logger *slog.Logger
}

// Ollama adapts Genkit's Ollama plugin to the Engine interface. Model
// weights live in the Ollama server; Load registers the variant with
// Genkit and issues a one-token warm-up request so load failures surface
// eagerly instead of on the first user request.
type Ollama struct {
	g      *genkit.Genkit
	plugin *ollama.Ollama
	logger *slog.Logger

	mu      sync.Mutex
	defined map[model.ID]bool
}

// NewOllama initializes Genkit with the Ollama plugin.
func NewOllama(ctx context.Context, cfg OllamaConfig) (*Ollama, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	plugin := &ollama.Ollama{ServerAddress: cfg.Host}
	g := genkit.Init(ctx, genkit.WithPlugins(plugin))
	if g == nil {
		return nil, errors.New("initializing genkit with ollama plugin")
	}

	logger.Info("initialized ollama engine", "host", cfg.Host)
	return &Ollama{
		g:       g,
		plugin:  plugin,
		logger:  logger,
		defined: make(map[model.ID]bool),
	}, nil
}

// Load registers the variant with Genkit (Ollama requires explicit model
// registration, no auto-discovery) and warms it up.
func (e *Ollama) Load(ctx context.Context, id model.ID) (Handle, error) {
	e.mu.Lock()
	if !e.defined[id] {
		e.plugin.DefineModel(e.g, ollama.ModelDefinition{
			Name: id.Name(),
			Type: "chat",
		}, nil)
		e.defined[id] = true
	}
	e.mu.Unlock()

	h := &ollamaHandle{engine: e, id: id}

	// Warm-up: forces the server to pull the weights into memory now so a
	// broken model name or an unreachable server fails the switch, not the
	// first generation.
	start := time.Now()
	warm := model.GenerationConfig{MaxNewTokens: 1, Temperature: 0}
	if _, err := h.Generate(ctx, []session.Message{{Role: session.RoleUser, Content: "ping"}}, warm); err != nil {
		return nil, fmt.Errorf("%w: warming up %s: %v", ErrModelNotLoaded, id.Name(), err)
	}
	e.logger.Info("model ready", "model", id.Name(), "warmup", time.Since(start))

	return h, nil
}

type ollamaHandle struct {
	engine *Ollama
	id     model.ID
}

// toGenkitMessages converts conversation messages to Genkit's message type.
func toGenkitMessages(messages []session.Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(messages))
	for _, m := range messages {
		role := ai.RoleUser
		switch m.Role {
		case session.RoleSystem:
			role = ai.RoleSystem
		case session.RoleAssistant:
			role = ai.RoleModel
		}
		out = append(out, &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(m.Content)},
		})
	}
	return out
}

func (h *ollamaHandle) options(messages []session.Message, cfg model.GenerationConfig) []ai.GenerateOption {
	return []ai.GenerateOption{
		ai.WithModelName(ollamaProvider + "/" + h.id.Name()),
		ai.WithMessages(toGenkitMessages(messages)...),
		ai.WithConfig(&ai.GenerationCommonConfig{
			MaxOutputTokens: cfg.MaxNewTokens,
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
		}),
	}
}

func (h *ollamaHandle) Generate(ctx context.Context, messages []session.Message, cfg model.GenerationConfig) (*model.GenerationResult, error) {
	start := time.Now()
	resp, err := genkit.Generate(ctx, h.engine.g, h.options(messages, cfg)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.OutputTokens
	}
	return &model.GenerationResult{
		Text:               resp.Text(),
		TokensGenerated:    tokens,
		GenerationTimeSecs: time.Since(start).Seconds(),
		ModelUsed:          h.id.String(),
	}, nil
}

func (h *ollamaHandle) Stream(ctx context.Context, messages []session.Message, cfg model.GenerationConfig, emit func(model.StreamChunk) error) error {
	var generated string

	opts := append(h.options(messages, cfg),
		ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			text := chunk.Text()
			if text == "" {
				return nil
			}
			generated += text
			return emit(model.StreamChunk{
				TokenText:     text,
				GeneratedText: generated,
			})
		}),
	)

	resp, err := genkit.Generate(ctx, h.engine.g, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	reason := model.FinishStop
	if string(resp.FinishReason) == "length" {
		reason = model.FinishLength
	}
	return emit(model.StreamChunk{
		GeneratedText: generated,
		IsFinished:    true,
		FinishReason:  reason,
	})
}

// Close is a no-op: the Ollama server owns model residency and evicts idle
// models itself; the plugin exposes no explicit unload.
func (h *ollamaHandle) Close() error { return nil }
