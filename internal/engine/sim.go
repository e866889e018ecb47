package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/koopa0/llamagate/internal/model"
	"github.com/koopa0/llamagate/internal/session"
)

// Sim is an in-process engine that fabricates deterministic responses.
// It backs the demo run mode and every test that exercises the dispatcher
// or the streaming pipeline without real weights.
//
// The zero value is usable. All fields must be set before the first Load.
type Sim struct {
	// Respond overrides response synthesis. When nil, the response names
	// the model and echoes the last user message.
	Respond func(id model.ID, messages []session.Message) string

	// LoadErr, when non-nil, is consulted per variant to fail loads.
	LoadErr map[model.ID]error

	// GenerateErr, when non-nil, fails every generation call mid-way
	// (after emitting one chunk on Stream) to exercise error paths.
	GenerateErr error

	// TokenDelay is slept between emitted chunks.
	TokenDelay time.Duration

	// LoadDelay is slept inside Load to mimic weight loading.
	LoadDelay time.Duration

	Logger *slog.Logger

	loads atomic.Int64
}

// Loads reports how many successful Load calls the engine served.
func (s *Sim) Loads() int64 { return s.loads.Load() }

// Load returns a handle for the variant, honoring LoadErr and LoadDelay.
func (s *Sim) Load(ctx context.Context, id model.ID) (Handle, error) {
	if err := s.LoadErr[id]; err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelNotLoaded, id.Name(), err)
	}
	if s.LoadDelay > 0 {
		select {
		case <-time.After(s.LoadDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrModelNotLoaded, ctx.Err())
		}
	}
	s.loads.Add(1)
	if s.Logger != nil {
		s.Logger.Debug("sim engine loaded model", "model", id.Name())
	}
	return &simHandle{sim: s, id: id}, nil
}

type simHandle struct {
	sim    *Sim
	id     model.ID
	closed atomic.Bool
}

func (h *simHandle) response(messages []session.Message) string {
	if h.sim.Respond != nil {
		return h.sim.Respond(h.id, messages)
	}
	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == session.RoleUser {
			last = messages[i].Content
			break
		}
	}
	return fmt.Sprintf("[%s] Response to: %s", h.id, last)
}

func (h *simHandle) Generate(ctx context.Context, messages []session.Message, cfg model.GenerationConfig) (*model.GenerationResult, error) {
	if h.closed.Load() {
		return nil, ErrModelNotLoaded
	}
	if h.sim.GenerateErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, h.sim.GenerateErr)
	}

	start := time.Now()
	text := h.response(messages)
	words := strings.Fields(text)
	if cfg.MaxNewTokens > 0 && len(words) > cfg.MaxNewTokens {
		words = words[:cfg.MaxNewTokens]
		text = strings.Join(words, " ")
	}

	return &model.GenerationResult{
		Text:               text,
		TokensGenerated:    len(words),
		GenerationTimeSecs: time.Since(start).Seconds(),
		ModelUsed:          h.id.String(),
	}, nil
}

// Stream splits the fabricated response on whitespace and emits one word
// per chunk, stopping early when emit fails or ctx is canceled. Honors
// MaxNewTokens with a "length" finish reason.
func (h *simHandle) Stream(ctx context.Context, messages []session.Message, cfg model.GenerationConfig, emit func(model.StreamChunk) error) error {
	if h.closed.Load() {
		return ErrModelNotLoaded
	}

	words := strings.Fields(h.response(messages))
	limited := cfg.MaxNewTokens > 0 && len(words) > cfg.MaxNewTokens
	if limited {
		words = words[:cfg.MaxNewTokens]
	}

	var generated strings.Builder
	for i, word := range words {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		token := word
		if i > 0 {
			token = " " + word
		}
		generated.WriteString(token)

		last := i == len(words)-1
		chunk := model.StreamChunk{
			TokenText:     token,
			GeneratedText: generated.String(),
			IsFinished:    last,
		}
		if last {
			chunk.FinishReason = model.FinishStop
			if limited {
				chunk.FinishReason = model.FinishLength
			}
		}
		if err := emit(chunk); err != nil {
			return err
		}

		if h.sim.GenerateErr != nil {
			return fmt.Errorf("%w: %v", ErrGenerationFailed, h.sim.GenerateErr)
		}
		if h.sim.TokenDelay > 0 {
			time.Sleep(h.sim.TokenDelay)
		}
	}
	return nil
}

func (h *simHandle) Close() error {
	h.closed.Store(true)
	return nil
}
