// Package dispatch owns the single active model and serializes all calls
// into the inference engine.
//
// One exclusive lock covers the current model name and the engine handle,
// so generate, stream and switch are single-flight: a request arriving
// during a model switch or a long generation waits, it is not rejected.
// Callers that need concurrency scale by running multiple dispatchers, not
// by relaxing the lock.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/koopa0/llamagate/internal/engine"
	"github.com/koopa0/llamagate/internal/model"
	"github.com/koopa0/llamagate/internal/session"
)

// streamBuffer is the bounded channel capacity between the generation
// worker and the stream consumer. Small on purpose: the worker should feel
// backpressure from a slow consumer within a few tokens.
const streamBuffer = 32

// Dispatcher tracks the active model and exclusively owns the engine.
type Dispatcher struct {
	engine engine.Engine
	logger *slog.Logger

	mu      sync.Mutex
	current model.ID
	handle  engine.Handle // nil when no model is loaded
}

// New creates a Dispatcher and blocking-loads the initial model.
func New(ctx context.Context, eng engine.Engine, initial model.ID, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{engine: eng, logger: logger}

	handle, err := eng.Load(ctx, initial)
	if err != nil {
		return nil, fmt.Errorf("loading initial model %s: %w", initial.Name(), err)
	}
	d.current = initial
	d.handle = handle

	logger.Info("model loaded", "model", initial.Name())
	return d, nil
}

// Current returns the active model identity. When a failed switch left the
// dispatcher without a loaded model, this is the last requested variant.
func (d *Dispatcher) Current() model.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Loaded reports whether a model is actually resident.
func (d *Dispatcher) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handle != nil
}

// ListModels describes every supported variant with its load state.
func (d *Dispatcher) ListModels() []model.Info {
	d.mu.Lock()
	current, loaded := d.current, d.handle != nil
	d.mu.Unlock()

	infos := make([]model.Info, 0, len(model.All()))
	for _, id := range model.All() {
		infos = append(infos, model.Info{
			Name:        id.Name(),
			Loaded:      loaded && id == current,
			Description: id.Description(),
		})
	}
	return infos
}

// SwitchModel replaces the active model with target. No-op when target is
// already active and loaded. The old handle is closed before the new load
// starts, so two models are never resident at once; a failed load leaves
// the dispatcher with no model (fail-closed), surfaced as ErrModelNotLoaded
// on subsequent generation calls.
func (d *Dispatcher) SwitchModel(ctx context.Context, target model.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if target == d.current && d.handle != nil {
		d.logger.Debug("model already loaded", "model", target.Name())
		return nil
	}

	d.logger.Info("switching model", "from", d.current.Name(), "to", target.Name())

	if d.handle != nil {
		if err := d.handle.Close(); err != nil {
			d.logger.Warn("closing previous model", "model", d.current.Name(), "error", err)
		}
		d.handle = nil
	}

	handle, err := d.engine.Load(ctx, target)
	if err != nil {
		d.current = target
		return fmt.Errorf("loading %s: %w", target.Name(), err)
	}

	d.current = target
	d.handle = handle
	d.logger.Info("model switched", "model", target.Name())
	return nil
}

// EnsureModel resolves a free-form model name and switches only when it
// differs from the active model. Returns the resolved identity.
func (d *Dispatcher) EnsureModel(ctx context.Context, name string) (model.ID, error) {
	id, err := model.Resolve(name)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	same := id == d.current && d.handle != nil
	d.mu.Unlock()
	if same {
		return id, nil
	}
	return id, d.SwitchModel(ctx, id)
}

// promptBytesPerToken is the rough bytes-per-token ratio used for the
// context window guard. Llama tokenizers average close to 4 bytes per
// token on English text; erring high keeps the guard permissive.
const promptBytesPerToken = 4

// checkContext renders the conversation into the chat template and
// rejects it when the estimated token count cannot fit the active model's
// context window. Caller holds d.mu.
func (d *Dispatcher) checkContext(messages []session.Message) error {
	prompt := model.FormatChat(messages)
	estimated := len(prompt) / promptBytesPerToken
	if limit := d.current.MaxSeqLen(); estimated > limit {
		return fmt.Errorf("%w: prompt is ~%d tokens, %s accepts %d",
			engine.ErrTokenization, estimated, d.current.Name(), limit)
	}
	return nil
}

// Generate runs one blocking generation under the dispatcher lock.
func (d *Dispatcher) Generate(ctx context.Context, messages []session.Message, cfg model.GenerationConfig) (*model.GenerationResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handle == nil {
		return nil, engine.ErrModelNotLoaded
	}
	if err := d.checkContext(messages); err != nil {
		return nil, err
	}
	return d.handle.Generate(ctx, messages, cfg)
}

// Stream starts a generation worker and returns its bounded output
// channel. The worker holds the dispatcher lock for the whole generation;
// each chunk send races ctx cancellation, so a consumer that goes away
// stops the worker at the next token. The channel is closed when the
// worker exits; a mid-generation engine failure is delivered as a final
// chunk with finish reason "error".
func (d *Dispatcher) Stream(ctx context.Context, messages []session.Message, cfg model.GenerationConfig) <-chan model.StreamChunk {
	out := make(chan model.StreamChunk, streamBuffer)

	go func() {
		defer close(out)

		d.mu.Lock()
		defer d.mu.Unlock()

		if d.handle == nil {
			send(ctx, out, model.StreamChunk{
				TokenText:    engine.ErrModelNotLoaded.Error(),
				IsFinished:   true,
				FinishReason: model.FinishError,
			})
			return
		}
		if err := d.checkContext(messages); err != nil {
			send(ctx, out, model.StreamChunk{
				TokenText:    err.Error(),
				IsFinished:   true,
				FinishReason: model.FinishError,
			})
			return
		}

		err := d.handle.Stream(ctx, messages, cfg, func(chunk model.StreamChunk) error {
			if !send(ctx, out, chunk) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			d.logger.Error("stream generation failed", "model", d.current.Name(), "error", err)
			send(ctx, out, model.StreamChunk{
				TokenText:    err.Error(),
				IsFinished:   true,
				FinishReason: model.FinishError,
			})
		}
	}()

	return out
}

// send attempts one chunk delivery, giving up when ctx is canceled.
// Reports whether the chunk was delivered.
func send(ctx context.Context, out chan<- model.StreamChunk, chunk model.StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
