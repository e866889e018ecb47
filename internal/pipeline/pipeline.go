// Package pipeline orchestrates one streaming generation end to end:
// model resolution, session preparation, file-context injection, the
// generation worker and response persistence.
//
// The flow is a straight line of states: resolve/ensure the model, prepare
// and persist the session, generate through the dispatcher's bounded
// channel, then persist the assembled response. Validation failures happen
// before any state mutation, so a rejected request never creates a session
// and never consumes the document cache.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/koopa0/llamagate/internal/dispatch"
	"github.com/koopa0/llamagate/internal/filecache"
	"github.com/koopa0/llamagate/internal/model"
	"github.com/koopa0/llamagate/internal/session"
)

// chunkBuffer bounds the relay channel between the pipeline and the
// response writer, mirroring the dispatcher's worker channel.
const chunkBuffer = 32

// Pipeline wires the session store, the document cache and the dispatcher
// into complete generation requests.
type Pipeline struct {
	sessions   *session.Store
	files      *filecache.Store
	dispatcher *dispatch.Dispatcher
	sessionCfg session.Config
	logger     *slog.Logger
}

// New creates a Pipeline. cfg is the trim configuration applied to
// sessions created on first reference.
func New(sessions *session.Store, files *filecache.Store, d *dispatch.Dispatcher, cfg session.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		sessions:   sessions,
		files:      files,
		dispatcher: d,
		sessionCfg: cfg,
		logger:     logger,
	}
}

// Request is one generation request.
type Request struct {
	ModelName string
	Prompt    string
	SessionID string // empty: a fresh session id is generated
	Config    model.GenerationConfig
}

// Stream is a running generation. Chunks is closed after the assembled
// response has been persisted, so a consumer that drains it may emit the
// session control frame immediately afterwards.
type Stream struct {
	SessionID string
	Chunks    <-chan model.StreamChunk

	group *errgroup.Group
}

// Wait blocks until the worker and the finalizer are done and returns the
// engine error, if any. Chunks must be drained first.
func (s *Stream) Wait() error {
	return s.group.Wait()
}

// prepare resolves the model and builds the persisted message history for
// one request. Shared by Stream and Generate.
func (p *Pipeline) prepare(ctx context.Context, req Request) (string, []session.Message, error) {
	// An omitted model name means "whatever is active"; only an explicit
	// name can trigger a switch.
	if req.ModelName != "" {
		if _, err := p.dispatcher.EnsureModel(ctx, req.ModelName); err != nil {
			return "", nil, err
		}
	}

	id := req.SessionID
	if id == "" {
		id = uuid.New().String()
	}

	sess := p.sessions.GetOrCreate(id, p.sessionCfg)

	// Pending uploads become one extra user message ahead of the prompt.
	if fileContext, ok := p.files.DrainAsContext(); ok {
		sess.AddUserMessage(fileContext)
	}
	sess.AddUserMessage(req.Prompt)

	// Persist before generation starts: a crash mid-generation must not
	// lose the user's turn.
	p.sessions.Update(sess)

	return id, sess.Messages, nil
}

// Stream runs one streaming generation. The returned error covers the
// validation phase only (unknown model, failed switch); it is reported
// before any session mutation. Once a Stream is returned the generation is
// running and the caller must drain Chunks.
func (p *Pipeline) Stream(ctx context.Context, req Request) (*Stream, error) {
	id, messages, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	upstream := p.dispatcher.Stream(ctx, messages, req.Config)
	out := make(chan model.StreamChunk, chunkBuffer)

	g := &errgroup.Group{}
	g.Go(func() error {
		defer close(out)

		var generated string
		var streamErr error
		for chunk := range upstream {
			if chunk.FinishReason == model.FinishError {
				streamErr = fmt.Errorf("generation aborted: %s", chunk.TokenText)
			} else {
				generated = chunk.GeneratedText
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				// Consumer is gone; keep draining so the worker can exit,
				// but stop forwarding.
			}
		}

		// Persist whatever was produced, including partial output after a
		// disconnect or an engine failure.
		if generated != "" {
			sess := p.sessions.GetOrCreate(id, p.sessionCfg)
			sess.AddAssistantMessage(generated)
			p.sessions.Update(sess)
		}

		if streamErr != nil {
			p.logger.Warn("stream ended with engine error", "session_id", id, "error", streamErr)
		} else {
			p.logger.Debug("stream complete", "session_id", id, "chars", len(generated))
		}
		return streamErr
	})

	return &Stream{SessionID: id, Chunks: out, group: g}, nil
}

// Generate runs one non-streaming generation through the same session
// bookkeeping as Stream.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*model.GenerationResult, string, error) {
	id, messages, err := p.prepare(ctx, req)
	if err != nil {
		return nil, "", err
	}

	result, err := p.dispatcher.Generate(ctx, messages, req.Config)
	if err != nil {
		return nil, "", err
	}

	if result.Text != "" {
		sess := p.sessions.GetOrCreate(id, p.sessionCfg)
		sess.AddAssistantMessage(result.Text)
		p.sessions.Update(sess)
	}
	return result, id, nil
}
