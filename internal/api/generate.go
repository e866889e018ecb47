package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/koopa0/llamagate/internal/model"
	"github.com/koopa0/llamagate/internal/pipeline"
)

// maxRequestBody limits JSON request bodies to 1MB.
const maxRequestBody = 1 << 20

// generateHandler serves the generation endpoints.
//
// Endpoints:
//   - POST /generate        - Synchronous generation (JSON request/response)
//   - POST /generate/stream - Streaming generation (SSE - Server-Sent Events)
type generateHandler struct {
	pipeline  *pipeline.Pipeline
	defaults  model.GenerationConfig
	keepAlive time.Duration
	logger    *slog.Logger
}

// generateRequest is the JSON body of both generation endpoints.
// Omitted sampling parameters fall back to the server defaults.
type generateRequest struct {
	ModelName string            `json:"model_name"`
	Prompt    string            `json:"prompt"`
	SessionID string            `json:"session_id,omitempty"`
	Config    *generationParams `json:"config,omitempty"`
}

type generationParams struct {
	MaxNewTokens *int     `json:"max_new_tokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	TopP         *float64 `json:"top_p,omitempty"`
	Seed         *uint64  `json:"seed,omitempty"`
}

// generateResponse is the JSON body of the synchronous endpoint.
type generateResponse struct {
	Text               string  `json:"text"`
	SessionID          string  `json:"session_id"`
	TokensGenerated    int     `json:"tokens_generated"`
	GenerationTimeSecs float64 `json:"generation_time_secs"`
	ModelUsed          string  `json:"model_used"`
}

// resolveConfig merges request overrides onto the server defaults.
func (h *generateHandler) resolveConfig(p *generationParams) model.GenerationConfig {
	cfg := h.defaults
	if p == nil {
		return cfg
	}
	if p.MaxNewTokens != nil {
		cfg.MaxNewTokens = *p.MaxNewTokens
	}
	if p.Temperature != nil {
		cfg.Temperature = *p.Temperature
	}
	if p.TopP != nil {
		cfg.TopP = *p.TopP
	}
	if p.Seed != nil {
		cfg.Seed = *p.Seed
	}
	return cfg
}

// decode parses and validates the request body.
// Returns false after writing an error response.
func (h *generateHandler) decode(w http.ResponseWriter, r *http.Request) (pipeline.Request, bool) {
	var req generateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return pipeline.Request{}, false
	}
	if req.Prompt == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "prompt is required", h.logger)
		return pipeline.Request{}, false
	}

	return pipeline.Request{
		ModelName: req.ModelName,
		Prompt:    req.Prompt,
		SessionID: req.SessionID,
		Config:    h.resolveConfig(req.Config),
	}, true
}

// generate handles the synchronous endpoint.
func (h *generateHandler) generate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, sessionID, err := h.pipeline.Generate(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Text:               result.Text,
		SessionID:          sessionID,
		TokensGenerated:    result.TokensGenerated,
		GenerationTimeSecs: result.GenerationTimeSecs,
		ModelUsed:          result.ModelUsed,
	}, h.logger)
}

// stream handles the SSE endpoint. Each token is a plain data frame; the
// stream finishes with a session control frame and a [DONE] marker, or an
// error event if the engine fails mid-generation.
func (h *generateHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	ctx := r.Context()

	// Validation errors (unknown model, failed switch) surface here,
	// before any SSE bytes are written, so they can still be plain JSON.
	st, err := h.pipeline.Stream(ctx, req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	setSSEHeaders(w)
	h.logger.Debug("SSE stream started", "session_id", st.SessionID)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	failed := false
	disconnected := false
	done := ctx.Done()

loop:
	for {
		select {
		case chunk, open := <-st.Chunks:
			if !open {
				break loop
			}
			if disconnected {
				continue // keep draining so the worker can exit
			}

			if chunk.FinishReason == model.FinishError {
				failed = true
				_ = writeEvent(w, flusher, EventError, ErrorPayload{
					Code:    "generation_failed",
					Message: chunk.TokenText,
				})
				continue
			}

			if chunk.TokenText != "" {
				if err := writeData(w, flusher, TokenPayload{Content: chunk.TokenText}); err != nil {
					h.logger.Info("client disconnected mid-stream", "session_id", st.SessionID)
					disconnected = true
				}
			}

		case <-ticker.C:
			if !disconnected {
				if err := writeKeepAlive(w, flusher); err != nil {
					disconnected = true
				}
			}

		case <-done:
			disconnected = true
			// Stop selecting on the closed channel; from here the loop
			// blocks on Chunks until the worker notices and exits.
			done = nil
		}
	}

	// The assembled response is persisted before Chunks closes, so waiting
	// here only collects the engine error for logging.
	if err := st.Wait(); err != nil {
		h.logger.Warn("SSE stream failed", "session_id", st.SessionID, "error", err)
	}

	if failed || disconnected {
		return
	}

	_ = writeEvent(w, flusher, EventSession, SessionPayload{
		SessionID: st.SessionID,
		Type:      "session_info",
	})
	_ = writeDone(w, flusher)

	h.logger.Debug("SSE stream completed", "session_id", st.SessionID)
}
