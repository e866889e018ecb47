package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/koopa0/llamagate/internal/dispatch"
	"github.com/koopa0/llamagate/internal/filecache"
	"github.com/koopa0/llamagate/internal/model"
	"github.com/koopa0/llamagate/internal/pipeline"
	"github.com/koopa0/llamagate/internal/session"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger         *slog.Logger
	Pipeline       *pipeline.Pipeline     // Required
	Dispatcher     *dispatch.Dispatcher   // Required
	SessionStore   *session.Store         // Required
	FileStore      *filecache.Store       // Required
	SessionCfg     session.Config         // Trim limit and system prompt for synced sessions
	GenDefaults    model.GenerationConfig // Sampling defaults for requests that omit them
	MaxUploadBytes int64                  // 0 = 10MB
	KeepAlive      time.Duration          // SSE keep-alive interval (0 = 15s)
	CORSOrigins    []string               // Allowed origins for CORS
	TrustProxy     bool                   // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst      int                    // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON/SSE HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Pipeline == nil || cfg.Dispatcher == nil || cfg.SessionStore == nil || cfg.FileStore == nil {
		return nil, errors.New("pipeline, dispatcher, session store and file store are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	if cfg.SessionCfg == (session.Config{}) {
		cfg.SessionCfg = session.DefaultConfig()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	gh := &generateHandler{
		pipeline:  cfg.Pipeline,
		defaults:  cfg.GenDefaults,
		keepAlive: keepAlive,
		logger:    logger,
	}
	fh := &filesHandler{files: cfg.FileStore, maxBytes: maxUpload, logger: logger}
	sh := &sessionHandler{sessions: cfg.SessionStore, sessionCfg: cfg.SessionCfg, logger: logger}
	mh := &modelsHandler{dispatcher: cfg.Dispatcher, logger: logger}

	mux := http.NewServeMux()

	// Generation
	mux.HandleFunc("POST /generate", gh.generate)
	mux.HandleFunc("POST /generate/stream", gh.stream)

	// Document cache
	mux.HandleFunc("POST /upload", fh.upload)
	mux.HandleFunc("DELETE /files/{file_id}", fh.remove)

	// Sessions
	mux.HandleFunc("GET /sessions/{session_id}", sh.get)
	mux.HandleFunc("DELETE /sessions/{session_id}", sh.remove)
	mux.HandleFunc("DELETE /sessions/{session_id}/messages", sh.clear)
	mux.HandleFunc("POST /sessions/sync", sh.sync)

	// Models
	mux.HandleFunc("GET /models", mh.list)
	mux.HandleFunc("POST /models/switch", mh.switchModel)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to keep the health probe out of the rate limiter.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", mh.health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
