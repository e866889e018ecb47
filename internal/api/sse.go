package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SSE event types used on the streaming endpoint. Token frames are plain
// data frames without an event name, matching the OpenAI-style wire shape
// most SSE clients already parse.
const (
	EventSession = "session" // session metadata, sent after the last token
	EventError   = "error"   // generation failed mid-stream
)

// doneMarker is the terminal data frame of a successful stream.
const doneMarker = "[DONE]"

// TokenPayload is the SSE data payload for one streamed token.
type TokenPayload struct {
	Content string `json:"content"`
}

// SessionPayload is the SSE data payload of the session control frame.
type SessionPayload struct {
	SessionID string `json:"session_id"`
	Type      string `json:"type"`
}

// ErrorPayload is the SSE data payload when an error occurs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// setSSEHeaders prepares the response for an event stream.
// X-Accel-Buffering disables proxy buffering in nginx.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// writeEvent writes a single named SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}

// writeData writes an unnamed SSE data frame with JSON-encoded payload.
func writeData[T any](w io.Writer, flusher http.Flusher, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return fmt.Errorf("write data: %w", err)
	}

	flusher.Flush()
	return nil
}

// writeDone writes the terminal [DONE] frame.
func writeDone(w io.Writer, flusher http.Flusher) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", doneMarker); err != nil {
		return fmt.Errorf("write done: %w", err)
	}
	flusher.Flush()
	return nil
}

// writeKeepAlive writes an SSE comment line. Comments are ignored by
// clients but keep idle proxies from closing the connection.
func writeKeepAlive(w io.Writer, flusher http.Flusher) error {
	if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
		return fmt.Errorf("write keep-alive: %w", err)
	}
	flusher.Flush()
	return nil
}
