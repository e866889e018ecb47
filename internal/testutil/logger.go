package testutil

import (
	"log/slog"
)

// DiscardLogger returns a slog.Logger that discards all output. Test
// fixtures use it wherever a component wants a logger injected.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
