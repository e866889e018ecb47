// Package filecache holds the text of parsed uploads until a generation
// request consumes it.
//
// Entries are keyed by generated file id and are consumed all-at-once:
// DrainAsContext formats and removes every entry in one call, so uploaded
// context is injected into at most one generation.
package filecache

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/koopa0/llamagate/internal/parser"
)

// ErrUnsupportedType indicates an upload whose extension is not on the
// allow-list. Raised before any parsing happens.
var ErrUnsupportedType = errors.New("unsupported file type")

// Entry is one parsed upload.
type Entry struct {
	Filename string
	Ext      string
	Content  string
}

// Store is the shared upload cache. Safe for concurrent use; the
// reader/writer lock covers single map operations only, never a parse.
// Like the session store it has no TTL: entries live until drained or
// removed.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry

	parser parser.Parser
	logger *slog.Logger
}

// NewStore creates an empty Store parsing uploads with p.
func NewStore(p parser.Parser, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		entries: make(map[string]Entry),
		parser:  p,
		logger:  logger,
	}
}

// Ext returns the lowercased extension of a filename, without the dot.
func Ext(filename string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
}

// Upload validates the extension, parses the bytes and stores the result
// under a fresh id. The allow-list check runs before parsing so disallowed
// types are rejected cheaply. Returns the generated file id.
func (st *Store) Upload(filename string, data []byte) (string, error) {
	ext := Ext(filename)
	if _, ok := parser.FromExtension(ext); !ok {
		return "", fmt.Errorf("%w: .%s", ErrUnsupportedType, ext)
	}

	content, err := st.parser.Parse(ext, data)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	st.mu.Lock()
	st.entries[id] = Entry{Filename: filename, Ext: ext, Content: content}
	st.mu.Unlock()

	st.logger.Debug("cached upload", "file_id", id, "filename", filename, "bytes", len(data))
	return id, nil
}

// Remove deletes one entry. Returns false when the id is unknown; callers
// interpret that as "not found".
func (st *Store) Remove(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.entries[id]; !ok {
		return false
	}
	delete(st.entries, id)
	return true
}

// Len reports the number of cached entries.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}
