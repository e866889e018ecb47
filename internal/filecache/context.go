package filecache

import (
	"fmt"
	"strings"

	"github.com/koopa0/llamagate/internal/parser"
)

// contextInstruction closes the composed file context so the model treats
// it as reference material rather than a prompt.
const contextInstruction = "Please use the file content above as context when answering the user's question."

// header returns the family-keyed header line for one entry. Document
// families get a distinct header; every other allowed extension gets the
// generic one.
func header(e Entry) string {
	family, _ := parser.FromExtension(e.Ext)
	switch family {
	case parser.FamilyPDF:
		return fmt.Sprintf("[PDF Document: %s]", e.Filename)
	case parser.FamilyWord:
		return fmt.Sprintf("[Word Document: %s]", e.Filename)
	case parser.FamilyExcel:
		return fmt.Sprintf("[Excel Spreadsheet: %s]", e.Filename)
	case parser.FamilyPowerPoint:
		return fmt.Sprintf("[PowerPoint Presentation: %s]", e.Filename)
	default:
		return fmt.Sprintf("File: %s", e.Filename)
	}
}

// DrainAsContext composes every cached entry into one context block and
// clears the cache. Returns "" and false when the cache is empty. This is
// at-most-once consumption: a second call right after the first returns
// nothing even if no generation happened in between.
func (st *Store) DrainAsContext() (string, bool) {
	st.mu.Lock()
	entries := st.entries
	if len(entries) == 0 {
		st.mu.Unlock()
		return "", false
	}
	st.entries = make(map[string]Entry)
	st.mu.Unlock()

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(header(e))
		b.WriteString("\n")
		b.WriteString(e.Content)
		b.WriteString("\n\n")
	}
	b.WriteString(contextInstruction)

	st.logger.Debug("drained file context", "files", len(entries))
	return b.String(), true
}
