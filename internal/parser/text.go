package parser

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var errNotUTF8 = errors.New("content is not valid UTF-8 text")

// parseText accepts the bytes as-is after a UTF-8 sanity check, stripping a
// BOM and normalizing CRLF line endings.
func parseText(data []byte) (string, error) {
	s := strings.TrimPrefix(string(data), "\uFEFF")
	if !utf8.ValidString(s) {
		return "", errNotUTF8
	}
	return strings.ReplaceAll(s, "\r\n", "\n"), nil
}
