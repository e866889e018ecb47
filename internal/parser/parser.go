// Package parser extracts plain text from uploaded documents.
//
// Each supported file family has one extraction strategy; the Registry
// routes an extension to its strategy. The gateway core only depends on
// the Parser interface, so tests substitute fakes freely.
package parser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported indicates an extension no strategy covers.
var ErrUnsupported = errors.New("unsupported file type")

// Parser turns raw upload bytes into extracted text.
type Parser interface {
	Parse(ext string, data []byte) (string, error)
}

// Family groups extensions by extraction strategy.
type Family int

const (
	FamilyText Family = iota
	FamilyPDF
	FamilyWord
	FamilyExcel
	FamilyPowerPoint
)

// textExts is the broad plain-text set: documents, source code, config.
var textExts = map[string]bool{
	"txt": true, "md": true, "csv": true, "log": true,
	"json": true, "yaml": true, "yml": true, "toml": true,
	"ini": true, "cfg": true, "conf": true, "env": true,
	"go": true, "py": true, "rs": true, "js": true, "ts": true,
	"c": true, "cpp": true, "h": true, "hpp": true, "java": true,
	"sh": true, "sql": true, "html": true, "css": true, "xml": true,
}

// FromExtension resolves an extension (without dot, any case) to its
// family. The second return reports whether the extension is allowed.
func FromExtension(ext string) (Family, bool) {
	switch strings.ToLower(ext) {
	case "pdf":
		return FamilyPDF, true
	case "docx":
		return FamilyWord, true
	case "xlsx":
		return FamilyExcel, true
	case "pptx":
		return FamilyPowerPoint, true
	}
	if textExts[strings.ToLower(ext)] {
		return FamilyText, true
	}
	return 0, false
}

// Strategy extracts text for one file family.
type Strategy func(data []byte) (string, error)

// Registry routes extensions to extraction strategies.
type Registry struct {
	strategies map[Family]Strategy
}

// NewRegistry returns a Registry with the default strategy per family.
func NewRegistry() *Registry {
	return &Registry{strategies: map[Family]Strategy{
		FamilyText:       parseText,
		FamilyPDF:        parsePDF,
		FamilyWord:       parseDOCX,
		FamilyExcel:      parseXLSX,
		FamilyPowerPoint: parsePPTX,
	}}
}

// Parse extracts text from data according to the extension's family.
func (r *Registry) Parse(ext string, data []byte) (string, error) {
	family, ok := FromExtension(ext)
	if !ok {
		return "", fmt.Errorf("%w: .%s", ErrUnsupported, ext)
	}
	strategy, ok := r.strategies[family]
	if !ok {
		return "", fmt.Errorf("%w: .%s", ErrUnsupported, ext)
	}
	text, err := strategy(data)
	if err != nil {
		return "", fmt.Errorf("parsing .%s upload: %w", ext, err)
	}
	return text, nil
}
