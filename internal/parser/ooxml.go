package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// OOXML documents (.docx, .pptx) are zip archives of XML parts. The
// strategies below walk the relevant part's token stream and collect the
// character data inside text runs (w:t for Word, a:t for PowerPoint),
// which is the whole visible text without any layout reconstruction.

// parseDOCX extracts paragraph text from word/document.xml.
func parseDOCX(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening docx archive: %w", err)
	}

	part, err := readZipPart(archive, "word/document.xml")
	if err != nil {
		return "", err
	}

	text, err := collectRuns(part, "t", map[string]string{"p": "\n", "br": "\n", "tab": "\t"})
	if err != nil {
		return "", fmt.Errorf("reading docx document part: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// parsePPTX extracts text runs from every slide part, in slide order, with
// a blank line between slides.
func parsePPTX(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pptx archive: %w", err)
	}

	var slides []string
	for _, f := range archive.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	sort.Strings(slides)

	var out []string
	for _, name := range slides {
		part, err := readZipPart(archive, name)
		if err != nil {
			return "", err
		}
		text, err := collectRuns(part, "t", map[string]string{"p": "\n"})
		if err != nil {
			return "", fmt.Errorf("reading slide %s: %w", name, err)
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n\n"), nil
}

func readZipPart(archive *zip.Reader, name string) ([]byte, error) {
	for _, f := range archive.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening part %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("reading part %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("archive has no part %s", name)
}

// collectRuns walks an XML token stream collecting character data inside
// elements with the given local name. closers maps element local names to
// separators emitted when that element ends (paragraph breaks, tabs).
func collectRuns(part []byte, runLocal string, closers map[string]string) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(part))

	var b strings.Builder
	inRun := 0
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decoding xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == runLocal {
				inRun++
			}
			// Self-closing break/tab elements surface as start+end pairs.
			if sep, ok := closers[t.Name.Local]; ok && t.Name.Local != "p" {
				b.WriteString(sep)
			}
		case xml.EndElement:
			if t.Name.Local == runLocal && inRun > 0 {
				inRun--
			}
			if t.Name.Local == "p" {
				if sep, ok := closers["p"]; ok {
					b.WriteString(sep)
				}
			}
		case xml.CharData:
			if inRun > 0 {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
