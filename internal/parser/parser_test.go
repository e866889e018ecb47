package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func TestFromExtension(t *testing.T) {
	tests := []struct {
		ext     string
		family  Family
		allowed bool
	}{
		{"txt", FamilyText, true},
		{"md", FamilyText, true},
		{"go", FamilyText, true},
		{"PDF", FamilyPDF, true},
		{"docx", FamilyWord, true},
		{"xlsx", FamilyExcel, true},
		{"pptx", FamilyPowerPoint, true},
		{"exe", 0, false},
		{"", 0, false},
		{"doc", 0, false}, // legacy binary formats are not supported
	}

	for _, tt := range tests {
		family, ok := FromExtension(tt.ext)
		if ok != tt.allowed {
			t.Errorf("FromExtension(%q) allowed = %v, want %v", tt.ext, ok, tt.allowed)
			continue
		}
		if ok && family != tt.family {
			t.Errorf("FromExtension(%q) = %v, want %v", tt.ext, family, tt.family)
		}
	}
}

func TestParseText(t *testing.T) {
	r := NewRegistry()

	t.Run("normalizes line endings", func(t *testing.T) {
		got, err := r.Parse("txt", []byte("a\r\nb\r\nc"))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if got != "a\nb\nc" {
			t.Errorf("got %q, want %q", got, "a\nb\nc")
		}
	})

	t.Run("strips BOM", func(t *testing.T) {
		got, err := r.Parse("txt", []byte("\xef\xbb\xbfhello"))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if got != "hello" {
			t.Errorf("got %q, want %q", got, "hello")
		}
	})

	t.Run("rejects invalid UTF-8", func(t *testing.T) {
		if _, err := r.Parse("txt", []byte{0xff, 0xfe, 0x00}); err == nil {
			t.Error("expected error for invalid UTF-8")
		}
	})
}

func TestParseUnsupported(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Parse("exe", []byte("x")); !errors.Is(err, ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

// buildZip assembles an in-memory zip archive from part name/content pairs.
func buildZip(t *testing.T, parts map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating zip part %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing zip part %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func TestParseDOCX(t *testing.T) {
	r := NewRegistry()

	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t xml:space="preserve"> paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`

	got, err := r.Parse("docx", buildZip(t, map[string]string{"word/document.xml": doc}))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := "First paragraph\nSecond paragraph"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseDOCXMissingPart(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Parse("docx", buildZip(t, map[string]string{"other.xml": "<x/>"})); err == nil {
		t.Error("expected error for archive without word/document.xml")
	}
}

func TestParseDOCXNotAZip(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Parse("docx", []byte("plain text pretending")); err == nil {
		t.Error("expected error for non-zip payload")
	}
}

func TestParsePPTXOrdersSlides(t *testing.T) {
	r := NewRegistry()

	slide := func(text string) string {
		return `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody>
</p:sld>`
	}

	got, err := r.Parse("pptx", buildZip(t, map[string]string{
		"ppt/slides/slide2.xml": slide("second slide"),
		"ppt/slides/slide1.xml": slide("first slide"),
	}))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := "first slide\n\nsecond slide"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
