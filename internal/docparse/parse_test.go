package docparse

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

func TestParseTextAndMarkdown(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "voice.txt")
	if err := os.WriteFile(txt, []byte("Bold, witty, community-first."), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Parse(txt)
	if err != nil {
		t.Fatalf("Parse(.txt): %v", err)
	}
	if got != "Bold, witty, community-first." {
		t.Errorf("Parse(.txt) = %q", got)
	}

	md := filepath.Join(dir, "pillars.md")
	if err := os.WriteFile(md, []byte("# Pillars\n- memes"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = Parse(md)
	if err != nil {
		t.Fatalf("Parse(.md): %v", err)
	}
	if !strings.Contains(got, "Pillars") {
		t.Errorf("Parse(.md) = %q, want content containing Pillars", got)
	}
}

func TestParseUnsupportedExtension(t *testing.T) {
	_, err := Parse("slides.pptx")
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseDOCX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brand.docx")
	writeDOCX(t, path, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Our mission is memetic</w:t></w:r><w:r><w:t> financial freedom.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	got, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse(.docx): %v", err)
	}
	if !strings.Contains(got, "Our mission is memetic financial freedom.") {
		t.Errorf("docx text = %q, missing joined first paragraph", got)
	}
	if !strings.Contains(got, "Second paragraph.") {
		t.Errorf("docx text = %q, missing second paragraph", got)
	}
}

func TestParseDirSkipsBadFilesAndConcatenates(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "one.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nested", "two.md"), []byte("beta"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A corrupt DOCX should be skipped, not fail the scan.
	if err := os.WriteFile(filepath.Join(dir, "broken.docx"), []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Unsupported files are ignored entirely.
	if err := os.WriteFile(filepath.Join(dir, "photo.png"), []byte{0x89}, 0o644); err != nil {
		t.Fatal(err)
	}

	text, count, err := ParseDir(dir)
	if err != nil {
		t.Fatalf("ParseDir: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	for _, want := range []string{"=== one.txt ===", "alpha", "=== two.md ===", "beta"} {
		if !strings.Contains(text, want) {
			t.Errorf("concatenated text missing %q", want)
		}
	}
}

func TestParseDirFailsWhenNothingParses(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.docx"), []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := ParseDir(dir); err == nil {
		t.Error("expected error when zero documents parse")
	}
}

func TestParseDirMissingDirectory(t *testing.T) {
	if _, _, err := ParseDir(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for missing directory")
	}
}

// writeDOCX builds a minimal DOCX container holding the given document.xml.
func writeDOCX(t *testing.T, path, documentXML string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}
