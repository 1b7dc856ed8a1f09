// Package docparse extracts plain text from business documents. Plain text
// and markdown are read directly, PDFs go through a pure-Go extractor, and
// DOCX files are unpacked from their zip container and stripped of XML.
package docparse

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// ErrUnsupportedType is returned for file extensions no parser handles.
var ErrUnsupportedType = errors.New("unsupported document type")

// SupportedExtensions lists the document types Parse accepts.
var SupportedExtensions = []string{".txt", ".md", ".pdf", ".docx"}

// Parse extracts text from a single document, dispatching on extension.
func Parse(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	case ".pdf":
		return parsePDF(path)
	case ".docx":
		return parseDOCX(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
}

// ParseDir recursively parses every supported document under root and returns
// the concatenated text, each document introduced by a "=== name ===" header.
// A single unparseable file is logged and skipped; zero parsed files is an
// error. The returned count is the number of successfully parsed documents.
func ParseDir(root string) (string, int, error) {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return "", 0, fmt.Errorf("documents directory not found: %s", root)
	}

	var sections []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isSupported(path) {
			return nil
		}

		text, perr := Parse(path)
		if perr != nil {
			log.Warn().Str("file", d.Name()).Err(perr).Msg("Skipping unparseable document")
			return nil
		}

		log.Debug().Str("file", d.Name()).Int("chars", len(text)).Msg("Parsed document")
		sections = append(sections, fmt.Sprintf("=== %s ===\n%s", d.Name(), text))
		return nil
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	if len(sections) == 0 {
		return "", 0, fmt.Errorf("no parseable documents found in %s", root)
	}
	return strings.Join(sections, "\n\n"), len(sections), nil
}

func isSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

func parsePDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract text from PDF %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read PDF text from %s: %w", path, err)
	}
	return buf.String(), nil
}

// parseDOCX reads word/document.xml out of the DOCX zip container and
// collects the text runs, inserting a blank line between paragraphs.
func parseDOCX(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX %s: %w", path, err)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml in %s: %w", path, err)
		}
		defer rc.Close()
		return extractDocumentText(rc)
	}
	return "", fmt.Errorf("no word/document.xml in %s", path)
}

func extractDocumentText(r interface{ Read([]byte) (int, error) }) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inTextRun  bool
	)
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inTextRun = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inTextRun = false
			case "p":
				if s := strings.TrimSpace(current.String()); s != "" {
					paragraphs = append(paragraphs, s)
				}
				current.Reset()
			}
		case xml.CharData:
			if inTextRun {
				current.Write(t)
			}
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		paragraphs = append(paragraphs, s)
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
