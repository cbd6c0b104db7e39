package rag

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"supportbot/internal/util"

	"github.com/ledongthuc/pdf"
)

// AllowedExtensions is the upload allow-list.
var AllowedExtensions = []string{".pdf", ".odf"}

var ErrNoExtractableText = errors.New("no extractable text found in document")

// Extractor pulls raw text out of an uploaded document blob.
type Extractor interface {
	Extract(filename string, data []byte) (string, error)
}

type DocumentExtractor struct{}

func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

// ValidateFilename checks the extension against the allow-list.
func ValidateFilename(filename string) error {
	name := strings.TrimSpace(filename)
	if name == "" {
		return &ValidationError{Field: "filename", Reason: "is required"}
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return &ValidationError{Field: "filename", Reason: fmt.Sprintf("extension %q not allowed (only %s)", ext, strings.Join(AllowedExtensions, ", "))}
}

func (e *DocumentExtractor) Extract(filename string, data []byte) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = extractPDF(data)
	case ".odf":
		text, err = extractOpenDocument(data)
	}
	if err != nil {
		return "", &ValidationError{Field: "file", Reason: err.Error()}
	}
	text = util.SanitizeText(text)
	if text == "" {
		return "", &ValidationError{Field: "file", Reason: ErrNoExtractableText.Error()}
	}
	return text, nil
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf package panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), nil
}

// extractOpenDocument reads content.xml out of an OpenDocument zip container
// and keeps the character data, one line per paragraph or heading.
func extractOpenDocument(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open odf container: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "content.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open content.xml: %w", err)
		}
		defer rc.Close()
		return parseOpenDocumentXML(rc)
	}
	return "", fmt.Errorf("odf container has no content.xml")
}

func parseOpenDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse content.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			if t.Name.Local == "s" || t.Name.Local == "tab" {
				b.WriteByte(' ')
			}
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "h" {
				b.WriteByte('\n')
			}
		}
	}
	return b.String(), nil
}
