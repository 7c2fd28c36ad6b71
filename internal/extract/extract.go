// Package extract turns raw source bytes (HTML, PDF, DOCX, XLSX, plain text)
// into one normalized text blob per source.
//
// Dispatch is a switch over the content kind; each variant of Input carries
// only the fields relevant to its kind. An empty extraction result is an
// error: the caller must fail the whole ingestion rather than commit a
// partial source.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind identifies the content type of a source.
type Kind string

// Supported source kinds.
const (
	KindWeb  Kind = "web"
	KindPDF  Kind = "pdf"
	KindDocx Kind = "docx"
	KindXlsx Kind = "xlsx"
	KindText Kind = "text"
)

var (
	// ErrEmptyContent indicates extraction produced no usable text.
	ErrEmptyContent = errors.New("no text content extracted")

	// ErrUnsupportedKind indicates the content kind has no extractor.
	ErrUnsupportedKind = errors.New("unsupported content kind")
)

// Input is a tagged union over the content kind. Web sources carry a URL
// (fetched by the crawler, not here); uploaded files carry Filename and Data;
// raw text carries Title and Text.
type Input struct {
	Kind     Kind
	Filename string
	Data     []byte
	Title    string
	Text     string
}

// Valid reports whether k names a supported kind.
func (k Kind) Valid() bool {
	switch k {
	case KindWeb, KindPDF, KindDocx, KindXlsx, KindText:
		return true
	}
	return false
}

// KindForFilename derives the content kind from a filename extension.
func KindForFilename(name string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF, nil
	case ".docx":
		return KindDocx, nil
	case ".xlsx":
		return KindXlsx, nil
	case ".txt", ".md", ".markdown":
		return KindText, nil
	default:
		return "", fmt.Errorf("%w: no extractor for %q", ErrUnsupportedKind, name)
	}
}

// Extract produces the normalized text for an uploaded or raw-text input.
// Web content is extracted by the crawler during fetching, not here.
func Extract(in Input) (string, error) {
	var (
		text string
		err  error
	)

	switch in.Kind {
	case KindPDF:
		text, err = pdfText(in.Data)
	case KindDocx:
		text, err = docxText(in.Data)
	case KindXlsx:
		text, err = xlsxText(in.Data)
	case KindText:
		// Raw snippets arrive in Text, uploaded .txt/.md files in Data.
		text = in.Text
		if text == "" {
			text = string(in.Data)
		}
	case KindWeb:
		return "", fmt.Errorf("%w: web content is extracted by the crawler", ErrUnsupportedKind)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, in.Kind)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}
