// Package export renders the audit trail for download as HTML, PDF or DOCX.
package export

import (
	"errors"
	"strings"
	"time"
)

type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ParseFormat accepts a case-insensitive format name. An empty name means PDF.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatHTML:
		return FormatHTML, nil
	case FormatDOCX:
		return FormatDOCX, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Request contains parameters for an audit export.
type Request struct {
	Format Format
	// Limit caps the number of most recent entries; <= 0 exports everything.
	Limit       int
	RequestedBy string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)

const defaultTimeout = 30 * time.Second
