// Package output renders crawl and fuzz reports.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer defines the interface for report writers.
type Writer interface {
	// WriteReport writes the complete report
	WriteReport(report *Report) error

	// Flush flushes any buffered output
	Flush() error

	// Close closes the writer
	Close() error
}

// Config holds output configuration.
type Config struct {
	Format   string
	Pretty   bool
	FilePath string
}

// Formats lists the supported output formats.
var Formats = []string{"json", "html"}

// NewWriter creates a new report writer for the configured format.
// An empty format means JSON.
func NewWriter(w io.Writer, config Config) (Writer, error) {
	switch strings.ToLower(config.Format) {
	case "", "json":
		return NewJSONWriter(w, config.Pretty), nil
	case "html":
		return NewHTMLWriter(w)
	default:
		return nil, fmt.Errorf("unsupported output format %q (supported: %s)", config.Format, strings.Join(Formats, ", "))
	}
}

// flushWriter flushes w when it supports it.
func flushWriter(w io.Writer) error {
	if flusher, ok := w.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// closeWriter closes w when it supports it.
func closeWriter(w io.Writer) error {
	if closer, ok := w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
