package documents

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ConverterMissingError is returned when the external format converter is not installed
type ConverterMissingError struct {
	Tool string
}

func (e *ConverterMissingError) Error() string {
	return fmt.Sprintf("format converter '%s' not found; install Calibre to ingest EPUB files", e.Tool)
}

// EPUBConverter turns EPUB files into PDFs with Calibre's ebook-convert
type EPUBConverter struct {
	// Tool overrides the converter binary name
	Tool string
	// TempDir is the parent for conversion scratch directories
	TempDir string
}

// Converted is a PDF produced by a conversion. Cleanup removes it.
type Converted struct {
	Path string
	dir  string
}

// Cleanup removes the converted file and its scratch directory
func (c *Converted) Cleanup() {
	if c != nil && c.dir != "" {
		os.RemoveAll(c.dir)
	}
}

// Convert writes a PDF rendition of the EPUB at path into a fresh temp directory
func (c *EPUBConverter) Convert(ctx context.Context, path string) (*Converted, error) {
	tool := c.Tool
	if tool == "" {
		tool = "ebook-convert"
	}
	bin, err := exec.LookPath(tool)
	if err != nil {
		return nil, &ConverterMissingError{Tool: tool}
	}

	dir, err := os.MkdirTemp(c.TempDir, "epub-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create conversion directory: %w", err)
	}
	out := &Converted{Path: filepath.Join(dir, "converted.pdf"), dir: dir}

	cmd := exec.CommandContext(ctx, bin, path, out.Path)
	if output, err := cmd.CombinedOutput(); err != nil {
		out.Cleanup()
		return nil, fmt.Errorf("failed to convert EPUB: %w: %s", err, lastLine(string(output)))
	}
	if _, err := os.Stat(out.Path); err != nil {
		out.Cleanup()
		return nil, fmt.Errorf("converter produced no PDF: %w", err)
	}
	return out, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
