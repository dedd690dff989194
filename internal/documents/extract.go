package documents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/Epistemic-Technology/research-library/internal/logger"
)

// Extractor reads the physical pages of a PDF on disk
type Extractor interface {
	// PageCount returns the number of physical pages
	PageCount(ctx context.Context, path string) (int, error)
	// PageText returns the raw text of one 1-based page
	PageText(ctx context.Context, path string, page int) (string, error)
}

// NewExtractor returns the extractor backend named in the configuration
func NewExtractor(backend string) (Extractor, error) {
	switch strings.ToLower(backend) {
	case "", "poppler":
		return &PopplerExtractor{}, nil
	case "fitz", "mupdf":
		return &FitzExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown extractor backend: %s (expected 'poppler' or 'fitz')", backend)
	}
}

// PopplerExtractor shells out to poppler-utils
type PopplerExtractor struct {
	// PdfInfo and PdfToText override the binary names
	PdfInfo   string
	PdfToText string
}

var pagesLine = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)

// PageCount parses pdfinfo output and falls back to pdfcpu when pdfinfo is unavailable
func (e *PopplerExtractor) PageCount(ctx context.Context, path string) (int, error) {
	bin := e.PdfInfo
	if bin == "" {
		bin = "pdfinfo"
	}
	out, err := exec.CommandContext(ctx, bin, path).Output()
	if err == nil {
		if n := parsePdfInfoPages(string(out)); n > 0 {
			return n, nil
		}
	}

	count, cpuErr := api.PageCountFile(path)
	if cpuErr != nil {
		if err != nil {
			return 0, fmt.Errorf("failed to read page count: %w", errors.Join(err, cpuErr))
		}
		return 0, fmt.Errorf("failed to read page count: %w", cpuErr)
	}
	return count, nil
}

func parsePdfInfoPages(output string) int {
	m := pagesLine.FindStringSubmatch(output)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// PageText runs pdftotext for a single page into a scratch file that is always removed
func (e *PopplerExtractor) PageText(ctx context.Context, path string, page int) (string, error) {
	bin := e.PdfToText
	if bin == "" {
		bin = "pdftotext"
	}

	tmp, err := os.CreateTemp("", "pg_*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	p := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, bin, "-layout", "-enc", "UTF-8", "-f", p, "-l", p, path, tmpPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftotext failed on page %d: %w: %s", page, err, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to read page %d text: %w", page, err)
	}
	return string(data), nil
}

// ExtractPages reads every page of the PDF. Pages that fail to extract are
// logged and kept as empty strings; only a missing page count is fatal.
func ExtractPages(ctx context.Context, ex Extractor, path string, log logger.Logger) (int, map[int]string, error) {
	count, err := ex.PageCount(ctx, path)
	if err != nil {
		return 0, nil, fmt.Errorf("could not read page count: %w", err)
	}
	if count < 1 {
		return 0, nil, errors.New("could not read page count")
	}

	pages := make(map[int]string, count)
	for p := 1; p <= count; p++ {
		text, err := ex.PageText(ctx, path, p)
		if err != nil {
			log.Warn("Page %d extraction failed: %v", p, err)
			text = ""
		}
		pages[p] = NormalizeWhitespace(text)
	}
	return count, pages, nil
}

var (
	horizontalRun    = regexp.MustCompile(`[ \t]+`)
	trailingSpace    = regexp.MustCompile(`[ \t]*\n`)
	excessiveNewline = regexp.MustCompile(`\n{4,}`)
	anySpace         = regexp.MustCompile(`\s+`)
)

// NormalizeWhitespace collapses horizontal runs, strips trailing spaces and
// caps blank-line runs
func NormalizeWhitespace(s string) string {
	s = horizontalRun.ReplaceAllString(s, " ")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = excessiveNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Snippet flattens whitespace and cuts s to n runes, appending an ellipsis when
// cut. An empty input returns empty.
func Snippet(s string, n int) string {
	s = strings.TrimSpace(anySpace.ReplaceAllString(s, " "))
	if s == "" {
		return ""
	}
	if n > 0 && utf8.RuneCountInString(s) > n {
		return string([]rune(s)[:n]) + "…"
	}
	return s
}
