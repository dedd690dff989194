package documents

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Epistemic-Technology/zotero/zotero"

	"github.com/Epistemic-Technology/research-library/models"
)

// DetectDocumentType determines the type of document from the raw data
// by checking magic bytes/headers
func DetectDocumentType(data []byte) string {
	if len(data) < 4 {
		return "unknown"
	}

	// PDF: starts with %PDF
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return "pdf"
	}

	// EPUB: ZIP container whose mimetype entry declares application/epub+zip
	if data[0] == 0x50 && data[1] == 0x4B && (data[2] == 0x03 || data[2] == 0x05 || data[2] == 0x07) {
		if isEPUB(data) {
			return "epub"
		}
		return "zip"
	}

	return "unknown"
}

func isEPUB(data []byte) bool {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		// Fall back to the uncompressed mimetype that EPUB requires up front
		return bytes.Contains(data[:min(len(data), 128)], []byte("application/epub+zip"))
	}
	for _, f := range reader.File {
		if f.Name != "mimetype" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return false
		}
		defer rc.Close()
		content, err := io.ReadAll(io.LimitReader(rc, 64))
		if err != nil {
			return false
		}
		return strings.TrimSpace(string(content)) == "application/epub+zip"
	}
	return false
}

// ContentHash returns the hex SHA-256 of the document bytes
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GetData retrieves document data from a source and detects its type
func GetData(ctx context.Context, sourceInfo models.SourceInfo, zoteroAPIKey, zoteroLibraryID string) (models.DocumentData, error) {
	var data []byte
	var err error

	switch {
	case sourceInfo.Path != "":
		data, err = os.ReadFile(sourceInfo.Path)
		if err != nil {
			return models.DocumentData{}, fmt.Errorf("failed to read %s: %w", sourceInfo.Path, err)
		}
	case sourceInfo.ZoteroID != "":
		data, err = GetFromZotero(ctx, sourceInfo.ZoteroID, zoteroAPIKey, zoteroLibraryID)
		if err != nil {
			return models.DocumentData{}, err
		}
	case sourceInfo.URL != "":
		data, err = GetFromURL(ctx, sourceInfo.URL)
		if err != nil {
			return models.DocumentData{}, err
		}
	default:
		return models.DocumentData{}, errors.New("no data provided")
	}

	if len(data) == 0 {
		return models.DocumentData{}, errors.New("no data retrieved")
	}

	return models.DocumentData{
		Data: data,
		Type: DetectDocumentType(data),
	}, nil
}

// GetFromURL fetches document data from a URL
func GetFromURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// GetFromZotero fetches an attachment file from a Zotero library
func GetFromZotero(ctx context.Context, zoteroID string, apiKey string, libraryID string) ([]byte, error) {
	if apiKey == "" || libraryID == "" {
		return nil, errors.New("ZOTERO_API_KEY and ZOTERO_LIBRARY_ID are required for Zotero sources")
	}
	client := zotero.NewClient(libraryID, zotero.LibraryTypeUser, zotero.WithAPIKey(apiKey))
	data, err := client.File(ctx, zoteroID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Zotero attachment %s: %w", zoteroID, err)
	}
	return data, nil
}

// Materialized is document data written to a scratch file
type Materialized struct {
	Path string
	dir  string
}

// Cleanup removes the scratch file
func (m *Materialized) Cleanup() {
	if m != nil && m.dir != "" {
		os.RemoveAll(m.dir)
	}
}

// Materialize writes document bytes to a temporary file named after the document type
func Materialize(doc models.DocumentData, tempDir string) (*Materialized, error) {
	dir, err := os.MkdirTemp(tempDir, "ingest-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	ext := doc.Type
	if ext == "" || ext == "unknown" {
		ext = "bin"
	}
	m := &Materialized{Path: filepath.Join(dir, "document."+ext), dir: dir}
	if err := os.WriteFile(m.Path, doc.Data, 0600); err != nil {
		m.Cleanup()
		return nil, fmt.Errorf("failed to write scratch file: %w", err)
	}
	return m, nil
}
