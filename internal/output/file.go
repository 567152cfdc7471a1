package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/klauspost/compress/zstd"

	"tracepayload/internal/models"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileExporter writes assembled payloads as JSON documents into a directory.
type FileExporter struct {
	dir      string
	compress bool
}

// NewFileExporter creates an exporter writing into dir, zstd-compressed when compress is set.
func NewFileExporter(dir string, compress bool) *FileExporter {
	return &FileExporter{dir: dir, compress: compress}
}

// FileName returns the export file name for transactionID.
func FileName(transactionID string, compressed bool) string {
	name := "transaction_payload_" + unsafeFileChars.ReplaceAllString(transactionID, "_") + ".json"
	if compressed {
		name += ".zst"
	}
	return name
}

// Export writes payload to the export directory and returns the file path.
func (e *FileExporter) Export(payload *models.AssembledPayload, transactionID string) (string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(e.dir, FileName(transactionID, e.compress))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}

	if err := e.write(f, payload); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}

	return path, nil
}

func (e *FileExporter) write(w io.Writer, payload *models.AssembledPayload) error {
	if !e.compress {
		return WriteJSON(w, payload, true)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := WriteJSON(zw, payload, true); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush zstd stream: %w", err)
	}
	return nil
}

// WriteJSON writes payload as JSON. Exported files are indented; indenting also
// reformats the embedded fragments, so callers needing them byte for byte write compact.
func WriteJSON(w io.Writer, payload *models.AssembledPayload, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	return nil
}

// ReadFile loads an exported payload, decompressing .zst files.
func ReadFile(path string) (*models.AssembledPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".zst" {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var payload models.AssembledPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode export file: %w", err)
	}
	return &payload, nil
}
