package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pagecraft/internal/model"
)

// MaxImportBytes caps documents read by ImportJSON.
const MaxImportBytes = 64 << 20

// ExportJSON writes doc as indented JSON, atomically.
func ExportJSON(path string, doc *model.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return atomicWriteFile(dir, filepath.Base(path)+".*.tmp", path, b, 0o644)
}

// ImportJSON reads a document written by ExportJSON.
func ImportJSON(path string) (*model.Document, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.Size() > MaxImportBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, MaxImportBytes)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc model.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Root.ID == "" {
		return nil, fmt.Errorf("%s: document has no root", path)
	}
	return &doc, nil
}
