package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/kilianp07/porttrack/core/model"
	"github.com/kilianp07/porttrack/core/tracker"
)

// FileStore keeps the document in a JSON file. Saves write a temporary file
// and rename it over the previous one so readers never see a partial write.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore ensures the parent directory of path exists.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Load reads the document. A missing file yields tracker.ErrNoDocument.
func (s *FileStore) Load(_ context.Context) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Document{}, tracker.ErrNoDocument
	}
	if err != nil {
		return model.Document{}, err
	}
	var doc model.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return model.Document{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return doc, nil
}

// Save replaces the stored document.
func (s *FileStore) Save(_ context.Context, doc model.Document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) Close() error { return nil }
