package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// FileStore keeps the history as one JSON document sorted by date.
type FileStore struct {
	fs   afero.Fs
	path string
}

var _ Store = (*FileStore)(nil) // Compile-time check

// NewFileStore creates a FileStore backed by the file at path on fs.
func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: path}
}

// Load reads the history file. A missing file yields an empty snapshot.
func (s *FileStore) Load(_ context.Context) (domain.HistorySnapshot, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.HistorySnapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read history file %q: %w", s.path, err)
	}

	snapshot := domain.HistorySnapshot{}
	if len(data) == 0 {
		return snapshot, nil
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse history file %q: %w", s.path, err)
	}
	return snapshot, nil
}

// Save rewrites the whole history file. The document is written to a
// temporary file first and renamed over the old one.
func (s *FileStore) Save(_ context.Context, snapshot domain.HistorySnapshot) error {
	if snapshot == nil {
		snapshot = domain.HistorySnapshot{}
	}
	// encoding/json writes map keys in sorted order.
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	data = append(data, '\n')

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file %q: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace history file %q: %w", s.path, err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
