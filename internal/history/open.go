package history

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/naka-gawa/github-metrics/internal/config"
)

// Open returns the Store selected by the configured backend.
func Open(ctx context.Context, cfg config.Config, fs afero.Fs) (Store, error) {
	switch cfg.HistoryBackend {
	case config.JSONBackend:
		return NewFileStore(fs, cfg.HistoryPath), nil
	case config.SQLiteBackend:
		return NewSQLiteStore(ctx, fs, cfg.HistoryPath)
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.HistoryBackend)
	}
}
