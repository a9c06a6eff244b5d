package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/naka-gawa/github-metrics/internal/domain"
)

const historyTable = "traffic_history"

// SQLiteStore keeps the history in a single SQLite table, one row per day.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil) // Compile-time check

// NewSQLiteStore opens (and if needed creates) the database at path. The parent
// directory is created through fs, which must be backed by the real disk since
// the driver opens path directly.
func NewSQLiteStore(ctx context.Context, fs afero.Fs, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database at %q: %w", path, err)
	}
	// Limit SQLite to a single open connection to avoid "database is locked" errors
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to SQLite database at %q: %w", path, err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			day    TEXT PRIMARY KEY,
			clones INTEGER,
			views  INTEGER
		)`, historyTable)
	if _, err := db.ExecContext(ctx, query); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", historyTable, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads every row of the history table.
func (s *SQLiteStore) Load(ctx context.Context) (domain.HistorySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT day, clones, views FROM %s ORDER BY day", historyTable))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := domain.HistorySnapshot{}
	for rows.Next() {
		var day string
		var clones, views sql.NullInt64
		if err := rows.Scan(&day, &clones, &views); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		var rec domain.DailyTrafficRecord
		if clones.Valid {
			rec.Clones = intPtr(int(clones.Int64))
		}
		if views.Valid {
			rec.Views = intPtr(int(views.Int64))
		}
		snapshot[day] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return snapshot, nil
}

// Save replaces the table contents with snapshot in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snapshot domain.HistorySnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", historyTable)); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (day, clones, views) VALUES (?, ?, ?)", historyTable))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for day, rec := range snapshot {
		if _, err := stmt.ExecContext(ctx, day, nullInt(rec.Clones), nullInt(rec.Views)); err != nil {
			return fmt.Errorf("failed to insert history row %s: %w", day, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
