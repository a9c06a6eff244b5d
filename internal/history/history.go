// Package history keeps the durable day-by-day traffic history that lets the
// dashboards look further back than the 14 days GitHub retains.
package history

import (
	"context"
	"time"

	"github.com/naka-gawa/github-metrics/internal/domain"
	"github.com/naka-gawa/github-metrics/internal/series"
)

// Store loads and saves the whole traffic history.
type Store interface {
	Load(ctx context.Context) (domain.HistorySnapshot, error)
	Save(ctx context.Context, snapshot domain.HistorySnapshot) error
	Close() error
}

// Merge applies a freshly fetched traffic window to a copy of snapshot.
// Fetched values overwrite stored ones for the same date and field; all
// other dates are left as they were.
func Merge(snapshot domain.HistorySnapshot, fresh domain.TrafficWindow) domain.HistorySnapshot {
	merged := make(domain.HistorySnapshot, len(snapshot)+len(fresh.Clones))
	for day, rec := range snapshot {
		merged[day] = rec
	}
	for day, count := range fresh.Clones {
		rec := merged[day]
		rec.Clones = intPtr(count)
		merged[day] = rec
	}
	for day, count := range fresh.Views {
		rec := merged[day]
		rec.Views = intPtr(count)
		merged[day] = rec
	}
	return merged
}

// Prune returns a copy of snapshot without entries strictly older than
// today minus retentionDays. Keys that are not calendar dates are dropped too.
func Prune(snapshot domain.HistorySnapshot, retentionDays int, now time.Time) domain.HistorySnapshot {
	cutoff := series.Today(now).AddDate(0, 0, -retentionDays)
	pruned := make(domain.HistorySnapshot, len(snapshot))
	for day, rec := range snapshot {
		d, err := time.Parse(domain.DateLayout, day)
		if err != nil || d.Before(cutoff) {
			continue
		}
		pruned[day] = rec
	}
	return pruned
}

func intPtr(v int) *int {
	return &v
}
