// Package series turns raw event timestamps and daily counts into
// date-aligned, zero-filled series over a window of days.
package series

import (
	"time"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// Today returns midnight UTC of the calendar day containing now.
func Today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateWindow returns n consecutive UTC dates in ascending order, ending today.
func DateWindow(n int, now time.Time) []time.Time {
	if n <= 0 {
		return []time.Time{}
	}
	today := Today(now)
	window := make([]time.Time, n)
	for i := range window {
		window[i] = today.AddDate(0, 0, i-(n-1))
	}
	return window
}

// GroupByDay counts events per UTC calendar date. Events whose timestamp is
// missing or unparsable are skipped; their number is returned as skipped.
func GroupByDay(events []domain.TimestampedEvent) (counts map[string]int, skipped int) {
	counts = make(map[string]int)
	for _, e := range events {
		day, ok := domain.ParseDay(e.Timestamp)
		if !ok {
			skipped++
			continue
		}
		counts[day]++
	}
	return counts, skipped
}

// AlignToWindow looks up every window date in counts, defaulting to 0.
// The result has exactly len(window) points in window order.
func AlignToWindow(label string, window []time.Time, counts map[string]int) domain.WindowSeries {
	points := make([]domain.DayCount, len(window))
	for i, day := range window {
		points[i] = domain.DayCount{Date: day, Count: counts[day.Format(domain.DateLayout)]}
	}
	return domain.WindowSeries{Label: label, Points: points}
}

// Cumulative returns the running total of s.
func Cumulative(label string, s domain.WindowSeries) domain.WindowSeries {
	points := make([]domain.DayCount, len(s.Points))
	total := 0
	for i, p := range s.Points {
		total += p.Count
		points[i] = domain.DayCount{Date: p.Date, Count: total}
	}
	return domain.WindowSeries{Label: label, Points: points}
}
