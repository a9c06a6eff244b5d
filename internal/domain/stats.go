// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"encoding/json"
	"time"
)

// DateLayout is the calendar-date layout used for history keys and report dates.
const DateLayout = "2006-01-02"

// DailyTrafficRecord holds the clone and view counts observed for one day.
// A nil field means the value was never observed and reads as zero.
type DailyTrafficRecord struct {
	Clones *int `json:"clones,omitempty"`
	Views  *int `json:"views,omitempty"`
}

// CloneCount returns the clone count, or 0 if it was never observed.
func (r DailyTrafficRecord) CloneCount() int {
	if r.Clones == nil {
		return 0
	}
	return *r.Clones
}

// ViewCount returns the view count, or 0 if it was never observed.
func (r DailyTrafficRecord) ViewCount() int {
	if r.Views == nil {
		return 0
	}
	return *r.Views
}

// HistorySnapshot maps an ISO calendar date to the traffic recorded for it.
// It is the only state that outlives a single run.
type HistorySnapshot map[string]DailyTrafficRecord

// Clones returns the clone counts keyed by date.
func (h HistorySnapshot) Clones() map[string]int {
	counts := make(map[string]int, len(h))
	for day, rec := range h {
		counts[day] = rec.CloneCount()
	}
	return counts
}

// Views returns the view counts keyed by date.
func (h HistorySnapshot) Views() map[string]int {
	counts := make(map[string]int, len(h))
	for day, rec := range h {
		counts[day] = rec.ViewCount()
	}
	return counts
}

// TrafficWindow is the freshly fetched traffic, one summed count per observed date.
type TrafficWindow struct {
	Clones map[string]int
	Views  map[string]int
}

// TimestampedEvent is a single star, fork or commit. The timestamp is kept
// raw so that an unparsable value only drops this event.
type TimestampedEvent struct {
	Timestamp string
	Author    string
}

// DayCount is one point of a WindowSeries.
type DayCount struct {
	Date  time.Time
	Count int
}

// MarshalJSON renders the date as YYYY-MM-DD.
func (d DayCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date  string `json:"date"`
		Count int    `json:"count"`
	}{d.Date.Format(DateLayout), d.Count})
}

// WindowSeries is a gap-free sequence of daily counts over a window.
type WindowSeries struct {
	Label  string     `json:"label"`
	Points []DayCount `json:"points"`
}

// Dates returns the dates of the series in order.
func (s WindowSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
	}
	return dates
}

// Counts returns the counts of the series in order.
func (s WindowSeries) Counts() []int {
	counts := make([]int, len(s.Points))
	for i, p := range s.Points {
		counts[i] = p.Count
	}
	return counts
}

// SeriesSummary holds descriptive statistics of one series.
type SeriesSummary struct {
	Label  string  `json:"label"`
	Total  int     `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Max    int     `json:"max"`
}

// Quotient is the result of a division that may have had a zero denominator.
type Quotient struct {
	Value float64
	Valid bool
}

// MarshalJSON renders an invalid quotient as null.
func (q Quotient) MarshalJSON() ([]byte, error) {
	if !q.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(q.Value)
}

// RepoTotals holds lifetime counters of a repository.
type RepoTotals struct {
	Stargazers int `json:"stargazers"`
	Forks      int `json:"forks"`
	Watchers   int `json:"watchers"`
}

// Dashboard is the result of one pipeline run.
type Dashboard struct {
	Repository     string          `json:"repository"`
	GeneratedAt    time.Time       `json:"generated_at"`
	WindowDays     int             `json:"window_days"`
	Daily          []WindowSeries  `json:"daily"`
	Cumulative     []WindowSeries  `json:"cumulative"`
	Summaries      []SeriesSummary `json:"summaries"`
	ViewsPerClone  Quotient        `json:"views_per_clone"`
	SkippedRecords int             `json:"skipped_records"`
	Totals         *RepoTotals     `json:"totals,omitempty"`
	Artifacts      []string        `json:"artifacts,omitempty"`
}

// ParseDay returns the UTC calendar date of a timestamp as YYYY-MM-DD.
// It accepts RFC 3339 timestamps and bare dates.
func ParseDay(ts string) (string, bool) {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UTC().Format(DateLayout), true
	}
	if t, err := time.Parse(DateLayout, ts); err == nil {
		return t.Format(DateLayout), true
	}
	return "", false
}
