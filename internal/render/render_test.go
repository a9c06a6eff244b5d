package render

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func testSeries(label string, counts ...int) domain.WindowSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.DayCount, len(counts))
	for i, c := range counts {
		points[i] = domain.DayCount{Date: start.AddDate(0, 0, i), Count: c}
	}
	return domain.WindowSeries{Label: label, Points: points}
}

func TestChartRenderer_Render(t *testing.T) {
	testCases := []struct {
		name   string
		series []domain.WindowSeries
	}{
		{
			name: "several series",
			series: []domain.WindowSeries{
				testSeries("clones/day", 5, 3, 0, 7),
				testSeries("views/day", 10, 12, 4, 9),
			},
		},
		{
			name:   "all zero series",
			series: []domain.WindowSeries{testSeries("stars/day", 0, 0, 0)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			renderer := NewChartRenderer(fs, "metrics")

			path, err := renderer.Render("octo/hello - Activity", "activity.png", tc.series)

			require.NoError(t, err)
			assert.Equal(t, "metrics/activity.png", path)
			data, err := afero.ReadFile(fs, path)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(data, pngSignature), "output must be a PNG")
		})
	}

	t.Run("no series", func(t *testing.T) {
		_, err := NewChartRenderer(afero.NewMemMapFs(), "metrics").Render("empty", "empty.png", nil)
		assert.Error(t, err)
	})
}

func testDashboard() *domain.Dashboard {
	return &domain.Dashboard{
		Repository: "octo/hello",
		WindowDays: 2,
		Daily:      []domain.WindowSeries{testSeries("clones/day", 5, 3)},
		Summaries: []domain.SeriesSummary{
			{Label: "clones/day", Total: 8, Mean: 4, Median: 4, Max: 5},
			{Label: "views/day", Total: 0},
		},
		ViewsPerClone:  domain.Quotient{},
		SkippedRecords: 1,
		Totals:         &domain.RepoTotals{Stargazers: 3, Forks: 1, Watchers: 2},
		Artifacts:      []string{"metrics/activity_2d.png"},
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteTable(&buf, testDashboard()))

	out := buf.String()
	assert.Contains(t, out, "clones/day")
	assert.Contains(t, out, "4.00")
	assert.Contains(t, out, "octo/hello over the last 2 days, views per clone: n/a")
	assert.Contains(t, out, "Totals: 3 stars, 1 forks, 2 watchers")
	assert.Contains(t, out, "Skipped 1 records")
	assert.Contains(t, out, "Wrote metrics/activity_2d.png")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteJSON(&buf, testDashboard()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "octo/hello", decoded["repository"])
	assert.Nil(t, decoded["views_per_clone"])

	daily := decoded["daily"].([]any)
	points := daily[0].(map[string]any)["points"].([]any)
	assert.Equal(t, map[string]any{"date": "2024-01-01", "count": float64(5)}, points[0])
}
