// Package render draws dashboards and prints run summaries.
package render

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/wcharczuk/go-chart/v2"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// ChartRenderer draws aligned series as PNG line charts into a directory.
type ChartRenderer struct {
	fs  afero.Fs
	dir string
}

// NewChartRenderer creates a ChartRenderer writing into dir on fs.
func NewChartRenderer(fs afero.Fs, dir string) *ChartRenderer {
	return &ChartRenderer{fs: fs, dir: dir}
}

// Render draws series into dir/name and returns the written path.
// All series must share the same dates.
func (r *ChartRenderer) Render(title, name string, series []domain.WindowSeries) (string, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("no series to render for %s", name)
	}

	graph := buildChart(title, series)
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return "", fmt.Errorf("failed to draw chart: %w", err)
	}

	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(r.dir, name)
	if err := afero.WriteFile(r.fs, path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func buildChart(title string, series []domain.WindowSeries) chart.Chart {
	maxCount := 1
	lines := make([]chart.Series, 0, len(series))
	for _, s := range series {
		ys := make([]float64, len(s.Points))
		for i, p := range s.Points {
			ys[i] = float64(p.Count)
			if p.Count > maxCount {
				maxCount = p.Count
			}
		}
		lines = append(lines, chart.TimeSeries{
			Name:    s.Label,
			XValues: s.Dates(),
			YValues: ys,
		})
	}

	graph := chart.Chart{
		Title:  title,
		Width:  1600,
		Height: 640,
		Background: chart.Style{
			Padding: chart.Box{Top: 60, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Count",
			// A fixed range keeps all-zero series drawable.
			Range: &chart.ContinuousRange{Min: 0, Max: float64(maxCount)},
		},
		Series: lines,
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}
	return graph
}
