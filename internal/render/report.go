package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// WriteJSON writes the dashboard as indented JSON.
func WriteJSON(w io.Writer, d *domain.Dashboard) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(d)
}

// WriteTable prints one row per daily series followed by the run footer.
func WriteTable(w io.Writer, d *domain.Dashboard) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Series", "Total", "Mean", "Median", "Max"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, s := range d.Summaries {
		data = append(data, []string{
			s.Label,
			strconv.Itoa(s.Total),
			fmt.Sprintf("%.2f", s.Mean),
			fmt.Sprintf("%.1f", s.Median),
			strconv.Itoa(s.Max),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	ratio := "n/a"
	if d.ViewsPerClone.Valid {
		ratio = fmt.Sprintf("%.2f", d.ViewsPerClone.Value)
	}
	if _, err := fmt.Fprintf(w, "%s over the last %d days, views per clone: %s\n", d.Repository, d.WindowDays, ratio); err != nil {
		return err
	}
	if d.Totals != nil {
		if _, err := fmt.Fprintf(w, "Totals: %d stars, %d forks, %d watchers\n", d.Totals.Stargazers, d.Totals.Forks, d.Totals.Watchers); err != nil {
			return err
		}
	}
	if d.SkippedRecords > 0 {
		if _, err := fmt.Fprintf(w, "Skipped %d records with malformed timestamps\n", d.SkippedRecords); err != nil {
			return err
		}
	}
	for _, a := range d.Artifacts {
		if _, err := fmt.Fprintf(w, "Wrote %s\n", a); err != nil {
			return err
		}
	}
	return nil
}
