// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-metrics/internal/config"
	"github.com/naka-gawa/github-metrics/internal/domain"
	"github.com/naka-gawa/github-metrics/internal/gateway"
	"github.com/naka-gawa/github-metrics/internal/history"
	"github.com/naka-gawa/github-metrics/internal/series"
)

// Series labels used in the dashboards.
const (
	LabelClones          = "clones/day"
	LabelViews           = "views/day"
	LabelCommits         = "commits/day"
	LabelStars           = "stars/day"
	LabelForks           = "forks/day"
	LabelStarsCumulative = "stars (cumulative)"
	LabelForksCumulative = "forks (cumulative)"
)

// Renderer turns a set of aligned series into an image artifact and returns its location.
type Renderer interface {
	Render(title, name string, series []domain.WindowSeries) (string, error)
}

// Pipeline is the use case for building the repository dashboards.
// It orchestrates fetching, history maintenance, aggregation and rendering.
type Pipeline struct {
	fetcher  gateway.Fetcher
	store    history.Store
	renderer Renderer
	logger   *log.Logger
	now      func() time.Time
}

// NewPipeline creates a new Pipeline instance. renderer may be nil, in which
// case no images are produced.
func NewPipeline(fetcher gateway.Fetcher, store history.Store, renderer Renderer, logger *log.Logger) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		store:    store,
		renderer: renderer,
		logger:   logger,
		now:      time.Now,
	}
}

// fetched holds the raw results of one run's API calls.
type fetched struct {
	traffic domain.TrafficWindow
	stars   []domain.TimestampedEvent
	forks   []domain.TimestampedEvent
	commits []domain.TimestampedEvent
	totals  domain.RepoTotals
}

// Run executes the pipeline once: load history, fetch, merge, prune, save,
// aggregate and render. Any fetch failure aborts the run before the history
// is written or anything is rendered.
func (p *Pipeline) Run(ctx context.Context, cfg config.Config) (*domain.Dashboard, error) {
	p.logger.Println("Usecase: Starting metrics pipeline...")
	now := p.now().UTC()
	window := series.DateWindow(cfg.WindowDays, now)

	snapshot, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load traffic history: %w", err)
	}
	p.logger.Printf("Usecase: Loaded %d days of traffic history.\n", len(snapshot))

	data, err := p.fetchAll(ctx, cfg, window[0])
	if err != nil {
		return nil, err
	}
	p.logger.Println("Usecase: All data fetched successfully.")

	merged := history.Merge(snapshot, data.traffic)
	pruned := history.Prune(merged, cfg.RetentionDays, now)
	if err := p.store.Save(ctx, pruned); err != nil {
		return nil, fmt.Errorf("failed to save traffic history: %w", err)
	}
	p.logger.Printf("Usecase: Saved %d days of traffic history (%d pruned).\n", len(pruned), len(merged)-len(pruned))

	dashboard := p.aggregate(cfg, now, window, merged, data)
	if cfg.IncludeTotals {
		totals := data.totals
		dashboard.Totals = &totals
	}

	if p.renderer != nil {
		if err := p.render(cfg, dashboard); err != nil {
			return nil, err
		}
	}

	p.logger.Println("Usecase: Pipeline complete.")
	return dashboard, nil
}

// fetchAll runs the independent fetches concurrently and joins them.
func (p *Pipeline) fetchAll(ctx context.Context, cfg config.Config, since time.Time) (*fetched, error) {
	var data fetched

	// Use an errgroup to fetch all data concurrently.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Workers)

	eg.Go(func() error {
		var err error
		data.traffic, err = p.fetcher.FetchTraffic(egCtx, cfg.Owner, cfg.Repo)
		return err
	})

	eg.Go(func() error {
		var err error
		data.stars, err = p.fetcher.FetchStargazers(egCtx, cfg.Owner, cfg.Repo)
		return err
	})

	eg.Go(func() error {
		var err error
		data.forks, err = p.fetcher.FetchForks(egCtx, cfg.Owner, cfg.Repo)
		return err
	})

	eg.Go(func() error {
		var err error
		data.commits, err = p.fetcher.FetchCommits(egCtx, cfg.Owner, cfg.Repo, since)
		return err
	})

	// Only fetch totals if requested.
	if cfg.IncludeTotals {
		eg.Go(func() error {
			var err error
			data.totals, err = p.fetcher.FetchTotals(egCtx, cfg.Owner, cfg.Repo)
			return err
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return &data, nil
}

// aggregate builds the aligned daily and cumulative series.
func (p *Pipeline) aggregate(cfg config.Config, now time.Time, window []time.Time, traffic domain.HistorySnapshot, data *fetched) *domain.Dashboard {
	skipped := 0
	group := func(kind string, events []domain.TimestampedEvent) map[string]int {
		counts, n := series.GroupByDay(events)
		if n > 0 {
			p.logger.Printf("Usecase: Skipped %d %s with a malformed timestamp.\n", n, kind)
		}
		skipped += n
		return counts
	}

	clones := series.AlignToWindow(LabelClones, window, traffic.Clones())
	views := series.AlignToWindow(LabelViews, window, traffic.Views())
	commits := series.AlignToWindow(LabelCommits, window, group("commits", data.commits))
	stars := series.AlignToWindow(LabelStars, window, group("stars", data.stars))
	forks := series.AlignToWindow(LabelForks, window, group("forks", data.forks))

	daily := []domain.WindowSeries{clones, views, commits, stars, forks}
	summaries := make([]domain.SeriesSummary, 0, len(daily))
	for _, s := range daily {
		summaries = append(summaries, series.Summarize(s))
	}
	cloneTotal, viewTotal := summaries[0].Total, summaries[1].Total

	return &domain.Dashboard{
		Repository:  cfg.Repository(),
		GeneratedAt: now,
		WindowDays:  cfg.WindowDays,
		Daily:       daily,
		Cumulative: []domain.WindowSeries{
			series.Cumulative(LabelStarsCumulative, stars),
			series.Cumulative(LabelForksCumulative, forks),
		},
		Summaries:      summaries,
		ViewsPerClone:  series.Divide(viewTotal, cloneTotal),
		SkippedRecords: skipped,
	}
}

// render draws the activity and growth dashboards.
func (p *Pipeline) render(cfg config.Config, d *domain.Dashboard) error {
	charts := []struct {
		title  string
		name   string
		series []domain.WindowSeries
	}{
		{
			title:  fmt.Sprintf("%s - Activity (last %d days)", d.Repository, cfg.WindowDays),
			name:   fmt.Sprintf("activity_%dd.png", cfg.WindowDays),
			series: seriesByLabel(d.Daily, LabelClones, LabelViews, LabelCommits, LabelStars),
		},
		{
			title:  fmt.Sprintf("%s - Growth (last %d days)", d.Repository, cfg.WindowDays),
			name:   fmt.Sprintf("growth_%dd.png", cfg.WindowDays),
			series: d.Cumulative,
		},
	}
	for _, c := range charts {
		path, err := p.renderer.Render(c.title, c.name, c.series)
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", c.name, err)
		}
		p.logger.Printf("Usecase: Wrote %s\n", path)
		d.Artifacts = append(d.Artifacts, path)
	}
	return nil
}

func seriesByLabel(all []domain.WindowSeries, labels ...string) []domain.WindowSeries {
	out := make([]domain.WindowSeries, 0, len(labels))
	for _, label := range labels {
		for _, s := range all {
			if s.Label == label {
				out = append(out, s)
			}
		}
	}
	return out
}
