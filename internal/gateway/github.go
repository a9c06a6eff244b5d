// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// Fetcher defines the behavior of a gateway for fetching repository activity from GitHub.
type Fetcher interface {
	FetchTraffic(ctx context.Context, owner, repo string) (domain.TrafficWindow, error)
	FetchStargazers(ctx context.Context, owner, repo string) ([]domain.TimestampedEvent, error)
	FetchForks(ctx context.Context, owner, repo string) ([]domain.TimestampedEvent, error)
	FetchCommits(ctx context.Context, owner, repo string, since time.Time) ([]domain.TimestampedEvent, error)
	// FetchTotals uses GraphQL and is only called when totals are requested.
	FetchTotals(ctx context.Context, owner, repo string) (domain.RepoTotals, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
	maxPages      int
}

// repoTotalsQuery fetches the lifetime counters of a repository.
type repoTotalsQuery struct {
	Repository struct {
		StargazerCount githubv4.Int
		ForkCount      githubv4.Int
		Watchers       struct {
			TotalCount githubv4.Int
		}
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// Wire shapes of the REST payloads. Timestamps stay strings so a single
// malformed value does not fail the whole page.
type trafficPoint struct {
	Timestamp string `json:"timestamp"`
	Count     int    `json:"count"`
}

type trafficPayload struct {
	Clones []trafficPoint `json:"clones"`
	Views  []trafficPoint `json:"views"`
}

type account struct {
	Login string `json:"login"`
}

type stargazerItem struct {
	StarredAt string   `json:"starred_at"`
	User      *account `json:"user"`
}

type forkItem struct {
	CreatedAt string   `json:"created_at"`
	Owner     *account `json:"owner"`
}

type commitItem struct {
	Commit struct {
		Author *struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
// Every request is bounded by timeout. A secondary rate-limit response is waited
// out and retried when its Retry-After fits within timeout, and returned as is otherwise.
func NewGitHubGateway(token string, maxPages int, timeout time.Duration, logger *log.Logger) (Fetcher, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(timeout, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
		maxPages:      maxPages,
	}, nil
}

func (g *GitHubGateway) FetchTraffic(ctx context.Context, owner, repo string) (domain.TrafficWindow, error) {
	g.logger.Println("[1/5] Fetching traffic data...")
	params := url.Values{"per": []string{"day"}}

	var clones, views trafficPayload
	if err := g.fetchSingle(ctx, fmt.Sprintf("repos/%s/%s/traffic/clones", owner, repo), acceptJSON, params, &clones); err != nil {
		return domain.TrafficWindow{}, err
	}
	if err := g.fetchSingle(ctx, fmt.Sprintf("repos/%s/%s/traffic/views", owner, repo), acceptJSON, params, &views); err != nil {
		return domain.TrafficWindow{}, err
	}

	window := domain.TrafficWindow{
		Clones: g.sumByDay("clones", clones.Clones),
		Views:  g.sumByDay("views", views.Views),
	}
	g.logger.Printf("Completed fetching traffic data (%d clone days, %d view days).\n", len(window.Clones), len(window.Views))
	return window, nil
}

func (g *GitHubGateway) FetchStargazers(ctx context.Context, owner, repo string) ([]domain.TimestampedEvent, error) {
	g.logger.Println("[2/5] Fetching stargazer data...")
	items, err := fetchPaginated[stargazerItem](ctx, g, fmt.Sprintf("repos/%s/%s/stargazers", owner, repo), acceptStar, nil)
	if err != nil {
		return nil, err
	}
	events := make([]domain.TimestampedEvent, 0, len(items))
	for _, s := range items {
		events = append(events, domain.TimestampedEvent{Timestamp: s.StarredAt, Author: s.User.login()})
	}
	g.logger.Printf("Completed fetching %d stargazers.\n", len(events))
	return events, nil
}

func (g *GitHubGateway) FetchForks(ctx context.Context, owner, repo string) ([]domain.TimestampedEvent, error) {
	g.logger.Println("[3/5] Fetching fork data...")
	// Newest first, so the page cap drops the oldest forks rather than the ones in the window.
	params := url.Values{"sort": []string{"newest"}}
	items, err := fetchPaginated[forkItem](ctx, g, fmt.Sprintf("repos/%s/%s/forks", owner, repo), acceptJSON, params)
	if err != nil {
		return nil, err
	}
	events := make([]domain.TimestampedEvent, 0, len(items))
	for _, f := range items {
		events = append(events, domain.TimestampedEvent{Timestamp: f.CreatedAt, Author: f.Owner.login()})
	}
	g.logger.Printf("Completed fetching %d forks.\n", len(events))
	return events, nil
}

func (g *GitHubGateway) FetchCommits(ctx context.Context, owner, repo string, since time.Time) ([]domain.TimestampedEvent, error) {
	g.logger.Println("[4/5] Fetching commit data...")
	params := url.Values{"since": []string{since.UTC().Format(time.RFC3339)}}
	items, err := fetchPaginated[commitItem](ctx, g, fmt.Sprintf("repos/%s/%s/commits", owner, repo), acceptJSON, params)
	if err != nil {
		return nil, err
	}
	events := make([]domain.TimestampedEvent, 0, len(items))
	for _, c := range items {
		var e domain.TimestampedEvent
		if a := c.Commit.Author; a != nil {
			e = domain.TimestampedEvent{Timestamp: a.Date, Author: a.Name}
		}
		events = append(events, e)
	}
	g.logger.Printf("Completed fetching %d commits.\n", len(events))
	return events, nil
}

// FetchTotals fetches the lifetime stargazer, fork and watcher counts.
func (g *GitHubGateway) FetchTotals(ctx context.Context, owner, repo string) (domain.RepoTotals, error) {
	g.logger.Println("[5/5] Fetching repository totals using GraphQL API...")
	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(repo),
	}
	var q repoTotalsQuery
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return domain.RepoTotals{}, &UpstreamError{Endpoint: "graphql repository", Err: err}
	}
	g.logger.Println("Completed fetching repository totals.")
	return domain.RepoTotals{
		Stargazers: int(q.Repository.StargazerCount),
		Forks:      int(q.Repository.ForkCount),
		Watchers:   int(q.Repository.Watchers.TotalCount),
	}, nil
}

// sumByDay adds up traffic points per UTC date, skipping unparsable timestamps.
func (g *GitHubGateway) sumByDay(kind string, points []trafficPoint) map[string]int {
	byDay := make(map[string]int, len(points))
	for _, p := range points {
		day, ok := domain.ParseDay(p.Timestamp)
		if !ok {
			g.logger.Printf("  Skipping %s point with malformed timestamp %q\n", kind, p.Timestamp)
			continue
		}
		byDay[day] += p.Count
	}
	return byDay
}

func (a *account) login() string {
	if a == nil {
		return ""
	}
	return a.Login
}
