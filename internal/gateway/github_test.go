package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	server := httptest.NewServer(handler)

	// Setup REST client to point to the mock server.
	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	// Use NewEnterpriseClient to point the GraphQL client to our mock server's URL.
	graphqlClient := githubv4.NewEnterpriseClient(server.URL, server.Client())
	logger := log.New(io.Discard, "", 0)

	gateway := &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
		maxPages:      10,
	}

	return gateway, server
}

// stargazerPage renders n stargazer items starred on 2024-01-01.
func stargazerPage(t *testing.T, n int) []byte {
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{
			"starred_at": "2024-01-01T12:00:00Z",
			"user":       map[string]string{"login": "user" + strconv.Itoa(i)},
		}
	}
	body, err := json.Marshal(items)
	require.NoError(t, err)
	return body
}

func TestGitHubGateway_Pagination(t *testing.T) {
	testCases := []struct {
		name             string
		pageSizes        []int // items returned for page 1, 2, ...
		statusAfterPages int   // status returned once pageSizes is exhausted
		expectedItems    int
		expectedRequests int32
	}{
		{
			name:             "short last page stops pagination",
			pageSizes:        []int{100, 100, 100, 40},
			expectedItems:    340,
			expectedRequests: 4,
		},
		{
			name:             "page cap stops pagination",
			pageSizes:        []int{100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100},
			expectedItems:    1000,
			expectedRequests: 10,
		},
		{
			name:             "no content ends the list",
			pageSizes:        []int{100},
			statusAfterPages: http.StatusNoContent,
			expectedItems:    100,
			expectedRequests: 2,
		},
		{
			name:             "not found ends the list",
			pageSizes:        []int{100, 100},
			statusAfterPages: http.StatusNotFound,
			expectedItems:    200,
			expectedRequests: 3,
		},
		{
			name:             "empty first page",
			pageSizes:        []int{0},
			expectedItems:    0,
			expectedRequests: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var requests atomic.Int32
			handler := func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				assert.Equal(t, "/repos/octo/hello/stargazers", r.URL.Path)
				assert.Equal(t, "100", r.URL.Query().Get("per_page"))
				assert.Equal(t, acceptStar, r.Header.Get("Accept"))

				page, err := strconv.Atoi(r.URL.Query().Get("page"))
				require.NoError(t, err)
				if page > len(tc.pageSizes) {
					if tc.statusAfterPages == http.StatusNotFound {
						w.WriteHeader(http.StatusNotFound)
						fmt.Fprint(w, `{"message": "Not Found"}`)
						return
					}
					w.WriteHeader(http.StatusNoContent)
					return
				}
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(stargazerPage(t, tc.pageSizes[page-1]))
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
			defer server.Close()

			events, err := gateway.FetchStargazers(context.Background(), "octo", "hello")

			require.NoError(t, err)
			assert.Len(t, events, tc.expectedItems)
			assert.Equal(t, tc.expectedRequests, requests.Load())
			if tc.expectedItems > 0 {
				assert.Equal(t, domain.TimestampedEvent{Timestamp: "2024-01-01T12:00:00Z", Author: "user0"}, events[0])
			}
		})
	}
}

func TestGitHubGateway_PaginationFailure(t *testing.T) {
	var requests atomic.Int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(stargazerPage(t, 100))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message": "Internal Server Error"}`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
	defer server.Close()

	events, err := gateway.FetchStargazers(context.Background(), "octo", "hello")

	require.Error(t, err)
	assert.Nil(t, events)
	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, http.StatusInternalServerError, upstreamErr.StatusCode)
	assert.Equal(t, "repos/octo/hello/stargazers", upstreamErr.Endpoint)
	assert.Equal(t, int32(2), requests.Load())
}

func TestGitHubGateway_FetchTraffic(t *testing.T) {
	testCases := []struct {
		name           string
		handlerFunc    func(w http.ResponseWriter, r *http.Request)
		expectedWindow domain.TrafficWindow
		expectError    bool
		expectedStatus int
	}{
		{
			name: "happy path - sums counts per UTC day",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "day", r.URL.Query().Get("per"))
				assert.Equal(t, acceptJSON, r.Header.Get("Accept"))
				w.WriteHeader(http.StatusOK)
				switch r.URL.Path {
				case "/repos/octo/hello/traffic/clones":
					fmt.Fprint(w, `{"count": 8, "uniques": 3, "clones": [
						{"timestamp": "2024-01-01T00:00:00Z", "count": 5, "uniques": 2},
						{"timestamp": "2024-01-02T00:00:00Z", "count": 3, "uniques": 1},
						{"timestamp": "bogus", "count": 99, "uniques": 1}]}`)
				case "/repos/octo/hello/traffic/views":
					fmt.Fprint(w, `{"count": 0, "uniques": 0, "views": []}`)
				default:
					t.Errorf("unexpected path %s", r.URL.Path)
				}
			},
			expectedWindow: domain.TrafficWindow{
				Clones: map[string]int{"2024-01-01": 5, "2024-01-02": 3},
				Views:  map[string]int{},
			},
		},
		{
			name: "error case - missing push access",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message": "Must have push access to repository"}`)
			},
			expectError:    true,
			expectedStatus: http.StatusForbidden,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, server := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))
			defer server.Close()
			window, err := gateway.FetchTraffic(context.Background(), "octo", "hello")
			if tc.expectError {
				require.Error(t, err)
				var upstreamErr *UpstreamError
				require.True(t, errors.As(err, &upstreamErr))
				assert.Equal(t, tc.expectedStatus, upstreamErr.StatusCode)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedWindow, window)
			}
		})
	}
}

func TestGitHubGateway_FetchForks(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/hello/forks", r.URL.Path)
		assert.Equal(t, "newest", r.URL.Query().Get("sort"))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `[{"created_at": "2024-02-01T08:00:00Z", "owner": {"login": "alice"}},
			{"created_at": "2024-02-03T09:00:00Z", "owner": null}]`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
	defer server.Close()

	events, err := gateway.FetchForks(context.Background(), "octo", "hello")

	require.NoError(t, err)
	assert.Equal(t, []domain.TimestampedEvent{
		{Timestamp: "2024-02-01T08:00:00Z", Author: "alice"},
		{Timestamp: "2024-02-03T09:00:00Z"},
	}, events)
}

func TestGitHubGateway_FetchCommits(t *testing.T) {
	since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/hello/commits", r.URL.Path)
		assert.Equal(t, "2024-02-01T00:00:00Z", r.URL.Query().Get("since"))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `[
			{"sha": "a", "commit": {"author": {"name": "Alice", "date": "2024-02-02T10:00:00Z"}}},
			{"sha": "b", "commit": {"author": null}}]`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
	defer server.Close()

	events, err := gateway.FetchCommits(context.Background(), "octo", "hello", since)

	require.NoError(t, err)
	assert.Equal(t, []domain.TimestampedEvent{
		{Timestamp: "2024-02-02T10:00:00Z", Author: "Alice"},
		{},
	}, events)
}

func TestGitHubGateway_FetchTotals(t *testing.T) {
	testCases := []struct {
		name           string
		responseBody   string
		expected       domain.RepoTotals
		expectError    bool
		expectedErrMsg string
	}{
		{
			name:         "happy path",
			responseBody: `{"data":{"repository":{"stargazerCount":12,"forkCount":3,"watchers":{"totalCount":4}}}}`,
			expected:     domain.RepoTotals{Stargazers: 12, Forks: 3, Watchers: 4},
		},
		{
			name:           "error case",
			responseBody:   `{"errors":[{"message":"Could not resolve to a Repository"}]}`,
			expectError:    true,
			expectedErrMsg: "graphql repository",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), "stargazerCount")
				assert.Contains(t, string(body), "octo")

				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tc.responseBody)
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
			defer server.Close()

			totals, err := gateway.FetchTotals(context.Background(), "octo", "hello")

			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, totals)
			}
		})
	}
}

func TestGitHubGateway_FetchForks_PageCapKeepsRecentForks(t *testing.T) {
	// 1050 forks, the 50 newest created inside the dashboard window.
	const total, recent = 1050, 50
	windowStart := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	created := make([]time.Time, total) // oldest first
	for i := range created {
		if i < total-recent {
			created[i] = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
			continue
		}
		created[i] = windowStart.Add(time.Duration(i-(total-recent)) * 12 * time.Hour)
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		ordered := make([]time.Time, len(created))
		copy(ordered, created)
		if r.URL.Query().Get("sort") == "newest" {
			for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		require.NoError(t, err)
		start := min((page-1)*PageSize, len(ordered))
		end := min(start+PageSize, len(ordered))

		items := make([]map[string]any, 0, end-start)
		for _, c := range ordered[start:end] {
			items = append(items, map[string]any{"created_at": c.Format(time.RFC3339), "owner": map[string]string{"login": "forker"}})
		}
		w.WriteHeader(http.StatusOK)
		require.NoError(t, json.NewEncoder(w).Encode(items))
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
	defer server.Close()

	events, err := gateway.FetchForks(context.Background(), "octo", "hello")

	require.NoError(t, err)
	assert.Len(t, events, gateway.maxPages*PageSize)
	inWindow := 0
	for _, e := range events {
		ts, err := time.Parse(time.RFC3339, e.Timestamp)
		require.NoError(t, err)
		if !ts.Before(windowStart) {
			inWindow++
		}
	}
	assert.Equal(t, recent, inWindow)
}

// newConfiguredGateway builds the gateway the CLI uses, pointed at server.
func newConfiguredGateway(t *testing.T, server *httptest.Server, timeout time.Duration) *GitHubGateway {
	t.Helper()
	fetcher, err := NewGitHubGateway("test-token", 10, timeout, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	gateway, ok := fetcher.(*GitHubGateway)
	require.True(t, ok)

	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	gateway.restClient.BaseURL = baseURL
	return gateway
}

func TestGitHubGateway_Timeout(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}
	server := httptest.NewServer(http.HandlerFunc(handler))
	defer server.Close()
	gateway := newConfiguredGateway(t, server, 50*time.Millisecond)

	start := time.Now()
	_, err := gateway.FetchCommits(context.Background(), "octo", "hello", time.Now())

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Zero(t, upstreamErr.StatusCode)
}

func TestGitHubGateway_SecondaryRateLimit(t *testing.T) {
	const limitBody = `{"message": "You have exceeded a secondary rate limit. Please wait a few minutes before you try again.",
		"documentation_url": "https://docs.github.com/rest/overview/rate-limits-for-the-rest-api#about-secondary-rate-limits"}`

	testCases := []struct {
		name             string
		retryAfter       string
		timeout          time.Duration
		expectError      bool
		expectedRequests int32
	}{
		{
			name:             "short wait is slept on and retried",
			retryAfter:       "1",
			timeout:          5 * time.Second,
			expectedRequests: 2,
		},
		{
			name:             "wait longer than the timeout fails immediately",
			retryAfter:       "60",
			timeout:          2 * time.Second,
			expectError:      true,
			expectedRequests: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var requests atomic.Int32
			handler := func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				if requests.Add(1) == 1 {
					w.Header().Set("Retry-After", tc.retryAfter)
					w.WriteHeader(http.StatusForbidden)
					fmt.Fprint(w, limitBody)
					return
				}
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(stargazerPage(t, 3))
			}
			server := httptest.NewServer(http.HandlerFunc(handler))
			defer server.Close()
			gateway := newConfiguredGateway(t, server, tc.timeout)

			events, err := gateway.FetchStargazers(context.Background(), "octo", "hello")

			assert.Equal(t, tc.expectedRequests, requests.Load())
			if tc.expectError {
				require.Error(t, err)
				var upstreamErr *UpstreamError
				require.True(t, errors.As(err, &upstreamErr))
				assert.Equal(t, http.StatusForbidden, upstreamErr.StatusCode)
				return
			}
			require.NoError(t, err)
			assert.Len(t, events, 3)
		})
	}
}
