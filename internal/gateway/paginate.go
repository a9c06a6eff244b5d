package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// PageSize is the number of items requested per page.
const PageSize = 100

const (
	acceptJSON = "application/vnd.github+json"
	// acceptStar makes the stargazers endpoint include starred_at.
	acceptStar = "application/vnd.github.v3.star+json"
)

// newRequest builds an authenticated GET request for path relative to the API base URL.
func (g *GitHubGateway) newRequest(path, accept string, params url.Values) (*http.Request, error) {
	u := path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := g.restClient.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", accept)
	return req, nil
}

// fetchSingle issues one GET and decodes the response body into v.
// A 204 response leaves v untouched.
func (g *GitHubGateway) fetchSingle(ctx context.Context, path, accept string, params url.Values, v any) error {
	req, err := g.newRequest(path, accept, params)
	if err != nil {
		return err
	}
	resp, err := g.restClient.Do(ctx, req, v)
	if err != nil {
		return newUpstreamError(path, resp, err)
	}
	return nil
}

// fetchPaginated walks a list endpoint page by page, in order. It stops on a
// short page, on a 204 or 404 response, or after the gateway's page limit.
func fetchPaginated[T any](ctx context.Context, g *GitHubGateway, path, accept string, params url.Values) ([]T, error) {
	var items []T
	for page := 1; ; page++ {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("per_page", strconv.Itoa(PageSize))
		q.Set("page", strconv.Itoa(page))

		req, err := g.newRequest(path, accept, q)
		if err != nil {
			return nil, err
		}
		var batch []T
		resp, err := g.restClient.Do(ctx, req, &batch)
		if resp != nil && (resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound) {
			g.logger.Printf("  %s returned %d on page %d, no more data.\n", path, resp.StatusCode, page)
			break
		}
		if err != nil {
			return nil, newUpstreamError(path, resp, err)
		}

		items = append(items, batch...)
		if len(batch) < PageSize {
			break
		}
		if page >= g.maxPages {
			g.logger.Printf("  Page limit (%d) reached for %s, stopping.\n", g.maxPages, path)
			break
		}
		g.logger.Printf("  Fetching page %d of %s...\n", page+1, path)
	}
	return items, nil
}
