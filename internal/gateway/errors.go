package gateway

import (
	"fmt"

	"github.com/google/go-github/v62/github"
)

// UpstreamError reports a failed call to GitHub: a non-success status, a
// transport failure or a timeout. It always aborts the run.
type UpstreamError struct {
	Endpoint   string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request to %s failed with status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func newUpstreamError(endpoint string, resp *github.Response, err error) *UpstreamError {
	ue := &UpstreamError{Endpoint: endpoint, Err: err}
	if resp != nil && resp.Response != nil {
		ue.StatusCode = resp.StatusCode
	}
	return ue
}
