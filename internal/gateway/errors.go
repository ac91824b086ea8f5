package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"
)

// ErrUnauthenticated is returned when no credential provider yields a token.
var ErrUnauthenticated = errors.New("no GitHub authentication found: set GITHUB_TOKEN or run `gh auth login`")

// RemoteError is a non-2xx answer from the GitHub API.
type RemoteError struct {
	StatusCode int
	StatusText string
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GitHub API error: %d %s", e.StatusCode, e.StatusText)
	}
	return fmt.Sprintf("GitHub API error: %d %s - %s", e.StatusCode, e.StatusText, e.Body)
}

// RateLimitedError is a 403 carrying X-RateLimit-Reset.
type RateLimitedError struct {
	ResetAt time.Time
	Body    string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded, resets at %s", e.ResetAt.Local().Format(time.RFC1123))
}

func newRemoteError(statusCode int, body []byte) *RemoteError {
	return &RemoteError{
		StatusCode: statusCode,
		StatusText: http.StatusText(statusCode),
		Body:       string(body),
	}
}

// IsStatus reports whether err is a RemoteError with one of the given status codes.
func IsStatus(err error, codes ...int) bool {
	var remote *RemoteError
	if !errors.As(err, &remote) {
		return false
	}
	return slices.Contains(codes, remote.StatusCode)
}

// IsRetryable reports whether retrying the failed call might succeed.
// Remote errors are retryable only for 5xx and 429; missing credentials and
// cancellation never are. Anything else, such as a transport failure, is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthenticated) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var limited *RateLimitedError
	if errors.As(err, &limited) {
		return true
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.StatusCode >= 500 || remote.StatusCode == http.StatusTooManyRequests
	}
	return true
}
