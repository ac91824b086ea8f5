package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"golang.org/x/oauth2"
)

const (
	defaultAPIURL     = "https://api.github.com/"
	defaultGraphQLURL = "https://api.github.com/graphql"
	apiVersion        = "2022-11-28"
	mediaType         = "application/vnd.github+json"
)

// Config describes how to reach the GitHub API.
type Config struct {
	// Hostname selects a GitHub Enterprise Server host. Empty or "github.com" means github.com.
	Hostname string
	// BaseURL overrides the REST root derived from Hostname.
	BaseURL string
	// GraphQLURL overrides the GraphQL endpoint derived from Hostname.
	GraphQLURL string
	// Tokens supplies the bearer token for every request.
	Tokens oauth2.TokenSource
	// HTTPClient replaces the default rate-limit aware client.
	HTTPClient *http.Client
	UserAgent  string
}

func (c Config) endpoints() (rest, graphql string) {
	switch {
	case c.Hostname == "" || c.Hostname == "github.com":
		rest, graphql = defaultAPIURL, defaultGraphQLURL
	default:
		host := strings.TrimSuffix(c.Hostname, "/")
		if !strings.Contains(host, "://") {
			host = "https://" + host
		}
		rest, graphql = host+"/api/v3/", host+"/api/graphql"
	}
	if c.BaseURL != "" {
		rest = c.BaseURL
	}
	if c.GraphQLURL != "" {
		graphql = c.GraphQLURL
	}
	if !strings.HasSuffix(rest, "/") {
		rest += "/"
	}
	return rest, graphql
}

// Request is one REST call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// ETag, when set, is sent as If-None-Match.
	ETag string
}

// Response is a successful (2xx or 304) REST answer.
type Response struct {
	StatusCode  int
	Body        []byte
	ETag        string
	NotModified bool
	Header      http.Header
}

// Client performs authenticated GitHub REST requests. It does no caching.
type Client struct {
	baseURL    *url.URL
	graphqlURL string
	httpClient *http.Client
	tokens     oauth2.TokenSource
	userAgent  string
	logger     *log.Logger
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("a token source is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
		}
		httpClient = &http.Client{Transport: rateLimitWaiter}
	}
	rest, graphql := cfg.endpoints()
	baseURL, err := url.Parse(rest)
	if err != nil {
		return nil, fmt.Errorf("failed to parse API URL %q: %w", rest, err)
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "orgstats"
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		baseURL:    baseURL,
		graphqlURL: graphql,
		httpClient: httpClient,
		tokens:     cfg.Tokens,
		userAgent:  userAgent,
		logger:     logger,
	}, nil
}

// Token resolves the current credential. Failures wrap ErrUnauthenticated.
func (c *Client) Token() (*oauth2.Token, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, ErrUnauthenticated
	}
	return tok, nil
}

// authenticatedHTTPClient returns an http.Client that injects the bearer token, for the
// go-github and githubv4 clients.
func (c *Client) authenticatedHTTPClient() *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{Base: c.httpClient.Transport, Source: c.tokens},
		Timeout:   c.httpClient.Timeout,
	}
}

// Do performs req and returns its body. Non-2xx answers other than 304 are
// returned as *RateLimitedError or *RemoteError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	tok, err := c.Token()
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	u, err := c.baseURL.Parse(strings.TrimPrefix(req.Path, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to build URL for %s: %w", req.Path, err)
	}
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	tok.SetAuthHeader(httpReq)
	httpReq.Header.Set("Accept", mediaType)
	httpReq.Header.Set("X-GitHub-Api-Version", apiVersion)
	httpReq.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.ETag != "" {
		httpReq.Header.Set("If-None-Match", req.ETag)
	}

	c.logger.Printf("%s %s", method, u.Redacted())
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to request %s %s: %w", method, req.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s %s: %w", method, req.Path, err)
	}

	etag := resp.Header.Get("ETag")
	switch {
	case resp.StatusCode == http.StatusNotModified:
		if etag == "" {
			etag = req.ETag
		}
		return &Response{StatusCode: resp.StatusCode, ETag: etag, NotModified: true, Header: resp.Header}, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &Response{StatusCode: resp.StatusCode, Body: respBody, ETag: etag, Header: resp.Header}, nil
	}

	if reset := resp.Header.Get("X-RateLimit-Reset"); resp.StatusCode == http.StatusForbidden && reset != "" {
		if secs, err := strconv.ParseInt(reset, 10, 64); err == nil {
			return nil, &RateLimitedError{ResetAt: time.Unix(secs, 0), Body: string(respBody)}
		}
	}
	return nil, newRemoteError(resp.StatusCode, respBody)
}

// DecodeJSON decodes the body of resp into T.
func DecodeJSON[T any](resp *Response) (T, error) {
	var out T
	if resp.NotModified {
		return out, errors.New("not-modified response has no body")
	}
	if len(resp.Body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// Get fetches path and decodes the answer into T.
func Get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	resp, err := c.Do(ctx, Request{Path: path, Query: query})
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeJSON[T](resp)
}
