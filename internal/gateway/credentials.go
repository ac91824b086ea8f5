package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Credential methods reported by TokenChain.Method.
const (
	MethodEnv   = "token"
	MethodGhCLI = "gh-cli"
	MethodNone  = "none"
)

// envTokenSource reads a token from an environment variable.
type envTokenSource struct {
	name   string
	lookup func(string) (string, bool)
}

func (s envTokenSource) Token() (*oauth2.Token, error) {
	v, ok := s.lookup(s.name)
	if !ok || strings.TrimSpace(v) == "" {
		return nil, fmt.Errorf("%s is not set", s.name)
	}
	return &oauth2.Token{AccessToken: strings.TrimSpace(v), TokenType: "Bearer"}, nil
}

// ghCLITokenSource asks the GitHub CLI for its stored token.
type ghCLITokenSource struct {
	hostname string
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func (s ghCLITokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	args := []string{"auth", "token"}
	if s.hostname != "" {
		args = append(args, "--hostname", s.hostname)
	}
	out, err := s.run(ctx, "gh", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run gh auth token: %w", err)
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return nil, errors.New("gh auth token returned no token")
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type namedSource struct {
	method string
	source oauth2.TokenSource
}

// TokenChain tries each credential provider in order and returns the first token.
// When every provider fails the error wraps ErrUnauthenticated.
type TokenChain struct {
	sources []namedSource

	mu     sync.Mutex
	method string
}

// NewTokenChain returns the default provider chain: GITHUB_TOKEN, GH_TOKEN, then
// `gh auth token` for hostname.
func NewTokenChain(hostname string) *TokenChain {
	if hostname == "github.com" {
		hostname = ""
	}
	return &TokenChain{
		sources: []namedSource{
			{MethodEnv, envTokenSource{name: "GITHUB_TOKEN", lookup: os.LookupEnv}},
			{MethodEnv, envTokenSource{name: "GH_TOKEN", lookup: os.LookupEnv}},
			{MethodGhCLI, ghCLITokenSource{hostname: hostname, run: runCommand}},
		},
		method: MethodNone,
	}
}

func (c *TokenChain) Token() (*oauth2.Token, error) {
	var errs []error
	for _, s := range c.sources {
		tok, err := s.source.Token()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.mu.Lock()
		c.method = s.method
		c.mu.Unlock()
		return tok, nil
	}
	return nil, fmt.Errorf("%w (%w)", ErrUnauthenticated, errors.Join(errs...))
}

// Method reports which provider produced the last token.
func (c *TokenChain) Method() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.method
}

// NewTokenSource wraps the default chain so a token is resolved once and reused.
func NewTokenSource(hostname string) (oauth2.TokenSource, *TokenChain) {
	chain := NewTokenChain(hostname)
	return oauth2.ReuseTokenSource(nil, chain), chain
}
