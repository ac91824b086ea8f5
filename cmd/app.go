package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/orgstats/internal/cache"
	"github.com/naka-gawa/orgstats/internal/gateway"
	"github.com/naka-gawa/orgstats/internal/usecase"
)

// app holds the dependencies shared by every command.
type app struct {
	gateway      *gateway.GitHubGateway
	orchestrator *cache.Orchestrator
	store        cache.Store
	tokens       *gateway.TokenChain
	logger       *log.Logger
}

func newLogger(cmd *cobra.Command) *log.Logger {
	logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
	if verbose {
		logger.SetOutput(cmd.ErrOrStderr()) // If verbose, log to standard error.
	}
	return logger
}

// newApp wires the cache, credentials and gateway from the persistent flags.
func newApp(cmd *cobra.Command) (*app, error) {
	logger := newLogger(cmd)

	store, err := cache.New(cache.Config{
		Type: cacheBackend,
		Path: cachePath,
		DSN:  cacheDSN,
		Options: cache.Options{
			StaleWhileRevalidate: cacheSWR,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	var opts []cache.Option
	if cacheTTL > 0 {
		opts = append(opts, cache.WithDefaultTTL(cacheTTL))
	}
	orchestrator := cache.NewOrchestrator(store, cache.NewDeduplicator(), logger, opts...)

	tokens, chain := gateway.NewTokenSource(hostname)
	gw, err := gateway.NewGitHubGateway(gateway.Config{
		Hostname: hostname,
		// GitHub Actions exposes these for the running instance.
		BaseURL:    os.Getenv("GITHUB_API_URL"),
		GraphQLURL: os.Getenv("GITHUB_GRAPHQL_URL"),
		Tokens:     tokens,
		UserAgent:  "orgstats/" + Version,
	}, orchestrator, cache.FetchOptions{
		TTL:                  cacheTTL,
		StaleWhileRevalidate: cacheSWR,
		SkipCache:            noCache,
		ForceRevalidate:      refresh,
	}, logger)
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}

	return &app{
		gateway:      gw,
		orchestrator: orchestrator,
		store:        store,
		tokens:       chain,
		logger:       logger,
	}, nil
}

func (a *app) aggregator() *usecase.Aggregator {
	return usecase.NewAggregator(a.gateway, a.logger)
}

// Close waits for background revalidations and releases the store.
func (a *app) Close() {
	a.orchestrator.Wait()
	closeStore(a.store)
}

func closeStore(store cache.Store) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}
