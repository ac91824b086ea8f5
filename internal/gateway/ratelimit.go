package gateway

import (
	"context"
	"fmt"

	"github.com/naka-gawa/orgstats/internal/domain"
)

// RateLimit returns the remaining core, search and GraphQL quotas. The lookup itself
// does not count against the quota and is never cached.
func (g *GitHubGateway) RateLimit(ctx context.Context) ([]domain.RateLimit, error) {
	if _, err := g.client.Token(); err != nil {
		return nil, err
	}
	limits, _, err := g.restClient.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rate limits: %w", err)
	}
	return []domain.RateLimit{
		toRateLimit("core", limits.GetCore()),
		toRateLimit("search", limits.GetSearch()),
		toRateLimit("graphql", limits.GetGraphQL()),
	}, nil
}
