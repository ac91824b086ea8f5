package gateway

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"

	"github.com/naka-gawa/orgstats/internal/domain"
)

// viewerQuery asks who the current credentials belong to.
type viewerQuery struct {
	Viewer struct {
		Login githubv4.String
		Name  githubv4.String
	}
}

// Viewer returns the account behind the configured token.
func (g *GitHubGateway) Viewer(ctx context.Context) (domain.Viewer, error) {
	if _, err := g.client.Token(); err != nil {
		return domain.Viewer{}, err
	}
	var q viewerQuery
	if err := g.graphqlClient.Query(ctx, &q, nil); err != nil {
		return domain.Viewer{}, fmt.Errorf("failed to execute GraphQL viewer query: %w", err)
	}
	g.logger.Printf("authenticated as %s", q.Viewer.Login)
	return domain.Viewer{Login: string(q.Viewer.Login), Name: string(q.Viewer.Name)}, nil
}
