// Package github talks to the repository-hosting provider: repository
// metadata for the refresh job and submission checks, and contributor
// membership for the submission guard.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	gogithub "github.com/google/go-github/v55/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrRepositoryNotFound reports that the repository does not exist or is
// not visible with the configured token.
var ErrRepositoryNotFound = errors.New("github: repository not found")

// Metadata is the repository snapshot used by the submission and refresh
// flows. Data holds the raw provider payload.
type Metadata struct {
	NumberOfStars int
	Archived      bool
	HasIssues     bool
	OwnerID       int64
	Data          json.RawMessage
}

// Provider is the metadata contract consumed by the services.
type Provider interface {
	FetchRepository(ctx context.Context, owner, name string) (Metadata, error)
	IsContributor(ctx context.Context, owner, name string, githubID int64) (bool, error)
}

// contributorPageSize caps the contributor check to a single page; the
// provider does not allow enumerating further at a reasonable cost.
const contributorPageSize = 100

type Client struct {
	gh      *gogithub.Client
	limiter *RateLimiter
	log     *zap.Logger
}

// NewClient creates a provider client authenticated with a personal access
// token, so metadata calls are not subject to anonymous rate limits.
func NewClient(token string, logger *zap.Logger) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)

	return &Client{
		gh:      gogithub.NewClient(tc),
		limiter: NewRateLimiter(logger),
		log:     logger,
	}
}

func (c *Client) FetchRepository(ctx context.Context, owner, name string) (Metadata, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Metadata{}, err
	}

	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return Metadata{}, ErrRepositoryNotFound
		}
		return Metadata{}, fmt.Errorf("github: fetching repository %s/%s: %w", owner, name, err)
	}
	c.updateRateLimitFromResponse(resp)

	data, err := json.Marshal(repo)
	if err != nil {
		return Metadata{}, fmt.Errorf("github: encoding repository payload: %w", err)
	}

	return Metadata{
		NumberOfStars: repo.GetStargazersCount(),
		Archived:      repo.GetArchived(),
		HasIssues:     repo.GetHasIssues(),
		OwnerID:       repo.GetOwner().GetID(),
		Data:          data,
	}, nil
}

// IsContributor reports whether the given account appears on the first
// contributor page of the repository.
func (c *Client) IsContributor(ctx context.Context, owner, name string, githubID int64) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	contributors, resp, err := c.gh.Repositories.ListContributors(ctx, owner, name,
		&gogithub.ListContributorsOptions{
			ListOptions: gogithub.ListOptions{PerPage: contributorPageSize},
		})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, ErrRepositoryNotFound
		}
		return false, fmt.Errorf("github: listing contributors of %s/%s: %w", owner, name, err)
	}
	c.updateRateLimitFromResponse(resp)

	for _, contributor := range contributors {
		if contributor.GetID() == githubID {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) updateRateLimitFromResponse(resp *gogithub.Response) {
	if resp != nil && resp.Rate.Remaining >= 0 {
		c.limiter.UpdateLimit(resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
}
