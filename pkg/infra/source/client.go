// Package source implements the repository source collaborator on top of
// the GitHub API. Every call goes through the service's rate limiter, and
// upstream throttle responses are converted into rate-limit signals instead
// of failures.
package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v55/github"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/oauth2"

	"github.com/repolens/repolens/pkg/domain/interfaces"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/ratelimit"
)

type Client struct {
	gh      *github.Client
	limiter *ratelimit.Limiter
}

var _ interfaces.SourceClient = &Client{}

type Option func(*Client)

// WithBaseURL points the client at a different API endpoint, used by tests
func WithBaseURL(baseURL string) Option {
	return func(x *Client) {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		if u, err := url.Parse(baseURL); err == nil {
			x.gh.BaseURL = u
		}
	}
}

func New(token types.SourceToken, limiter *ratelimit.Limiter, options ...Option) *Client {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: string(token)})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	client := &Client{
		gh:      github.NewClient(httpClient),
		limiter: limiter,
	}
	for _, opt := range options {
		opt(client)
	}

	return client
}

func (x *Client) GetEntity(ctx context.Context, owner, name string) (*model.Entity, error) {
	if err := x.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	repo, resp, err := x.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, wrapSourceErr(err, resp, owner, name)
	}

	return toEntity(repo), nil
}

func (x *Client) ListEntitiesByOwner(ctx context.Context, owner string) ([]*model.Entity, error) {
	var entities []*model.Entity
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		if err := x.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		repos, resp, err := x.gh.Repositories.ListByOrg(ctx, owner, opts)
		if err != nil {
			return nil, wrapSourceErr(err, resp, owner, "")
		}

		for _, repo := range repos {
			entities = append(entities, toEntity(repo))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return entities, nil
}

func toEntity(repo *github.Repository) *model.Entity {
	now := time.Now()
	return &model.Entity{
		ID:        types.EntityID(fmt.Sprintf("%s/%s", repo.GetOwner().GetLogin(), repo.GetName())),
		Owner:     repo.GetOwner().GetLogin(),
		Name:      repo.GetName(),
		Stars:     repo.GetStargazersCount(),
		Forks:     repo.GetForksCount(),
		Watchers:  repo.GetSubscribersCount(),
		Archived:  repo.GetArchived(),
		Fork:      repo.GetFork(),
		PushedAt:  repo.GetPushedAt().Time,
		CreatedAt: repo.GetCreatedAt().Time,
		UpdatedAt: now,
	}
}

// wrapSourceErr classifies a GitHub API failure: throttles become
// rate-limit signals, other 4xx responses are permanent, everything else is
// transient.
func wrapSourceErr(err error, resp *github.Response, owner, name string) error {
	if rateErr, ok := err.(*github.RateLimitError); ok {
		return &model.RateLimitSignal{
			Service:    types.ServiceSource,
			RetryAfter: time.Until(rateErr.Rate.Reset.Time),
		}
	}
	if abuseErr, ok := err.(*github.AbuseRateLimitError); ok {
		return &model.RateLimitSignal{
			Service:    types.ServiceSource,
			RetryAfter: abuseErr.GetRetryAfter(),
		}
	}

	if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return goerr.Wrap(types.ErrPermanentExternal, "source rejected request",
			goerr.V("status", resp.StatusCode),
			goerr.V("owner", owner),
			goerr.V("name", name),
			goerr.V("cause", err.Error()),
		)
	}

	return goerr.Wrap(types.ErrTransientExternal, "source request failed",
		goerr.V("owner", owner),
		goerr.V("name", name),
		goerr.V("cause", err.Error()),
	)
}
