package infra

import (
	"net/http"
	"time"

	"github.com/repolens/repolens/pkg/domain/interfaces"
	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/ratelimit"
	"github.com/repolens/repolens/pkg/repository/memory"
)

// Clients bundles every external collaborator of the scan pipeline. Rate
// limiters live here so all callers of one service share a single bucket.
type Clients struct {
	entityRepo interfaces.EntityRepository
	source     interfaces.SourceClient
	analysis   interfaces.AnalysisClient
	httpClient HTTPClient

	sourceLimiter   *ratelimit.Limiter
	analysisLimiter *ratelimit.Limiter
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Option func(*Clients)

func New(options ...Option) *Clients {
	client := &Clients{
		entityRepo:      memory.New(),
		httpClient:      http.DefaultClient,
		sourceLimiter:   ratelimit.New(types.ServiceSource, 30, 30, time.Minute),
		analysisLimiter: ratelimit.New(types.ServiceAnalysis, 10, 10, time.Minute),
	}

	for _, opt := range options {
		opt(client)
	}

	return client
}

func (x *Clients) EntityRepo() interfaces.EntityRepository {
	return x.entityRepo
}
func (x *Clients) Source() interfaces.SourceClient {
	return x.source
}
func (x *Clients) Analysis() interfaces.AnalysisClient {
	return x.analysis
}
func (x *Clients) HTTPClient() HTTPClient {
	return x.httpClient
}
func (x *Clients) SourceLimiter() *ratelimit.Limiter {
	return x.sourceLimiter
}
func (x *Clients) AnalysisLimiter() *ratelimit.Limiter {
	return x.analysisLimiter
}

// Limiter returns the rate limiter of the given service
func (x *Clients) Limiter(service types.ServiceName) *ratelimit.Limiter {
	if service == types.ServiceAnalysis {
		return x.analysisLimiter
	}
	return x.sourceLimiter
}

func WithEntityRepo(repo interfaces.EntityRepository) Option {
	return func(x *Clients) {
		x.entityRepo = repo
	}
}

func WithSource(client interfaces.SourceClient) Option {
	return func(x *Clients) {
		x.source = client
	}
}

func WithAnalysis(client interfaces.AnalysisClient) Option {
	return func(x *Clients) {
		x.analysis = client
	}
}

func WithHTTPClient(client HTTPClient) Option {
	return func(x *Clients) {
		x.httpClient = client
	}
}

func WithSourceLimiter(limiter *ratelimit.Limiter) Option {
	return func(x *Clients) {
		x.sourceLimiter = limiter
	}
}

func WithAnalysisLimiter(limiter *ratelimit.Limiter) Option {
	return func(x *Clients) {
		x.analysisLimiter = limiter
	}
}
