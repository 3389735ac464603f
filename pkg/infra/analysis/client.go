// Package analysis implements the analysis model collaborator. The service
// is treated as fallible, slow and possibly adversarial: a success response
// with an unparsable body becomes a tagged Malformed result, never a crash.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/repolens/repolens/pkg/domain/interfaces"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/ratelimit"
	"github.com/repolens/repolens/pkg/utils/logging"
	"github.com/repolens/repolens/pkg/utils/safe"
)

// maxPayloadSize bounds how much of a response body is read; maxExcerptSize
// bounds how much of a malformed payload is retained for logging.
const (
	maxPayloadSize = 1 << 20
	maxExcerptSize = 256
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	endpoint   string
	apiKey     types.AnalysisKey
	httpClient HTTPClient
	limiter    *ratelimit.Limiter
}

var _ interfaces.AnalysisClient = &Client{}

type Option func(*Client)

func WithHTTPClient(client HTTPClient) Option {
	return func(x *Client) {
		x.httpClient = client
	}
}

func New(endpoint string, apiKey types.AnalysisKey, limiter *ratelimit.Limiter, options ...Option) *Client {
	client := &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		limiter:    limiter,
	}
	for _, opt := range options {
		opt(client)
	}

	return client
}

type analyzeRequest struct {
	EntityID types.EntityID `json:"entity_id"`
	Owner    string         `json:"owner"`
	Name     string         `json:"name"`
	ScanType types.ScanType `json:"scan_type"`
	Stars    int            `json:"stars"`
	Forks    int            `json:"forks"`
	Archived bool           `json:"archived"`
}

func (x *Client) Analyze(ctx context.Context, input *interfaces.AnalyzeInput) (*model.AnalysisResult, error) {
	if err := x.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(&analyzeRequest{
		EntityID: input.Entity.ID,
		Owner:    input.Entity.Owner,
		Name:     input.Entity.Name,
		ScanType: input.ScanType,
		Stars:    input.Entity.Stars,
		Forks:    input.Entity.Forks,
		Archived: input.Entity.Archived,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal analyze request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.endpoint+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create analyze request")
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+string(x.apiKey))
	}

	resp, err := x.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, goerr.Wrap(types.ErrScanTimeout, "analyze call did not finish in time",
				goerr.V("entityID", input.Entity.ID),
			)
		}
		return nil, goerr.Wrap(types.ErrTransientExternal, "analyze request failed",
			goerr.V("entityID", input.Entity.ID),
			goerr.V("cause", err.Error()),
		)
	}
	defer safe.Close(resp.Body)

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, goerr.Wrap(types.ErrTransientExternal, "failed to read analyze response",
			goerr.V("entityID", input.Entity.ID),
		)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &model.RateLimitSignal{
			Service:    types.ServiceAnalysis,
			RetryAfter: retryAfter(resp),
		}

	case resp.StatusCode >= 500:
		return nil, goerr.Wrap(types.ErrTransientExternal, "analysis service error",
			goerr.V("entityID", input.Entity.ID),
			goerr.V("status", resp.StatusCode),
		)

	case resp.StatusCode >= 400:
		return nil, goerr.Wrap(types.ErrPermanentExternal, "analysis service rejected request",
			goerr.V("entityID", input.Entity.ID),
			goerr.V("status", resp.StatusCode),
		)
	}

	var report model.AnalysisReport
	if err := json.Unmarshal(payload, &report); err != nil {
		excerpt := payload
		if len(excerpt) > maxExcerptSize {
			excerpt = excerpt[:maxExcerptSize]
		}
		logging.From(ctx).Warn("analysis payload is not parsable",
			"entity_id", input.Entity.ID,
			"payload_size", len(payload),
			"parse_error", err.Error(),
		)

		return &model.AnalysisResult{
			Malformed: &model.MalformedPayload{
				Size:    len(payload),
				Excerpt: string(excerpt),
			},
		}, nil
	}

	return &model.AnalysisResult{Report: &report}, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Minute
}
