package interfaces

//go:generate moq -out ../mock/infra.go -pkg mock . SourceClient AnalysisClient

import (
	"context"

	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
)

// SourceClient provides entity metrics from the repository source service.
// Treated as fallible and possibly slow; all calls must go through the
// source rate limiter.
type SourceClient interface {
	GetEntity(ctx context.Context, owner, name string) (*model.Entity, error)
	ListEntitiesByOwner(ctx context.Context, owner string) ([]*model.Entity, error)
}

type AnalyzeInput struct {
	Entity   *model.Entity
	ScanType types.ScanType
}

// AnalysisClient provides the per-entity analysis result. A success response
// with an unparsable payload is returned as a Malformed result, never as an
// error. An upstream throttle is returned as *model.RateLimitSignal.
type AnalysisClient interface {
	Analyze(ctx context.Context, input *AnalyzeInput) (*model.AnalysisResult, error)
}
