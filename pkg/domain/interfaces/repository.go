package interfaces

import (
	"context"
	"time"

	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
)

// EntityRepository is the narrow contract to the entity store. All upserts
// are idempotent: repeated writes for the same key converge, never duplicate.
type EntityRepository interface {
	// Entity operations
	CreateOrUpdateEntity(ctx context.Context, entity *model.Entity) error
	GetEntity(ctx context.Context, id types.EntityID) (*model.Entity, error)
	ListEntitiesByTier(ctx context.Context, tier types.Tier) ([]*model.Entity, error)

	// Tier assignment operations. Assignments are mutated only by the tier
	// classifier; RecordScanResult updates last-scan timestamps as a side
	// effect of persisting a result.
	UpsertTierAssignment(ctx context.Context, assign *model.TierAssignment) error
	GetTierAssignment(ctx context.Context, id types.EntityID) (*model.TierAssignment, error)
	ListTierAssignments(ctx context.Context, tier types.Tier) ([]*model.TierAssignment, error)

	// Scan result operations
	GetLastScanAt(ctx context.Context, id types.EntityID, scanType types.ScanType) (*time.Time, error)
	RecordScanResult(ctx context.Context, result *model.ScanResult) error

	// Batch persistence: job progress plus resumable checkpoints
	SaveBatchJob(ctx context.Context, job *model.BatchJob) error
	GetBatchJob(ctx context.Context, id types.BatchID) (*model.BatchJob, error)
	GetLatestBatchJob(ctx context.Context) (*model.BatchJob, error)
	SaveCheckpoint(ctx context.Context, cp *model.Checkpoint) error
	GetCheckpoint(ctx context.Context, id types.BatchID) (*model.Checkpoint, error)
}
