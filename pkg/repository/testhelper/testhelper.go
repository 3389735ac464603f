package testhelper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/repolens/repolens/pkg/domain/interfaces"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
)

// TestAll runs the repository contract against any EntityRepository
// implementation. Backend packages call it from their own tests.
func TestAll(t *testing.T, newRepo func(t *testing.T) interfaces.EntityRepository) {
	t.Run("EntityCRUD", func(t *testing.T) { testEntityCRUD(t, newRepo(t)) })
	t.Run("TierAssignment", func(t *testing.T) { testTierAssignment(t, newRepo(t)) })
	t.Run("ScanResult", func(t *testing.T) { testScanResult(t, newRepo(t)) })
	t.Run("BatchJob", func(t *testing.T) { testBatchJob(t, newRepo(t)) })
	t.Run("Checkpoint", func(t *testing.T) { testCheckpoint(t, newRepo(t)) })
}

func newEntity(id types.EntityID, stars int) *model.Entity {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &model.Entity{
		ID:        id,
		Owner:     "acme",
		Name:      string(id[5:]),
		Stars:     stars,
		Forks:     stars / 10,
		Watchers:  stars / 5,
		PushedAt:  now,
		CreatedAt: now.AddDate(-2, 0, 0),
		UpdatedAt: now,
	}
}

func testEntityCRUD(t *testing.T, repo interfaces.EntityRepository) {
	ctx := context.Background()

	entity := newEntity("acme/widget", 1200)
	gt.NoError(t, repo.CreateOrUpdateEntity(ctx, entity))

	got := gt.R1(repo.GetEntity(ctx, "acme/widget")).NoError(t)
	gt.V(t, got.Stars).Equal(1200)
	gt.V(t, got.Owner).Equal("acme")

	// Upsert is idempotent and converges to the latest write
	entity.Stars = 1300
	gt.NoError(t, repo.CreateOrUpdateEntity(ctx, entity))
	got = gt.R1(repo.GetEntity(ctx, "acme/widget")).NoError(t)
	gt.V(t, got.Stars).Equal(1300)

	_, err := repo.GetEntity(ctx, "acme/missing")
	gt.True(t, errors.Is(err, types.ErrRecordNotFound))
}

func testTierAssignment(t *testing.T, repo interfaces.EntityRepository) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	gt.NoError(t, repo.CreateOrUpdateEntity(ctx, newEntity("acme/widget", 60000)))
	gt.NoError(t, repo.CreateOrUpdateEntity(ctx, newEntity("acme/gadget", 400)))

	gt.NoError(t, repo.UpsertTierAssignment(ctx, &model.TierAssignment{
		EntityID: "acme/widget", Tier: types.Tier1, Stars: 60000,
		ScanPriority: 0.9, UpdatedAt: now,
	}))
	gt.NoError(t, repo.UpsertTierAssignment(ctx, &model.TierAssignment{
		EntityID: "acme/gadget", Tier: types.Tier3, Stars: 400,
		ScanPriority: 0.1, UpdatedAt: now,
	}))

	assigns := gt.R1(repo.ListTierAssignments(ctx, types.Tier1)).NoError(t)
	gt.A(t, assigns).Length(1)
	gt.V(t, assigns[0].EntityID).Equal("acme/widget")

	entities := gt.R1(repo.ListEntitiesByTier(ctx, types.Tier3)).NoError(t)
	gt.A(t, entities).Length(1)
	gt.V(t, entities[0].ID).Equal("acme/gadget")

	// Reclassification overwrites in place
	gt.NoError(t, repo.UpsertTierAssignment(ctx, &model.TierAssignment{
		EntityID: "acme/gadget", Tier: types.Tier2, Stars: 6000,
		ScanPriority: 0.4, UpdatedAt: now.Add(time.Hour),
	}))
	assign := gt.R1(repo.GetTierAssignment(ctx, "acme/gadget")).NoError(t)
	gt.V(t, assign.Tier).Equal(types.Tier2)

	gt.A(t, gt.R1(repo.ListTierAssignments(ctx, types.Tier3)).NoError(t)).Length(0)
}

func testScanResult(t *testing.T, repo interfaces.EntityRepository) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	gt.NoError(t, repo.CreateOrUpdateEntity(ctx, newEntity("acme/widget", 1000)))
	gt.NoError(t, repo.UpsertTierAssignment(ctx, &model.TierAssignment{
		EntityID: "acme/widget", Tier: types.Tier2, Stars: 1000, UpdatedAt: now,
	}))

	at := gt.R1(repo.GetLastScanAt(ctx, "acme/widget", types.ScanTypeDeep)).NoError(t)
	gt.True(t, at == nil)

	gt.NoError(t, repo.RecordScanResult(ctx, &model.ScanResult{
		EntityID: "acme/widget", BatchID: types.NewBatchID(),
		ScanType: types.ScanTypeDeep, Success: true,
		Report:    &model.AnalysisReport{Summary: "ok", RiskScore: 0.2, CreditsUsed: 3},
		ScannedAt: now,
	}))

	at = gt.R1(repo.GetLastScanAt(ctx, "acme/widget", types.ScanTypeDeep)).NoError(t)
	gt.True(t, at != nil)
	gt.True(t, at.Equal(now))

	// A successful scan advances the assignment timestamp too
	assign := gt.R1(repo.GetTierAssignment(ctx, "acme/widget")).NoError(t)
	gt.True(t, assign.LastDeepScanAt != nil)

	// A failed scan must not advance recency
	gt.NoError(t, repo.RecordScanResult(ctx, &model.ScanResult{
		EntityID: "acme/widget", BatchID: types.NewBatchID(),
		ScanType: types.ScanTypeDeep, Success: false, Error: "timeout",
		ScannedAt: now.Add(time.Hour),
	}))
	at = gt.R1(repo.GetLastScanAt(ctx, "acme/widget", types.ScanTypeDeep)).NoError(t)
	gt.True(t, at.Equal(now))

	// Basic scans track independently of deep scans
	at = gt.R1(repo.GetLastScanAt(ctx, "acme/widget", types.ScanTypeBasic)).NoError(t)
	gt.True(t, at == nil)
}

func testBatchJob(t *testing.T, repo interfaces.EntityRepository) {
	ctx := context.Background()
	now := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	job := model.NewBatchJob(types.ScanModeNormal, []model.ScanTask{
		{EntityID: "acme/widget", Tier: types.Tier1, ScanType: types.ScanTypeDeep},
		{EntityID: "acme/gadget", Tier: types.Tier3, ScanType: types.ScanTypeBasic},
	}, now)
	gt.NoError(t, repo.SaveBatchJob(ctx, job))

	got := gt.R1(repo.GetBatchJob(ctx, job.ID)).NoError(t)
	gt.V(t, got.Status).Equal(types.BatchStatusPending)
	gt.A(t, got.Queue).Length(2)

	// Progress updates land on the same record
	job.Status = types.BatchStatusRunning
	job.Queue = job.Queue[1:]
	job.Completed = append(job.Completed, "acme/widget")
	job.Attempted = 1
	job.Succeeded = 1
	gt.NoError(t, repo.SaveBatchJob(ctx, job))

	got = gt.R1(repo.GetBatchJob(ctx, job.ID)).NoError(t)
	gt.V(t, got.Status).Equal(types.BatchStatusRunning)
	gt.A(t, got.Queue).Length(1)
	gt.A(t, got.Completed).Length(1)

	later := model.NewBatchJob(types.ScanModeForce, nil, now.Add(time.Hour))
	gt.NoError(t, repo.SaveBatchJob(ctx, later))

	latest := gt.R1(repo.GetLatestBatchJob(ctx)).NoError(t)
	gt.V(t, latest.ID).Equal(later.ID)

	_, err := repo.GetBatchJob(ctx, types.NewBatchID())
	gt.True(t, errors.Is(err, types.ErrRecordNotFound))
}

func testCheckpoint(t *testing.T, repo interfaces.EntityRepository) {
	ctx := context.Background()
	now := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)

	job := model.NewBatchJob(types.ScanModeNormal, []model.ScanTask{
		{EntityID: "acme/widget", Tier: types.Tier1, ScanType: types.ScanTypeDeep},
		{EntityID: "acme/gadget", Tier: types.Tier2, ScanType: types.ScanTypeBasic},
		{EntityID: "acme/gizmo", Tier: types.Tier3, ScanType: types.ScanTypeBasic},
	}, now)
	gt.NoError(t, repo.SaveBatchJob(ctx, job))

	job.Queue = job.Queue[2:]
	job.Completed = append(job.Completed, "acme/widget")
	job.Failed["acme/gadget"] = "permanent rejection"
	job.CreditsUsed = 12.5

	gt.NoError(t, repo.SaveCheckpoint(ctx, job.Checkpoint(now.Add(time.Minute))))

	cp := gt.R1(repo.GetCheckpoint(ctx, job.ID)).NoError(t)
	gt.A(t, cp.Completed).Length(1)
	gt.A(t, cp.Remaining).Length(1)
	gt.V(t, cp.Failed["acme/gadget"]).Equal("permanent rejection")
	gt.V(t, cp.CreditsUsed).Equal(12.5)

	// Every entity is in exactly one partition
	gt.V(t, len(cp.Completed)+len(cp.Failed)+len(cp.Remaining)).Equal(3)

	_, err := repo.GetCheckpoint(ctx, types.NewBatchID())
	gt.True(t, errors.Is(err, types.ErrRecordNotFound))
}
