package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/repolens/repolens/pkg/domain/interfaces"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/repository/memory"
	"github.com/repolens/repolens/pkg/repository/testhelper"
)

func TestMemory(t *testing.T) {
	testhelper.TestAll(t, func(t *testing.T) interfaces.EntityRepository {
		return memory.New()
	})
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	gt.NoError(t, repo.CreateOrUpdateEntity(ctx, &model.Entity{
		ID: "acme/widget", Owner: "acme", Name: "widget", Stars: 100,
		CreatedAt: now, UpdatedAt: now,
	}))

	got := gt.R1(repo.GetEntity(ctx, "acme/widget")).NoError(t)
	got.Stars = 999

	again := gt.R1(repo.GetEntity(ctx, "acme/widget")).NoError(t)
	gt.V(t, again.Stars).Equal(100)

	scanned := now.Add(-time.Hour)
	gt.NoError(t, repo.UpsertTierAssignment(ctx, &model.TierAssignment{
		EntityID: "acme/widget", Tier: types.Tier2, Stars: 100,
		LastDeepScanAt: &scanned, UpdatedAt: now,
	}))

	assign := gt.R1(repo.GetTierAssignment(ctx, "acme/widget")).NoError(t)
	*assign.LastDeepScanAt = assign.LastDeepScanAt.Add(48 * time.Hour)
	gt.True(t, assign.LastBasicScanAt == nil)

	assignAgain := gt.R1(repo.GetTierAssignment(ctx, "acme/widget")).NoError(t)
	gt.V(t, *assignAgain.LastDeepScanAt).Equal(scanned)

	job := model.NewBatchJob(types.ScanModeNormal, []model.ScanTask{
		{EntityID: "acme/widget", Tier: types.Tier2, ScanType: types.ScanTypeBasic},
	}, now)
	gt.NoError(t, repo.SaveBatchJob(ctx, job))

	loaded := gt.R1(repo.GetBatchJob(ctx, job.ID)).NoError(t)
	loaded.Queue[0].EntityID = "acme/other"
	loaded.Failed["acme/other"] = "poisoned"

	reloaded := gt.R1(repo.GetBatchJob(ctx, job.ID)).NoError(t)
	gt.V(t, reloaded.Queue[0].EntityID).Equal("acme/widget")
	gt.V(t, len(reloaded.Failed)).Equal(0)
}
