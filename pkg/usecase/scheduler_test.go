package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
)

func TestStartScanRejectsWhileActive(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()

	seedDue(t, env, "acme/only", types.Tier1, 0.9, types.ScanTypeBasic)

	release := make(chan struct{})
	env.source.GetEntityFunc = func(ctx context.Context, owner, name string) (*model.Entity, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return env.repo.GetEntity(ctx, types.EntityID(owner+"/"+name))
	}

	result := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)

	_, err := env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeForce})
	gt.True(t, errors.Is(err, types.ErrBatchActive))

	// The timer entry point defers instead of failing
	gt.NoError(t, env.uc.Tick(ctx))

	close(release)
	snapshot := waitTerminal(t, env, result.BatchID)
	gt.V(t, snapshot.Status).Equal(types.BatchStatusCompleted)
}

func TestStartScanValidatesMode(t *testing.T) {
	env := newTestEnv(t, fastConfig())

	_, err := env.uc.StartScan(context.Background(), &model.StartScanInput{Mode: "aggressive"})
	gt.True(t, errors.Is(err, types.ErrValidationFailed))
}

func TestTickWithNothingDue(t *testing.T) {
	env := newTestEnv(t, fastConfig())

	seedFresh(t, env, "acme/fresh", types.Tier1)
	gt.NoError(t, env.uc.Tick(context.Background()))
	gt.A(t, env.source.GetEntityCalls()).Length(0)
}

func TestResumeInterruptedBatch(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()
	now := time.Now()

	seedDue(t, env, "acme/done", types.Tier1, 0.9, types.ScanTypeBasic)
	seedDue(t, env, "acme/todo", types.Tier1, 0.8, types.ScanTypeBasic)

	// Persist the state a crashed run would leave behind: one entity done,
	// one still queued
	job := model.NewBatchJob(types.ScanModeNormal, []model.ScanTask{
		{EntityID: "acme/done", Tier: types.Tier1, ScanType: types.ScanTypeBasic},
		{EntityID: "acme/todo", Tier: types.Tier1, ScanType: types.ScanTypeBasic},
	}, now.Add(-time.Minute))
	job.Status = types.BatchStatusRunning
	job.Queue = job.Queue[1:]
	job.Completed = append(job.Completed, "acme/done")
	job.Attempted = 1
	job.Succeeded = 1
	gt.NoError(t, env.repo.SaveBatchJob(ctx, job))
	gt.NoError(t, env.repo.SaveCheckpoint(ctx, job.Checkpoint(now.Add(-time.Minute))))

	result := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	gt.True(t, result.Resumed)
	gt.V(t, result.BatchID).Equal(job.ID)

	snapshot := waitTerminal(t, env, result.BatchID)
	gt.V(t, snapshot.Status).Equal(types.BatchStatusCompleted)
	gt.V(t, snapshot.Completed).Equal(2)

	// Only the remaining entity was reprocessed
	gt.A(t, env.source.GetEntityCalls()).Length(1)
	gt.V(t, env.source.GetEntityCalls()[0].Name).Equal("todo")
}

func TestTerminalBatchIsNotResumed(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()
	now := time.Now()

	seedDue(t, env, "acme/next", types.Tier2, 0.5, types.ScanTypeBasic)

	job := model.NewBatchJob(types.ScanModeNormal, nil, now.Add(-time.Hour))
	job.Status = types.BatchStatusCompleted
	gt.NoError(t, env.repo.SaveBatchJob(ctx, job))

	result := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	gt.False(t, result.Resumed)
	gt.True(t, result.BatchID != job.ID)
	waitTerminal(t, env, result.BatchID)
}

func TestGetBatchStatusUnknown(t *testing.T) {
	env := newTestEnv(t, fastConfig())

	_, err := env.uc.GetBatchStatus(context.Background(), types.NewBatchID())
	gt.True(t, errors.Is(err, types.ErrRecordNotFound))
}

func TestStopUnknownBatch(t *testing.T) {
	env := newTestEnv(t, fastConfig())

	err := env.uc.StopBatch(context.Background(), types.NewBatchID())
	gt.True(t, errors.Is(err, types.ErrRecordNotFound))
}

func TestSyncEntities(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()
	now := time.Now()

	env.source.ListEntitiesByOwnerFunc = func(ctx context.Context, owner string) ([]*model.Entity, error) {
		return []*model.Entity{
			{ID: "acme/big", Owner: "acme", Name: "big", Stars: 80000,
				CreatedAt: now.AddDate(-3, 0, 0), UpdatedAt: now},
			{ID: "acme/small", Owner: "acme", Name: "small", Stars: 12,
				CreatedAt: now.AddDate(0, -1, 0), UpdatedAt: now},
		}, nil
	}

	count := gt.R1(env.uc.SyncEntities(ctx, "acme")).NoError(t)
	gt.V(t, count).Equal(2)

	big := gt.R1(env.repo.GetTierAssignment(ctx, "acme/big")).NoError(t)
	gt.V(t, big.Tier).Equal(types.Tier1)

	small := gt.R1(env.repo.GetTierAssignment(ctx, "acme/small")).NoError(t)
	gt.V(t, small.Tier).Equal(types.Tier3)

	// Discovered entities have never been scanned, so a scan is now due
	result := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	gt.False(t, result.NothingDue)
	waitTerminal(t, env, result.BatchID)
}

func TestSyncEntitiesRequiresOwner(t *testing.T) {
	env := newTestEnv(t, fastConfig())

	_, err := env.uc.SyncEntities(context.Background(), "")
	gt.True(t, errors.Is(err, types.ErrValidationFailed))
}
