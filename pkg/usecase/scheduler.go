package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/utils/logging"
)

// StartScan selects due entities across all tiers and launches one batch.
// An interrupted batch from a previous run is resumed instead of starting
// fresh. When nothing is due it returns the non-error "nothing due"
// descriptor with per-tier coverage.
func (x *UseCase) StartScan(ctx context.Context, input *model.StartScanInput) (*model.ScanStartResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	x.mu.Lock()
	busy := x.active != nil
	x.mu.Unlock()
	if busy {
		return nil, goerr.Wrap(types.ErrBatchActive, "scan request rejected")
	}

	now := logging.CtxTime(ctx)

	if job := x.resumableJob(ctx); job != nil {
		run, err := x.launch(ctx, job)
		if err != nil {
			return nil, err
		}
		logging.From(ctx).Info("resuming interrupted batch",
			"batch_id", run.job.ID,
			"remaining", len(run.job.Queue),
		)
		return &model.ScanStartResult{BatchID: run.job.ID, Resumed: true}, nil
	}

	var queue []model.ScanTask
	var coverage []model.TierCoverage
	for _, tier := range types.AllTiers() {
		selection, err := x.selectDue(ctx, tier, now, input.Mode)
		if err != nil {
			return nil, err
		}
		// Tier order builds precedence into the queue itself
		queue = append(queue, selection.tasks...)
		coverage = append(coverage, selection.coverage)
	}

	if len(queue) == 0 {
		result := &model.ScanStartResult{
			NothingDue: true,
			Coverage:   coverage,
			Suggestion: "all entities are within their staleness windows; retry later or use force mode",
		}
		if input.Mode == types.ScanModeForce {
			result.Suggestion = "all entities are fresh even with shortened windows; retry later"
		}
		return result, nil
	}

	job := model.NewBatchJob(input.Mode, queue, now)
	run, err := x.launch(ctx, job)
	if err != nil {
		return nil, err
	}

	logging.From(ctx).Info("batch started",
		"batch_id", job.ID,
		"mode", input.Mode,
		"entities", len(queue),
	)
	return &model.ScanStartResult{BatchID: run.job.ID, Coverage: coverage}, nil
}

// resumableJob returns the latest persisted batch when it was interrupted
// mid-flight, rebuilt from its checkpoint. Returns nil when there is
// nothing to resume.
func (x *UseCase) resumableJob(ctx context.Context) *model.BatchJob {
	job, err := x.clients.EntityRepo().GetLatestBatchJob(ctx)
	if err != nil {
		if !errors.Is(err, types.ErrRecordNotFound) {
			logging.From(ctx).Warn("failed to load latest batch job", "error", err)
		}
		return nil
	}
	if job.Status.Terminal() {
		return nil
	}

	if cp, err := x.clients.EntityRepo().GetCheckpoint(ctx, job.ID); err == nil {
		job.Queue = cp.Remaining
		job.Completed = cp.Completed
		job.Failed = cp.Failed
		job.CreditsUsed = cp.CreditsUsed
	}
	if job.Failed == nil {
		job.Failed = map[types.EntityID]string{}
	}
	job.Status = types.BatchStatusPending
	job.Reason = ""
	return job
}

// launch claims the single-active slot and starts the batch goroutine. The
// goroutine outlives the request, so it runs on a detached context that
// keeps the request's logger and clock.
func (x *UseCase) launch(ctx context.Context, job *model.BatchJob) (*batchRun, error) {
	run := newBatchRun(job)

	x.mu.Lock()
	if x.active != nil {
		x.mu.Unlock()
		return nil, goerr.Wrap(types.ErrBatchActive, "scan request rejected")
	}
	x.active = run
	x.runs[job.ID] = run
	x.mu.Unlock()

	if err := x.persistProgress(ctx, run); err != nil {
		x.mu.Lock()
		x.active = nil
		delete(x.runs, job.ID)
		x.mu.Unlock()
		return nil, goerr.Wrap(err, "failed to persist new batch job")
	}

	bg := logging.InheritContextValues(context.Background(), ctx)
	go x.runBatch(bg, run)

	return run, nil
}

// GetBatchStatus returns a snapshot for a live or persisted batch.
func (x *UseCase) GetBatchStatus(ctx context.Context, id types.BatchID) (*model.BatchSnapshot, error) {
	if run := x.lookupRun(id); run != nil {
		return run.snapshot(), nil
	}

	job, err := x.clients.EntityRepo().GetBatchJob(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get batch job", goerr.V("batch_id", id))
	}
	return job.Snapshot(), nil
}

// StopBatch requests a cooperative stop. Stopping a batch that already
// reached a terminal state is a no-op.
func (x *UseCase) StopBatch(ctx context.Context, id types.BatchID) error {
	if run := x.lookupRun(id); run != nil {
		run.requestStop()
		logging.From(ctx).Info("batch stop requested", "batch_id", id)
		return nil
	}

	job, err := x.clients.EntityRepo().GetBatchJob(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to get batch job", goerr.V("batch_id", id))
	}
	if job.Status.Terminal() {
		return nil
	}
	return goerr.New("batch is not attached to this instance",
		goerr.V("batch_id", id),
	)
}

// WaitBatch blocks until the batch reaches a terminal state or the context
// is canceled.
func (x *UseCase) WaitBatch(ctx context.Context, id types.BatchID) (*model.BatchSnapshot, error) {
	run := x.lookupRun(id)
	if run == nil {
		snapshot, err := x.GetBatchStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if !snapshot.Status.Terminal() {
			return nil, goerr.New("batch is not attached to this instance",
				goerr.V("batch_id", id),
			)
		}
		return snapshot, nil
	}

	select {
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "canceled while waiting for batch",
			goerr.V("batch_id", id),
		)
	case <-run.done:
		return run.snapshot(), nil
	}
}

// Tick is the timer entry point. A still-running batch defers the cycle
// instead of failing it.
func (x *UseCase) Tick(ctx context.Context) error {
	result, err := x.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})
	if err != nil {
		if errors.Is(err, types.ErrBatchActive) {
			logging.From(ctx).Info("previous batch still active, deferring cycle")
			return nil
		}
		return err
	}

	if result.NothingDue {
		logging.From(ctx).Info("nothing due this cycle", "coverage", result.Coverage)
	}
	return nil
}

// SyncEntities discovers every entity of an owner from the repository
// source, upserts them and classifies each one. Returns the number of
// entities synced.
func (x *UseCase) SyncEntities(ctx context.Context, owner string) (int, error) {
	if owner == "" {
		return 0, goerr.Wrap(types.ErrValidationFailed, "owner is required")
	}

	entities, err := x.clients.Source().ListEntitiesByOwner(ctx, owner)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list entities", goerr.V("owner", owner))
	}

	now := logging.CtxTime(ctx)
	repo := x.clients.EntityRepo()

	for _, entity := range entities {
		if err := repo.CreateOrUpdateEntity(ctx, entity); err != nil {
			return 0, goerr.Wrap(err, "failed to save entity", goerr.V("entity_id", entity.ID))
		}

		prev, err := repo.GetTierAssignment(ctx, entity.ID)
		if err != nil {
			prev = nil
		}

		assign := model.NewAssignment(x.cfg.Thresholds, entity, prev, now)
		if err := repo.UpsertTierAssignment(ctx, assign); err != nil {
			return 0, goerr.Wrap(err, "failed to save tier assignment", goerr.V("entity_id", entity.ID))
		}
	}

	logging.From(ctx).Info("entities synced", "owner", owner, "count", len(entities))
	return len(entities), nil
}

func (x *UseCase) lookupRun(id types.BatchID) *batchRun {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.runs[id]
}
