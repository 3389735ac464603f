package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/repolens/repolens/pkg/domain/interfaces"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/utils/errutil"
	"github.com/repolens/repolens/pkg/utils/logging"
)

// runBatch drives one batch job to a terminal state. It is the only writer
// of the job's state; status readers go through the run's mutex.
func (x *UseCase) runBatch(ctx context.Context, run *batchRun) {
	defer close(run.done)
	defer func() {
		x.mu.Lock()
		if x.active == run {
			x.active = nil
		}
		// Terminal runs are served from the store; keeping them here would
		// grow the registry by one entry per cycle forever.
		delete(x.runs, run.job.ID)
		x.mu.Unlock()
	}()

	logger := logging.From(ctx).With("batch_id", run.job.ID)
	ctx = logging.With(ctx, logger)

	// A stop request cancels every blocking call inside the loop
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-run.stop:
			cancel()
		case <-run.done:
		}
	}()

	x.transition(ctx, run, types.BatchStatusRunning, "")

	deadline := run.job.StartedAt.Add(x.cfg.Batch.WallClockBudget)
	sinceCheckpoint := 0

	for {
		now := logging.CtxTime(ctx)

		if run.stopRequested() {
			x.transition(ctx, run, types.BatchStatusStopped, "stop requested")
			break
		}
		if !now.Before(deadline) {
			x.transition(ctx, run, types.BatchStatusStopped, "wall-clock budget exceeded")
			break
		}

		task, pending, wait := run.nextTask(now)
		if !pending {
			x.transition(ctx, run, types.BatchStatusCompleted, "")
			break
		}
		if wait > 0 {
			// Earliest retry is still backing off
			x.pause(ctx, run, wait)
			continue
		}

		delta := x.processEntity(ctx, run, task)
		sinceCheckpoint++

		now = logging.CtxTime(ctx)
		if err := x.checkBudget(run, now, delta); err != nil {
			logger.Warn("batch budget exhausted", "error", err)
			x.transition(ctx, run, types.BatchStatusStopped, err.Error())
			break
		}

		x.evaluateHealth(ctx, run, now, deadline)

		if run.status() == types.BatchStatusCritical {
			if x.attemptRecovery(ctx, run) {
				x.transition(ctx, run, types.BatchStatusRunning, "recovered")
			} else {
				reason := "recovery attempts exhausted"
				if run.stopRequested() {
					reason = "stop requested"
				}
				x.transition(ctx, run, types.BatchStatusStopped, reason)
				break
			}
		}

		if x.cfg.Batch.CheckpointEvery > 0 && sinceCheckpoint >= x.cfg.Batch.CheckpointEvery {
			if err := x.persistProgress(ctx, run); err != nil {
				errutil.HandleError(ctx, "failed to persist batch checkpoint", err)
			}
			sinceCheckpoint = 0
		}

		// Pacing delay between dispatches to avoid bursty load even when
		// tokens are available
		x.pause(ctx, run, x.cfg.Batch.DispatchInterval)
	}

	x.reclassifyProcessed(ctx, run)

	snapshot := run.snapshot()
	logger.Info("batch finished",
		"status", snapshot.Status,
		"reason", snapshot.Reason,
		"completed", snapshot.Completed,
		"failed", snapshot.Failed,
		"remaining", snapshot.Remaining,
		"credits_used", snapshot.CreditsUsed,
	)
}

// nextTask pops the first dispatchable task. When the queue is non-empty
// but every task is still backing off, it returns pending=true with the
// wait until the earliest one becomes ready.
func (x *batchRun) nextTask(now time.Time) (model.ScanTask, bool, time.Duration) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(x.job.Queue) == 0 {
		return model.ScanTask{}, false, 0
	}

	for i, task := range x.job.Queue {
		if !task.NotBefore.After(now) {
			x.job.Queue = append(x.job.Queue[:i], x.job.Queue[i+1:]...)
			return task, true, 0
		}
	}

	earliest := x.job.Queue[0].NotBefore
	for _, task := range x.job.Queue[1:] {
		if task.NotBefore.Before(earliest) {
			earliest = task.NotBefore
		}
	}
	return model.ScanTask{}, true, earliest.Sub(now)
}

func (x *batchRun) status() types.BatchStatus {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.job.Status
}

// processEntity performs one scan: refresh metrics from the repository
// source, run the analysis call for deep scans, and fold the outcome into
// the batch state. Returns the credits consumed by this entity.
func (x *UseCase) processEntity(ctx context.Context, run *batchRun, task model.ScanTask) float64 {
	now := logging.CtxTime(ctx)

	entity, err := x.clients.EntityRepo().GetEntity(ctx, task.EntityID)
	if err != nil {
		x.applyFailure(ctx, run, task, "entity not found in store")
		return 0
	}

	// A hung external call must not stall the whole batch
	callCtx, cancel := context.WithTimeout(ctx, x.cfg.Batch.EntityTimeout)
	defer cancel()

	fresh, err := x.clients.Source().GetEntity(callCtx, entity.Owner, entity.Name)
	if err != nil {
		x.handleEntityError(ctx, run, task, err)
		return 0
	}
	fresh.CreatedAt = entity.CreatedAt
	if err := x.clients.EntityRepo().CreateOrUpdateEntity(ctx, fresh); err != nil {
		errutil.HandleError(ctx, "failed to persist refreshed entity", err)
	}

	var report *model.AnalysisReport
	var credits float64
	if task.ScanType == types.ScanTypeDeep {
		result, err := x.clients.Analysis().Analyze(callCtx, &interfaces.AnalyzeInput{
			Entity:   fresh,
			ScanType: task.ScanType,
		})
		if err != nil {
			x.handleEntityError(ctx, run, task, err)
			return 0
		}
		if !result.OK() {
			x.handleEntityError(ctx, run, task, goerr.Wrap(types.ErrMalformedResponse,
				fmt.Sprintf("analysis payload unparsable (%d bytes)", result.Malformed.Size),
				goerr.V("entityID", task.EntityID),
				goerr.V("excerpt", result.Malformed.Excerpt),
			))
			return 0
		}

		report = result.Report
		credits = report.CreditsUsed
	}

	x.recordResult(ctx, run, task, &model.ScanResult{
		EntityID:    task.EntityID,
		BatchID:     run.job.ID,
		ScanType:    task.ScanType,
		Success:     true,
		Report:      report,
		CreditsUsed: credits,
		ScannedAt:   now,
	})

	run.mu.Lock()
	run.job.Attempted++
	run.job.Succeeded++
	run.job.Completed = append(run.job.Completed, task.EntityID)
	delete(run.job.Failed, task.EntityID)
	run.job.ConsecutiveFailures = 0
	run.job.CreditsUsed += credits
	run.job.UpdatedAt = now
	run.mu.Unlock()

	x.metrics.EntitiesProcessed.WithLabelValues("success").Inc()
	if credits > 0 {
		x.metrics.CreditsUsed.Add(credits)
	}

	return credits
}

// handleEntityError converts an external failure into batch state: a
// rate-limit signal feeds the limiter and re-enqueues without charging an
// attempt, transient failures retry with exponential backoff up to the
// entity's ceiling, and everything else fails the entity permanently.
func (x *UseCase) handleEntityError(ctx context.Context, run *batchRun, task model.ScanTask, err error) {
	now := logging.CtxTime(ctx)
	logger := logging.From(ctx)

	var signal *model.RateLimitSignal
	if errors.As(err, &signal) {
		x.clients.Limiter(signal.Service).Backoff(signal.RetryAfter)
		logger.Warn("rate limited, re-enqueueing entity",
			"entity_id", task.EntityID,
			"service", signal.Service,
			"retry_after", signal.RetryAfter,
		)

		task.NotBefore = now.Add(signal.RetryAfter)
		run.mu.Lock()
		run.job.Queue = append(run.job.Queue, task)
		run.mu.Unlock()
		return
	}

	reason, transient := classifyFailure(err)

	if transient && task.Attempt < x.cfg.Batch.MaxRetriesPerEntity {
		delay := time.Duration(float64(x.cfg.Batch.RetryBaseDelay) *
			math.Pow(x.cfg.Batch.RetryMultiplier, float64(task.Attempt)))
		logger.Warn("entity scan failed, retrying",
			"entity_id", task.EntityID,
			"attempt", task.Attempt,
			"delay", delay,
			"reason", reason,
		)

		task.Attempt++
		task.NotBefore = now.Add(delay)

		run.mu.Lock()
		run.job.Attempted++
		run.job.ConsecutiveFailures++
		run.job.Queue = append(run.job.Queue, task)
		run.job.UpdatedAt = now
		run.mu.Unlock()

		x.metrics.EntitiesProcessed.WithLabelValues("retried").Inc()
		return
	}

	x.recordResult(ctx, run, task, &model.ScanResult{
		EntityID:  task.EntityID,
		BatchID:   run.job.ID,
		ScanType:  task.ScanType,
		Error:     reason,
		ScannedAt: now,
	})
	x.applyFailure(ctx, run, task, reason)
}

func (x *UseCase) applyFailure(ctx context.Context, run *batchRun, task model.ScanTask, reason string) {
	now := logging.CtxTime(ctx)

	run.mu.Lock()
	run.job.Attempted++
	run.job.ConsecutiveFailures++
	run.job.Failed[task.EntityID] = reason
	run.job.UpdatedAt = now
	run.mu.Unlock()

	logging.From(ctx).Warn("entity scan failed",
		"entity_id", task.EntityID,
		"reason", reason,
	)
	x.metrics.EntitiesProcessed.WithLabelValues("failed").Inc()
}

func (x *UseCase) recordResult(ctx context.Context, run *batchRun, task model.ScanTask, result *model.ScanResult) {
	ctx = detachStoreContext(ctx)
	if err := x.clients.EntityRepo().RecordScanResult(ctx, result); err != nil {
		errutil.HandleError(ctx, "failed to record scan result", err)
	}
}

// classifyFailure maps an error to a human-readable reason and whether a
// retry is worthwhile. Unknown errors are treated as transient; only
// explicit 4xx-style rejections and malformed payloads are permanent.
func classifyFailure(err error) (string, bool) {
	switch {
	case errors.Is(err, types.ErrScanTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout", true

	case errors.Is(err, types.ErrPermanentExternal), errors.Is(err, types.ErrMalformedResponse):
		return truncateReason(err.Error()), false

	default:
		return truncateReason(err.Error()), true
	}
}

func truncateReason(reason string) string {
	const maxLen = 200
	if len(reason) > maxLen {
		return reason[:maxLen]
	}
	return reason
}

// checkBudget enforces the per-batch credit ceiling and the rolling hourly
// ceiling, whichever triggers first. Budget violations are always fatal to
// the batch.
func (x *UseCase) checkBudget(run *batchRun, now time.Time, delta float64) error {
	hourly := x.recordSpend(now, delta)

	run.mu.Lock()
	batchCredits := run.job.CreditsUsed
	run.mu.Unlock()

	if x.cfg.Batch.MaxCreditsPerBatch > 0 && batchCredits >= x.cfg.Batch.MaxCreditsPerBatch {
		return goerr.Wrap(types.ErrBudgetExceeded,
			fmt.Sprintf("per-batch ceiling reached (%.1f/%.1f)", batchCredits, x.cfg.Batch.MaxCreditsPerBatch))
	}
	if x.cfg.Batch.MaxCreditsPerHour > 0 && hourly >= x.cfg.Batch.MaxCreditsPerHour {
		return goerr.Wrap(types.ErrBudgetExceeded,
			fmt.Sprintf("hourly ceiling reached (%.1f/%.1f)", hourly, x.cfg.Batch.MaxCreditsPerHour))
	}
	return nil
}

// evaluateHealth applies the running→degraded and →critical transitions
// after every processed entity.
func (x *UseCase) evaluateHealth(ctx context.Context, run *batchRun, now time.Time, deadline time.Time) {
	run.mu.Lock()
	job := run.job
	consecutive := job.ConsecutiveFailures
	attempted := job.Attempted
	successRate := job.SuccessRate()
	total := job.Total()
	status := job.Status
	run.mu.Unlock()

	if status.Terminal() || status == types.BatchStatusCritical {
		return
	}

	if consecutive > x.cfg.Batch.MaxConsecutiveFailures {
		x.transition(ctx, run, types.BatchStatusCritical,
			fmt.Sprintf("%d consecutive failures", consecutive))
		return
	}

	if status != types.BatchStatusRunning {
		return
	}

	if attempted >= x.cfg.Batch.MinAttemptsForHealth && successRate < x.cfg.Batch.SuccessRateFloor {
		x.transition(ctx, run, types.BatchStatusDegraded,
			fmt.Sprintf("success rate %.2f below floor", successRate))
		return
	}

	halfBudget := run.job.StartedAt.Add(x.cfg.Batch.WallClockBudget / 2)
	if now.After(halfBudget) && attempted*2 < total {
		x.transition(ctx, run, types.BatchStatusDegraded, "throughput below expectation")
	}
}

// attemptRecovery runs the critical→running path: wait out the backoff,
// persist a checkpoint and reset the failure streak. Returns false when the
// checkpoint cannot be written or the attempt budget is exhausted.
func (x *UseCase) attemptRecovery(ctx context.Context, run *batchRun) bool {
	run.mu.Lock()
	run.job.RecoveryAttempts++
	attempt := run.job.RecoveryAttempts
	run.mu.Unlock()

	if attempt > x.cfg.Batch.MaxRecoveryAttempts {
		return false
	}

	logging.From(ctx).Warn("attempting batch recovery",
		"attempt", attempt,
		"max_attempts", x.cfg.Batch.MaxRecoveryAttempts,
	)

	if !x.pause(ctx, run, time.Duration(attempt)*x.cfg.Batch.RecoveryDelay) {
		return false
	}

	if err := x.persistProgress(ctx, run); err != nil {
		errutil.HandleError(ctx, "recovery checkpoint failed", err)
		return false
	}

	run.mu.Lock()
	run.job.ConsecutiveFailures = 0
	run.mu.Unlock()

	return true
}

// transition moves the job to a new status, logs it, persists progress and
// counts terminal outcomes.
func (x *UseCase) transition(ctx context.Context, run *batchRun, status types.BatchStatus, reason string) {
	run.mu.Lock()
	from := run.job.Status
	run.job.Status = status
	run.job.Reason = reason
	run.job.UpdatedAt = logging.CtxTime(ctx)
	run.mu.Unlock()

	logging.From(ctx).Info("batch status transition",
		"from", from,
		"to", status,
		"reason", reason,
	)

	if err := x.persistProgress(ctx, run); err != nil {
		errutil.HandleError(ctx, "failed to persist batch state", err)
	}

	if status.Terminal() {
		x.metrics.BatchesFinished.WithLabelValues(string(status)).Inc()
	}
}

// detachStoreContext rebases ctx on context.Background() keeping the logger
// and clock. Store writes must survive a stop request: the run context is
// canceled on stop, and a dropped terminal state would let the batch resume.
func detachStoreContext(ctx context.Context) context.Context {
	bgCtx := logging.With(context.Background(), logging.From(ctx))
	return logging.InheritContextValues(bgCtx, ctx)
}

// persistProgress writes the job record and a checkpoint so a restart can
// resume without reprocessing completed work.
func (x *UseCase) persistProgress(ctx context.Context, run *batchRun) error {
	ctx = detachStoreContext(ctx)
	now := logging.CtxTime(ctx)

	run.mu.Lock()
	defer run.mu.Unlock()

	if err := x.clients.EntityRepo().SaveBatchJob(ctx, run.job); err != nil {
		return err
	}
	return x.clients.EntityRepo().SaveCheckpoint(ctx, run.job.Checkpoint(now))
}

// pause sleeps cooperatively; returns false when interrupted by a stop
// request or context cancellation.
func (x *UseCase) pause(ctx context.Context, run *batchRun, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-run.stop:
		return false
	case <-timer.C:
		return true
	}
}

// reclassifyProcessed feeds the fresh metrics of every processed entity
// back into the tier classifier once the batch is terminal.
func (x *UseCase) reclassifyProcessed(ctx context.Context, run *batchRun) {
	ctx = detachStoreContext(ctx)
	run.mu.Lock()
	ids := make([]types.EntityID, 0, len(run.job.Completed)+len(run.job.Failed))
	ids = append(ids, run.job.Completed...)
	for id := range run.job.Failed {
		ids = append(ids, id)
	}
	run.mu.Unlock()

	now := logging.CtxTime(ctx)
	repo := x.clients.EntityRepo()

	for _, id := range ids {
		entity, err := repo.GetEntity(ctx, id)
		if err != nil {
			logging.From(ctx).Warn("skip reclassification of missing entity", "entity_id", id)
			continue
		}

		prev, err := repo.GetTierAssignment(ctx, id)
		if err != nil {
			prev = nil
		}

		assign := model.NewAssignment(x.cfg.Thresholds, entity, prev, now)
		if err := repo.UpsertTierAssignment(ctx, assign); err != nil {
			errutil.HandleError(ctx, "failed to upsert tier assignment", err)
		}
	}
}
