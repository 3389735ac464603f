package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
)

func TestBatchJobAccounting(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	job := model.NewBatchJob(types.ScanModeNormal, []model.ScanTask{
		{EntityID: "acme/a", Tier: types.Tier1, ScanType: types.ScanTypeDeep},
		{EntityID: "acme/b", Tier: types.Tier2, ScanType: types.ScanTypeBasic},
		{EntityID: "acme/c", Tier: types.Tier3, ScanType: types.ScanTypeBasic},
	}, now)

	gt.V(t, job.Status).Equal(types.BatchStatusPending)
	gt.V(t, job.Total()).Equal(3)
	gt.V(t, job.SuccessRate()).Equal(1.0)

	job.Queue = job.Queue[1:]
	job.Completed = append(job.Completed, "acme/a")
	job.Attempted = 2
	job.Succeeded = 1
	gt.V(t, job.SuccessRate()).Equal(0.5)

	// A retried entity appears in the queue again but counts once
	job.Queue = append(job.Queue, model.ScanTask{
		EntityID: "acme/b", Tier: types.Tier2, ScanType: types.ScanTypeBasic, Attempt: 1,
	})
	gt.V(t, job.Total()).Equal(3)

	snapshot := job.Snapshot()
	gt.V(t, snapshot.Total).Equal(3)
	gt.V(t, snapshot.Completed).Equal(1)
	gt.V(t, snapshot.SuccessRate).Equal(0.5)
}

func TestCheckpointIsolation(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	job := model.NewBatchJob(types.ScanModeForce, []model.ScanTask{
		{EntityID: "acme/a", Tier: types.Tier1, ScanType: types.ScanTypeDeep},
	}, now)
	job.Completed = append(job.Completed, "acme/b")
	job.Failed["acme/c"] = "timeout"

	cp := job.Checkpoint(now.Add(time.Minute))

	// Mutating the checkpoint must not reach back into the job
	cp.Completed[0] = "acme/z"
	cp.Failed["acme/d"] = "other"
	cp.Remaining[0].EntityID = "acme/z"

	gt.V(t, job.Completed[0]).Equal(types.EntityID("acme/b"))
	gt.V(t, len(job.Failed)).Equal(1)
	gt.V(t, job.Queue[0].EntityID).Equal(types.EntityID("acme/a"))
}
