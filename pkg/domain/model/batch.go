package model

import (
	"time"

	"github.com/repolens/repolens/pkg/domain/types"
)

// ScanTask is one queued unit of work inside a batch: one entity, one scan
// type, with its retry attempt count and an earliest dispatch time set by
// retry backoff.
type ScanTask struct {
	EntityID  types.EntityID
	Tier      types.Tier
	ScanType  types.ScanType
	Attempt   int
	NotBefore time.Time
}

// BatchJob is one bounded, resumable pass of entity processing.
// Mutated only by the batch orchestrator.
type BatchJob struct {
	ID        types.BatchID
	Mode      types.ScanMode
	Status    types.BatchStatus
	Reason    string
	StartedAt time.Time
	UpdatedAt time.Time

	// Queue holds tasks not yet attempted (or re-enqueued for retry),
	// ordered tier 1 first, then by scan priority and staleness.
	Queue     []ScanTask
	Completed []types.EntityID
	Failed    map[types.EntityID]string

	ConsecutiveFailures int
	RecoveryAttempts    int
	CreditsUsed         float64

	Attempted int
	Succeeded int
}

func NewBatchJob(mode types.ScanMode, queue []ScanTask, now time.Time) *BatchJob {
	return &BatchJob{
		ID:        types.NewBatchID(),
		Mode:      mode,
		Status:    types.BatchStatusPending,
		StartedAt: now,
		UpdatedAt: now,
		Queue:     queue,
		Failed:    map[types.EntityID]string{},
	}
}

// Total returns the number of distinct entities the batch is responsible for
func (x *BatchJob) Total() int {
	seen := map[types.EntityID]struct{}{}
	for _, id := range x.Completed {
		seen[id] = struct{}{}
	}
	for id := range x.Failed {
		seen[id] = struct{}{}
	}
	for _, task := range x.Queue {
		seen[task.EntityID] = struct{}{}
	}
	return len(seen)
}

// SuccessRate is the fraction of attempted entities that succeeded.
// Returns 1.0 before anything was attempted so health checks do not trip
// on an empty window.
func (x *BatchJob) SuccessRate() float64 {
	if x.Attempted == 0 {
		return 1.0
	}
	return float64(x.Succeeded) / float64(x.Attempted)
}

// Checkpoint captures batch progress so a restart resumes without
// reprocessing completed work or losing failure history.
type Checkpoint struct {
	BatchID     types.BatchID
	Completed   []types.EntityID
	Failed      map[types.EntityID]string
	Remaining   []ScanTask
	CreditsUsed float64
	TakenAt     time.Time
}

// Checkpoint snapshots the current progress of the batch
func (x *BatchJob) Checkpoint(now time.Time) *Checkpoint {
	cp := &Checkpoint{
		BatchID:     x.ID,
		Completed:   append([]types.EntityID{}, x.Completed...),
		Failed:      make(map[types.EntityID]string, len(x.Failed)),
		Remaining:   append([]ScanTask{}, x.Queue...),
		CreditsUsed: x.CreditsUsed,
		TakenAt:     now,
	}
	for id, reason := range x.Failed {
		cp.Failed[id] = reason
	}
	return cp
}

// BatchSnapshot is the read-only status view exposed to API consumers.
// It is always well-formed, even while the batch is failing.
type BatchSnapshot struct {
	ID                  types.BatchID     `json:"id"`
	Mode                types.ScanMode    `json:"mode"`
	Status              types.BatchStatus `json:"status"`
	Reason              string            `json:"reason,omitempty"`
	StartedAt           time.Time         `json:"started_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
	Total               int               `json:"total"`
	Completed           int               `json:"completed"`
	Failed              int               `json:"failed"`
	Remaining           int               `json:"remaining"`
	SuccessRate         float64           `json:"success_rate"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	RecoveryAttempts    int               `json:"recovery_attempts"`
	CreditsUsed         float64           `json:"credits_used"`
}

func (x *BatchJob) Snapshot() *BatchSnapshot {
	return &BatchSnapshot{
		ID:                  x.ID,
		Mode:                x.Mode,
		Status:              x.Status,
		Reason:              x.Reason,
		StartedAt:           x.StartedAt,
		UpdatedAt:           x.UpdatedAt,
		Total:               x.Total(),
		Completed:           len(x.Completed),
		Failed:              len(x.Failed),
		Remaining:           len(x.Queue),
		SuccessRate:         x.SuccessRate(),
		ConsecutiveFailures: x.ConsecutiveFailures,
		RecoveryAttempts:    x.RecoveryAttempts,
		CreditsUsed:         x.CreditsUsed,
	}
}
