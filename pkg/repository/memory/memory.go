package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
)

// Client is an in-memory implementation of interfaces.EntityRepository for
// tests and local development. All reads return deep copies so callers can
// never mutate the store through a returned pointer.
type Client struct {
	mu sync.RWMutex

	entities    map[types.EntityID]*model.Entity
	assignments map[types.EntityID]*model.TierAssignment
	results     []*model.ScanResult
	lastScan    map[types.EntityID]map[types.ScanType]time.Time
	jobs        map[types.BatchID]*model.BatchJob
	jobOrder    []types.BatchID
	checkpoints map[types.BatchID]*model.Checkpoint
}

func New() *Client {
	return &Client{
		entities:    map[types.EntityID]*model.Entity{},
		assignments: map[types.EntityID]*model.TierAssignment{},
		lastScan:    map[types.EntityID]map[types.ScanType]time.Time{},
		jobs:        map[types.BatchID]*model.BatchJob{},
		checkpoints: map[types.BatchID]*model.Checkpoint{},
	}
}

func (x *Client) CreateOrUpdateEntity(ctx context.Context, entity *model.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.entities[entity.ID] = copyEntity(entity)
	return nil
}

func (x *Client) GetEntity(ctx context.Context, id types.EntityID) (*model.Entity, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	entity, ok := x.entities[id]
	if !ok {
		return nil, goerr.Wrap(types.ErrRecordNotFound, "entity not found",
			goerr.V("entity_id", id),
		)
	}
	return copyEntity(entity), nil
}

func (x *Client) ListEntitiesByTier(ctx context.Context, tier types.Tier) ([]*model.Entity, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var entities []*model.Entity
	for id, assign := range x.assignments {
		if assign.Tier != tier {
			continue
		}
		if entity, ok := x.entities[id]; ok {
			entities = append(entities, copyEntity(entity))
		}
	}

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID < entities[j].ID
	})
	return entities, nil
}

func (x *Client) UpsertTierAssignment(ctx context.Context, assign *model.TierAssignment) error {
	if err := assign.Validate(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.assignments[assign.EntityID] = copyAssignment(assign)
	return nil
}

func (x *Client) GetTierAssignment(ctx context.Context, id types.EntityID) (*model.TierAssignment, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	assign, ok := x.assignments[id]
	if !ok {
		return nil, goerr.Wrap(types.ErrRecordNotFound, "tier assignment not found",
			goerr.V("entity_id", id),
		)
	}
	return copyAssignment(assign), nil
}

func (x *Client) ListTierAssignments(ctx context.Context, tier types.Tier) ([]*model.TierAssignment, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var assigns []*model.TierAssignment
	for _, assign := range x.assignments {
		if assign.Tier == tier {
			assigns = append(assigns, copyAssignment(assign))
		}
	}

	sort.Slice(assigns, func(i, j int) bool {
		return assigns[i].EntityID < assigns[j].EntityID
	})
	return assigns, nil
}

func (x *Client) GetLastScanAt(ctx context.Context, id types.EntityID, scanType types.ScanType) (*time.Time, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	scans, ok := x.lastScan[id]
	if !ok {
		return nil, nil
	}
	at, ok := scans[scanType]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

// RecordScanResult appends the result and, on success, advances the
// entity's last-scan timestamp so the staleness selector will not pick it
// again until the interval elapses. Failed scans leave the timestamp
// untouched so the entity stays due.
func (x *Client) RecordScanResult(ctx context.Context, result *model.ScanResult) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	clone := *result
	if result.Report != nil {
		report := *result.Report
		report.Topics = append([]string{}, result.Report.Topics...)
		clone.Report = &report
	}
	x.results = append(x.results, &clone)

	if !result.Success {
		return nil
	}

	scans, ok := x.lastScan[result.EntityID]
	if !ok {
		scans = map[types.ScanType]time.Time{}
		x.lastScan[result.EntityID] = scans
	}
	scans[result.ScanType] = result.ScannedAt

	if assign, ok := x.assignments[result.EntityID]; ok {
		at := result.ScannedAt
		switch result.ScanType {
		case types.ScanTypeDeep:
			assign.LastDeepScanAt = &at
		case types.ScanTypeBasic:
			assign.LastBasicScanAt = &at
		}
	}
	return nil
}

func (x *Client) SaveBatchJob(ctx context.Context, job *model.BatchJob) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.jobs[job.ID]; !ok {
		x.jobOrder = append(x.jobOrder, job.ID)
	}
	x.jobs[job.ID] = copyBatchJob(job)
	return nil
}

func (x *Client) GetBatchJob(ctx context.Context, id types.BatchID) (*model.BatchJob, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	job, ok := x.jobs[id]
	if !ok {
		return nil, goerr.Wrap(types.ErrRecordNotFound, "batch job not found",
			goerr.V("batch_id", id),
		)
	}
	return copyBatchJob(job), nil
}

func (x *Client) GetLatestBatchJob(ctx context.Context) (*model.BatchJob, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.jobOrder) == 0 {
		return nil, goerr.Wrap(types.ErrRecordNotFound, "no batch job recorded")
	}
	return copyBatchJob(x.jobs[x.jobOrder[len(x.jobOrder)-1]]), nil
}

func (x *Client) SaveCheckpoint(ctx context.Context, cp *model.Checkpoint) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.checkpoints[cp.BatchID] = copyCheckpoint(cp)
	return nil
}

func (x *Client) GetCheckpoint(ctx context.Context, id types.BatchID) (*model.Checkpoint, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	cp, ok := x.checkpoints[id]
	if !ok {
		return nil, goerr.Wrap(types.ErrRecordNotFound, "checkpoint not found",
			goerr.V("batch_id", id),
		)
	}
	return copyCheckpoint(cp), nil
}

// ScanResults returns all recorded results. Test helper, not part of the
// repository contract.
func (x *Client) ScanResults() []*model.ScanResult {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]*model.ScanResult{}, x.results...)
}

func copyEntity(entity *model.Entity) *model.Entity {
	clone := *entity
	return &clone
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

func copyAssignment(assign *model.TierAssignment) *model.TierAssignment {
	clone := *assign
	clone.LastDeepScanAt = copyTime(assign.LastDeepScanAt)
	clone.LastBasicScanAt = copyTime(assign.LastBasicScanAt)
	return &clone
}

func copyBatchJob(job *model.BatchJob) *model.BatchJob {
	clone := *job
	clone.Queue = append([]model.ScanTask{}, job.Queue...)
	clone.Completed = append([]types.EntityID{}, job.Completed...)
	clone.Failed = make(map[types.EntityID]string, len(job.Failed))
	for id, reason := range job.Failed {
		clone.Failed[id] = reason
	}
	return &clone
}

func copyCheckpoint(cp *model.Checkpoint) *model.Checkpoint {
	clone := *cp
	clone.Completed = append([]types.EntityID{}, cp.Completed...)
	clone.Remaining = append([]model.ScanTask{}, cp.Remaining...)
	clone.Failed = make(map[types.EntityID]string, len(cp.Failed))
	for id, reason := range cp.Failed {
		clone.Failed[id] = reason
	}
	return &clone
}
