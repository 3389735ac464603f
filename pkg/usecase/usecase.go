// Package usecase implements the tiered scan scheduler: staleness-driven
// work selection, the batch orchestrator state machine, and the timer glue
// that keeps one bounded batch running at a time.
package usecase

import (
	"sync"
	"time"

	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/infra"
	"github.com/repolens/repolens/pkg/utils/metrics"
)

type UseCase struct {
	clients *infra.Clients
	cfg     *Config
	metrics *metrics.Registry

	// mu guards the single-batch invariant and the run registry
	mu     sync.Mutex
	active *batchRun
	runs   map[types.BatchID]*batchRun

	// spend tracks credit use across batches for the rolling hourly ceiling
	spendMu sync.Mutex
	spend   []creditSpend
}

type creditSpend struct {
	at      time.Time
	credits float64
}

type Option func(*UseCase)

func WithConfig(cfg *Config) Option {
	return func(x *UseCase) {
		x.cfg = cfg
	}
}

func WithMetrics(registry *metrics.Registry) Option {
	return func(x *UseCase) {
		x.metrics = registry
	}
}

func New(clients *infra.Clients, options ...Option) *UseCase {
	uc := &UseCase{
		clients: clients,
		cfg:     DefaultConfig(),
		metrics: metrics.New(),
		runs:    map[types.BatchID]*batchRun{},
	}

	for _, opt := range options {
		opt(uc)
	}

	return uc
}

// batchRun is the in-memory runtime state of one batch: the job record plus
// the stop signal and completion latch shared with status readers.
type batchRun struct {
	mu  sync.Mutex
	job *model.BatchJob

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newBatchRun(job *model.BatchJob) *batchRun {
	return &batchRun{
		job:  job,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (x *batchRun) requestStop() {
	x.stopOnce.Do(func() {
		close(x.stop)
	})
}

func (x *batchRun) stopRequested() bool {
	select {
	case <-x.stop:
		return true
	default:
		return false
	}
}

func (x *batchRun) snapshot() *model.BatchSnapshot {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.job.Snapshot()
}

// recordSpend appends to the rolling credit window and returns the total
// spent over the past hour.
func (x *UseCase) recordSpend(now time.Time, credits float64) float64 {
	x.spendMu.Lock()
	defer x.spendMu.Unlock()

	if credits > 0 {
		x.spend = append(x.spend, creditSpend{at: now, credits: credits})
	}

	cutoff := now.Add(-time.Hour)
	var kept []creditSpend
	var total float64
	for _, s := range x.spend {
		if s.at.After(cutoff) {
			kept = append(kept, s)
			total += s.credits
		}
	}
	x.spend = kept

	return total
}
