package usecase_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/repolens/repolens/pkg/domain/interfaces"
	"github.com/repolens/repolens/pkg/domain/mock"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/infra"
	"github.com/repolens/repolens/pkg/repository/memory"
	"github.com/repolens/repolens/pkg/usecase"
	"github.com/repolens/repolens/pkg/utils/logging"
)

type testEnv struct {
	repo     *memory.Client
	source   *mock.SourceClientMock
	analysis *mock.AnalysisClientMock
	uc       *usecase.UseCase
}

// fastConfig shrinks every wait so batches finish in test time.
func fastConfig() *usecase.Config {
	cfg := usecase.DefaultConfig()
	cfg.Batch.DispatchInterval = 0
	cfg.Batch.RetryBaseDelay = time.Millisecond
	cfg.Batch.RecoveryDelay = time.Millisecond
	cfg.Batch.EntityTimeout = 5 * time.Second
	cfg.Batch.WallClockBudget = 30 * time.Second
	return cfg
}

func newTestEnv(t *testing.T, cfg *usecase.Config) *testEnv {
	repo := memory.New()

	env := &testEnv{repo: repo}
	env.source = &mock.SourceClientMock{
		GetEntityFunc: func(ctx context.Context, owner, name string) (*model.Entity, error) {
			return repo.GetEntity(ctx, types.EntityID(owner+"/"+name))
		},
	}
	env.analysis = &mock.AnalysisClientMock{
		AnalyzeFunc: func(ctx context.Context, input *interfaces.AnalyzeInput) (*model.AnalysisResult, error) {
			return &model.AnalysisResult{
				Report: &model.AnalysisReport{Summary: "ok", RiskScore: 0.1, CreditsUsed: 1},
			}, nil
		},
	}

	clients := infra.New(
		infra.WithEntityRepo(repo),
		infra.WithSource(env.source),
		infra.WithAnalysis(env.analysis),
	)
	env.uc = usecase.New(clients, usecase.WithConfig(cfg))
	return env
}

// seedDue registers an entity whose given scan type has never run, so it is
// always selected.
func seedDue(t *testing.T, env *testEnv, id types.EntityID, tier types.Tier, priority float64, scanType types.ScanType) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	parts := strings.SplitN(string(id), "/", 2)
	gt.NoError(t, env.repo.CreateOrUpdateEntity(ctx, &model.Entity{
		ID: id, Owner: parts[0], Name: parts[1], Stars: 1000,
		CreatedAt: now.AddDate(-1, 0, 0), UpdatedAt: now,
	}))

	assign := &model.TierAssignment{
		EntityID: id, Tier: tier, Stars: 1000,
		ScanPriority: priority, UpdatedAt: now,
	}
	recent := now.Add(-time.Minute)
	switch scanType {
	case types.ScanTypeDeep:
		assign.LastBasicScanAt = &recent
	case types.ScanTypeBasic:
		assign.LastDeepScanAt = &recent
	}
	gt.NoError(t, env.repo.UpsertTierAssignment(ctx, assign))
}

// seedFresh registers an entity scanned moments ago with both scan types.
func seedFresh(t *testing.T, env *testEnv, id types.EntityID, tier types.Tier) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	recent := now.Add(-time.Minute)

	parts := strings.SplitN(string(id), "/", 2)
	gt.NoError(t, env.repo.CreateOrUpdateEntity(ctx, &model.Entity{
		ID: id, Owner: parts[0], Name: parts[1], Stars: 1000,
		CreatedAt: now.AddDate(-1, 0, 0), UpdatedAt: now,
	}))
	gt.NoError(t, env.repo.UpsertTierAssignment(ctx, &model.TierAssignment{
		EntityID: id, Tier: tier, Stars: 1000,
		LastDeepScanAt: &recent, LastBasicScanAt: &recent, UpdatedAt: now,
	}))
}

func waitTerminal(t *testing.T, env *testEnv, id types.BatchID) *model.BatchSnapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return gt.R1(env.uc.WaitBatch(ctx, id)).NoError(t)
}

func TestBatchRunsToCompletion(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()

	seedDue(t, env, "acme/alpha", types.Tier1, 0.9, types.ScanTypeDeep)
	seedDue(t, env, "acme/beta", types.Tier2, 0.8, types.ScanTypeBasic)
	seedDue(t, env, "acme/gamma", types.Tier3, 0.7, types.ScanTypeDeep)

	result := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	gt.False(t, result.NothingDue)

	snapshot := waitTerminal(t, env, result.BatchID)
	gt.V(t, snapshot.Status).Equal(types.BatchStatusCompleted)
	gt.V(t, snapshot.Completed).Equal(3)
	gt.V(t, snapshot.Failed).Equal(0)
	gt.V(t, snapshot.Remaining).Equal(0)
	gt.V(t, snapshot.SuccessRate).Equal(1.0)

	// Tier 1 work is dispatched before lower tiers
	calls := env.source.GetEntityCalls()
	gt.A(t, calls).Length(3)
	gt.V(t, calls[0].Name).Equal("alpha")
	gt.V(t, calls[1].Name).Equal("beta")
	gt.V(t, calls[2].Name).Equal("gamma")

	// Deep scans hit the analysis service, basic scans do not
	gt.A(t, env.analysis.AnalyzeCalls()).Length(2)

	// Successful scans refresh recency, so the next cycle finds nothing
	second := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	gt.True(t, second.NothingDue)
	gt.True(t, second.Suggestion != "")
}

func TestTransientFailureRetriesThenFails(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()

	seedDue(t, env, "acme/flaky", types.Tier1, 0.9, types.ScanTypeBasic)
	seedDue(t, env, "acme/solid", types.Tier2, 0.8, types.ScanTypeBasic)

	env.source.GetEntityFunc = func(ctx context.Context, owner, name string) (*model.Entity, error) {
		if name == "flaky" {
			return nil, goerr.Wrap(types.ErrTransientExternal, "connection reset")
		}
		return env.repo.GetEntity(ctx, types.EntityID(owner+"/"+name))
	}

	result := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	snapshot := waitTerminal(t, env, result.BatchID)

	gt.V(t, snapshot.Status).Equal(types.BatchStatusCompleted)
	gt.V(t, snapshot.Completed).Equal(1)
	gt.V(t, snapshot.Failed).Equal(1)

	// Initial attempt plus two retries for the flaky entity, one for the other
	flakyCalls := 0
	for _, call := range env.source.GetEntityCalls() {
		if call.Name == "flaky" {
			flakyCalls++
		}
	}
	gt.V(t, flakyCalls).Equal(3)

	// The failed entity keeps its stale recency and stays due
	due := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	gt.False(t, due.NothingDue)
	waitTerminal(t, env, due.BatchID)
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()

	seedDue(t, env, "acme/gone", types.Tier2, 0.5, types.ScanTypeBasic)

	env.source.GetEntityFunc = func(ctx context.Context, owner, name string) (*model.Entity, error) {
		return nil, goerr.Wrap(types.ErrPermanentExternal, "repository deleted")
	}

	result := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	snapshot := waitTerminal(t, env, result.BatchID)

	gt.V(t, snapshot.Status).Equal(types.BatchStatusCompleted)
	gt.V(t, snapshot.Failed).Equal(1)
	gt.A(t, env.source.GetEntityCalls()).Length(1)
}

func TestMalformedResponseFailsEntityOnly(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()

	seedDue(t, env, "acme/odd", types.Tier1, 0.9, types.ScanTypeDeep)
	seedDue(t, env, "acme/fine", types.Tier1, 0.8, types.ScanTypeDeep)

	env.analysis.AnalyzeFunc = func(ctx context.Context, input *interfaces.AnalyzeInput) (*model.AnalysisResult, error) {
		if input.Entity.Name == "odd" {
			return &model.AnalysisResult{
				Malformed: &model.MalformedPayload{Size: 512, Excerpt: "<html>"},
			}, nil
		}
		return &model.AnalysisResult{
			Report: &model.AnalysisReport{Summary: "ok", CreditsUsed: 1},
		}, nil
	}

	result := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	snapshot := waitTerminal(t, env, result.BatchID)

	// The batch survives the malformed payload; only the entity fails
	gt.V(t, snapshot.Status).Equal(types.BatchStatusCompleted)
	gt.V(t, snapshot.Completed).Equal(1)
	gt.V(t, snapshot.Failed).Equal(1)
}

func TestCriticalRecoversBeforeNextEntity(t *testing.T) {
	cfg := fastConfig()
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	// Six permanently failing entities ahead of one healthy entity
	broken := []types.EntityID{"acme/b1", "acme/b2", "acme/b3", "acme/b4", "acme/b5", "acme/b6"}
	for i, id := range broken {
		seedDue(t, env, id, types.Tier1, 0.9-float64(i)*0.01, types.ScanTypeBasic)
	}
	seedDue(t, env, "acme/healthy", types.Tier1, 0.5, types.ScanTypeBasic)

	env.source.GetEntityFunc = func(ctx context.Context, owner, name string) (*model.Entity, error) {
		if strings.HasPrefix(name, "b") {
			return nil, goerr.Wrap(types.ErrPermanentExternal, "rejected")
		}
		return env.repo.GetEntity(ctx, types.EntityID(owner+"/"+name))
	}

	result := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	snapshot := waitTerminal(t, env, result.BatchID)

	// The sixth consecutive failure trips recovery before the seventh
	// entity; the batch then finishes the healthy one
	gt.V(t, snapshot.Status).Equal(types.BatchStatusCompleted)
	gt.V(t, snapshot.Failed).Equal(6)
	gt.V(t, snapshot.Completed).Equal(1)
	gt.V(t, snapshot.RecoveryAttempts).Equal(1)
}

func TestRecoveryAttemptsExhausted(t *testing.T) {
	cfg := fastConfig()
	cfg.Batch.MaxRecoveryAttempts = 1
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	for i := 0; i < 14; i++ {
		id := types.EntityID("acme/bad" + string(rune('a'+i)))
		seedDue(t, env, id, types.Tier2, 0.9-float64(i)*0.01, types.ScanTypeBasic)
	}

	env.source.GetEntityFunc = func(ctx context.Context, owner, name string) (*model.Entity, error) {
		return nil, goerr.Wrap(types.ErrPermanentExternal, "rejected")
	}

	result := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	snapshot := waitTerminal(t, env, result.BatchID)

	gt.V(t, snapshot.Status).Equal(types.BatchStatusStopped)
	gt.S(t, snapshot.Reason).Contains("recovery")
	gt.True(t, snapshot.Remaining > 0)
}

func TestCreditCeilingStopsBatch(t *testing.T) {
	cfg := fastConfig()
	cfg.Batch.MaxCreditsPerBatch = 10
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	seedDue(t, env, "acme/d1", types.Tier1, 0.9, types.ScanTypeDeep)
	seedDue(t, env, "acme/d2", types.Tier1, 0.8, types.ScanTypeDeep)
	seedDue(t, env, "acme/d3", types.Tier1, 0.7, types.ScanTypeDeep)

	env.analysis.AnalyzeFunc = func(ctx context.Context, input *interfaces.AnalyzeInput) (*model.AnalysisResult, error) {
		return &model.AnalysisResult{
			Report: &model.AnalysisReport{Summary: "ok", CreditsUsed: 6},
		}, nil
	}

	result := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	snapshot := waitTerminal(t, env, result.BatchID)

	gt.V(t, snapshot.Status).Equal(types.BatchStatusStopped)
	gt.S(t, snapshot.Reason).Contains("credit")
	gt.V(t, snapshot.Completed).Equal(2)
	gt.V(t, snapshot.Remaining).Equal(1)
	gt.V(t, snapshot.CreditsUsed).Equal(12.0)
}

func TestRateLimitSignalDoesNotChargeAttempt(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()

	seedDue(t, env, "acme/limited", types.Tier1, 0.9, types.ScanTypeBasic)

	var rejected bool
	env.source.GetEntityFunc = func(ctx context.Context, owner, name string) (*model.Entity, error) {
		if !rejected {
			rejected = true
			return nil, &model.RateLimitSignal{Service: types.ServiceSource, RetryAfter: time.Millisecond}
		}
		return env.repo.GetEntity(ctx, types.EntityID(owner+"/"+name))
	}

	result := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	snapshot := waitTerminal(t, env, result.BatchID)

	gt.V(t, snapshot.Status).Equal(types.BatchStatusCompleted)
	gt.V(t, snapshot.Completed).Equal(1)
	// One attempt recorded even though the source was called twice
	gt.V(t, snapshot.SuccessRate).Equal(1.0)
	gt.A(t, env.source.GetEntityCalls()).Length(2)
}

func TestStopBatchMidFlight(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := types.EntityID("acme/s" + string(rune('a'+i)))
		seedDue(t, env, id, types.Tier2, 0.9-float64(i)*0.01, types.ScanTypeBasic)
	}

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
	gt.NoError(t, env.uc.StopBatch(ctx, result.BatchID))
	close(release)

	snapshot := waitTerminal(t, env, result.BatchID)
	gt.V(t, snapshot.Status).Equal(types.BatchStatusStopped)
	gt.S(t, snapshot.Reason).Contains("stop")

	status := gt.R1(env.uc.GetBatchStatus(ctx, result.BatchID)).NoError(t)
	gt.V(t, status.Status).Equal(types.BatchStatusStopped)
}

// strictContextRepo refuses writes on a canceled context, the way a real
// database driver does.
type strictContextRepo struct {
	interfaces.EntityRepository
}

func (x *strictContextRepo) guard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "store rejected write")
	}
	return nil
}

func (x *strictContextRepo) CreateOrUpdateEntity(ctx context.Context, entity *model.Entity) error {
	if err := x.guard(ctx); err != nil {
		return err
	}
	return x.EntityRepository.CreateOrUpdateEntity(ctx, entity)
}

func (x *strictContextRepo) UpsertTierAssignment(ctx context.Context, assign *model.TierAssignment) error {
	if err := x.guard(ctx); err != nil {
		return err
	}
	return x.EntityRepository.UpsertTierAssignment(ctx, assign)
}

func (x *strictContextRepo) RecordScanResult(ctx context.Context, result *model.ScanResult) error {
	if err := x.guard(ctx); err != nil {
		return err
	}
	return x.EntityRepository.RecordScanResult(ctx, result)
}

func (x *strictContextRepo) SaveBatchJob(ctx context.Context, job *model.BatchJob) error {
	if err := x.guard(ctx); err != nil {
		return err
	}
	return x.EntityRepository.SaveBatchJob(ctx, job)
}

func (x *strictContextRepo) SaveCheckpoint(ctx context.Context, cp *model.Checkpoint) error {
	if err := x.guard(ctx); err != nil {
		return err
	}
	return x.EntityRepository.SaveCheckpoint(ctx, cp)
}

func TestStopPersistsTerminalState(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()

	// A stop cancels the run context; the terminal state must still reach a
	// store that honors context cancellation, or the batch would resume.
	clients := infra.New(
		infra.WithEntityRepo(&strictContextRepo{EntityRepository: env.repo}),
		infra.WithSource(env.source),
		infra.WithAnalysis(env.analysis),
	)
	uc := usecase.New(clients, usecase.WithConfig(fastConfig()))

	for i := 0; i < 5; i++ {
		id := types.EntityID("acme/t" + string(rune('a'+i)))
		seedDue(t, env, id, types.Tier2, 0.9-float64(i)*0.01, types.ScanTypeBasic)
	}

	release := make(chan struct{})
	env.source.GetEntityFunc = func(ctx context.Context, owner, name string) (*model.Entity, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return env.repo.GetEntity(ctx, types.EntityID(owner+"/"+name))
	}

	result := gt.R1(uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	gt.NoError(t, uc.StopBatch(ctx, result.BatchID))
	close(release)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	snapshot := gt.R1(uc.WaitBatch(waitCtx, result.BatchID)).NoError(t)
	gt.V(t, snapshot.Status).Equal(types.BatchStatusStopped)

	// The durable record carries the terminal state
	job := gt.R1(env.repo.GetBatchJob(ctx, result.BatchID)).NoError(t)
	gt.V(t, job.Status).Equal(types.BatchStatusStopped)

	// A stopped batch is never resumed; the next cycle starts fresh
	next := gt.R1(uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	gt.False(t, next.Resumed)
	gt.True(t, next.BatchID != result.BatchID)

	waitCtx2, cancel2 := context.WithTimeout(ctx, 10*time.Second)
	defer cancel2()
	gt.R1(uc.WaitBatch(waitCtx2, next.BatchID)).NoError(t)
}

func TestTerminalRunsArePruned(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()

	seedDue(t, env, "acme/one", types.Tier1, 0.9, types.ScanTypeBasic)

	result := gt.R1(env.uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)
	waitTerminal(t, env, result.BatchID)

	// A long-lived process must not grow the run registry cycle after cycle
	gt.V(t, env.uc.RunCountForTest()).Equal(0)

	// Status of a pruned run is served from the store
	status := gt.R1(env.uc.GetBatchStatus(ctx, result.BatchID)).NoError(t)
	gt.V(t, status.Status).Equal(types.BatchStatusCompleted)
}

// statusRecordingRepo captures every persisted job status so a test can
// assert on transitions that are gone by the time the batch is terminal.
type statusRecordingRepo struct {
	interfaces.EntityRepository
	mu      sync.Mutex
	history []statusRecord
}

type statusRecord struct {
	Status types.BatchStatus
	Reason string
}

func (x *statusRecordingRepo) SaveBatchJob(ctx context.Context, job *model.BatchJob) error {
	x.mu.Lock()
	x.history = append(x.history, statusRecord{Status: job.Status, Reason: job.Reason})
	x.mu.Unlock()
	return x.EntityRepository.SaveBatchJob(ctx, job)
}

func (x *statusRecordingRepo) History() []statusRecord {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]statusRecord{}, x.history...)
}

func degradedReason(history []statusRecord) string {
	for _, rec := range history {
		if rec.Status == types.BatchStatusDegraded {
			return rec.Reason
		}
	}
	return ""
}

func TestLowSuccessRateDegradesBatch(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()

	rec := &statusRecordingRepo{EntityRepository: env.repo}
	clients := infra.New(
		infra.WithEntityRepo(rec),
		infra.WithSource(env.source),
		infra.WithAnalysis(env.analysis),
	)
	uc := usecase.New(clients, usecase.WithConfig(fastConfig()))

	// Three permanent failures then one success: at four attempts the
	// success rate is 0.25, under the 0.5 floor
	seedDue(t, env, "acme/f1", types.Tier2, 0.9, types.ScanTypeBasic)
	seedDue(t, env, "acme/f2", types.Tier2, 0.89, types.ScanTypeBasic)
	seedDue(t, env, "acme/f3", types.Tier2, 0.88, types.ScanTypeBasic)
	seedDue(t, env, "acme/ok", types.Tier2, 0.87, types.ScanTypeBasic)

	env.source.GetEntityFunc = func(ctx context.Context, owner, name string) (*model.Entity, error) {
		if strings.HasPrefix(name, "f") {
			return nil, goerr.Wrap(types.ErrPermanentExternal, "entity rejected")
		}
		return env.repo.GetEntity(ctx, types.EntityID(owner+"/"+name))
	}

	result := gt.R1(uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	snapshot := gt.R1(uc.WaitBatch(waitCtx, result.BatchID)).NoError(t)

	// Degraded is not terminal: the exhausted queue still completes the batch
	gt.V(t, snapshot.Status).Equal(types.BatchStatusCompleted)
	gt.V(t, snapshot.Completed).Equal(1)
	gt.V(t, snapshot.Failed).Equal(3)
	gt.S(t, degradedReason(rec.History())).Contains("success rate")
}

func TestSlowThroughputDegradesBatch(t *testing.T) {
	cfg := fastConfig()
	cfg.Batch.WallClockBudget = 10 * time.Minute
	env := newTestEnv(t, cfg)

	rec := &statusRecordingRepo{EntityRepository: env.repo}
	clients := infra.New(
		infra.WithEntityRepo(rec),
		infra.WithSource(env.source),
		infra.WithAnalysis(env.analysis),
	)
	uc := usecase.New(clients, usecase.WithConfig(cfg))

	for i := 0; i < 4; i++ {
		id := types.EntityID("acme/w" + string(rune('a'+i)))
		seedDue(t, env, id, types.Tier2, 0.9-float64(i)*0.01, types.ScanTypeBasic)
	}

	// Simulated clock: the first entity burns six of the ten budget minutes,
	// leaving one of four attempted past the halfway mark
	var clockMu sync.Mutex
	current := time.Now()
	ctx := logging.CtxWithTime(context.Background(), func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return current
	})

	var advanced bool
	env.source.GetEntityFunc = func(ctx context.Context, owner, name string) (*model.Entity, error) {
		clockMu.Lock()
		if !advanced {
			advanced = true
			current = current.Add(6 * time.Minute)
		}
		clockMu.Unlock()
		return env.repo.GetEntity(ctx, types.EntityID(owner+"/"+name))
	}

	result := gt.R1(uc.StartScan(ctx, &model.StartScanInput{Mode: types.ScanModeNormal})).NoError(t)

	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snapshot := gt.R1(uc.WaitBatch(waitCtx, result.BatchID)).NoError(t)

	gt.V(t, snapshot.Status).Equal(types.BatchStatusCompleted)
	gt.V(t, snapshot.Completed).Equal(4)
	gt.S(t, degradedReason(rec.History())).Contains("throughput")
}
