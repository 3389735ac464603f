package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
)

func seedAssignment(t *testing.T, env *testEnv, assign *model.TierAssignment) {
	t.Helper()
	gt.NoError(t, env.repo.UpsertTierAssignment(context.Background(), assign))
}

func TestSelectDueOrdering(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-200 * time.Hour)
	older := now.Add(-300 * time.Hour)

	// All three are due for a deep scan; ordering is priority first, then
	// staleness (never-scanned ahead of everyone)
	seedAssignment(t, env, &model.TierAssignment{
		EntityID: "acme/low", Tier: types.Tier1, ScanPriority: 0.2,
		LastDeepScanAt: &old, LastBasicScanAt: &old, UpdatedAt: now,
	})
	seedAssignment(t, env, &model.TierAssignment{
		EntityID: "acme/high", Tier: types.Tier1, ScanPriority: 0.8,
		LastDeepScanAt: &old, LastBasicScanAt: &old, UpdatedAt: now,
	})
	seedAssignment(t, env, &model.TierAssignment{
		EntityID: "acme/never", Tier: types.Tier1, ScanPriority: 0.2,
		UpdatedAt: now,
	})
	seedAssignment(t, env, &model.TierAssignment{
		EntityID: "acme/stalest", Tier: types.Tier1, ScanPriority: 0.2,
		LastDeepScanAt: &older, LastBasicScanAt: &older, UpdatedAt: now,
	})

	coverage, tasks, err := env.uc.SelectDueForTest(context.Background(), types.Tier1, now, types.ScanModeNormal)
	gt.NoError(t, err)

	gt.V(t, coverage.Total).Equal(4)
	gt.V(t, coverage.Due).Equal(4)
	gt.V(t, coverage.Fresh).Equal(0)

	gt.A(t, tasks).Length(4)
	gt.V(t, tasks[0].EntityID).Equal(types.EntityID("acme/high"))
	// Priority tie: never-scanned wins, then the older scan
	gt.V(t, tasks[1].EntityID).Equal(types.EntityID("acme/never"))
	gt.V(t, tasks[2].EntityID).Equal(types.EntityID("acme/stalest"))
	gt.V(t, tasks[3].EntityID).Equal(types.EntityID("acme/low"))

	for _, task := range tasks {
		gt.V(t, task.ScanType).Equal(types.ScanTypeDeep)
	}
}

func TestSelectDueDeepWinsOverBasic(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Tier 1: deep due after 24h, basic after 6h. Both are overdue here,
	// but only one task is created and it is the deep one.
	stale := now.Add(-48 * time.Hour)
	seedAssignment(t, env, &model.TierAssignment{
		EntityID: "acme/both", Tier: types.Tier1, ScanPriority: 0.5,
		LastDeepScanAt: &stale, LastBasicScanAt: &stale, UpdatedAt: now,
	})

	_, tasks, err := env.uc.SelectDueForTest(context.Background(), types.Tier1, now, types.ScanModeNormal)
	gt.NoError(t, err)
	gt.A(t, tasks).Length(1)
	gt.V(t, tasks[0].ScanType).Equal(types.ScanTypeDeep)
}

// Force mode shortens the windows, so its selection is always a superset of
// the normal-mode selection at the same instant.
func TestForceSelectionIsSuperset(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Tier 2 basic interval is 24h; force factor 0.4 shrinks it to 9.6h
	ages := []time.Duration{2 * time.Hour, 12 * time.Hour, 30 * time.Hour}
	ids := []types.EntityID{"acme/young", "acme/middle", "acme/old"}
	deepRecent := now.Add(-time.Hour)

	for i, id := range ids {
		at := now.Add(-ages[i])
		seedAssignment(t, env, &model.TierAssignment{
			EntityID: id, Tier: types.Tier2, ScanPriority: 0.5,
			LastDeepScanAt: &deepRecent, LastBasicScanAt: &at, UpdatedAt: now,
		})
	}

	_, normal, err := env.uc.SelectDueForTest(context.Background(), types.Tier2, now, types.ScanModeNormal)
	gt.NoError(t, err)
	_, force, err := env.uc.SelectDueForTest(context.Background(), types.Tier2, now, types.ScanModeForce)
	gt.NoError(t, err)

	gt.A(t, normal).Length(1) // only acme/old
	gt.A(t, force).Length(2)  // acme/middle joins

	normalSet := map[types.EntityID]bool{}
	for _, task := range normal {
		normalSet[task.EntityID] = true
	}
	forceSet := map[types.EntityID]bool{}
	for _, task := range force {
		forceSet[task.EntityID] = true
	}
	for id := range normalSet {
		gt.True(t, forceSet[id])
	}
}

func TestSelectDueCoverageCounts(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour)
	stale := now.Add(-100 * time.Hour)

	seedAssignment(t, env, &model.TierAssignment{
		EntityID: "acme/fresh", Tier: types.Tier2, ScanPriority: 0.5,
		LastDeepScanAt: &recent, LastBasicScanAt: &recent, UpdatedAt: now,
	})
	seedAssignment(t, env, &model.TierAssignment{
		EntityID: "acme/due", Tier: types.Tier2, ScanPriority: 0.5,
		LastDeepScanAt: &stale, LastBasicScanAt: &stale, UpdatedAt: now,
	})

	coverage, _, err := env.uc.SelectDueForTest(context.Background(), types.Tier2, now, types.ScanModeNormal)
	gt.NoError(t, err)
	gt.V(t, coverage.Tier).Equal(types.Tier2)
	gt.V(t, coverage.Total).Equal(2)
	gt.V(t, coverage.Fresh).Equal(1)
	gt.V(t, coverage.Due).Equal(1)
}
