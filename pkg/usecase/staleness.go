package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
)

// tierSelection is the outcome of one tier's staleness pass: the ordered
// due tasks plus the coverage counts the API layer needs to explain a
// "nothing due" result.
type tierSelection struct {
	coverage model.TierCoverage
	tasks    []model.ScanTask
}

// selectDue decides which entities of a tier are due for a scan at the
// given time. Deep staleness wins over basic staleness, an entity never
// scanned is always due, and force mode shortens every interval by the
// configured factor so it can never select fewer entities than normal mode.
func (x *UseCase) selectDue(ctx context.Context, tier types.Tier, now time.Time, mode types.ScanMode) (*tierSelection, error) {
	assigns, err := x.clients.EntityRepo().ListTierAssignments(ctx, tier)
	if err != nil {
		return nil, err
	}

	factor := 1.0
	if mode == types.ScanModeForce && x.cfg.Staleness.ForceFactor > 0 {
		factor = x.cfg.Staleness.ForceFactor
	}

	deepInterval := scaled(x.cfg.Staleness.DeepIntervals[tier], factor)
	basicInterval := scaled(x.cfg.Staleness.BasicIntervals[tier], factor)

	selection := &tierSelection{
		coverage: model.TierCoverage{Tier: tier, Total: len(assigns)},
	}

	type dueEntry struct {
		task     model.ScanTask
		priority float64
		lastScan *time.Time
	}
	var due []dueEntry

	for _, assign := range assigns {
		var scanType types.ScanType
		switch {
		case stale(assign.LastDeepScanAt, now, deepInterval):
			scanType = types.ScanTypeDeep
		case stale(assign.LastBasicScanAt, now, basicInterval):
			scanType = types.ScanTypeBasic
		default:
			selection.coverage.Fresh++
			continue
		}

		due = append(due, dueEntry{
			task: model.ScanTask{
				EntityID: assign.EntityID,
				Tier:     tier,
				ScanType: scanType,
			},
			priority: assign.ScanPriority,
			lastScan: assign.LastScanAt(scanType),
		})
	}

	// Priority descending; ties go to the stalest entity (never-scanned
	// first) so no entity is starved by always losing priority ties.
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].priority != due[j].priority {
			return due[i].priority > due[j].priority
		}
		return olderScan(due[i].lastScan, due[j].lastScan)
	})

	for _, entry := range due {
		selection.tasks = append(selection.tasks, entry.task)
	}
	selection.coverage.Due = len(due)

	return selection, nil
}

func scaled(interval time.Duration, factor float64) time.Duration {
	if interval <= 0 {
		return 0
	}
	return time.Duration(float64(interval) * factor)
}

// stale reports whether a scan is due: never scanned, or interval exceeded.
// A zero interval disables the scan type for the tier.
func stale(lastScanAt *time.Time, now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	if lastScanAt == nil {
		return true
	}
	return now.Sub(*lastScanAt) > interval
}

// olderScan orders nil (never scanned) before any timestamp, then oldest first
func olderScan(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}
