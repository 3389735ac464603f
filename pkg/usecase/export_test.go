package usecase

import (
	"context"
	"time"

	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
)

// Export unexported functions for testing

func (x *UseCase) RunCountForTest() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.runs)
}

func (x *UseCase) SelectDueForTest(ctx context.Context, tier types.Tier, now time.Time, mode types.ScanMode) (model.TierCoverage, []model.ScanTask, error) {
	selection, err := x.selectDue(ctx, tier, now, mode)
	if err != nil {
		return model.TierCoverage{}, nil, err
	}
	return selection.coverage, selection.tasks, nil
}
