package interfaces

//go:generate moq -out ../mock/usecase.go -pkg mock . UseCase

import (
	"context"

	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
)

type UseCase interface {
	// StartScan selects due entities and starts one batch, or returns a
	// "nothing due" descriptor with per-tier coverage.
	StartScan(ctx context.Context, input *model.StartScanInput) (*model.ScanStartResult, error)

	// GetBatchStatus returns a well-formed snapshot at any point of the
	// batch lifecycle.
	GetBatchStatus(ctx context.Context, id types.BatchID) (*model.BatchSnapshot, error)

	// StopBatch requests a stop at the next safe point.
	StopBatch(ctx context.Context, id types.BatchID) error

	// WaitBatch blocks until the batch reaches a terminal state.
	WaitBatch(ctx context.Context, id types.BatchID) (*model.BatchSnapshot, error)

	// Tick is the parameterless timer entry point. It starts a normal-mode
	// scan, or defers when a batch is still running.
	Tick(ctx context.Context) error

	// SyncEntities discovers or refreshes all entities of an owner from the
	// repository source and classifies newly discovered ones.
	SyncEntities(ctx context.Context, owner string) (int, error)
}
