package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/repolens/repolens/pkg/controller/server"
	"github.com/repolens/repolens/pkg/domain/mock"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
)

func TestStartScan(t *testing.T) {
	batchID := types.NewBatchID()
	uc := &mock.UseCaseMock{
		StartScanFunc: func(ctx context.Context, input *model.StartScanInput) (*model.ScanStartResult, error) {
			return &model.ScanStartResult{BatchID: batchID}, nil
		},
	}
	srv := server.New(uc)

	body := bytes.NewBufferString(`{"mode":"force"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", body)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusAccepted)
	gt.A(t, uc.StartScanCalls()).Length(1)
	gt.V(t, uc.StartScanCalls()[0].Input.Mode).Equal(types.ScanModeForce)

	var result model.ScanStartResult
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	gt.V(t, result.BatchID).Equal(batchID)
}

func TestStartScanDefaultsToNormalMode(t *testing.T) {
	uc := &mock.UseCaseMock{
		StartScanFunc: func(ctx context.Context, input *model.StartScanInput) (*model.ScanStartResult, error) {
			return &model.ScanStartResult{BatchID: types.NewBatchID()}, nil
		},
	}
	srv := server.New(uc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusAccepted)
	gt.V(t, uc.StartScanCalls()[0].Input.Mode).Equal(types.ScanModeNormal)
}

func TestStartScanNothingDue(t *testing.T) {
	uc := &mock.UseCaseMock{
		StartScanFunc: func(ctx context.Context, input *model.StartScanInput) (*model.ScanStartResult, error) {
			return &model.ScanStartResult{
				NothingDue: true,
				Suggestion: "retry later",
				Coverage:   []model.TierCoverage{{Tier: types.Tier1, Total: 3, Fresh: 3}},
			}, nil
		},
	}
	srv := server.New(uc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusOK)

	var result model.ScanStartResult
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	gt.True(t, result.NothingDue)
	gt.A(t, result.Coverage).Length(1)
}

func TestStartScanConflict(t *testing.T) {
	uc := &mock.UseCaseMock{
		StartScanFunc: func(ctx context.Context, input *model.StartScanInput) (*model.ScanStartResult, error) {
			return nil, goerr.Wrap(types.ErrBatchActive, "scan request rejected")
		},
	}
	srv := server.New(uc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusConflict)
}

func TestStartScanInvalidMode(t *testing.T) {
	uc := &mock.UseCaseMock{}
	srv := server.New(uc)

	body := bytes.NewBufferString(`{"mode":"aggressive"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", body)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusBadRequest)
	gt.A(t, uc.StartScanCalls()).Length(0)
}

func TestGetBatchStatus(t *testing.T) {
	batchID := types.NewBatchID()
	uc := &mock.UseCaseMock{
		GetBatchStatusFunc: func(ctx context.Context, id types.BatchID) (*model.BatchSnapshot, error) {
			return &model.BatchSnapshot{
				ID:     id,
				Status: types.BatchStatusRunning,
				Total:  10,
			}, nil
		},
	}
	srv := server.New(uc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+string(batchID), nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusOK)

	var snapshot model.BatchSnapshot
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	gt.V(t, snapshot.ID).Equal(batchID)
	gt.V(t, snapshot.Status).Equal(types.BatchStatusRunning)
}

func TestGetBatchStatusNotFound(t *testing.T) {
	uc := &mock.UseCaseMock{
		GetBatchStatusFunc: func(ctx context.Context, id types.BatchID) (*model.BatchSnapshot, error) {
			return nil, goerr.Wrap(types.ErrRecordNotFound, "batch job not found")
		},
	}
	srv := server.New(uc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/unknown", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusNotFound)
}

func TestStopBatch(t *testing.T) {
	uc := &mock.UseCaseMock{
		StopBatchFunc: func(ctx context.Context, id types.BatchID) error {
			return nil
		},
	}
	srv := server.New(uc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/some-batch/stop", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusAccepted)
	gt.A(t, uc.StopBatchCalls()).Length(1)
	gt.V(t, uc.StopBatchCalls()[0].ID).Equal(types.BatchID("some-batch"))
}

func TestSyncEntities(t *testing.T) {
	uc := &mock.UseCaseMock{
		SyncEntitiesFunc: func(ctx context.Context, owner string) (int, error) {
			return 12, nil
		},
	}
	srv := server.New(uc)

	body := bytes.NewBufferString(`{"owner":"acme"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", body)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusOK)
	gt.V(t, uc.SyncEntitiesCalls()[0].Owner).Equal("acme")

	var resp map[string]int
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	gt.V(t, resp["synced"]).Equal(12)
}

func TestHealth(t *testing.T) {
	srv := server.New(&mock.UseCaseMock{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusOK)
}
