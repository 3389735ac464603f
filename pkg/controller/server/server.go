package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/repolens/repolens/pkg/domain/interfaces"
	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/utils/errutil"
	"github.com/repolens/repolens/pkg/utils/logging"
)

type Server struct {
	mux *chi.Mux
}

type config struct {
	metricsHandler http.Handler
}

type Option func(*config)

// WithMetricsHandler mounts a handler on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(cfg *config) {
		cfg.metricsHandler = h
	}
}

func New(uc interfaces.UseCase, options ...Option) *Server {
	cfg := &config{}
	for _, opt := range options {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(preProcess)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		safeWrite(w, http.StatusOK, []byte("ok"))
	})
	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scans", func(w http.ResponseWriter, r *http.Request) {
			input, err := parseScanRequest(r)
			if err != nil {
				respondError(w, r, "invalid scan request", err)
				return
			}

			result, err := uc.StartScan(r.Context(), input)
			if err != nil {
				respondError(w, r, "failed to start scan", err)
				return
			}

			code := http.StatusAccepted
			if result.NothingDue {
				code = http.StatusOK
			}
			respondJSON(w, code, result)
		})

		r.Post("/sync", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Owner string `json:"owner"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, r, "invalid sync request",
					goerr.Wrap(types.ErrValidationFailed, "failed to decode request body"))
				return
			}

			count, err := uc.SyncEntities(r.Context(), req.Owner)
			if err != nil {
				respondError(w, r, "failed to sync entities", err)
				return
			}
			respondJSON(w, http.StatusOK, map[string]int{"synced": count})
		})

		r.Route("/batches/{batchID}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				id := types.BatchID(chi.URLParam(r, "batchID"))
				snapshot, err := uc.GetBatchStatus(r.Context(), id)
				if err != nil {
					respondError(w, r, "failed to get batch status", err)
					return
				}
				respondJSON(w, http.StatusOK, snapshot)
			})

			r.Post("/stop", func(w http.ResponseWriter, r *http.Request) {
				id := types.BatchID(chi.URLParam(r, "batchID"))
				if err := uc.StopBatch(r.Context(), id); err != nil {
					respondError(w, r, "failed to stop batch", err)
					return
				}
				respondJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
			})
		})
	})

	return &Server{
		mux: r,
	}
}

func (x *Server) Mux() *chi.Mux {
	return x.mux
}

func parseScanRequest(r *http.Request) (*model.StartScanInput, error) {
	input := &model.StartScanInput{Mode: types.ScanModeNormal}

	if r.ContentLength != 0 {
		var req struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, goerr.Wrap(types.ErrValidationFailed, "failed to decode request body")
		}
		if req.Mode != "" {
			input.Mode = types.ScanMode(req.Mode)
		}
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}
	return input, nil
}

func respondError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrValidationFailed):
		code = http.StatusBadRequest
	case errors.Is(err, types.ErrBatchActive):
		code = http.StatusConflict
	case errors.Is(err, types.ErrRecordNotFound):
		code = http.StatusNotFound
	}

	if code == http.StatusInternalServerError {
		errutil.HandleError(r.Context(), msg, err)
	}
	respondJSON(w, code, map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Default().Error("fail to write response", slog.Any("error", err))
	}
}

func safeWrite(w http.ResponseWriter, code int, body []byte) {
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		logging.Default().Error("fail to write response", slog.Any("error", err))
	}
}
