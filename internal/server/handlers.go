package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/maauso/videoprep/internal/job"
	"github.com/maauso/videoprep/internal/job/id"
	"github.com/maauso/videoprep/internal/queue"
)

// maxBodyBytes bounds request bodies; a video request is a few keys.
const maxBodyBytes = 1 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.ProcessVideoService
	logger             *slog.Logger
	enableAsyncProcess bool
	background         sync.WaitGroup
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateVideo only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.ProcessVideoService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		logger:             logger,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Wait blocks until every background run started by CreateVideo has ended.
func (h *Handlers) Wait() {
	h.background.Wait()
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateVideo handles POST /videos requests. The body is the same message
// the queue consumer accepts.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req queue.Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := req.Validate(); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	created, err := h.service.CreateJob(r.Context(), job.ProcessVideoInput{
		DocID:      req.DocID,
		VersionID:  req.VersionID,
		SourceKey:  req.S3Key,
		ChapterKey: req.ChapterFile,
	})
	if err != nil {
		if errors.Is(err, job.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// The run must outlive the request.
	if h.enableAsyncProcess {
		h.background.Add(1)
		go func(ctx context.Context, jobID string) {
			defer h.background.Done()
			if err := h.service.ProcessExistingJob(ctx, jobID); err != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), created.ID)
	}

	h.logger.Info("video accepted",
		slog.String("job_id", created.ID),
		slog.String("doc_id", req.DocID),
	)

	writeJSON(w, http.StatusAccepted, CreateVideoResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// GetVideo handles GET /videos/{id} requests.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if !id.Valid(jobID) {
		writeError(w, http.StatusBadRequest, "invalid job ID", "INVALID_JOB_ID")
		return
	}

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	resp := VideoResponse{
		ID:           found.ID,
		Status:       string(found.Status),
		DocID:        found.DocID,
		VersionID:    found.VersionID,
		Error:        found.Error,
		OutputPrefix: found.OutputPrefix,
	}
	if found.Status == job.StatusCompleted {
		resp.PublishedKey = found.PublishedKey()
		resp.Metadata = found.Metadata
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
