package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/vprok-price-parser/internal/jobs"
	"github.com/maltedev/vprok-price-parser/internal/models"
	"github.com/maltedev/vprok-price-parser/internal/queue"
	"github.com/maltedev/vprok-price-parser/internal/scraper"
)

type JobService interface {
	CreateJob(rawURL, region string) (*jobs.Job, error)
	GetJob(id string) (*jobs.Job, error)
	ListJobs() []*jobs.Job
	Stats() jobs.Stats
}

// HistoryReader is satisfied by database.HistoryRepository.
type HistoryReader interface {
	Latest(ctx context.Context, productID, region string, limit int) ([]*models.Observation, error)
}

// OutboxMonitor is satisfied by database.Relay.
type OutboxMonitor interface {
	Backlog(ctx context.Context) (pending, deadLetter int64, err error)
}

const (
	outboxPendingWarning  = 1000
	outboxDeadLetterLimit = 100
)

type Handlers struct {
	jobs    JobService
	history HistoryReader
	outbox  OutboxMonitor
	logger  *slog.Logger
}

// NewHandlers builds the API handlers. history and outbox may be nil when
// no database is configured.
func NewHandlers(jobService JobService, history HistoryReader, outbox OutboxMonitor, logger *slog.Logger) *Handlers {
	return &Handlers{
		jobs:    jobService,
		history: history,
		outbox:  outbox,
		logger:  logger.With("component", "api"),
	}
}

type ParseRequest struct {
	URL    string `json:"url"`
	Region string `json:"region"`
}

// Parse queues a parse job and answers 202 with the pending job.
func (h *Handlers) Parse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.CreateJob(req.URL, req.Region)
	if err != nil {
		switch {
		case scraper.KindOf(err).Fatal():
			h.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrQueueClosed):
			h.respondError(w, http.StatusServiceUnavailable, "parse queue is not accepting jobs")
		default:
			h.logger.Error("failed to create job", "error", err)
			h.respondError(w, http.StatusInternalServerError, "failed to create job")
		}
		return
	}

	h.respondJSON(w, http.StatusAccepted, job)
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.jobs.GetJob(jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			h.respondError(w, http.StatusNotFound, "job not found")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.ListJobs())
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.Stats())
}

// GetObservations lists stored observations of a product. Optional query
// parameters: region, limit.
func (h *Handlers) GetObservations(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.respondError(w, http.StatusNotImplemented, "observation history is not configured")
		return
	}

	productID := chi.URLParam(r, "productID")
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	observations, err := h.history.Latest(r.Context(), productID, r.URL.Query().Get("region"), limit)
	if err != nil {
		h.logger.Error("failed to read observations", "product_id", productID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read observations")
		return
	}
	if observations == nil {
		observations = []*models.Observation{}
	}

	h.respondJSON(w, http.StatusOK, observations)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
		"jobs":   h.jobs.Stats(),
	}
	status := http.StatusOK

	if h.outbox != nil {
		pending, deadLetter, err := h.outbox.Backlog(r.Context())
		if err != nil {
			h.logger.Warn("failed to read outbox backlog", "error", err)
			health["status"] = "warning"
			health["message"] = "outbox backlog unavailable"
		} else {
			health["outbox"] = map[string]interface{}{
				"pending":     pending,
				"dead_letter": deadLetter,
			}
			if pending > outboxPendingWarning {
				health["status"] = "warning"
				health["message"] = "High number of pending outbox events"
			}
			if deadLetter > outboxDeadLetterLimit {
				health["status"] = "error"
				health["message"] = "High number of dead letter events"
				status = http.StatusServiceUnavailable
			}
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
