package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/vprok-price-parser/internal/metrics"
	"github.com/maltedev/vprok-price-parser/internal/models"
	"github.com/maltedev/vprok-price-parser/internal/queue"
	"github.com/maltedev/vprok-price-parser/internal/scraper"
)

var ErrJobNotFound = errors.New("job not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

const (
	listLimit        = 100
	defaultRetention = 24 * time.Hour
)

// Job is a parse request submitted through the API.
type Job struct {
	ID             string                    `json:"id"`
	URL            string                    `json:"url"`
	Region         string                    `json:"region"`
	Status         Status                    `json:"status"`
	RunID          string                    `json:"run_id,omitempty"`
	Attempts       int                       `json:"attempts"`
	Exhausted      bool                      `json:"exhausted"`
	ErrorKind      string                    `json:"error_kind,omitempty"`
	Error          string                    `json:"error,omitempty"`
	Properties     *models.ProductProperties `json:"properties,omitempty"`
	TextPath       string                    `json:"text_path,omitempty"`
	ScreenshotPath string                    `json:"screenshot_path,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	StartedAt      *time.Time                `json:"started_at,omitempty"`
	CompletedAt    *time.Time                `json:"completed_at,omitempty"`
}

type Stats struct {
	TotalJobs     int `json:"total_jobs"`
	PendingJobs   int `json:"pending_jobs"`
	RunningJobs   int `json:"running_jobs"`
	SucceededJobs int `json:"succeeded_jobs"`
	FailedJobs    int `json:"failed_jobs"`
	QueueSize     int `json:"queue_size"`
}

type Runner interface {
	Run(ctx context.Context, rawURL, region string) (*scraper.Outcome, error)
}

// Feedback is told how each job ended so pacing can adapt.
// ratelimit.AdaptiveRateLimiter implements it.
type Feedback interface {
	RecordSuccess()
	RecordError()
}

// Manager keeps jobs in memory and runs them one at a time, so at most one
// browser is alive.
type Manager struct {
	runner    Runner
	queue     queue.Queue
	feedback  Feedback
	metrics   *metrics.Metrics
	urlPrefix string
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.RWMutex
	jobs map[string]*Job
}

type Options struct {
	URLPrefix string
	Feedback  Feedback
	Metrics   *metrics.Metrics
	// Retention is how long finished jobs stay queryable. Defaults to 24h.
	Retention time.Duration
}

func NewManager(runner Runner, q queue.Queue, opts Options, logger *slog.Logger) *Manager {
	if opts.URLPrefix == "" {
		opts.URLPrefix = scraper.DefaultURLPrefix
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	return &Manager{
		runner:    runner,
		queue:     q,
		feedback:  opts.Feedback,
		metrics:   opts.Metrics,
		urlPrefix: opts.URLPrefix,
		retention: opts.Retention,
		logger:    logger.With("component", "job_manager"),
		now:       time.Now,
		jobs:      make(map[string]*Job),
	}
}

// CreateJob validates the request and queues it. Validation failures carry
// the scraper error kinds.
func (m *Manager) CreateJob(rawURL, region string) (*Job, error) {
	if _, err := scraper.ParseTarget(rawURL, region, m.urlPrefix); err != nil {
		return nil, err
	}

	job := &Job{
		ID:        uuid.New().String(),
		URL:       rawURL,
		Region:    region,
		Status:    StatusPending,
		CreatedAt: m.now(),
	}

	m.mu.Lock()
	m.pruneLocked(job.CreatedAt)
	m.jobs[job.ID] = job
	m.mu.Unlock()

	err := m.queue.Push(&queue.Task{
		ID:        job.ID,
		URL:       job.URL,
		Region:    job.Region,
		CreatedAt: job.CreatedAt,
	})
	if err != nil {
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}
	m.metrics.SetJobsQueued(m.queue.Size())

	m.logger.Info("job created", "id", job.ID, "url", rawURL, "region", region)
	return m.snapshot(job), nil
}

func (m *Manager) GetJob(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return m.snapshotLocked(job), nil
}

// ListJobs returns the newest jobs first.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, m.snapshotLocked(job))
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if len(jobs) > listLimit {
		jobs = jobs[:listLimit]
	}
	return jobs
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{TotalJobs: len(m.jobs), QueueSize: m.queue.Size()}
	for _, job := range m.jobs {
		switch job.Status {
		case StatusPending:
			stats.PendingJobs++
		case StatusRunning:
			stats.RunningJobs++
		case StatusSucceeded:
			stats.SucceededJobs++
		case StatusFailed:
			stats.FailedJobs++
		}
	}
	return stats
}

// StartWorker runs queued jobs until ctx is done or the queue is closed.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	for {
		task, err := m.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrQueueClosed) && ctx.Err() == nil {
				m.logger.Error("failed to take next job", "error", err)
			}
			m.logger.Info("job worker stopping")
			return
		}
		m.metrics.SetJobsQueued(m.queue.Size())

		m.processJob(ctx, task)
	}
}

func (m *Manager) processJob(ctx context.Context, task *queue.Task) {
	started := m.now()
	m.update(task.ID, func(job *Job) {
		job.Status = StatusRunning
		job.StartedAt = &started
	})

	m.logger.Info("processing job", "id", task.ID, "url", task.URL, "region", task.Region)

	outcome, err := m.runner.Run(ctx, task.URL, task.Region)
	completed := m.now()

	m.update(task.ID, func(job *Job) {
		job.CompletedAt = &completed
		if outcome != nil {
			job.RunID = outcome.RunID
			job.Attempts = outcome.Attempts
			job.Exhausted = outcome.Exhausted
		}

		if err == nil && outcome != nil && outcome.State == scraper.StateSucceeded {
			job.Status = StatusSucceeded
			obs := outcome.Observation
			props := obs.Properties
			job.Properties = &props
			job.TextPath = obs.TextPath
			job.ScreenshotPath = obs.ScreenshotPath
			return
		}

		job.Status = StatusFailed
		cause := err
		if cause == nil && outcome != nil {
			cause = outcome.Err
		}
		if cause != nil {
			job.ErrorKind = scraper.KindOf(cause).String()
			job.Error = cause.Error()
		}
	})

	job, _ := m.GetJob(task.ID)
	if job == nil {
		return
	}

	if job.Status == StatusSucceeded {
		m.recordSuccess()
		m.logger.Info("job completed", "id", task.ID, "attempts", job.Attempts)
		return
	}

	if job.Exhausted {
		m.recordError()
	}
	m.logger.Error("job failed", "id", task.ID, "attempts", job.Attempts, "error", job.Error)
}

// pruneLocked drops finished jobs that completed more than the retention
// period before now. Pending and running jobs are never dropped.
func (m *Manager) pruneLocked(now time.Time) {
	for id, job := range m.jobs {
		if job.CompletedAt != nil && now.Sub(*job.CompletedAt) > m.retention {
			delete(m.jobs, id)
		}
	}
}

func (m *Manager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.jobs[id]; ok {
		fn(job)
	}
}

func (m *Manager) recordSuccess() {
	if m.feedback != nil {
		m.feedback.RecordSuccess()
	}
}

func (m *Manager) recordError() {
	if m.feedback != nil {
		m.feedback.RecordError()
	}
}

func (m *Manager) snapshot(job *Job) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(job)
}

func (m *Manager) snapshotLocked(job *Job) *Job {
	cp := *job
	if job.Properties != nil {
		props := *job.Properties
		cp.Properties = &props
	}
	return &cp
}
