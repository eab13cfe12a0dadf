package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

const regenerationJobType = "timetable.regenerate"

type timetableRegenerator interface {
	Validate(req *dto.RegenerateScheduleRequest) error
	Regenerate(ctx context.Context, req dto.RegenerateScheduleRequest) (*models.RegenerationResult, error)
}

// RegenerationJobConfig tunes the background worker pool.
type RegenerationJobConfig struct {
	Enabled    bool
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
	BufferSize int
	RecordTTL  time.Duration
}

// RegenerationJobService runs regenerations in the background and tracks their status.
type RegenerationJobService struct {
	generator timetableRegenerator
	queue     *jobs.Queue
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       RegenerationJobConfig

	mu      sync.RWMutex
	records map[string]*models.RegenerationJob

	newID func() string
	now   func() time.Time
	seed  func() int64
}

// NewRegenerationJobService builds the service and its queue. Call Start before enqueueing.
func NewRegenerationJobService(generator timetableRegenerator, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg RegenerationJobConfig) *RegenerationJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RecordTTL <= 0 {
		cfg.RecordTTL = time.Hour
	}
	svc := &RegenerationJobService{
		generator: generator,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		records:   make(map[string]*models.RegenerationJob),
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
		seed:      func() int64 { return time.Now().UnixNano() },
	}
	svc.queue = jobs.NewQueue("timetable-regeneration", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		OnGiveUp:   svc.giveUp,
		Logger:     logger,
	})
	return svc
}

// Enabled reports whether asynchronous regeneration is switched on.
func (s *RegenerationJobService) Enabled() bool {
	return s != nil && s.cfg.Enabled
}

// Start launches the workers.
func (s *RegenerationJobService) Start(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	s.queue.Start(ctx)
}

// Stop waits for running workers to exit.
func (s *RegenerationJobService) Stop() {
	if !s.Enabled() {
		return
	}
	s.queue.Stop()
}

// Enqueue validates the request and schedules it. The seed is fixed here so retries
// reproduce the same plan.
func (s *RegenerationJobService) Enqueue(ctx context.Context, req dto.RegenerateScheduleRequest) (*models.RegenerationJob, error) {
	if !s.Enabled() {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "asynchronous regeneration is disabled")
	}
	if err := s.generator.Validate(&req); err != nil {
		return nil, err
	}
	if req.Seed == nil {
		seed := s.seed()
		req.Seed = &seed
	}

	now := s.now()
	record := &models.RegenerationJob{
		ID:         s.newID(),
		Status:     models.RegenerationJobQueued,
		ClassIDs:   req.ClassIDs,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}
	snapshot := s.store(ctx, record)

	if err := s.queue.Enqueue(jobs.Job{ID: record.ID, Type: regenerationJobType, Payload: req, Enqueued: now}); err != nil {
		s.mu.Lock()
		delete(s.records, record.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrTransactionFailure.Code, http.StatusServiceUnavailable, "regeneration queue unavailable")
	}
	s.metrics.RecordJobStatus(models.RegenerationJobQueued)
	s.logger.Info("regeneration job queued", zap.String("job_id", snapshot.ID), zap.Strings("class_ids", snapshot.ClassIDs))
	return snapshot, nil
}

// Get returns the status record of a job.
func (s *RegenerationJobService) Get(ctx context.Context, id string) (*models.RegenerationJob, error) {
	if !s.Enabled() {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "asynchronous regeneration is disabled")
	}
	s.mu.RLock()
	record, ok := s.records[id]
	if ok {
		record = copyJob(record)
	}
	s.mu.RUnlock()
	if ok {
		return record, nil
	}

	var cached models.RegenerationJob
	if hit, _ := s.cache.Get(ctx, JobKey(id), &cached); hit {
		return &cached, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "regeneration job not found")
}

func (s *RegenerationJobService) handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.RegenerateScheduleRequest)
	if !ok {
		return jobs.Permanent(fmt.Errorf("unexpected payload %T", job.Payload))
	}

	s.update(ctx, job.ID, func(record *models.RegenerationJob) {
		record.Status = models.RegenerationJobRunning
		record.Attempts = job.Attempt + 1
		record.Error = ""
	})
	s.metrics.RecordJobStatus(models.RegenerationJobRunning)

	result, err := s.generator.Regenerate(ctx, req)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError && !errors.Is(err, appErrors.ErrConflict) {
			return jobs.Permanent(err)
		}
		return err
	}

	s.finish(ctx, job.ID, func(record *models.RegenerationJob) {
		record.Status = models.RegenerationJobSucceeded
		record.Result = result
	})
	s.metrics.RecordJobStatus(models.RegenerationJobSucceeded)
	return nil
}

func (s *RegenerationJobService) giveUp(job jobs.Job, err error) {
	s.finish(context.Background(), job.ID, func(record *models.RegenerationJob) {
		record.Status = models.RegenerationJobFailed
		record.Error = err.Error()
	})
	s.metrics.RecordJobStatus(models.RegenerationJobFailed)
	s.logger.Warn("regeneration job failed", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
}

// update mutates the record and mirrors it to the cache. It reports whether the cached copy
// was written.
func (s *RegenerationJobService) update(ctx context.Context, id string, mutate func(*models.RegenerationJob)) bool {
	s.mu.Lock()
	record, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	mutate(record)
	record.UpdatedAt = s.now()
	snapshot := copyJob(record)
	s.mu.Unlock()

	if !s.cache.Enabled() {
		return false
	}
	return s.cache.Set(ctx, JobKey(id), snapshot, s.cfg.RecordTTL) == nil
}

// finish applies a terminal status. Once the cache holds the final record Get is served from
// there, so the in-memory copy is released.
func (s *RegenerationJobService) finish(ctx context.Context, id string, mutate func(*models.RegenerationJob)) {
	if !s.update(ctx, id, mutate) {
		return
	}
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
}

func (s *RegenerationJobService) store(ctx context.Context, record *models.RegenerationJob) *models.RegenerationJob {
	s.mu.Lock()
	s.sweepLocked(record.EnqueuedAt)
	s.records[record.ID] = record
	snapshot := copyJob(record)
	s.mu.Unlock()

	_ = s.cache.Set(ctx, JobKey(snapshot.ID), snapshot, s.cfg.RecordTTL)
	return snapshot
}

// sweepLocked drops finished records that stayed in memory past RecordTTL because the cache
// was off or refused the write. Callers hold s.mu.
func (s *RegenerationJobService) sweepLocked(now time.Time) {
	cutoff := now.Add(-s.cfg.RecordTTL)
	for id, record := range s.records {
		if record.Status.Finished() && record.UpdatedAt.Before(cutoff) {
			delete(s.records, id)
		}
	}
}

func copyJob(record *models.RegenerationJob) *models.RegenerationJob {
	clone := *record
	clone.ClassIDs = append([]string(nil), record.ClassIDs...)
	return &clone
}
