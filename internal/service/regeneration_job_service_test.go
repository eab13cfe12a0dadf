package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type regeneratorStub struct {
	mu          sync.Mutex
	validateErr error
	errs        []error
	seeds       []int64
}

func (s *regeneratorStub) Validate(req *dto.RegenerateScheduleRequest) error {
	if s.validateErr != nil {
		return s.validateErr
	}
	req.ClassIDs = []string{"x-ipa-1"}
	return nil
}

func (s *regeneratorStub) Regenerate(_ context.Context, req dto.RegenerateScheduleRequest) (*models.RegenerationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeds = append(s.seeds, *req.Seed)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &models.RegenerationResult{ClassIDs: req.ClassIDs, Seed: *req.Seed, PlacedCount: 3}, nil
}

func (s *regeneratorStub) calls() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.seeds...)
}

func newJobService(t *testing.T, stub *regeneratorStub, cache *memoryCache) *RegenerationJobService {
	t.Helper()
	svc := NewRegenerationJobService(stub, NewCacheService(cache, nil, time.Minute, nil, true), NewMetricsService(), nil, RegenerationJobConfig{
		Enabled:    true,
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
	})
	svc.seed = func() int64 { return 42 }
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func waitForStatus(t *testing.T, svc *RegenerationJobService, id string, status models.RegenerationJobStatus) *models.RegenerationJob {
	t.Helper()
	var record *models.RegenerationJob
	require.Eventually(t, func() bool {
		got, err := svc.Get(context.Background(), id)
		if err != nil {
			return false
		}
		record = got
		return got.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return record
}

func heldInMemory(svc *RegenerationJobService, id string) bool {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	_, ok := svc.records[id]
	return ok
}

func TestRegenerationJobSucceeds(t *testing.T) {
	stub := &regeneratorStub{}
	cache := newMemoryCache()
	svc := newJobService(t, stub, cache)

	job, err := svc.Enqueue(context.Background(), dto.RegenerateScheduleRequest{ClassIDs: []string{" x-ipa-1"}})
	require.NoError(t, err)
	assert.Equal(t, models.RegenerationJobQueued, job.Status)
	assert.Equal(t, []string{"x-ipa-1"}, job.ClassIDs)

	done := waitForStatus(t, svc, job.ID, models.RegenerationJobSucceeded)
	require.NotNil(t, done.Result)
	assert.Equal(t, int64(42), done.Result.Seed)
	assert.Equal(t, 1, done.Attempts)

	var cached models.RegenerationJob
	hit, err := svc.cache.Get(context.Background(), JobKey(job.ID), &cached)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, job.ID, cached.ID)
}

func TestRegenerationJobFinishedRecordsMoveToCache(t *testing.T) {
	stub := &regeneratorStub{errs: []error{nil, appErrors.Clone(appErrors.ErrNotFound, "class gone")}}
	svc := newJobService(t, stub, newMemoryCache())

	succeeded, err := svc.Enqueue(context.Background(), dto.RegenerateScheduleRequest{ClassIDs: []string{"x-ipa-1"}})
	require.NoError(t, err)
	waitForStatus(t, svc, succeeded.ID, models.RegenerationJobSucceeded)
	require.Eventually(t, func() bool { return !heldInMemory(svc, succeeded.ID) }, time.Second, 5*time.Millisecond)

	failed, err := svc.Enqueue(context.Background(), dto.RegenerateScheduleRequest{ClassIDs: []string{"x-ipa-1"}})
	require.NoError(t, err)
	waitForStatus(t, svc, failed.ID, models.RegenerationJobFailed)
	require.Eventually(t, func() bool { return !heldInMemory(svc, failed.ID) }, time.Second, 5*time.Millisecond)

	got, err := svc.Get(context.Background(), succeeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegenerationJobSucceeded, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 3, got.Result.PlacedCount)

	got, err = svc.Get(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegenerationJobFailed, got.Status)
	assert.Contains(t, got.Error, "class gone")
}

func TestRegenerationJobSweepsFinishedRecordsWithoutCache(t *testing.T) {
	base := time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC)
	var elapsed atomic.Int64
	svc := NewRegenerationJobService(&regeneratorStub{}, NewCacheService(nil, nil, time.Minute, nil, false), NewMetricsService(), nil, RegenerationJobConfig{
		Enabled:   true,
		Workers:   1,
		RecordTTL: time.Hour,
	})
	svc.now = func() time.Time { return base.Add(time.Duration(elapsed.Load())) }
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)

	first, err := svc.Enqueue(context.Background(), dto.RegenerateScheduleRequest{ClassIDs: []string{"x-ipa-1"}})
	require.NoError(t, err)
	waitForStatus(t, svc, first.ID, models.RegenerationJobSucceeded)
	// nowhere else to serve it from yet
	assert.True(t, heldInMemory(svc, first.ID))

	elapsed.Store(int64(2 * time.Hour))
	second, err := svc.Enqueue(context.Background(), dto.RegenerateScheduleRequest{ClassIDs: []string{"x-ipa-1"}})
	require.NoError(t, err)

	assert.False(t, heldInMemory(svc, first.ID))
	_, err = svc.Get(context.Background(), first.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	waitForStatus(t, svc, second.ID, models.RegenerationJobSucceeded)
}

func TestRegenerationJobRetriesWithSameSeed(t *testing.T) {
	stub := &regeneratorStub{errs: []error{appErrors.Clone(appErrors.ErrTransactionFailure, "deadlock")}}
	svc := newJobService(t, stub, newMemoryCache())
	seed := int64(7)

	job, err := svc.Enqueue(context.Background(), dto.RegenerateScheduleRequest{ClassIDs: []string{"x-ipa-1"}, Seed: &seed})
	require.NoError(t, err)

	done := waitForStatus(t, svc, job.ID, models.RegenerationJobSucceeded)
	assert.Equal(t, 2, done.Attempts)
	assert.Equal(t, []int64{7, 7}, stub.calls())
}

func TestRegenerationJobClientErrorsAreNotRetried(t *testing.T) {
	stub := &regeneratorStub{errs: []error{appErrors.Clone(appErrors.ErrNotFound, "class gone")}}
	svc := newJobService(t, stub, newMemoryCache())

	job, err := svc.Enqueue(context.Background(), dto.RegenerateScheduleRequest{ClassIDs: []string{"x-ipa-1"}})
	require.NoError(t, err)

	failed := waitForStatus(t, svc, job.ID, models.RegenerationJobFailed)
	assert.Contains(t, failed.Error, "class gone")
	assert.Len(t, stub.calls(), 1)
}

func TestRegenerationJobRejectsInvalidRequest(t *testing.T) {
	stub := &regeneratorStub{validateErr: appErrors.Clone(appErrors.ErrValidation, "classIds required")}
	svc := newJobService(t, stub, newMemoryCache())

	_, err := svc.Enqueue(context.Background(), dto.RegenerateScheduleRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRegenerationJobGetUnknown(t *testing.T) {
	svc := newJobService(t, &regeneratorStub{}, newMemoryCache())
	_, err := svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestRegenerationJobDisabled(t *testing.T) {
	svc := NewRegenerationJobService(&regeneratorStub{}, nil, nil, nil, RegenerationJobConfig{})
	svc.Start(context.Background())
	defer svc.Stop()

	_, err := svc.Enqueue(context.Background(), dto.RegenerateScheduleRequest{ClassIDs: []string{"x"}})
	assert.True(t, errors.Is(err, appErrors.ErrFeatureDisabled))
	_, err = svc.Get(context.Background(), "x")
	assert.True(t, errors.Is(err, appErrors.ErrFeatureDisabled))
}
