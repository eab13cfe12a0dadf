package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type schedulerClassReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.ClassSection, error)
}

type schedulerCourseReader interface {
	List(ctx context.Context) ([]models.Course, error)
}

type schedulerTeacherReader interface {
	List(ctx context.Context) ([]models.Teacher, error)
}

type scheduleAssignmentRepository interface {
	scheduler.AssignmentStore
	ListByClass(ctx context.Context, classID string) ([]models.ScheduleAssignment, error)
	ListExcludingClasses(ctx context.Context, classIDs []string) ([]models.ScheduleAssignment, error)
	DeleteByClass(ctx context.Context, classID string) (int64, error)
}

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	Defaults           models.TimeSlotConfig
	Timeout            time.Duration
	ResultTTL          time.Duration
	MaxClassesPerScope int
}

// NewScheduleGeneratorConfig validates the configured slot grid and tuning.
func NewScheduleGeneratorConfig(cfg config.SchedulerConfig) (ScheduleGeneratorConfig, error) {
	start, err := models.ParseTimeOfDay(cfg.DayStart)
	if err != nil {
		return ScheduleGeneratorConfig{}, appErrors.Wrap(err, appErrors.ErrConfig.Code, appErrors.ErrConfig.Status, "invalid SCHEDULER_DAY_START")
	}
	end, err := models.ParseTimeOfDay(cfg.DayEnd)
	if err != nil {
		return ScheduleGeneratorConfig{}, appErrors.Wrap(err, appErrors.ErrConfig.Code, appErrors.ErrConfig.Status, "invalid SCHEDULER_DAY_END")
	}
	days, invalid := models.NormalizeDays(cfg.Days)
	if len(invalid) > 0 {
		return ScheduleGeneratorConfig{}, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("invalid SCHEDULER_DAYS: %v", invalid))
	}
	defaults := models.TimeSlotConfig{
		DayStart:               start,
		DayEnd:                 end,
		SessionDurationMinutes: cfg.SessionMinutes,
		Days:                   days,
	}
	if _, err := scheduler.GenerateSlots(defaults); err != nil {
		return ScheduleGeneratorConfig{}, err
	}
	return ScheduleGeneratorConfig{
		Defaults:           defaults,
		Timeout:            cfg.RegenerateTimeout,
		ResultTTL:          cfg.ResultTTL,
		MaxClassesPerScope: cfg.MaxClassesPerScope,
	}, nil
}

// ScheduleGeneratorService loads master data, runs the allocator and swaps timetables in.
type ScheduleGeneratorService struct {
	classes     schedulerClassReader
	courses     schedulerCourseReader
	teachers    schedulerTeacherReader
	assignments scheduleAssignmentRepository
	tx          *scheduler.Transaction
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ScheduleGeneratorConfig
	seed        func() int64
}

// NewScheduleGeneratorService wires scheduler dependencies.
func NewScheduleGeneratorService(
	classes schedulerClassReader,
	courses schedulerCourseReader,
	teachers schedulerTeacherReader,
	assignments scheduleAssignmentRepository,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 30 * time.Minute
	}
	if cfg.MaxClassesPerScope <= 0 {
		cfg.MaxClassesPerScope = 64
	}
	return &ScheduleGeneratorService{
		classes:     classes,
		courses:     courses,
		teachers:    teachers,
		assignments: assignments,
		tx:          scheduler.NewTransaction(assignments),
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		seed:        func() int64 { return time.Now().UnixNano() },
	}
}

// ResolveConfig merges a request override onto the configured defaults and normalises days.
func (s *ScheduleGeneratorService) ResolveConfig(override *dto.SlotConfigRequest) (models.TimeSlotConfig, error) {
	cfg := s.cfg.Defaults
	cfg.Days = append([]string(nil), s.cfg.Defaults.Days...)
	if override != nil {
		if override.DayStart != "" {
			start, err := models.ParseTimeOfDay(override.DayStart)
			if err != nil {
				return models.TimeSlotConfig{}, appErrors.Clone(appErrors.ErrValidation, "dayStart must be HH:MM")
			}
			cfg.DayStart = start
		}
		if override.DayEnd != "" {
			end, err := models.ParseTimeOfDay(override.DayEnd)
			if err != nil {
				return models.TimeSlotConfig{}, appErrors.Clone(appErrors.ErrValidation, "dayEnd must be HH:MM")
			}
			cfg.DayEnd = end
		}
		if override.SessionDurationMinutes != nil {
			cfg.SessionDurationMinutes = *override.SessionDurationMinutes
		}
		if len(override.Days) > 0 {
			cfg.Days = override.Days
		}
	}
	days, invalid := models.NormalizeDays(cfg.Days)
	if len(invalid) > 0 {
		return models.TimeSlotConfig{}, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("unknown scheduling days: %v", invalid))
	}
	cfg.Days = days
	return cfg, nil
}

// PreviewSlots returns the slot grid a configuration produces without touching storage.
func (s *ScheduleGeneratorService) PreviewSlots(_ context.Context, req dto.SlotConfigRequest) (*dto.SlotPreviewResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot configuration")
	}
	cfg, err := s.ResolveConfig(&req)
	if err != nil {
		return nil, err
	}
	slots, err := scheduler.GenerateSlots(cfg)
	if err != nil {
		return nil, err
	}
	return &dto.SlotPreviewResponse{Config: cfg, Slots: slots}, nil
}

// Validate checks a regeneration request without running it and normalises its class scope.
func (s *ScheduleGeneratorService) Validate(req *dto.RegenerateScheduleRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid regeneration request")
	}
	seen := make(map[string]bool, len(req.ClassIDs))
	scope := make([]string, 0, len(req.ClassIDs))
	for _, id := range req.ClassIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		scope = append(scope, id)
	}
	if len(scope) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "classIds must contain at least one class")
	}
	if len(scope) > s.cfg.MaxClassesPerScope {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d classes can be regenerated at once", s.cfg.MaxClassesPerScope))
	}
	req.ClassIDs = scope
	if _, err := s.ResolveConfig(req.Config); err != nil {
		return err
	}
	return nil
}

// Regenerate replaces the timetable of every class in the request scope. Unplaced courses are
// reported in the result; errors mean nothing was committed.
func (s *ScheduleGeneratorService) Regenerate(ctx context.Context, req dto.RegenerateScheduleRequest) (*models.RegenerationResult, error) {
	start := time.Now()
	result, err := s.regenerate(ctx, &req)
	elapsed := time.Since(start)
	s.metrics.ObserveRegeneration(regenerationOutcome(err), elapsed, result)

	if err != nil {
		s.logger.Warn("timetable regeneration failed",
			zap.Strings("class_ids", req.ClassIDs),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, err
	}
	s.logger.Info("timetable regenerated",
		zap.Strings("class_ids", result.ClassIDs),
		zap.Int64("seed", result.Seed),
		zap.Int("placed", result.PlacedCount),
		zap.Int("unplaced", len(result.Unplaced)),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

func (s *ScheduleGeneratorService) regenerate(ctx context.Context, req *dto.RegenerateScheduleRequest) (*models.RegenerationResult, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	cfg, err := s.ResolveConfig(req.Config)
	if err != nil {
		return nil, err
	}
	seed := s.seed()
	if req.Seed != nil {
		seed = *req.Seed
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	scope := req.ClassIDs
	started := time.Now()
	classes, err := s.classes.ListByIDs(ctx, scope)
	s.metrics.ObserveDBQuery("timetable_classes", time.Since(started))
	if err != nil {
		return nil, loadError(ctx, err, "failed to load classes")
	}
	started = time.Now()
	courses, err := s.courses.List(ctx)
	s.metrics.ObserveDBQuery("timetable_courses", time.Since(started))
	if err != nil {
		return nil, loadError(ctx, err, "failed to load courses")
	}
	started = time.Now()
	teachers, err := s.teachers.List(ctx)
	s.metrics.ObserveDBQuery("timetable_teachers", time.Since(started))
	if err != nil {
		return nil, loadError(ctx, err, "failed to load teachers")
	}
	started = time.Now()
	reserved, err := s.assignments.ListExcludingClasses(ctx, scope)
	s.metrics.ObserveDBQuery("timetable_reserved", time.Since(started))
	if err != nil {
		return nil, loadError(ctx, err, "failed to load existing assignments")
	}

	result, err := s.tx.Regenerate(ctx, scheduler.RegenerationInput{
		ClassIDs: scope,
		Classes:  classes,
		Courses:  courses,
		Teachers: teachers,
		Reserved: reserved,
		Config:   cfg,
		Seed:     seed,
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result.ClassIDs...)
	return result, nil
}

// ListByClass returns the persisted timetable of a class ordered by weekday and slot.
// The flag reports whether it was served from cache.
func (s *ScheduleGeneratorService) ListByClass(ctx context.Context, classID string) (*dto.ClassTimetableResponse, bool, error) {
	var cached dto.ClassTimetableResponse
	if hit, _ := s.cache.Get(ctx, ClassTimetableKey(classID), &cached); hit {
		return &cached, true, nil
	}

	class, err := s.findClass(ctx, classID)
	if err != nil {
		return nil, false, err
	}
	items, err := s.assignments.ListByClass(ctx, classID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if items == nil {
		items = []models.ScheduleAssignment{}
	}
	sortAssignments(items)

	resp := &dto.ClassTimetableResponse{Class: *class, Assignments: items}
	_ = s.cache.Set(ctx, ClassTimetableKey(classID), resp, s.cfg.ResultTTL)
	return resp, false, nil
}

// DeleteSchedule removes the persisted timetable of one class.
func (s *ScheduleGeneratorService) DeleteSchedule(ctx context.Context, classID string) (int64, error) {
	if _, err := s.findClass(ctx, classID); err != nil {
		return 0, err
	}
	deleted, err := s.assignments.DeleteByClass(ctx, classID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	s.invalidate(ctx, classID)
	s.logger.Info("timetable deleted", zap.String("class_id", classID), zap.Int64("assignments", deleted))
	return deleted, nil
}

// invalidate drops cached listings after a committed change. A failure leaves the old
// timetable cached until ResultTTL runs out.
func (s *ScheduleGeneratorService) invalidate(ctx context.Context, classIDs ...string) {
	if err := s.cache.InvalidateClasses(ctx, classIDs...); err != nil {
		s.logger.Warn("timetable cache invalidation failed; stale listings may be served",
			zap.Strings("class_ids", classIDs),
			zap.Duration("stale_for", s.cfg.ResultTTL),
			zap.Error(err),
		)
	}
}

func (s *ScheduleGeneratorService) findClass(ctx context.Context, classID string) (*models.ClassSection, error) {
	classes, err := s.classes.ListByIDs(ctx, []string{classID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	for i := range classes {
		if classes[i].ID == classID {
			return &classes[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
}

func loadError(ctx context.Context, err error, message string) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Wrap(err, appErrors.ErrCanceled.Code, appErrors.ErrCanceled.Status, appErrors.ErrCanceled.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func regenerationOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, appErrors.ErrConfig):
		return OutcomeConfig
	case errors.Is(err, appErrors.ErrCanceled):
		return OutcomeCanceled
	case errors.Is(err, appErrors.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, appErrors.ErrValidation), errors.Is(err, appErrors.ErrNotFound):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}

// sortAssignments orders by weekday (Monday first), then start slot, then course.
func sortAssignments(items []models.ScheduleAssignment) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := dayRank(items[i].Day), dayRank(items[j].Day)
		if di != dj {
			return di < dj
		}
		if items[i].StartSlotIndex != items[j].StartSlotIndex {
			return items[i].StartSlotIndex < items[j].StartSlotIndex
		}
		return items[i].CourseID < items[j].CourseID
	})
}

func dayRank(day string) int {
	weekday, ok := models.WeekdayOf(day)
	if !ok {
		return 7
	}
	return (int(weekday) + 6) % 7
}
