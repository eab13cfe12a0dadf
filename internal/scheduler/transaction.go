package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// AssignmentStore swaps the persisted schedule of a class scope in one commit.
// Implementations must leave the previous assignments untouched when they return an error.
type AssignmentStore interface {
	ReplaceForClasses(ctx context.Context, classIDs []string, assignments []models.ScheduleAssignment) error
}

// RegenerationInput carries everything a regeneration needs.
type RegenerationInput struct {
	// ClassIDs is the scope, in the order classes are allocated.
	ClassIDs []string
	Classes  []models.ClassSection
	Courses  []models.Course
	Teachers []models.Teacher
	// Reserved are persisted assignments; the ones belonging to classes outside the scope keep
	// their wall-clock time busy whatever grid they were generated under.
	Reserved []models.ScheduleAssignment
	Config   models.TimeSlotConfig
	Seed     int64
}

// Transaction computes a full replacement schedule for a class scope and hands it to the store.
type Transaction struct {
	store AssignmentStore
	newID func() string
	now   func() time.Time
}

// NewTransaction builds a Transaction backed by the given store.
func NewTransaction(store AssignmentStore) *Transaction {
	return &Transaction{
		store: store,
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Plan computes the replacement set without touching storage.
func (t *Transaction) Plan(in RegenerationInput) (*models.RegenerationResult, error) {
	days, invalid := models.NormalizeDays(in.Config.Days)
	if len(invalid) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("unknown scheduling days: %v", invalid))
	}
	cfg := in.Config
	cfg.Days = days
	slots, err := GenerateSlots(cfg)
	if err != nil {
		return nil, err
	}

	scope, classes, err := resolveScope(in.ClassIDs, in.Classes)
	if err != nil {
		return nil, err
	}

	inScope := make(map[string]bool, len(scope))
	for _, id := range scope {
		inScope[id] = true
	}
	reserved := make([]models.ScheduleAssignment, 0, len(in.Reserved))
	for _, item := range in.Reserved {
		if inScope[item.ClassID] {
			continue
		}
		if aligned, ok := alignToGrid(item, slots); ok {
			reserved = append(reserved, aligned)
		}
	}

	allocation := Allocate(AllocationInput{
		Classes:  classes,
		Courses:  in.Courses,
		Teachers: in.Teachers,
		Slots:    slots,
		Days:     days,
		Reserved: reserved,
	}, rand.New(rand.NewSource(in.Seed)))

	now := t.now()
	assignments := allocation.Assignments
	fresh := make(map[string]bool, len(assignments))
	for i := range assignments {
		assignments[i].ID = t.newID()
		assignments[i].CreatedAt = now
		fresh[assignments[i].ID] = true
	}
	for _, overlap := range DetectOverlaps(append(reserved, assignments...)) {
		if fresh[overlap.First.ID] || fresh[overlap.Second.ID] {
			return nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("allocation double-booked %s on %s", overlap.Dimension, overlap.First.Day))
		}
	}
	if assignments == nil {
		assignments = []models.ScheduleAssignment{}
	}
	unplaced := allocation.Unplaced
	if unplaced == nil {
		unplaced = []models.UnplacedCourse{}
	}

	return &models.RegenerationResult{
		ClassIDs:    scope,
		Seed:        in.Seed,
		PlacedCount: len(assignments),
		Assignments: assignments,
		Unplaced:    unplaced,
		Slots:       slots,
		Days:        days,
		GeneratedAt: now,
	}, nil
}

// Regenerate plans the schedule and swaps it in. Cancellation is honoured up to the swap.
// A store that detects a concurrent teacher booking reports ErrConflict; any other failed
// swap reports ErrTransactionFailure. Either way nothing is committed.
func (t *Transaction) Regenerate(ctx context.Context, in RegenerationInput) (*models.RegenerationResult, error) {
	result, err := t.Plan(in)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCanceled.Code, appErrors.ErrCanceled.Status, appErrors.ErrCanceled.Message)
	}
	if t.store == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "assignment store missing")
	}
	if err := t.store.ReplaceForClasses(ctx, result.ClassIDs, result.Assignments); err != nil {
		if errors.Is(err, appErrors.ErrConflict) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransactionFailure.Code, appErrors.ErrTransactionFailure.Status, appErrors.ErrTransactionFailure.Message)
	}
	return result, nil
}

// alignToGrid re-expresses a persisted booking in the indices of the current grid. Every slot
// whose wall-clock window touches the booking is covered, so a row saved under another session
// length still blocks the right time. Bookings entirely outside the grid block nothing.
func alignToGrid(item models.ScheduleAssignment, slots []models.TimeSlot) (models.ScheduleAssignment, bool) {
	first, last := 0, 0
	for _, slot := range slots {
		if slot.Start < item.EndTime && item.StartTime < slot.End {
			if first == 0 {
				first = slot.Index
			}
			last = slot.Index
		}
	}
	if first == 0 {
		return item, false
	}
	item.StartSlotIndex = first
	item.DurationSlots = last - first + 1
	return item, true
}

func resolveScope(classIDs []string, roster []models.ClassSection) ([]string, []models.ClassSection, error) {
	byID := make(map[string]models.ClassSection, len(roster))
	for _, class := range roster {
		byID[class.ID] = class
	}

	seen := make(map[string]bool, len(classIDs))
	scope := make([]string, 0, len(classIDs))
	classes := make([]models.ClassSection, 0, len(classIDs))
	for _, id := range classIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		class, ok := byID[id]
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class %s not found", id))
		}
		scope = append(scope, id)
		classes = append(classes, class)
	}
	if len(scope) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "class scope must contain at least one class")
	}
	return scope, classes, nil
}
