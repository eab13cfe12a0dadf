package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const scheduleSwapLockKey = "schedule_assignments"

const assignmentColumns = `id, class_id, course_id, teacher_id, day, start_slot, duration_slots, start_time, end_time, created_at`

// ScheduleAssignmentRepository persists generated timetables.
type ScheduleAssignmentRepository struct {
	db *sqlx.DB
}

// NewScheduleAssignmentRepository builds the repository.
func NewScheduleAssignmentRepository(db *sqlx.DB) *ScheduleAssignmentRepository {
	return &ScheduleAssignmentRepository{db: db}
}

// ReplaceForClasses deletes every assignment of the given classes and inserts the new set in
// one transaction. Swaps are serialised with a transaction-scoped advisory lock and the new
// rows are checked against teachers already booked by other classes before commit.
func (r *ScheduleAssignmentRepository) ReplaceForClasses(ctx context.Context, classIDs []string, assignments []models.ScheduleAssignment) error {
	if len(classIDs) == 0 {
		return fmt.Errorf("replace schedule: empty class scope")
	}
	scope := append([]string(nil), classIDs...)
	sort.Strings(scope)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schedule swap: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, scheduleSwapLockKey); err != nil {
		return fmt.Errorf("lock schedule swap: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_assignments WHERE class_id = ANY($1)`, pq.Array(scope)); err != nil {
		return fmt.Errorf("delete scoped assignments: %w", err)
	}
	if err := r.checkTeacherClashes(ctx, tx, assignments); err != nil {
		return err
	}

	const insert = `INSERT INTO schedule_assignments (` + assignmentColumns + `)
VALUES (:id, :class_id, :course_id, :teacher_id, :day, :start_slot, :duration_slots, :start_time, :end_time, :created_at)`
	for i := range assignments {
		if _, err := sqlx.NamedExecContext(ctx, tx, insert, &assignments[i]); err != nil {
			return fmt.Errorf("insert schedule assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule swap: %w", err)
	}
	commit = true
	return nil
}

func (r *ScheduleAssignmentRepository) checkTeacherClashes(ctx context.Context, tx sqlx.QueryerContext, assignments []models.ScheduleAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	teacherIDs := make([]string, 0, len(assignments))
	for _, item := range assignments {
		if !seen[item.TeacherID] {
			seen[item.TeacherID] = true
			teacherIDs = append(teacherIDs, item.TeacherID)
		}
	}
	sort.Strings(teacherIDs)

	query := `SELECT ` + assignmentColumns + ` FROM schedule_assignments WHERE teacher_id = ANY($1)`
	var booked []models.ScheduleAssignment
	if err := sqlx.SelectContext(ctx, tx, &booked, query, pq.Array(teacherIDs)); err != nil {
		return fmt.Errorf("load teacher bookings: %w", err)
	}
	for _, existing := range booked {
		for _, item := range assignments {
			// stored rows may come from another slot grid, so compare clock times
			if existing.TeacherID == item.TeacherID && existing.OverlapsInTime(item) {
				return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("teacher %s already booked on %s %s-%s", item.TeacherID, item.Day, existing.StartTime, existing.EndTime))
			}
		}
	}
	return nil
}

// ListByClass returns the persisted assignments of one class.
func (r *ScheduleAssignmentRepository) ListByClass(ctx context.Context, classID string) ([]models.ScheduleAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM schedule_assignments WHERE class_id = $1 ORDER BY day ASC, start_slot ASC`
	var assignments []models.ScheduleAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, classID); err != nil {
		return nil, fmt.Errorf("list class assignments: %w", err)
	}
	return assignments, nil
}

// ListExcludingClasses returns assignments of every class not in classIDs.
func (r *ScheduleAssignmentRepository) ListExcludingClasses(ctx context.Context, classIDs []string) ([]models.ScheduleAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM schedule_assignments WHERE NOT (class_id = ANY($1)) ORDER BY class_id ASC, day ASC, start_slot ASC`
	var assignments []models.ScheduleAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, pq.Array(classIDs)); err != nil {
		return nil, fmt.Errorf("list reserved assignments: %w", err)
	}
	return assignments, nil
}

// DeleteByClass removes a class timetable and reports how many rows went away.
func (r *ScheduleAssignmentRepository) DeleteByClass(ctx context.Context, classID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_assignments WHERE class_id = $1`, classID)
	if err != nil {
		return 0, fmt.Errorf("delete class assignments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete class assignments: %w", err)
	}
	return affected, nil
}
