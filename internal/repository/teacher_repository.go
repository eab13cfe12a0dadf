package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TeacherRepository manages persistence for teachers and their course qualifications.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns the roster with QualifiedCourseIDs filled from teacher_courses.
func (r *TeacherRepository) List(ctx context.Context) ([]models.Teacher, error) {
	const query = `SELECT id, full_name, created_at, updated_at FROM teachers ORDER BY full_name ASC, id ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}

	const qualificationQuery = `SELECT teacher_id, course_id FROM teacher_courses ORDER BY teacher_id ASC, course_id ASC`
	var qualifications []models.TeacherQualification
	if err := r.db.SelectContext(ctx, &qualifications, qualificationQuery); err != nil {
		return nil, fmt.Errorf("list teacher qualifications: %w", err)
	}

	byTeacher := make(map[string][]string, len(teachers))
	for _, q := range qualifications {
		byTeacher[q.TeacherID] = append(byTeacher[q.TeacherID], q.CourseID)
	}
	for i := range teachers {
		teachers[i].QualifiedCourseIDs = byTeacher[teachers[i].ID]
		if teachers[i].QualifiedCourseIDs == nil {
			teachers[i].QualifiedCourseIDs = []string{}
		}
	}
	return teachers, nil
}
