package models

import "time"

// Teacher is an instructor together with the courses they may teach.
type Teacher struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"full_name" json:"name"`
	QualifiedCourseIDs []string  `db:"-" json:"qualified_course_ids"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherQualification links a teacher to a course they are certified for.
type TeacherQualification struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	CourseID  string `db:"course_id" json:"course_id"`
}

// CanTeach reports whether the teacher is qualified for the course.
func (t Teacher) CanTeach(courseID string) bool {
	for _, id := range t.QualifiedCourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}
