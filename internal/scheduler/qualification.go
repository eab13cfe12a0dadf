package scheduler

import "github.com/noah-isme/sma-timetable-api/internal/models"

// QualificationIndex answers which courses fit a class and which teachers may teach a course.
type QualificationIndex struct {
	courses  []models.Course
	byCourse map[string][]models.Teacher
}

// NewQualificationIndex indexes the supplied master data. Input order is preserved in lookups.
func NewQualificationIndex(courses []models.Course, teachers []models.Teacher) *QualificationIndex {
	byCourse := make(map[string][]models.Teacher)
	for _, teacher := range teachers {
		seen := make(map[string]bool, len(teacher.QualifiedCourseIDs))
		for _, courseID := range teacher.QualifiedCourseIDs {
			if seen[courseID] {
				continue
			}
			seen[courseID] = true
			byCourse[courseID] = append(byCourse[courseID], teacher)
		}
	}
	return &QualificationIndex{courses: courses, byCourse: byCourse}
}

// ApplicableCourses filters the catalogue to courses matching the class level or marked general.
func (q *QualificationIndex) ApplicableCourses(class models.ClassSection) []models.Course {
	result := make([]models.Course, 0, len(q.courses))
	for _, course := range q.courses {
		if course.AppliesTo(class.Level) {
			result = append(result, course)
		}
	}
	return result
}

// QualifiedTeachers lists teachers certified for the course.
func (q *QualificationIndex) QualifiedTeachers(courseID string) []models.Teacher {
	return q.byCourse[courseID]
}
