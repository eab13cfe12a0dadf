package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestQualificationIndex(t *testing.T) {
	courses := []models.Course{
		{ID: "math-x", Level: "X"},
		{ID: "religion", Level: models.LevelGeneral},
		{ID: "physics-xi", Level: "XI"},
	}
	teachers := []models.Teacher{
		{ID: "t-1", QualifiedCourseIDs: []string{"math-x", "math-x", "religion"}},
		{ID: "t-2", QualifiedCourseIDs: []string{"physics-xi"}},
		{ID: "t-3", QualifiedCourseIDs: []string{"religion"}},
	}
	index := NewQualificationIndex(courses, teachers)

	applicable := index.ApplicableCourses(models.ClassSection{ID: "x-1", Level: "X"})
	assert.Equal(t, []string{"math-x", "religion"}, courseIDs(applicable))

	applicable = index.ApplicableCourses(models.ClassSection{ID: "xi-1", Level: "XI"})
	assert.Equal(t, []string{"religion", "physics-xi"}, courseIDs(applicable))

	assert.Len(t, index.QualifiedTeachers("math-x"), 1)
	religion := index.QualifiedTeachers("religion")
	assert.Equal(t, "t-1", religion[0].ID)
	assert.Equal(t, "t-3", religion[1].ID)
	assert.Empty(t, index.QualifiedTeachers("art"))
}

func courseIDs(courses []models.Course) []string {
	ids := make([]string, 0, len(courses))
	for _, course := range courses {
		ids = append(ids, course.ID)
	}
	return ids
}
