package scheduler

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func twoSlotMonday(t *testing.T) ([]models.TimeSlot, []string) {
	t.Helper()
	slots, err := GenerateSlots(models.TimeSlotConfig{
		DayStart:               mustTime(t, "07:00"),
		DayEnd:                 mustTime(t, "09:00"),
		SessionDurationMinutes: 45,
		Days:                   []string{"MONDAY"},
	})
	require.NoError(t, err)
	return slots, []string{"MONDAY"}
}

func TestAllocatePlacesDoubleSessionFromFirstSlot(t *testing.T) {
	slots, days := twoSlotMonday(t)
	input := AllocationInput{
		Classes:  []models.ClassSection{{ID: "x-1", Level: "X"}},
		Courses:  []models.Course{{ID: "math", Level: "X", CreditUnits: 2}},
		Teachers: []models.Teacher{{ID: "t-1", QualifiedCourseIDs: []string{"math"}}},
		Slots:    slots,
		Days:     days,
	}

	allocation := Allocate(input, rand.New(rand.NewSource(1)))

	require.Len(t, allocation.Assignments, 1)
	assert.Empty(t, allocation.Unplaced)
	got := allocation.Assignments[0]
	assert.Equal(t, "x-1", got.ClassID)
	assert.Equal(t, "math", got.CourseID)
	assert.Equal(t, "t-1", got.TeacherID)
	assert.Equal(t, "MONDAY", got.Day)
	assert.Equal(t, 1, got.StartSlotIndex)
	assert.Equal(t, 2, got.DurationSlots)
	assert.Equal(t, "07:00", got.StartTime.String())
	assert.Equal(t, "08:30", got.EndTime.String())
}

func TestAllocateReportsNoFreeSlotWhenRangeIsTaken(t *testing.T) {
	slots, days := twoSlotMonday(t)
	cases := map[string]models.ScheduleAssignment{
		"class busy in slot 2": {ClassID: "x-1", TeacherID: "t-other", Day: "MONDAY", StartSlotIndex: 2, DurationSlots: 1},
		"teacher busy in slot 1": {ClassID: "x-9", TeacherID: "t-1", Day: "MONDAY", StartSlotIndex: 1, DurationSlots: 1},
	}
	for name, reserved := range cases {
		t.Run(name, func(t *testing.T) {
			allocation := Allocate(AllocationInput{
				Classes:  []models.ClassSection{{ID: "x-1", Level: "X"}},
				Courses:  []models.Course{{ID: "math", Level: "X", CreditUnits: 2}},
				Teachers: []models.Teacher{{ID: "t-1", QualifiedCourseIDs: []string{"math"}}},
				Slots:    slots,
				Days:     days,
				Reserved: []models.ScheduleAssignment{reserved},
			}, rand.New(rand.NewSource(1)))

			assert.Empty(t, allocation.Assignments)
			require.Len(t, allocation.Unplaced, 1)
			assert.Equal(t, models.UnplacedCourse{ClassID: "x-1", CourseID: "math", Reason: models.UnplacedNoFreeSlot}, allocation.Unplaced[0])
		})
	}
}

func TestAllocateSharedTeacherFillsBothSlots(t *testing.T) {
	slots, days := twoSlotMonday(t)
	for seed := int64(0); seed < 20; seed++ {
		allocation := Allocate(AllocationInput{
			Classes: []models.ClassSection{{ID: "x-1", Level: "X"}},
			Courses: []models.Course{
				{ID: "math", Level: "X", CreditUnits: 1},
				{ID: "physics", Level: "X", CreditUnits: 1},
			},
			Teachers: []models.Teacher{{ID: "t-1", QualifiedCourseIDs: []string{"math", "physics"}}},
			Slots:    slots,
			Days:     days,
		}, rand.New(rand.NewSource(seed)))

		require.Len(t, allocation.Assignments, 2, "seed %d", seed)
		assert.Empty(t, allocation.Unplaced)
		starts := map[int]bool{}
		for _, item := range allocation.Assignments {
			assert.Equal(t, "t-1", item.TeacherID)
			starts[item.StartSlotIndex] = true
		}
		assert.Equal(t, map[int]bool{1: true, 2: true}, starts)
	}
}

func TestAllocateReportsCourseWithoutTeacher(t *testing.T) {
	slots, days := twoSlotMonday(t)
	allocation := Allocate(AllocationInput{
		Classes:  []models.ClassSection{{ID: "x-1", Level: "X"}},
		Courses:  []models.Course{{ID: "art", Level: "X", CreditUnits: 1}},
		Teachers: []models.Teacher{{ID: "t-1", QualifiedCourseIDs: []string{"math"}}},
		Slots:    slots,
		Days:     days,
	}, rand.New(rand.NewSource(3)))

	assert.Empty(t, allocation.Assignments)
	require.Len(t, allocation.Unplaced, 1)
	assert.Equal(t, models.UnplacedNoQualifiedTeacher, allocation.Unplaced[0].Reason)
}

func TestAllocateCourseLongerThanDay(t *testing.T) {
	slots, days := twoSlotMonday(t)
	allocation := Allocate(AllocationInput{
		Classes:  []models.ClassSection{{ID: "x-1", Level: "X"}},
		Courses:  []models.Course{{ID: "lab", Level: "X", CreditUnits: 3}},
		Teachers: []models.Teacher{{ID: "t-1", QualifiedCourseIDs: []string{"lab"}}},
		Slots:    slots,
		Days:     days,
	}, rand.New(rand.NewSource(3)))

	assert.Empty(t, allocation.Assignments)
	require.Len(t, allocation.Unplaced, 1)
	assert.Equal(t, models.UnplacedNoFreeSlot, allocation.Unplaced[0].Reason)
}

func TestAllocateSkipsCoursesOfOtherLevels(t *testing.T) {
	slots, days := twoSlotMonday(t)
	allocation := Allocate(AllocationInput{
		Classes: []models.ClassSection{{ID: "x-1", Level: "X"}},
		Courses: []models.Course{
			{ID: "physics-xi", Level: "XI", CreditUnits: 1},
			{ID: "religion", Level: models.LevelGeneral, CreditUnits: 1},
		},
		Teachers: []models.Teacher{{ID: "t-1", QualifiedCourseIDs: []string{"physics-xi", "religion"}}},
		Slots:    slots,
		Days:     days,
	}, rand.New(rand.NewSource(5)))

	require.Len(t, allocation.Assignments, 1)
	assert.Equal(t, "religion", allocation.Assignments[0].CourseID)
	assert.Empty(t, allocation.Unplaced)
}

func TestAllocateSameSeedSamePlacement(t *testing.T) {
	input := schoolFixture(t)
	first := Allocate(input, rand.New(rand.NewSource(42)))
	second := Allocate(input, rand.New(rand.NewSource(42)))

	assert.Equal(t, first, second)
}

func TestAllocateInvariantsAcrossSeeds(t *testing.T) {
	input := schoolFixture(t)
	courses := map[string]models.Course{}
	for _, course := range input.Courses {
		courses[course.ID] = course
	}
	classes := map[string]models.ClassSection{}
	for _, class := range input.Classes {
		classes[class.ID] = class
	}
	teachers := map[string]models.Teacher{}
	for _, teacher := range input.Teachers {
		teachers[teacher.ID] = teacher
	}

	for seed := int64(1); seed <= 25; seed++ {
		allocation := Allocate(input, rand.New(rand.NewSource(seed)))

		assert.Empty(t, DetectOverlaps(allocation.Assignments), "seed %d", seed)
		for _, item := range allocation.Assignments {
			course := courses[item.CourseID]
			assert.GreaterOrEqual(t, item.StartSlotIndex, 1)
			assert.LessOrEqual(t, item.EndSlotIndex()-1, len(input.Slots))
			assert.Equal(t, course.EffectiveCreditUnits(), item.DurationSlots)
			assert.True(t, teachers[item.TeacherID].CanTeach(item.CourseID))
			assert.True(t, course.AppliesTo(classes[item.ClassID].Level))
			assert.Equal(t, input.Slots[item.StartSlotIndex-1].Start, item.StartTime)
			assert.Equal(t, input.Slots[item.EndSlotIndex()-2].End, item.EndTime)
		}
		// enough slack for every applicable course
		assert.Empty(t, allocation.Unplaced, "seed %d", seed)
	}
}

func TestAllocateRespectsReservedTeacherTime(t *testing.T) {
	input := schoolFixture(t)
	var reserved []models.ScheduleAssignment
	for _, day := range input.Days {
		reserved = append(reserved, models.ScheduleAssignment{
			ClassID: "xii-1", CourseID: "math-x", TeacherID: "t-math-0",
			Day: day, StartSlotIndex: 1, DurationSlots: 4,
		})
	}
	input.Reserved = reserved

	allocation := Allocate(input, rand.New(rand.NewSource(9)))
	assert.Empty(t, DetectOverlaps(append(reserved, allocation.Assignments...)))
}

// schoolFixture builds three classes over two levels with enough teachers and slots that
// every applicable course fits.
func schoolFixture(t *testing.T) AllocationInput {
	t.Helper()
	days := []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY"}
	slots, err := GenerateSlots(models.TimeSlotConfig{
		DayStart:               mustTime(t, "07:00"),
		DayEnd:                 mustTime(t, "13:00"),
		SessionDurationMinutes: 45,
		Days:                   days,
	})
	require.NoError(t, err)

	courses := []models.Course{
		{ID: "math-x", Level: "X", CreditUnits: 2},
		{ID: "biology-x", Level: "X", CreditUnits: 1},
		{ID: "physics-xi", Level: "XI", CreditUnits: 2},
		{ID: "chemistry-xi", Level: "XI", CreditUnits: 2},
		{ID: "religion", Level: models.LevelGeneral, CreditUnits: 1},
		{ID: "sport", Level: models.LevelGeneral},
	}
	var teachers []models.Teacher
	for _, course := range courses {
		for i := 0; i < 2; i++ {
			teachers = append(teachers, models.Teacher{
				ID:                 fmt.Sprintf("t-%s-%d", trimLevel(course.ID), i),
				QualifiedCourseIDs: []string{course.ID},
			})
		}
	}

	return AllocationInput{
		Classes: []models.ClassSection{
			{ID: "x-1", Level: "X"},
			{ID: "x-2", Level: "X"},
			{ID: "xi-1", Level: "XI"},
		},
		Courses:  courses,
		Teachers: teachers,
		Slots:    slots,
		Days:     days,
	}
}

func trimLevel(courseID string) string {
	for i := range courseID {
		if courseID[i] == '-' {
			return courseID[:i]
		}
	}
	return courseID
}
