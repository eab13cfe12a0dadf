package scheduler

import (
	"math/rand"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// AllocationInput is the snapshot one allocation run works on.
type AllocationInput struct {
	Classes  []models.ClassSection
	Courses  []models.Course
	Teachers []models.Teacher
	Slots    []models.TimeSlot
	Days     []string
	// Reserved assignments keep their class and teacher ranges busy for the whole run.
	Reserved []models.ScheduleAssignment
}

// Allocation is the outcome of a run: what was placed and what was not.
type Allocation struct {
	Assignments []models.ScheduleAssignment
	Unplaced    []models.UnplacedCourse
}

type allocator struct {
	index     *QualificationIndex
	occupancy *Occupancy
	slots     []models.TimeSlot
	days      []string
	rng       *rand.Rand
	result    Allocation
}

// Allocate runs the greedy randomized placement: classes in input order, each class's
// applicable courses shuffled, days shuffled per course, first free start slot with at
// least one free qualified teacher wins. There is no backtracking; a course that finds no
// room is reported in Unplaced and the run continues.
func Allocate(input AllocationInput, rng *rand.Rand) Allocation {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	a := &allocator{
		index:     NewQualificationIndex(input.Courses, input.Teachers),
		occupancy: NewOccupancy(),
		slots:     input.Slots,
		days:      input.Days,
		rng:       rng,
	}
	for _, fixed := range input.Reserved {
		a.occupancy.Reserve(ClassResource(fixed.ClassID), fixed.Day, fixed.StartSlotIndex, fixed.DurationSlots)
		a.occupancy.Reserve(TeacherResource(fixed.TeacherID), fixed.Day, fixed.StartSlotIndex, fixed.DurationSlots)
	}

	for _, class := range input.Classes {
		courses := a.index.ApplicableCourses(class)
		a.rng.Shuffle(len(courses), func(i, j int) {
			courses[i], courses[j] = courses[j], courses[i]
		})
		for _, course := range courses {
			a.place(class, course)
		}
	}
	return a.result
}

func (a *allocator) place(class models.ClassSection, course models.Course) {
	duration := course.EffectiveCreditUnits()
	teachers := a.index.QualifiedTeachers(course.ID)
	if len(teachers) == 0 {
		a.unplaced(class, course, models.UnplacedNoQualifiedTeacher)
		return
	}

	days := make([]string, len(a.days))
	copy(days, a.days)
	a.rng.Shuffle(len(days), func(i, j int) {
		days[i], days[j] = days[j], days[i]
	})

	classRes := ClassResource(class.ID)
	free := make([]models.Teacher, 0, len(teachers))
	for _, day := range days {
		for start := 1; start+duration-1 <= len(a.slots); start++ {
			if !a.occupancy.IsRangeFree(classRes, day, start, duration) {
				continue
			}
			free = free[:0]
			for _, teacher := range teachers {
				if a.occupancy.IsRangeFree(TeacherResource(teacher.ID), day, start, duration) {
					free = append(free, teacher)
				}
			}
			if len(free) == 0 {
				continue
			}
			teacher := free[a.rng.Intn(len(free))]
			a.occupancy.Reserve(classRes, day, start, duration)
			a.occupancy.Reserve(TeacherResource(teacher.ID), day, start, duration)
			a.result.Assignments = append(a.result.Assignments, models.ScheduleAssignment{
				ClassID:        class.ID,
				CourseID:       course.ID,
				TeacherID:      teacher.ID,
				Day:            day,
				StartSlotIndex: start,
				DurationSlots:  duration,
				StartTime:      a.slots[start-1].Start,
				EndTime:        a.slots[start+duration-2].End,
			})
			return
		}
	}
	a.unplaced(class, course, models.UnplacedNoFreeSlot)
}

func (a *allocator) unplaced(class models.ClassSection, course models.Course, reason models.UnplacedReason) {
	a.result.Unplaced = append(a.result.Unplaced, models.UnplacedCourse{
		ClassID:  class.ID,
		CourseID: course.ID,
		Reason:   reason,
	})
}
