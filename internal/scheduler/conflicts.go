package scheduler

import "github.com/noah-isme/sma-timetable-api/internal/models"

const (
	DimensionClass   = "CLASS"
	DimensionTeacher = "TEACHER"
)

// Overlap is a pair of assignments that book the same class or teacher at the same time.
type Overlap struct {
	Dimension string                    `json:"dimension"`
	First     models.ScheduleAssignment `json:"first"`
	Second    models.ScheduleAssignment `json:"second"`
}

// DetectOverlaps checks every same-day pair of assignments for a shared class or teacher.
func DetectOverlaps(assignments []models.ScheduleAssignment) []Overlap {
	byDay := make(map[string][]models.ScheduleAssignment)
	var dayOrder []string
	for _, item := range assignments {
		if _, ok := byDay[item.Day]; !ok {
			dayOrder = append(dayOrder, item.Day)
		}
		byDay[item.Day] = append(byDay[item.Day], item)
	}

	var overlaps []Overlap
	for _, day := range dayOrder {
		items := byDay[day]
		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				first, second := items[i], items[j]
				if !first.Overlaps(second) {
					continue
				}
				if first.ClassID == second.ClassID {
					overlaps = append(overlaps, Overlap{Dimension: DimensionClass, First: first, Second: second})
				}
				if first.TeacherID == second.TeacherID {
					overlaps = append(overlaps, Overlap{Dimension: DimensionTeacher, First: first, Second: second})
				}
			}
		}
	}
	return overlaps
}
