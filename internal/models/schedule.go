package models

import "time"

// ScheduleAssignment places one course for one class with one teacher on a day/slot range.
type ScheduleAssignment struct {
	ID             string    `db:"id" json:"id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	CourseID       string    `db:"course_id" json:"course_id"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id"`
	Day            string    `db:"day" json:"day"`
	StartSlotIndex int       `db:"start_slot" json:"start_slot_index"`
	DurationSlots  int       `db:"duration_slots" json:"duration_slots"`
	StartTime      TimeOfDay `db:"start_time" json:"start_time"`
	EndTime        TimeOfDay `db:"end_time" json:"end_time"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// EndSlotIndex is the first slot index after the assignment.
func (a ScheduleAssignment) EndSlotIndex() int {
	return a.StartSlotIndex + a.DurationSlots
}

// Overlaps reports whether two assignments share a day and at least one slot.
func (a ScheduleAssignment) Overlaps(other ScheduleAssignment) bool {
	if a.Day != other.Day {
		return false
	}
	return a.StartSlotIndex < other.EndSlotIndex() && other.StartSlotIndex < a.EndSlotIndex()
}

// OverlapsInTime reports whether two assignments share a day and any wall-clock minute.
// Rows generated under different slot grids are only comparable this way.
func (a ScheduleAssignment) OverlapsInTime(other ScheduleAssignment) bool {
	if a.Day != other.Day {
		return false
	}
	return a.StartTime < other.EndTime && other.StartTime < a.EndTime
}

// UnplacedReason explains why a class/course pair received no placement.
type UnplacedReason string

const (
	UnplacedNoQualifiedTeacher UnplacedReason = "no-qualified-teacher"
	UnplacedNoFreeSlot         UnplacedReason = "no-free-slot"
)

// UnplacedCourse is a class/course pair left out of a generation run.
type UnplacedCourse struct {
	ClassID  string         `json:"class_id"`
	CourseID string         `json:"course_id"`
	Reason   UnplacedReason `json:"reason"`
}

// RegenerationResult enumerates what a regeneration placed and what it could not.
type RegenerationResult struct {
	ClassIDs    []string             `json:"class_ids"`
	Seed        int64                `json:"seed"`
	PlacedCount int                  `json:"placed_count"`
	Assignments []ScheduleAssignment `json:"assignments"`
	Unplaced    []UnplacedCourse     `json:"unplaced"`
	Slots       []TimeSlot           `json:"slots"`
	Days        []string             `json:"days"`
	GeneratedAt time.Time            `json:"generated_at"`
}
