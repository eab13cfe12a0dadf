package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// SlotConfigRequest overrides parts of the configured slot grid. Omitted fields keep the defaults.
type SlotConfigRequest struct {
	DayStart               string   `json:"dayStart" validate:"omitempty,max=8"`
	DayEnd                 string   `json:"dayEnd" validate:"omitempty,max=8"`
	SessionDurationMinutes *int     `json:"sessionDurationMinutes"`
	Days                   []string `json:"days" validate:"omitempty,max=7,dive,required"`
}

// SlotPreviewResponse lists the slots a configuration yields.
type SlotPreviewResponse struct {
	Config models.TimeSlotConfig `json:"config"`
	Slots  []models.TimeSlot     `json:"slots"`
}

// RegenerateScheduleRequest asks for a fresh timetable for a scope of classes.
type RegenerateScheduleRequest struct {
	ClassIDs []string           `json:"classIds" validate:"required,min=1,dive,required"`
	Seed     *int64             `json:"seed"`
	Config   *SlotConfigRequest `json:"config"`
}

// ExportQuery selects the export format and the week anchoring calendar events.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf xlsx ics"`
	WeekOf string `form:"weekOf" validate:"omitempty,datetime=2006-01-02"`
}

// ClassTimetableResponse is the persisted timetable of one class.
type ClassTimetableResponse struct {
	Class       models.ClassSection         `json:"class"`
	Assignments []models.ScheduleAssignment `json:"assignments"`
}
