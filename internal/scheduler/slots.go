package scheduler

import (
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// GenerateSlots splits the day window into consecutive sessions of the configured length.
// A slot is emitted only while it ends at or before DayEnd.
func GenerateSlots(cfg models.TimeSlotConfig) ([]models.TimeSlot, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	slots := make([]models.TimeSlot, 0, int(cfg.DayEnd-cfg.DayStart)/cfg.SessionDurationMinutes)
	for start := cfg.DayStart; start.Add(cfg.SessionDurationMinutes) <= cfg.DayEnd; start = start.Add(cfg.SessionDurationMinutes) {
		slots = append(slots, models.TimeSlot{
			Index: len(slots) + 1,
			Start: start,
			End:   start.Add(cfg.SessionDurationMinutes),
		})
	}
	return slots, nil
}

func validateConfig(cfg models.TimeSlotConfig) error {
	if cfg.SessionDurationMinutes <= 0 {
		return appErrors.Clone(appErrors.ErrConfig, "sessionDurationMinutes must be positive")
	}
	if cfg.DayEnd <= cfg.DayStart {
		return appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("dayEnd (%s) must be after dayStart (%s)", cfg.DayEnd, cfg.DayStart))
	}
	if window := int(cfg.DayEnd - cfg.DayStart); cfg.SessionDurationMinutes > window {
		return appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("sessionDurationMinutes (%d) exceeds the %d minute day window", cfg.SessionDurationMinutes, window))
	}
	if len(cfg.Days) == 0 {
		return appErrors.Clone(appErrors.ErrConfig, "at least one scheduling day is required")
	}
	return nil
}
