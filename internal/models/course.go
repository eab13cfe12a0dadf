package models

import (
	"strings"
	"time"
)

// LevelGeneral marks a course that applies to classes of every level.
const LevelGeneral = "general"

// Course is a subject offering with a weekly credit-unit weight.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Level       string    `db:"level" json:"level"`
	CreditUnits int       `db:"credit_units" json:"credit_units"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// EffectiveCreditUnits is the number of contiguous slots one placement occupies.
func (c Course) EffectiveCreditUnits() int {
	if c.CreditUnits < 1 {
		return 1
	}
	return c.CreditUnits
}

// AppliesTo reports whether the course can be scheduled for a class of the given level.
func (c Course) AppliesTo(level string) bool {
	courseLevel := strings.TrimSpace(c.Level)
	if strings.EqualFold(courseLevel, LevelGeneral) {
		return true
	}
	return strings.EqualFold(courseLevel, strings.TrimSpace(level))
}
