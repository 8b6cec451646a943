package model

import (
	"github.com/google/uuid"
)

// DoctorSchedule is one weekly recurring availability window of a doctor.
// DayOfWeek follows time.Weekday: 0 is Sunday.
type DoctorSchedule struct {
	Base
	DoctorID     uuid.UUID `json:"doctor_id" db:"doctor_id"`
	DayOfWeek    int       `json:"day_of_week" db:"day_of_week"`
	StartTime    string    `json:"start_time" db:"start_time"`
	EndTime      string    `json:"end_time" db:"end_time"`
	SlotDuration int       `json:"slot_duration" db:"slot_duration"`
	IsActive     bool      `json:"is_active" db:"is_active"`
}

// AvailableSlot is derived on every query and never stored.
type AvailableSlot struct {
	Time        string `json:"time"`
	IsAvailable bool   `json:"is_available"`
}

type UpsertScheduleRequest struct {
	DoctorID     uuid.UUID `json:"doctor_id"`
	DayOfWeek    *int      `json:"day_of_week" binding:"required,weekday"`
	StartTime    string    `json:"start_time" binding:"required,hhmm"`
	EndTime      string    `json:"end_time" binding:"required,hhmm"`
	SlotDuration int       `json:"slot_duration" binding:"required,min=5,max=480"`
	IsActive     *bool     `json:"is_active"`
}
