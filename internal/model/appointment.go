package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending    AppointmentStatus = "pending"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusRejected   AppointmentStatus = "rejected"
	AppointmentStatusNoShow     AppointmentStatus = "no_show"
)

// Terminal reports whether no further transition is possible.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled,
		AppointmentStatusRejected, AppointmentStatusNoShow:
		return true
	}
	return false
}

// OccupiesSlot reports whether an appointment in this status holds its slot.
func (s AppointmentStatus) OccupiesSlot() bool {
	return s != AppointmentStatusCancelled && s != AppointmentStatusRejected
}

type Appointment struct {
	Base
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	Date            time.Time         `db:"appointment_date" json:"date"`
	Time            string            `db:"appointment_time" json:"time"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Reason          string            `db:"reason" json:"reason,omitempty"`
	DoctorNotes     string            `db:"doctor_notes" json:"doctor_notes,omitempty"`
	CancelReason    string            `db:"cancel_reason" json:"cancel_reason,omitempty"`
	RejectionReason string            `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedBy       uuid.UUID         `db:"created_by" json:"created_by"`
}

// SameSlot reports whether the appointment sits at doctorID/date/hhmm.
func (a *Appointment) SameSlot(doctorID uuid.UUID, date time.Time, hhmm string) bool {
	return a.DoctorID == doctorID && a.Time == hhmm && DateOnly(a.Date).Equal(DateOnly(date))
}

type CreateAppointmentRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id" binding:"required"`
	Date      string    `json:"date" binding:"required,datetime=2006-01-02"`
	Time      string    `json:"time" binding:"required,hhmm"`
	Reason    string    `json:"reason" binding:"max=1000"`
}

// TransitionRequest carries the optional payload of a workflow action.
type TransitionRequest struct {
	Action string `json:"action" binding:"required"`
	Reason string `json:"reason" binding:"max=1000"`
	Notes  string `json:"notes" binding:"max=4000"`
}

type AppointmentFilter struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      *time.Time
	Status    AppointmentStatus
	Pagination
}
