package model

import (
	"time"

	"github.com/google/uuid"
)

type HomeVisitStatus string

const (
	HomeVisitStatusPending   HomeVisitStatus = "pending"
	HomeVisitStatusAssigned  HomeVisitStatus = "assigned"
	HomeVisitStatusEnRoute   HomeVisitStatus = "en_route"
	HomeVisitStatusArrived   HomeVisitStatus = "arrived"
	HomeVisitStatusCompleted HomeVisitStatus = "completed"
	HomeVisitStatusCancelled HomeVisitStatus = "cancelled"
)

func (s HomeVisitStatus) Terminal() bool {
	return s == HomeVisitStatusCompleted || s == HomeVisitStatusCancelled
}

type HomeVisit struct {
	Base
	PatientID     uuid.UUID       `db:"patient_id" json:"patient_id"`
	DriverID      *uuid.UUID      `db:"driver_id" json:"driver_id,omitempty"`
	Address       string          `db:"address" json:"address"`
	ScheduledDate time.Time       `db:"scheduled_date" json:"scheduled_date"`
	ScheduledTime string          `db:"scheduled_time" json:"scheduled_time"`
	Status        HomeVisitStatus `db:"status" json:"status"`
	Notes         string          `db:"notes" json:"notes,omitempty"`
	CancelReason  string          `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedBy     uuid.UUID       `db:"created_by" json:"created_by"`
}

// AssignedTo reports whether userID is the visit's driver.
func (v *HomeVisit) AssignedTo(userID uuid.UUID) bool {
	return v.DriverID != nil && *v.DriverID == userID
}

type CreateHomeVisitRequest struct {
	PatientID     uuid.UUID `json:"patient_id" binding:"required"`
	Address       string    `json:"address" binding:"required,max=500"`
	ScheduledDate string    `json:"scheduled_date" binding:"required,datetime=2006-01-02"`
	ScheduledTime string    `json:"scheduled_time" binding:"required,hhmm"`
	Notes         string    `json:"notes" binding:"max=2000"`
}

// HomeVisitTransitionRequest extends TransitionRequest with the driver to assign.
type HomeVisitTransitionRequest struct {
	Action   string     `json:"action" binding:"required"`
	DriverID *uuid.UUID `json:"driver_id"`
	Reason   string     `json:"reason" binding:"max=1000"`
	Notes    string     `json:"notes" binding:"max=2000"`
}

type HomeVisitFilter struct {
	PatientID uuid.UUID
	DriverID  uuid.UUID
	Status    HomeVisitStatus
	Pagination
}

type DriverAvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}
