package model

import (
	"github.com/google/uuid"
)

// Notification types triggered by workflow transitions.
const (
	NotificationAppointmentConfirmed = "appointment.confirmed"
	NotificationAppointmentRejected  = "appointment.rejected"
	NotificationAppointmentReminder  = "appointment.reminder"
	NotificationHomeVisitAssigned    = "home_visit.assigned"
	NotificationRoleRequestReviewed  = "role_request.reviewed"
)

// Notification is the payload handed to the dispatcher. Delivery is someone else's job.
type Notification struct {
	Type       string                 `json:"type"`
	UserID     uuid.UUID              `json:"user_id"`
	Subject    string                 `json:"subject"`
	Content    string                 `json:"content"`
	EntityType string                 `json:"entity_type"`
	EntityID   uuid.UUID              `json:"entity_id"`
	Data       map[string]interface{} `json:"data,omitempty"`
}
