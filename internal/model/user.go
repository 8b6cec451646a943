package model

import (
	"github.com/google/uuid"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User represents a system user
type User struct {
	Base
	Email        string  `json:"email" db:"email"`
	Name         string  `json:"name" db:"name"`
	PasswordHash string  `json:"-" db:"password_hash"`
	Phone        *string `json:"phone,omitempty" db:"phone"`
	Role         Role    `json:"role" db:"role"`
	Status       string  `json:"status" db:"status"`
}

// DoctorProfile is materialized when a doctor role request is approved.
type DoctorProfile struct {
	Base
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	Specialization string    `json:"specialization" db:"specialization"`
	Category       string    `json:"category" db:"category"`
	LicenseNumber  string    `json:"license_number" db:"license_number"`
}

// DriverProfile is materialized when a driver role request is approved.
// IsAvailable is the on-duty flag; IsBusy is held while a visit is assigned.
type DriverProfile struct {
	Base
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	VehiclePlate string    `json:"vehicle_plate" db:"vehicle_plate"`
	VehicleType  string    `json:"vehicle_type" db:"vehicle_type"`
	IsAvailable  bool      `json:"is_available" db:"is_available"`
	IsBusy       bool      `json:"is_busy" db:"is_busy"`
}

// Dispatchable reports whether the driver can take a new visit.
func (d *DriverProfile) Dispatchable() bool {
	return d.IsAvailable && !d.IsBusy
}
