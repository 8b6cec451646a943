package model

import (
	"time"

	"github.com/google/uuid"
)

type RoleRequestStatus string

const (
	RoleRequestStatusPending  RoleRequestStatus = "pending"
	RoleRequestStatusApproved RoleRequestStatus = "approved"
	RoleRequestStatusRejected RoleRequestStatus = "rejected"
)

type RoleRequest struct {
	Base
	UserID         uuid.UUID         `db:"user_id" json:"user_id"`
	CurrentRole    Role              `db:"from_role" json:"current_role"`
	RequestedRole  Role              `db:"requested_role" json:"requested_role"`
	Reason         string            `db:"reason" json:"reason"`
	AdditionalData JSONMap           `db:"additional_data" json:"additional_data,omitempty"`
	Status         RoleRequestStatus `db:"status" json:"status"`
	ReviewedBy     *uuid.UUID        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNote     string            `db:"review_note" json:"review_note,omitempty"`
	ReviewedAt     *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// ElevationProfile holds the profile rows written on approval. At most one is set.
type ElevationProfile struct {
	Doctor *DoctorProfile
	Driver *DriverProfile
}

type SubmitRoleRequest struct {
	RequestedRole  Role    `json:"requested_role" binding:"required"`
	Reason         string  `json:"reason" binding:"required,max=2000"`
	AdditionalData JSONMap `json:"additional_data"`
}

type ReviewRoleRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Note     string `json:"note" binding:"max=2000"`
}

type RoleRequestFilter struct {
	UserID uuid.UUID
	Status RoleRequestStatus
	Pagination
}
