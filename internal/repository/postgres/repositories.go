package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

// Repositories bundles every repository sharing one connection pool.
type Repositories struct {
	repository.Repositories
	DB *sqlx.DB
}

func New(db *sqlx.DB) *Repositories {
	base := NewBaseRepository(db)
	return &Repositories{
		DB: db,
		Repositories: repository.Repositories{
			Users:        NewUserRepository(base),
			Schedules:    NewScheduleRepository(base),
			Appointments: NewAppointmentRepository(base),
			HomeVisits:   NewHomeVisitRepository(base),
			Drivers:      NewDriverRepository(base),
			RoleRequests: NewRoleRequestRepository(base),
			Outbox:       NewOutboxRepository(base),
			Audit:        NewAuditRepository(base),
		},
	}
}
