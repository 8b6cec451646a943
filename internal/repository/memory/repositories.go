package memory

import (
	"github.com/jwalitptl/clinic-workflow/internal/repository"
)

// Repositories bundles every repository backed by one Store.
type Repositories struct {
	repository.Repositories
	Store *Store
}

func New() *Repositories {
	store := NewStore()
	return &Repositories{
		Store: store,
		Repositories: repository.Repositories{
			Users:        NewUserRepository(store),
			Schedules:    NewScheduleRepository(store),
			Appointments: NewAppointmentRepository(store),
			HomeVisits:   NewHomeVisitRepository(store),
			Drivers:      NewDriverRepository(store),
			RoleRequests: NewRoleRequestRepository(store),
			Outbox:       NewOutboxRepository(store),
			Audit:        NewAuditRepository(store),
		},
	}
}
