// Package memory is an in-process storage driver. It enforces the same
// uniqueness and conditional-update rules as the postgres driver so the
// workflows behave identically against either.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
)

// Store holds every table behind one lock; multi-row writes are atomic.
type Store struct {
	mu sync.RWMutex

	users        map[uuid.UUID]model.User
	schedules    map[uuid.UUID]model.DoctorSchedule
	appointments map[uuid.UUID]model.Appointment
	homeVisits   map[uuid.UUID]model.HomeVisit
	drivers      map[uuid.UUID]model.DriverProfile // keyed by user id
	doctors      map[uuid.UUID]model.DoctorProfile // keyed by user id
	roleRequests map[uuid.UUID]model.RoleRequest
	outbox       map[uuid.UUID]model.OutboxEvent
	audit        []model.AuditLog

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:        make(map[uuid.UUID]model.User),
		schedules:    make(map[uuid.UUID]model.DoctorSchedule),
		appointments: make(map[uuid.UUID]model.Appointment),
		homeVisits:   make(map[uuid.UUID]model.HomeVisit),
		drivers:      make(map[uuid.UUID]model.DriverProfile),
		doctors:      make(map[uuid.UUID]model.DoctorProfile),
		roleRequests: make(map[uuid.UUID]model.RoleRequest),
		outbox:       make(map[uuid.UUID]model.OutboxEvent),
		now:          time.Now,
	}
}

func (s *Store) stamp(b *model.Base) {
	now := s.now()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// PutDriver inserts or replaces a driver profile. Used by seeding and tests.
func (s *Store) PutDriver(d model.DriverProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&d.Base)
	s.drivers[d.UserID] = d
}

// DoctorProfile returns the stored doctor profile of userID.
func (s *Store) DoctorProfile(userID uuid.UUID) (model.DoctorProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.doctors[userID]
	return p, ok
}

// OutboxEvents returns a snapshot of the outbox ordered by creation.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func window(n int, p model.Pagination) (int, int) {
	start := p.Offset
	if start > n {
		start = n
	}
	end := n
	if p.Limit > 0 && start+p.Limit < n {
		end = start + p.Limit
	}
	return start, end
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
