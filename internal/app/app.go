// Package app wires repositories, services and handlers together for the
// binaries under cmd/.
package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-workflow/internal/handler"
	appointmentHandler "github.com/jwalitptl/clinic-workflow/internal/handler/appointment"
	auditHandler "github.com/jwalitptl/clinic-workflow/internal/handler/audit"
	authHandler "github.com/jwalitptl/clinic-workflow/internal/handler/auth"
	"github.com/jwalitptl/clinic-workflow/internal/handler/health"
	homevisitHandler "github.com/jwalitptl/clinic-workflow/internal/handler/homevisit"
	promHandler "github.com/jwalitptl/clinic-workflow/internal/handler/prometheus"
	rolerequestHandler "github.com/jwalitptl/clinic-workflow/internal/handler/rolerequest"
	scheduleHandler "github.com/jwalitptl/clinic-workflow/internal/handler/schedule"
	"github.com/jwalitptl/clinic-workflow/internal/middleware"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
	"github.com/jwalitptl/clinic-workflow/internal/router"
	"github.com/jwalitptl/clinic-workflow/internal/service/appointment"
	"github.com/jwalitptl/clinic-workflow/internal/service/audit"
	authService "github.com/jwalitptl/clinic-workflow/internal/service/auth"
	"github.com/jwalitptl/clinic-workflow/internal/service/event"
	"github.com/jwalitptl/clinic-workflow/internal/service/homevisit"
	"github.com/jwalitptl/clinic-workflow/internal/service/notification"
	"github.com/jwalitptl/clinic-workflow/internal/service/rolerequest"
	"github.com/jwalitptl/clinic-workflow/internal/service/schedule"
	"github.com/jwalitptl/clinic-workflow/pkg/auth"
	"github.com/jwalitptl/clinic-workflow/pkg/lock"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
	"github.com/jwalitptl/clinic-workflow/pkg/retry"
	"github.com/jwalitptl/clinic-workflow/pkg/security"
)

// Deps are the collaborators every service draws from. A zero RoleCacheTTL
// uses the auth default; Location is the clinic's wall clock.
type Deps struct {
	Repos        repository.Repositories
	Locker       lock.Locker
	JWT          auth.JWTService
	Hasher       security.PasswordHasher
	ReadPolicy   retry.Policy
	RoleCacheTTL time.Duration
	Location     *time.Location
	Log          *logger.Logger
	Metrics      *metrics.Metrics
}

type Services struct {
	Auth         *authService.Service
	Schedules    *schedule.Service
	Appointments *appointment.Service
	HomeVisits   *homevisit.Service
	RoleRequests *rolerequest.Service
	Audit        *audit.Service
	Events       *event.Service
}

func NewServices(d Deps) *Services {
	r := d.Repos
	auditSvc := audit.NewService(r.Audit)
	auditor := audit.NewAuditLogger(auditSvc, d.Log)
	events := event.NewService(r.Outbox)
	notifier := notification.NewDispatcher(events, d.Log, d.Metrics)

	authSvc := authService.NewService(r.Users, d.JWT, d.Hasher, auditor, d.RoleCacheTTL)
	schedules := schedule.NewService(r.Schedules, r.Appointments, r.Users, auditor, d.Metrics, d.ReadPolicy)

	return &Services{
		Auth:      authSvc,
		Schedules: schedules,
		Appointments: appointment.NewService(r.Appointments, r.Users, schedules, d.Locker,
			notifier, events, auditor, d.Metrics, d.Log).WithLocation(d.Location),
		HomeVisits:   homevisit.NewService(r.HomeVisits, r.Drivers, r.Users, notifier, auditor, d.Metrics, d.Log).WithLocation(d.Location),
		RoleRequests: rolerequest.NewService(r.RoleRequests, r.Users, notifier, authSvc, auditor, d.Metrics),
		Audit:        auditSvc,
		Events:       events,
	}
}

// NewRouter builds the HTTP router. reg receives the HTTP metrics and is
// what /metrics serves.
func NewRouter(s *Services, checks map[string]health.Check, reg *prometheus.Registry, namespace string, cfg router.RouterConfig) (*router.Router, error) {
	if err := middleware.RegisterValidators(); err != nil {
		return nil, err
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(s.Auth),
		health.NewHandler(checks),
		promHandler.New(namespace, reg),
		router.Handlers{
			Public: []handler.Routes{
				authHandler.NewHandler(s.Auth),
			},
			Protected: []handler.Routes{
				scheduleHandler.NewHandler(s.Schedules),
				appointmentHandler.NewHandler(s.Appointments),
				homevisitHandler.NewHandler(s.HomeVisits),
				rolerequestHandler.NewHandler(s.RoleRequests),
				auditHandler.NewHandler(s.Audit),
			},
		},
		cfg,
	)
	r.Setup()
	return r, nil
}
