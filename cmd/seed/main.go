package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-workflow/internal/access"
	"github.com/jwalitptl/clinic-workflow/internal/app"
	"github.com/jwalitptl/clinic-workflow/internal/config"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
)

// seedPassword is shared by every generated account.
const seedPassword = "clinic-demo-pass"

var specializations = []string{
	"General Practice",
	"Cardiology",
	"Dermatology",
	"Pediatrics",
	"Orthopedics",
	"Neurology",
}

type seeder struct {
	services *app.Services
	admin    access.Session
	log      *logger.Logger
}

func main() {
	doctors := flag.Int("doctors", 5, "number of doctors")
	drivers := flag.Int("drivers", 3, "number of drivers")
	patients := flag.Int("patients", 50, "number of patients")
	adminEmail := flag.String("admin", "admin@clinic.local", "admin account email")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Storage.Driver == config.StorageMemory {
		log.Fatal().Msg("seeding the memory driver is pointless; set storage.driver=postgres")
	}

	lg := logger.NewLogger(&logger.Config{Level: logger.ParseLevel(cfg.Log.Level), JSON: cfg.Log.JSON})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rt, err := app.Open(ctx, cfg, lg)
	if err != nil {
		lg.Fatal(err, "failed to open storage")
	}
	defer rt.Close()

	deps, err := rt.Deps(cfg, lg, metrics.NewMetrics(cfg.Server.MetricsPrefix, prometheus.NewRegistry()))
	if err != nil {
		lg.Fatal(err, "invalid service configuration")
	}
	services := app.NewServices(deps)

	admin, err := ensureAdmin(ctx, rt, deps, *adminEmail)
	if err != nil {
		lg.Fatal(err, "failed to create admin")
	}

	s := &seeder{
		services: services,
		admin:    access.Session{UserID: admin.ID, IsAuthenticated: true, Role: admin.Role},
		log:      lg,
	}

	// 0 seeds from crypto/rand.
	_ = gofakeit.Seed(0)

	for i := 0; i < *doctors; i++ {
		if err := s.doctor(ctx); err != nil {
			lg.Fatal(err, "failed to seed doctor")
		}
	}
	for i := 0; i < *drivers; i++ {
		if err := s.driver(ctx); err != nil {
			lg.Fatal(err, "failed to seed driver")
		}
	}
	for i := 0; i < *patients; i++ {
		if _, err := s.register(ctx); err != nil {
			lg.Fatal(err, "failed to seed patient")
		}
	}

	lg.Info("seed complete", "doctors", *doctors, "drivers", *drivers, "patients", *patients, "password", seedPassword)
}

// ensureAdmin creates the admin directly in storage since registration only
// ever yields patients.
func ensureAdmin(ctx context.Context, rt *app.Runtime, deps app.Deps, email string) (*model.User, error) {
	if existing, err := rt.Repos.Users.GetByEmail(ctx, email); err == nil {
		return existing, nil
	}

	hash, err := deps.Hasher.Hash(seedPassword)
	if err != nil {
		return nil, err
	}
	admin := &model.User{
		Email:        email,
		Name:         "Clinic Admin",
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Status:       model.UserStatusActive,
	}
	if err := rt.Repos.Users.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

func (s *seeder) register(ctx context.Context) (*model.User, error) {
	phone := gofakeit.Phone()
	return s.services.Auth.Register(ctx, model.RegisterRequest{
		Email:    strings.ToLower(gofakeit.Email()),
		Password: seedPassword,
		Name:     gofakeit.Name(),
		Phone:    &phone,
	})
}

// elevate runs a role request through the same approval path as the API.
func (s *seeder) elevate(ctx context.Context, user *model.User, role model.Role, data model.JSONMap) error {
	session := access.Session{UserID: user.ID, IsAuthenticated: true, Role: user.Role}
	req, err := s.services.RoleRequests.Submit(ctx, session, model.SubmitRoleRequest{
		RequestedRole:  role,
		Reason:         "seeded account",
		AdditionalData: data,
	})
	if err != nil {
		return fmt.Errorf("submit %s request: %w", role, err)
	}
	if _, err := s.services.RoleRequests.Approve(ctx, s.admin, req.ID, "seed"); err != nil {
		return fmt.Errorf("approve %s request: %w", role, err)
	}
	return nil
}

func (s *seeder) doctor(ctx context.Context) error {
	user, err := s.register(ctx)
	if err != nil {
		return err
	}
	err = s.elevate(ctx, user, model.RoleDoctor, model.JSONMap{
		"specialization": specializations[gofakeit.Number(0, len(specializations)-1)],
		"category":       gofakeit.RandomString([]string{"consultant", "resident", "visiting"}),
		"license_number": fmt.Sprintf("LIC-%s", gofakeit.DigitN(6)),
	})
	if err != nil {
		return err
	}

	slot := gofakeit.RandomInt([]int{15, 20, 30})
	start := gofakeit.Number(8, 10)
	for day := 1; day <= 5; day++ {
		day := day
		_, err := s.services.Schedules.CreateSchedule(ctx, s.admin, model.UpsertScheduleRequest{
			DoctorID:     user.ID,
			DayOfWeek:    &day,
			StartTime:    fmt.Sprintf("%02d:00", start),
			EndTime:      fmt.Sprintf("%02d:00", start+8),
			SlotDuration: slot,
		})
		if err != nil {
			return fmt.Errorf("create schedule: %w", err)
		}
	}
	s.log.Debug("seeded doctor", "email", user.Email)
	return nil
}

func (s *seeder) driver(ctx context.Context) error {
	user, err := s.register(ctx)
	if err != nil {
		return err
	}
	plate := fmt.Sprintf("%s-%s", gofakeit.LetterN(3), gofakeit.DigitN(4))
	if err := s.elevate(ctx, user, model.RoleDriver, model.JSONMap{
		"vehicle_plate": plate,
		"vehicle_type":  gofakeit.RandomString([]string{"car", "van", "motorbike"}),
	}); err != nil {
		return err
	}
	s.log.Debug("seeded driver", "email", user.Email)
	return nil
}
