package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
)

// ComputeSlots derives the bookable slots of date from a doctor's weekly
// schedule. A day without an active entry yields an empty result. The
// function keeps no state between calls.
func ComputeSlots(schedules []model.DoctorSchedule, date time.Time, existing []model.Appointment) ([]model.AvailableSlot, error) {
	entry, err := activeEntry(schedules, date.Weekday())
	if err != nil {
		return nil, err
	}
	slots := []model.AvailableSlot{}
	if entry == nil {
		return slots, nil
	}

	start, end, err := Window(*entry)
	if err != nil {
		return nil, err
	}

	taken := occupied(entry.DoctorID, date, existing)
	step := entry.SlotDuration
	for t := start; t+step <= end; t += step {
		hhmm := FormatClock(t)
		slots = append(slots, model.AvailableSlot{
			Time:        hhmm,
			IsAvailable: !taken[hhmm],
		})
	}
	return slots, nil
}

// Window validates an entry and returns its bounds in minutes since midnight.
func Window(entry model.DoctorSchedule) (int, int, error) {
	if entry.SlotDuration <= 0 {
		return 0, 0, apperrors.Configuration(fmt.Sprintf("slot duration must be positive, got %d", entry.SlotDuration))
	}
	start, err := ParseClock(entry.StartTime)
	if err != nil {
		return 0, 0, apperrors.Configuration(fmt.Sprintf("invalid start time %q", entry.StartTime))
	}
	end, err := ParseClock(entry.EndTime)
	if err != nil {
		return 0, 0, apperrors.Configuration(fmt.Sprintf("invalid end time %q", entry.EndTime))
	}
	if start >= end {
		return 0, 0, apperrors.Configuration(fmt.Sprintf("start time %s must be before end time %s", entry.StartTime, entry.EndTime))
	}
	return start, end, nil
}

// activeEntry returns the single active entry for day. More than one is a
// data error rather than something to pick between.
func activeEntry(schedules []model.DoctorSchedule, day time.Weekday) (*model.DoctorSchedule, error) {
	var found *model.DoctorSchedule
	for i := range schedules {
		s := &schedules[i]
		if !s.IsActive || s.DayOfWeek != int(day) {
			continue
		}
		if found != nil {
			return nil, apperrors.Configuration(fmt.Sprintf("doctor has more than one active schedule on %s", day))
		}
		found = s
	}
	return found, nil
}

func occupied(doctorID uuid.UUID, date time.Time, existing []model.Appointment) map[string]bool {
	taken := make(map[string]bool)
	for i := range existing {
		a := &existing[i]
		if !a.Status.OccupiesSlot() {
			continue
		}
		if a.DoctorID != doctorID || !model.DateOnly(a.Date).Equal(model.DateOnly(date)) {
			continue
		}
		if minutes, err := ParseClock(a.Time); err == nil {
			taken[FormatClock(minutes)] = true
		}
	}
	return taken
}

// ParseClock parses "HH:MM" (or "HH:MM:SS") into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 || len(parts[0]) != 2 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 && parts[2] != "00" {
		return 0, fmt.Errorf("seconds not supported in %q", s)
	}
	return h*60 + m, nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ValidClock reports whether s is a well-formed time of day.
func ValidClock(s string) bool {
	_, err := ParseClock(s)
	return err == nil
}
