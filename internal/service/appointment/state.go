package appointment

import (
	"github.com/jwalitptl/clinic-workflow/internal/access"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
)

// Action is a workflow command on an existing appointment.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "no_show"
)

type transition struct {
	from  []model.AppointmentStatus
	to    model.AppointmentStatus
	roles []model.Role
}

var transitions = map[Action]transition{
	ActionConfirm: {
		from:  []model.AppointmentStatus{model.AppointmentStatusPending},
		to:    model.AppointmentStatusConfirmed,
		roles: []model.Role{model.RoleDoctor},
	},
	ActionReject: {
		from:  []model.AppointmentStatus{model.AppointmentStatusPending},
		to:    model.AppointmentStatusRejected,
		roles: []model.Role{model.RoleDoctor},
	},
	ActionCancel: {
		from:  []model.AppointmentStatus{model.AppointmentStatusPending, model.AppointmentStatusConfirmed},
		to:    model.AppointmentStatusCancelled,
		roles: []model.Role{model.RolePatient, model.RoleReception, model.RoleAdmin},
	},
	ActionStart: {
		from:  []model.AppointmentStatus{model.AppointmentStatusConfirmed},
		to:    model.AppointmentStatusInProgress,
		roles: []model.Role{model.RoleDoctor, model.RoleReception},
	},
	ActionComplete: {
		from:  []model.AppointmentStatus{model.AppointmentStatusConfirmed, model.AppointmentStatusInProgress},
		to:    model.AppointmentStatusCompleted,
		roles: []model.Role{model.RoleDoctor},
	},
	ActionNoShow: {
		from:  []model.AppointmentStatus{model.AppointmentStatusConfirmed},
		to:    model.AppointmentStatusNoShow,
		roles: []model.Role{model.RoleReception},
	},
}

// createRoles may open a new appointment.
var createRoles = []model.Role{model.RolePatient, model.RoleReception}

// ParseAction validates a wire action name.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := transitions[a]; !ok {
		return "", apperrors.Validation("unknown appointment action " + s)
	}
	return a, nil
}

// Requirement is the gate an actor must pass to attempt action at all.
func Requirement(action Action) access.Requirement {
	return access.Roles(transitions[action].roles...)
}

// NextState resolves action from current for an actor holding role.
// Terminal states accept nothing.
func NextState(current model.AppointmentStatus, action Action, role model.Role) (model.AppointmentStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return current, apperrors.InvalidTransition(string(current), string(action))
	}
	if current.Terminal() || !contains(t.from, current) {
		return current, apperrors.InvalidTransition(string(current), string(action))
	}
	if v := access.Authorize(access.Session{IsAuthenticated: true, Role: role}, Requirement(action)); !v.Allowed() {
		return current, access.Deny(v)
	}
	return t.to, nil
}

// AllowedActions lists what role may do from current, for disabling UI actions.
func AllowedActions(current model.AppointmentStatus, role model.Role) []Action {
	var out []Action
	for _, a := range []Action{ActionConfirm, ActionReject, ActionStart, ActionComplete, ActionNoShow, ActionCancel} {
		if _, err := NextState(current, a, role); err == nil {
			out = append(out, a)
		}
	}
	return out
}

func contains(statuses []model.AppointmentStatus, s model.AppointmentStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}
