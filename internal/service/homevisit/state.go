package homevisit

import (
	"github.com/jwalitptl/clinic-workflow/internal/access"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
)

type Action string

const (
	ActionAssign   Action = "assign"
	ActionDepart   Action = "depart"
	ActionArrive   Action = "arrive"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// rule is one row of the table. An action may have several rows whose
// sources differ per role.
type rule struct {
	from  []model.HomeVisitStatus
	to    model.HomeVisitStatus
	roles []model.Role
}

var nonTerminal = []model.HomeVisitStatus{
	model.HomeVisitStatusPending,
	model.HomeVisitStatusAssigned,
	model.HomeVisitStatusEnRoute,
	model.HomeVisitStatusArrived,
}

var transitions = map[Action][]rule{
	ActionAssign: {{
		from:  []model.HomeVisitStatus{model.HomeVisitStatusPending},
		to:    model.HomeVisitStatusAssigned,
		roles: []model.Role{model.RoleReception, model.RoleAdmin},
	}},
	ActionDepart: {{
		from:  []model.HomeVisitStatus{model.HomeVisitStatusAssigned},
		to:    model.HomeVisitStatusEnRoute,
		roles: []model.Role{model.RoleDriver},
	}},
	ActionArrive: {{
		from:  []model.HomeVisitStatus{model.HomeVisitStatusEnRoute},
		to:    model.HomeVisitStatusArrived,
		roles: []model.Role{model.RoleDriver},
	}},
	ActionComplete: {{
		from:  []model.HomeVisitStatus{model.HomeVisitStatusArrived},
		to:    model.HomeVisitStatusCompleted,
		roles: []model.Role{model.RoleDriver},
	}},
	ActionCancel: {
		{
			from:  nonTerminal,
			to:    model.HomeVisitStatusCancelled,
			roles: []model.Role{model.RoleReception, model.RoleAdmin},
		},
		{
			from:  []model.HomeVisitStatus{model.HomeVisitStatusAssigned},
			to:    model.HomeVisitStatusCancelled,
			roles: []model.Role{model.RoleDriver},
		},
	},
}

var createRoles = []model.Role{model.RoleReception, model.RoleAdmin}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := transitions[a]; !ok {
		return "", apperrors.Validation("unknown home visit action " + s)
	}
	return a, nil
}

// Requirement admits every role that appears on any row of action.
func Requirement(action Action) access.Requirement {
	var roles []model.Role
	for _, r := range transitions[action] {
		roles = append(roles, r.roles...)
	}
	return access.Roles(roles...)
}

// NextState resolves action from current for role. A source no row accepts
// is an invalid transition; a source some row accepts but not for this role
// is an authorization failure.
func NextState(current model.HomeVisitStatus, action Action, role model.Role) (model.HomeVisitStatus, error) {
	rules, ok := transitions[action]
	if !ok || current.Terminal() {
		return current, apperrors.InvalidTransition(string(current), string(action))
	}

	var (
		matched bool
		allowed []model.Role
	)
	for _, r := range rules {
		if !contains(r.from, current) {
			continue
		}
		matched = true
		allowed = append(allowed, r.roles...)
		if v := access.Authorize(access.Session{IsAuthenticated: true, Role: role}, access.Roles(r.roles...)); v.Allowed() {
			return r.to, nil
		}
	}
	if !matched {
		return current, apperrors.InvalidTransition(string(current), string(action))
	}
	return current, access.Deny(access.Authorize(access.Session{IsAuthenticated: true, Role: role}, access.Roles(allowed...)))
}

func AllowedActions(current model.HomeVisitStatus, role model.Role) []Action {
	var out []Action
	for _, a := range []Action{ActionAssign, ActionDepart, ActionArrive, ActionComplete, ActionCancel} {
		if _, err := NextState(current, a, role); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// releasesDriver reports whether reaching status frees the assigned driver.
func releasesDriver(status model.HomeVisitStatus) bool {
	return status.Terminal()
}

func contains(statuses []model.HomeVisitStatus, s model.HomeVisitStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}
