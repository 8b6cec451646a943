package homevisit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-workflow/internal/model"
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
)

func TestNextState(t *testing.T) {
	tests := []struct {
		name   string
		from   model.HomeVisitStatus
		action Action
		role   model.Role
		want   model.HomeVisitStatus
		code   apperrors.ErrorCode
	}{
		{"assign", model.HomeVisitStatusPending, ActionAssign, model.RoleReception, model.HomeVisitStatusAssigned, 0},
		{"depart", model.HomeVisitStatusAssigned, ActionDepart, model.RoleDriver, model.HomeVisitStatusEnRoute, 0},
		{"arrive", model.HomeVisitStatusEnRoute, ActionArrive, model.RoleDriver, model.HomeVisitStatusArrived, 0},
		{"complete", model.HomeVisitStatusArrived, ActionComplete, model.RoleDriver, model.HomeVisitStatusCompleted, 0},
		{"reception cancels en route", model.HomeVisitStatusEnRoute, ActionCancel, model.RoleReception, model.HomeVisitStatusCancelled, 0},
		{"super admin cancels pending", model.HomeVisitStatusPending, ActionCancel, model.RoleSuperAdmin, model.HomeVisitStatusCancelled, 0},
		{"driver cancels assigned", model.HomeVisitStatusAssigned, ActionCancel, model.RoleDriver, model.HomeVisitStatusCancelled, 0},
		{"driver cancels en route", model.HomeVisitStatusEnRoute, ActionCancel, model.RoleDriver, model.HomeVisitStatusEnRoute, apperrors.ErrForbidden},
		{"driver assigns", model.HomeVisitStatusPending, ActionAssign, model.RoleDriver, model.HomeVisitStatusPending, apperrors.ErrForbidden},
		{"arrive before depart", model.HomeVisitStatusAssigned, ActionArrive, model.RoleDriver, model.HomeVisitStatusAssigned, apperrors.ErrInvalidTransition},
		{"cancel completed", model.HomeVisitStatusCompleted, ActionCancel, model.RoleAdmin, model.HomeVisitStatusCompleted, apperrors.ErrInvalidTransition},
		{"complete cancelled", model.HomeVisitStatusCancelled, ActionComplete, model.RoleDriver, model.HomeVisitStatusCancelled, apperrors.ErrInvalidTransition},
		{"unknown action", model.HomeVisitStatusPending, Action("reroute"), model.RoleAdmin, model.HomeVisitStatusPending, apperrors.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextState(tt.from, tt.action, tt.role)
			if tt.code == 0 {
				require.NoError(t, err)
			} else {
				assert.True(t, apperrors.IsCode(err, tt.code), "got %v", err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDriverDenialRedirectsToDriverHome(t *testing.T) {
	_, err := NextState(model.HomeVisitStatusArrived, ActionCancel, model.RoleDriver)
	require.Error(t, err)
	assert.Equal(t, "/driver/dashboard", apperrors.As(err).Redirect)
}

func TestAllowedActions(t *testing.T) {
	assert.ElementsMatch(t, []Action{ActionDepart, ActionCancel}, AllowedActions(model.HomeVisitStatusAssigned, model.RoleDriver))
	assert.ElementsMatch(t, []Action{ActionCancel}, AllowedActions(model.HomeVisitStatusAssigned, model.RoleReception))
	assert.ElementsMatch(t, []Action{ActionAssign, ActionCancel}, AllowedActions(model.HomeVisitStatusPending, model.RoleAdmin))
	assert.Empty(t, AllowedActions(model.HomeVisitStatusCompleted, model.RoleAdmin))
}
