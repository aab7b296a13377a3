package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	all := []Status{StatusPending, StatusApproved, StatusDeclined, StatusCancelled}
	allowed := map[[2]Status]Role{
		{StatusPending, StatusApproved}:  RoleOwner,
		{StatusPending, StatusDeclined}:  RoleOwner,
		{StatusPending, StatusCancelled}: RoleRenter,
	}

	for _, from := range all {
		for _, to := range all {
			role, ok := allowed[[2]Status{from, to}]
			if ok {
				assert.NoError(t, Transition(from, to, role), "%s -> %s", from, to)
				continue
			}
			for _, r := range []Role{RoleOwner, RoleRenter} {
				err := Transition(from, to, r)
				require.Error(t, err, "%s -> %s by %s", from, to, r)
				assert.ErrorIs(t, err, ErrInvalidTransition)

				var tErr *TransitionError
				require.True(t, errors.As(err, &tErr))
				assert.Equal(t, from, tErr.From)
				assert.Equal(t, to, tErr.To)
			}
		}
	}
}

func TestTransitionRejectsWrongRole(t *testing.T) {
	err := Transition(StatusPending, StatusApproved, RoleRenter)
	assert.ErrorIs(t, err, ErrRoleNotPermitted)
	assert.NotErrorIs(t, err, ErrInvalidTransition)

	err = Transition(StatusPending, StatusCancelled, RoleOwner)
	assert.ErrorIs(t, err, ErrRoleNotPermitted)
}

func TestStatusHelpers(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusDeclined.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())

	assert.Less(t, StatusPending.Rank(), StatusApproved.Rank())
	assert.Less(t, StatusApproved.Rank(), StatusDeclined.Rank())
	assert.Less(t, StatusDeclined.Rank(), StatusCancelled.Rank())

	parsed, err := ParseStatus("approved")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, parsed)

	_, err = ParseStatus("rejected")
	assert.Error(t, err)
}
