package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindConflicts(t *testing.T) {
	base := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	existing := []Booking{
		{ID: "a", ResourceID: "space-1", Status: StatusApproved, Start: at(10), End: at(12)},
		{ID: "b", ResourceID: "space-1", Status: StatusPending, Start: at(10), End: at(12)},
		{ID: "c", ResourceID: "space-1", Status: StatusDeclined, Start: at(10), End: at(12)},
		{ID: "d", ResourceID: "space-1", Status: StatusCancelled, Start: at(10), End: at(12)},
		{ID: "e", ResourceID: "space-2", Status: StatusApproved, Start: at(10), End: at(12)},
		{ID: "f", ResourceID: "space-1", Status: StatusApproved, Start: at(8), End: at(11)},
	}

	t.Run("only approved bookings on the same resource conflict", func(t *testing.T) {
		conflicts := FindConflicts(existing, "space-1", Interval{at(11), at(13)}, "")
		require.Len(t, conflicts, 1)
		assert.Equal(t, "a", conflicts[0].ID)
	})

	t.Run("every match is returned ordered by start", func(t *testing.T) {
		conflicts := FindConflicts(existing, "space-1", Interval{at(9), at(11)}, "")
		require.Len(t, conflicts, 2)
		assert.Equal(t, "f", conflicts[0].ID)
		assert.Equal(t, "a", conflicts[1].ID)
	})

	t.Run("excluded booking is skipped", func(t *testing.T) {
		conflicts := FindConflicts(existing, "space-1", Interval{at(11), at(12)}, "a")
		assert.Empty(t, conflicts)
	})

	t.Run("adjacent bookings are admitted", func(t *testing.T) {
		assert.Empty(t, FindConflicts(existing, "space-1", Interval{at(12), at(14)}, ""))
		assert.Empty(t, FindConflicts(existing, "space-1", Interval{at(6), at(8)}, ""))
	})
}

func TestCheckAdmission(t *testing.T) {
	start := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	existing := []Booking{{ID: "a", ResourceID: "r", Status: StatusApproved, Start: start, End: start.Add(2 * time.Hour)}}

	err := CheckAdmission(existing, "r", Interval{start.Add(time.Hour), start.Add(3 * time.Hour)}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	var cErr *ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "r", cErr.ResourceID)
	require.Len(t, cErr.Conflicts, 1)
	assert.Equal(t, "a", cErr.Conflicts[0].ID)

	assert.NoError(t, CheckAdmission(existing, "r", Interval{start.Add(2 * time.Hour), start.Add(3 * time.Hour)}, ""))
}
