package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnd(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	t.Run("forever without end spans ten years", func(t *testing.T) {
		end, err := ResolveEnd(start, DurationForever, nil)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2035, time.January, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("explicit end is returned unchanged", func(t *testing.T) {
		explicit := start.Add(90 * time.Minute)
		for _, dt := range []DurationType{DurationHour, DurationDay, DurationMonth, DurationYear, DurationForever} {
			end, err := ResolveEnd(start, dt, &explicit)
			require.NoError(t, err)
			assert.Equal(t, explicit, end, "duration type %s", dt)
		}
	})

	t.Run("symbolic types without end are rejected", func(t *testing.T) {
		for _, dt := range []DurationType{DurationHour, DurationDay, DurationMonth, DurationYear} {
			_, err := ResolveEnd(start, dt, nil)
			assert.ErrorIs(t, err, ErrMissingEnd, "duration type %s", dt)
		}
	})

	t.Run("zero explicit end counts as absent", func(t *testing.T) {
		var zero time.Time
		_, err := ResolveEnd(start, DurationDay, &zero)
		assert.ErrorIs(t, err, ErrMissingEnd)
	})
}

func TestParseDurationType(t *testing.T) {
	dt, err := ParseDurationType("forever")
	require.NoError(t, err)
	assert.Equal(t, DurationForever, dt)

	_, err = ParseDurationType("week")
	assert.Error(t, err)
}
