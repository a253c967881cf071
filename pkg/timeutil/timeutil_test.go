package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange_BareDates(t *testing.T) {
	from, to, err := ParseRange("2026-03-01", "2026-03-31", time.UTC)
	require.NoError(t, err)
	require.NotNil(t, from)
	require.NotNil(t, to)

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *from)
	assert.Equal(t, time.Date(2026, 3, 31, 23, 59, 59, 999999999, time.UTC), *to)
}

func TestParseRange_FixedZone(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	from, _, err := ParseRange("2026-03-01", "", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 28, 19, 0, 0, 0, time.UTC), *from)
}

func TestParseRange_RFC3339AndEmpty(t *testing.T) {
	from, to, err := ParseRange("", "2026-03-02T10:00:00+02:00", time.UTC)
	require.NoError(t, err)
	assert.Nil(t, from)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), *to)
}

func TestParseRange_Invalid(t *testing.T) {
	_, _, err := ParseRange("03/01/2026", "", time.UTC)
	assert.Error(t, err)

	_, _, err = ParseRange("2026-04-01", "2026-03-01", time.UTC)
	assert.Error(t, err)
}

func TestManualClock(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(t0)
	c.Advance(time.Hour)
	assert.Equal(t, t0.Add(time.Hour), c.Now())
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}
