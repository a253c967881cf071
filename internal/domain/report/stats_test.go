package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(0, 0))
	assert.Equal(t, 0.0, Percentage(5, 0))
	assert.Equal(t, 50.0, Percentage(1, 2))
	assert.Equal(t, 66.67, Percentage(2, 3))
	assert.Equal(t, 33.33, Percentage(1, 3))
}

func TestRound2_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 2.5, Round2(2.4999999))
	assert.Equal(t, 1.13, Round2(1.125))
	assert.Equal(t, -1.13, Round2(-1.125))
}

func TestMeanAndUtilization(t *testing.T) {
	assert.Nil(t, Mean(0, 0))

	m := Mean(14, 3)
	require.NotNil(t, m)
	assert.InDelta(t, 4.6666, *m, 0.001)

	assert.Nil(t, Utilization(5, nil))
	capacity := 40
	u := Utilization(30, &capacity)
	require.NotNil(t, u)
	assert.Equal(t, 75.0, *u)
}

func TestEventStats_ZeroRegistrations(t *testing.T) {
	s := NewEventStats("e1", "Hackathon", Counts{})
	assert.Equal(t, 0.0, s.AttendancePercentage)
	assert.Nil(t, s.AverageRating)
}

func TestParticipationScore(t *testing.T) {
	assert.Equal(t, 3.0, ParticipationScore(3, nil))

	r := 4.5
	assert.Equal(t, 5.25, ParticipationScore(3, &r))

	third := 13.0 / 3.0
	assert.Equal(t, 4.17, ParticipationScore(2, &third))
}

func TestSortPopularity_StableAndTruncated(t *testing.T) {
	rows := []EventStats{
		{EventID: "a", TotalRegistrations: 7},
		{EventID: "b", TotalRegistrations: 10},
		{EventID: "c", TotalRegistrations: 7},
	}
	SortPopularity(rows)

	top1 := Truncate(rows, 1)
	require.Len(t, top1, 1)
	assert.Equal(t, "b", top1[0].EventID)

	top2 := Truncate(rows, 2)
	require.Len(t, top2, 2)
	assert.Equal(t, "b", top2[0].EventID)
	assert.Equal(t, "a", top2[1].EventID)

	assert.Len(t, Truncate(rows, 10), 3)
}

func TestSortRankings(t *testing.T) {
	rows := []StudentRanking{
		{StudentStats: StudentStats{StudentID: "x"}, ParticipationScore: 1},
		{StudentStats: StudentStats{StudentID: "y"}, ParticipationScore: 4.5},
		{StudentStats: StudentStats{StudentID: "z"}, ParticipationScore: 1},
	}
	SortRankings(rows)
	assert.Equal(t, []string{"y", "x", "z"}, []string{rows[0].StudentID, rows[1].StudentID, rows[2].StudentID})
}
