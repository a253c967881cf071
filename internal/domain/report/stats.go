// Package report contains the read-side figures derived from participation
// activity: per-event, per-student and per-institution statistics and rankings.
package report

import (
	"math"
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ARITHMETIC
// ══════════════════════════════════════════════════════════════════════════════

// Round2 rounds to two decimals, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percentage returns part/whole*100 rounded to two decimals, or 0 when whole is 0.
func Percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return Round2(float64(part) / float64(whole) * 100)
}

// Mean returns sum/count, or nil when there is nothing to average.
func Mean(sum, count int) *float64 {
	if count <= 0 {
		return nil
	}
	m := float64(sum) / float64(count)
	return &m
}

// Utilization returns registered/capacity*100, or nil when the event has no limit.
func Utilization(registered int, capacity *int) *float64 {
	if capacity == nil || *capacity <= 0 {
		return nil
	}
	u := Percentage(registered, *capacity)
	return &u
}

// ParticipationScore weights attendance with half the mean rating given.
// A student without feedback contributes 0 for the rating term.
func ParticipationScore(attendance int, meanRating *float64) float64 {
	rating := 0.0
	if meanRating != nil {
		rating = *meanRating
	}
	return Round2(float64(attendance) + 0.5*rating)
}

// ══════════════════════════════════════════════════════════════════════════════
// RAW COUNTS
// ══════════════════════════════════════════════════════════════════════════════

// Counts are the raw figures read from the store for one entity.
// Registrations counts registered records only and Attendance present records only.
type Counts struct {
	Registrations int
	Attendance    int
	Feedback      int
	RatingSum     int
}

// AttendanceRate is attendance over registrations as a percentage.
func (c Counts) AttendanceRate() float64 {
	return Percentage(c.Attendance, c.Registrations)
}

// MeanRating is the average rating, or nil without feedback.
func (c Counts) MeanRating() *float64 {
	return Mean(c.RatingSum, c.Feedback)
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORT VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// EventStats summarises one event.
type EventStats struct {
	EventID              string   `json:"event_id"`
	Title                string   `json:"event_title"`
	TotalRegistrations   int      `json:"total_registrations"`
	TotalAttendance      int      `json:"total_attendance"`
	AttendancePercentage float64  `json:"attendance_percentage"`
	FeedbackCount        int      `json:"feedback_count"`
	AverageRating        *float64 `json:"average_rating"`
}

// NewEventStats builds event stats from raw counts.
func NewEventStats(eventID, title string, c Counts) EventStats {
	return EventStats{
		EventID:              eventID,
		Title:                title,
		TotalRegistrations:   c.Registrations,
		TotalAttendance:      c.Attendance,
		AttendancePercentage: c.AttendanceRate(),
		FeedbackCount:        c.Feedback,
		AverageRating:        c.MeanRating(),
	}
}

// StudentStats summarises one student.
type StudentStats struct {
	StudentID          string   `json:"student_id"`
	StudentName        string   `json:"student_name"`
	InstitutionName    string   `json:"institution_name"`
	TotalRegistrations int      `json:"total_registrations"`
	TotalAttendance    int      `json:"total_attendance"`
	AttendanceRate     float64  `json:"attendance_rate"`
	FeedbackGiven      int      `json:"feedback_given"`
	AverageRatingGiven *float64 `json:"average_rating_given"`
}

// NewStudentStats builds student stats from raw counts.
func NewStudentStats(studentID, name, institution string, c Counts) StudentStats {
	return StudentStats{
		StudentID:          studentID,
		StudentName:        name,
		InstitutionName:    institution,
		TotalRegistrations: c.Registrations,
		TotalAttendance:    c.Attendance,
		AttendanceRate:     c.AttendanceRate(),
		FeedbackGiven:      c.Feedback,
		AverageRatingGiven: c.MeanRating(),
	}
}

// InstitutionCounts are the raw figures of an institution. Activity is joined
// through the institution's students.
type InstitutionCounts struct {
	Students int
	Events   int
	Counts
}

// InstitutionStats summarises one institution.
type InstitutionStats struct {
	InstitutionID      string   `json:"institution_id"`
	InstitutionName    string   `json:"institution_name"`
	TotalStudents      int      `json:"total_students"`
	TotalEvents        int      `json:"total_events"`
	TotalRegistrations int      `json:"total_registrations"`
	TotalAttendance    int      `json:"total_attendance"`
	AttendanceRate     float64  `json:"attendance_rate"`
	AverageRating      *float64 `json:"average_rating"`
}

// NewInstitutionStats builds institution stats from raw counts.
func NewInstitutionStats(id, name string, c InstitutionCounts) InstitutionStats {
	return InstitutionStats{
		InstitutionID:      id,
		InstitutionName:    name,
		TotalStudents:      c.Students,
		TotalEvents:        c.Events,
		TotalRegistrations: c.Registrations,
		TotalAttendance:    c.Attendance,
		AttendanceRate:     c.AttendanceRate(),
		AverageRating:      c.MeanRating(),
	}
}

// EventParticipation is one row of the participation report.
type EventParticipation struct {
	EventStats
	EventType           string    `json:"event_type"`
	InstitutionName     string    `json:"institution_name"`
	StartDate           time.Time `json:"start_date"`
	MaxCapacity         *int      `json:"max_capacity"`
	CapacityUtilization *float64  `json:"capacity_utilization"`
}

// StudentRanking is one row of the top students report.
type StudentRanking struct {
	StudentStats
	ParticipationScore float64 `json:"participation_score"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ORDERING
// Sorts are stable: ties keep the order in which the store returned the rows.
// ══════════════════════════════════════════════════════════════════════════════

// SortParticipation orders rows by registrations, descending.
func SortParticipation(rows []EventParticipation) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalRegistrations > rows[j].TotalRegistrations
	})
}

// SortPopularity orders events by registrations, descending.
func SortPopularity(rows []EventStats) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalRegistrations > rows[j].TotalRegistrations
	})
}

// SortRankings orders students by participation score, descending.
func SortRankings(rows []StudentRanking) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ParticipationScore > rows[j].ParticipationScore
	})
}

// Truncate keeps at most limit items.
func Truncate[T any](rows []T, limit int) []T {
	if limit >= 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
