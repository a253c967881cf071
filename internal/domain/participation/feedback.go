package participation

import (
	"strings"
	"time"

	"github.com/campus-hub/participation/internal/domain/shared"
)

// MaxFeedbackTextLength bounds the free-text comment.
const MaxFeedbackTextLength = 4000

// Feedback is a student's rating of an event they attended.
type Feedback struct {
	ID          string
	StudentID   string
	EventID     string
	Rating      shared.Rating
	Text        string
	SubmittedAt time.Time
}

// NewFeedback creates a feedback record. The rating must already be validated.
func NewFeedback(id, studentID, eventID string, rating shared.Rating, text string, now time.Time) (*Feedback, error) {
	if !rating.IsValid() {
		return nil, shared.ErrInvalidRating
	}
	text = strings.TrimSpace(text)
	if len(text) > MaxFeedbackTextLength {
		return nil, shared.NewDomainError("feedback", "Validate", shared.ErrValidation, "feedback text is too long")
	}
	return &Feedback{
		ID:          id,
		StudentID:   studentID,
		EventID:     eventID,
		Rating:      rating,
		Text:        text,
		SubmittedAt: now,
	}, nil
}
