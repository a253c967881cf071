package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/campus-hub/participation/internal/application/command"
	"github.com/campus-hub/participation/internal/application/query"
	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/pkg/logger"
	"github.com/campus-hub/participation/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "Campus Participation API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":        "/health",
			"registrations": "/api/v1/registrations",
			"attendance":    "/api/v1/attendance",
			"feedback":      "/api/v1/feedback",
			"reports":       "/api/v1/reports/participation",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONError(w, r, http.StatusServiceUnavailable, "not_ready", status.Message)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics serves process and event bus counters as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]any{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}
	if s.deps.Metrics != nil {
		metrics["events"] = s.deps.Metrics()
	}
	writeJSON(w, r, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type pairRequest struct {
	StudentID string `json:"student_id"`
	EventID   string `json:"event_id"`
}

type attendanceRequest struct {
	pairRequest
	Status string `json:"status"`
}

type feedbackRequest struct {
	pairRequest
	Rating       int    `json:"rating"`
	FeedbackText string `json:"feedback_text"`
}

// handleRegister handles POST /api/v1/registrations
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.deps.Register == nil {
		notConfigured(w, r)
		return
	}
	var req pairRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.Register.Handle(r.Context(), command.RegisterCommand{
		StudentID:     req.StudentID,
		EventID:       req.EventID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Reactivated {
		status = http.StatusOK
	}
	writeJSON(w, r, status, registrationResponse{
		Registration: toRegistrationDTO(result.Registration),
		Waitlisted:   result.Waitlisted(),
		Reactivated:  result.Reactivated,
	})
}

// handleCancelRegistration handles DELETE /api/v1/registrations/{id}
func (s *Server) handleCancelRegistration(w http.ResponseWriter, r *http.Request) {
	if s.deps.CancelRegistration == nil {
		notConfigured(w, r)
		return
	}

	result, err := s.deps.CancelRegistration.Handle(r.Context(), command.CancelRegistrationCommand{
		RegistrationID: r.PathValue("id"),
		CorrelationID:  getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := cancelResponse{Registration: toRegistrationDTO(result.Registration)}
	if result.Promoted != nil {
		promoted := toRegistrationDTO(result.Promoted)
		resp.Promoted = &promoted
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleMarkAttendance handles POST /api/v1/attendance
func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	if s.deps.MarkAttendance == nil {
		notConfigured(w, r)
		return
	}
	var req attendanceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	att, err := s.deps.MarkAttendance.Handle(r.Context(), command.MarkAttendanceCommand{
		StudentID:     req.StudentID,
		EventID:       req.EventID,
		Status:        req.Status,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toAttendanceDTO(att))
}

// handleCheckOut handles POST /api/v1/attendance/checkout
func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	if s.deps.CheckOut == nil {
		notConfigured(w, r)
		return
	}
	var req pairRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	att, err := s.deps.CheckOut.Handle(r.Context(), command.CheckOutCommand{
		StudentID:     req.StudentID,
		EventID:       req.EventID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toAttendanceDTO(att))
}

// handleSubmitFeedback handles POST /api/v1/feedback
func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	if s.deps.SubmitFeedback == nil {
		notConfigured(w, r)
		return
	}
	var req feedbackRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	fb, err := s.deps.SubmitFeedback.Handle(r.Context(), command.SubmitFeedbackCommand{
		StudentID:     req.StudentID,
		EventID:       req.EventID,
		Rating:        req.Rating,
		Text:          req.FeedbackText,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toFeedbackDTO(fb))
}

// ══════════════════════════════════════════════════════════════════════════════
// LISTING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListEventRegistrations handles GET /api/v1/events/{id}/registrations
func (s *Server) handleListEventRegistrations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Activity == nil {
		notConfigured(w, r)
		return
	}
	regs, err := s.deps.Activity.Registrations(r.Context(), r.PathValue("id"), getQueryParam(r, "status", ""))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONList(w, r, mapSlice(regs, toRegistrationDTO))
}

// handleListEventAttendance handles GET /api/v1/events/{id}/attendance
func (s *Server) handleListEventAttendance(w http.ResponseWriter, r *http.Request) {
	if s.deps.Activity == nil {
		notConfigured(w, r)
		return
	}
	rows, err := s.deps.Activity.Attendance(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONList(w, r, mapSlice(rows, toAttendanceDTO))
}

// handleListEventFeedback handles GET /api/v1/events/{id}/feedback
func (s *Server) handleListEventFeedback(w http.ResponseWriter, r *http.Request) {
	if s.deps.Activity == nil {
		notConfigured(w, r)
		return
	}
	rows, err := s.deps.Activity.Feedback(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONList(w, r, mapSlice(rows, toFeedbackDTO))
}

// handleListStudentRegistrations handles GET /api/v1/students/{id}/registrations
func (s *Server) handleListStudentRegistrations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Activity == nil {
		notConfigured(w, r)
		return
	}
	regs, err := s.deps.Activity.StudentRegistrations(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONList(w, r, mapSlice(regs, toRegistrationDTO))
}

// handleListStudentAttendance handles GET /api/v1/students/{id}/attendance
func (s *Server) handleListStudentAttendance(w http.ResponseWriter, r *http.Request) {
	if s.deps.Activity == nil {
		notConfigured(w, r)
		return
	}
	rows, err := s.deps.Activity.StudentAttendance(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONList(w, r, mapSlice(rows, toAttendanceDTO))
}

// handleListStudentFeedback handles GET /api/v1/students/{id}/feedback
func (s *Server) handleListStudentFeedback(w http.ResponseWriter, r *http.Request) {
	if s.deps.Activity == nil {
		notConfigured(w, r)
		return
	}
	rows, err := s.deps.Activity.StudentFeedback(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONList(w, r, mapSlice(rows, toFeedbackDTO))
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleEventStats handles GET /api/v1/reports/events/{id}
func (s *Server) handleEventStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.EventStats == nil {
		notConfigured(w, r)
		return
	}
	stats, err := s.deps.EventStats.Handle(r.Context(), query.GetEventStatsQuery{EventID: r.PathValue("id")})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// handleStudentStats handles GET /api/v1/reports/students/{id}
func (s *Server) handleStudentStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.StudentStats == nil {
		notConfigured(w, r)
		return
	}
	stats, err := s.deps.StudentStats.Handle(r.Context(), query.GetStudentStatsQuery{StudentID: r.PathValue("id")})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// handleInstitutionStats handles GET /api/v1/reports/institutions/{id}
func (s *Server) handleInstitutionStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.InstitutionStats == nil {
		notConfigured(w, r)
		return
	}
	stats, err := s.deps.InstitutionStats.Handle(r.Context(), query.GetInstitutionStatsQuery{InstitutionID: r.PathValue("id")})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// handleParticipationReport handles GET /api/v1/reports/participation
func (s *Server) handleParticipationReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.ParticipationReport == nil {
		notConfigured(w, r)
		return
	}
	from, to, err := timeutil.ParseRange(getQueryParam(r, "from", ""), getQueryParam(r, "to", ""), s.deps.Location)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	rows, err := s.deps.ParticipationReport.Handle(r.Context(), query.GetParticipationReportQuery{
		InstitutionID: getQueryParam(r, "institution_id", ""),
		EventType:     getQueryParam(r, "event_type", ""),
		From:          from,
		To:            to,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONList(w, r, rows)
}

// handleTopStudents handles GET /api/v1/reports/top-students
func (s *Server) handleTopStudents(w http.ResponseWriter, r *http.Request) {
	if s.deps.TopStudents == nil {
		notConfigured(w, r)
		return
	}
	limit, err := getQueryParamInt(r, "limit", query.DefaultLimit)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	rows, err := s.deps.TopStudents.Handle(r.Context(), query.GetTopStudentsQuery{
		InstitutionID: getQueryParam(r, "institution_id", ""),
		Limit:         limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONList(w, r, rows)
}

// handleEventPopularity handles GET /api/v1/reports/event-popularity
func (s *Server) handleEventPopularity(w http.ResponseWriter, r *http.Request) {
	if s.deps.EventPopularity == nil {
		notConfigured(w, r)
		return
	}
	limit, err := getQueryParamInt(r, "limit", query.DefaultLimit)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	rows, err := s.deps.EventPopularity.Handle(r.Context(), query.GetEventPopularityQuery{
		InstitutionID: getQueryParam(r, "institution_id", ""),
		EventType:     getQueryParam(r, "event_type", ""),
		Limit:         limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONList(w, r, rows)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps error kinds to status codes. Unexpected errors are
// logged and answered with a generic 500.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		code   string
	)
	switch {
	case shared.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case shared.IsValidation(err):
		status, code = http.StatusBadRequest, "validation_error"
	case shared.IsConflict(err):
		status, code = http.StatusConflict, "conflict"
	case shared.IsInvalidState(err):
		status, code = http.StatusUnprocessableEntity, "invalid_state"
	case shared.IsRetryable(err), errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		status, code = http.StatusServiceUnavailable, "unavailable"
	default:
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	writeJSONError(w, r, status, code, domainMessage(err))
}

// domainMessage prefers the human-readable message of a domain error.
func domainMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

func notConfigured(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Endpoint not configured")
}

// decodeBody parses a JSON request body. It writes a 400 and returns false on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "Invalid JSON payload"
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", msg)
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DTOS
// ══════════════════════════════════════════════════════════════════════════════

type registrationDTO struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	EventID      string    `json:"event_id"`
	Status       string    `json:"status"`
	RegisteredAt time.Time `json:"registration_date"`
}

type registrationResponse struct {
	Registration registrationDTO `json:"registration"`
	Waitlisted   bool            `json:"waitlisted"`
	Reactivated  bool            `json:"reactivated"`
}

type cancelResponse struct {
	Registration registrationDTO  `json:"registration"`
	Promoted     *registrationDTO `json:"promoted,omitempty"`
}

type attendanceDTO struct {
	ID           string     `json:"id"`
	StudentID    string     `json:"student_id"`
	EventID      string     `json:"event_id"`
	Status       string     `json:"status"`
	CheckInTime  time.Time  `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time,omitempty"`
}

type feedbackDTO struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	EventID      string    `json:"event_id"`
	Rating       int       `json:"rating"`
	FeedbackText string    `json:"feedback_text,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

func toRegistrationDTO(r *participation.Registration) registrationDTO {
	return registrationDTO{
		ID:           r.ID,
		StudentID:    r.StudentID,
		EventID:      r.EventID,
		Status:       r.Status.String(),
		RegisteredAt: r.RegisteredAt,
	}
}

func toAttendanceDTO(a *participation.Attendance) attendanceDTO {
	return attendanceDTO{
		ID:           a.ID,
		StudentID:    a.StudentID,
		EventID:      a.EventID,
		Status:       string(a.Status),
		CheckInTime:  a.CheckInTime,
		CheckOutTime: a.CheckOutTime,
	}
}

func toFeedbackDTO(f *participation.Feedback) feedbackDTO {
	return feedbackDTO{
		ID:           f.ID,
		StudentID:    f.StudentID,
		EventID:      f.EventID,
		Rating:       f.Rating.Int(),
		FeedbackText: f.Text,
		SubmittedAt:  f.SubmittedAt,
	}
}

func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
