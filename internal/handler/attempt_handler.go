package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/topiclens/topiclens-backend/internal/middleware"
	"github.com/topiclens/topiclens-backend/internal/model"
	"github.com/topiclens/topiclens-backend/internal/response"
	"github.com/topiclens/topiclens-backend/internal/service"
	"github.com/topiclens/topiclens-backend/internal/session"
	"github.com/topiclens/topiclens-backend/internal/validator"
)

// AttemptHandler handles the student-facing attempt lifecycle over HTTP.
// The WebSocket stream covers the same session commands for connected
// clients; these endpoints are the fallback and the reload path.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// Start godoc
// POST /api/v1/exams/:id/attempts
// Starts (or rejoins) an attempt and returns the attempt token, the exam
// payload, and the authoritative session state.
func (h *AttemptHandler) Start(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attemptService.Start(c.Request.Context(), examID, &req)
	if err != nil {
		failForAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// State godoc
// GET /api/v1/attempts/:attemptId/state
// Returns the authoritative session snapshot; the reload path.
func (h *AttemptHandler) State(c *gin.Context) {
	attemptID, ok := middleware.AttemptIDFromClaims(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	state, err := h.attemptService.State(c.Request.Context(), attemptID)
	if err != nil {
		failForAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// answerRequest is the HTTP body for recording an answer.
type answerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Value      string    `json:"value" binding:"required"`
}

// Answer godoc
// PUT /api/v1/attempts/:attemptId/answers
func (h *AttemptHandler) Answer(c *gin.Context) {
	attemptID, ok := middleware.AttemptIDFromClaims(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	var req answerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.attemptService.Answer(c.Request.Context(), attemptID, req.QuestionID, req.Value)
	if err != nil {
		failForAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// flagRequest is the HTTP body for toggling a review flag.
type flagRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
}

// ToggleFlag godoc
// POST /api/v1/attempts/:attemptId/flags
func (h *AttemptHandler) ToggleFlag(c *gin.Context) {
	attemptID, ok := middleware.AttemptIDFromClaims(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	var req flagRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.attemptService.ToggleFlag(c.Request.Context(), attemptID, req.QuestionID)
	if err != nil {
		failForAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// GoTo godoc
// POST /api/v1/attempts/:attemptId/goto?index=N
func (h *AttemptHandler) GoTo(c *gin.Context) {
	attemptID, ok := middleware.AttemptIDFromClaims(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	index, err := strconv.Atoi(c.Query("index"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	state, err := h.attemptService.GoTo(c.Request.Context(), attemptID, index)
	if err != nil {
		failForAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// Submit godoc
// POST /api/v1/attempts/:attemptId/submit
// Drives the submission protocol. Idempotent: submitting a completed
// attempt returns the stored report.
func (h *AttemptHandler) Submit(c *gin.Context) {
	attemptID, ok := middleware.AttemptIDFromClaims(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	report, err := h.attemptService.Submit(c.Request.Context(), attemptID)
	if err != nil {
		failForAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": report})
}

// Results godoc
// GET /api/v1/attempts/:attemptId/results
func (h *AttemptHandler) Results(c *gin.Context) {
	attemptID, ok := middleware.AttemptIDFromClaims(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	report, err := h.attemptService.GetResults(c.Request.Context(), attemptID)
	if err != nil {
		failForAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": report})
}

// failForAttemptError maps attempt/session errors to API responses.
func failForAttemptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotPublished):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrInvalidAccessCode):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrAttemptNotFound), errors.Is(err, session.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrAttemptCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptCompleted)
	case errors.Is(err, session.ErrNotRunning):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotRunning)
	case errors.Is(err, session.ErrUnknownQuestion):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, session.ErrInvalidAnswer):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidAnswer)
	case errors.Is(err, session.ErrSubmitInFlight):
		response.Fail(c, http.StatusConflict, response.ErrSubmitInFlight)
	case errors.Is(err, service.ErrAIUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrSubmissionFailed)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
