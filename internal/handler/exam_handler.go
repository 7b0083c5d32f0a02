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
	"github.com/topiclens/topiclens-backend/internal/validator"
)

// ExamHandler handles teacher-facing exam management endpoints.
type ExamHandler struct {
	examService    *service.ExamService
	attemptService *service.AttemptService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, attemptService *service.AttemptService) *ExamHandler {
	return &ExamHandler{
		examService:    examService,
		attemptService: attemptService,
	}
}

// List godoc
// GET /api/v1/teacher/exams
func (h *ExamHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	exams, pagination, err := h.examService.ListByOwner(c.Request.Context(), claims.TeacherID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// Get godoc
// GET /api/v1/teacher/exams/:id
func (h *ExamHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if exam.OwnerID != claims.TeacherID {
		response.Fail(c, http.StatusForbidden, response.ErrNotExamOwner)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// Create godoc
// POST /api/v1/teacher/exams
func (h *ExamHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam := &model.Exam{
		OwnerID:         claims.TeacherID,
		CurriculumID:    req.CurriculumID,
		Title:           req.Title,
		DurationMinutes: req.DurationMinutes,
		AccessCode:      req.AccessCode,
	}

	if err := h.examService.Create(c.Request.Context(), exam); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// Update godoc
// PUT /api/v1/teacher/exams/:id
func (h *ExamHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	existing, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	if req.Title != "" {
		existing.Title = req.Title
	}
	if req.DurationMinutes > 0 {
		existing.DurationMinutes = req.DurationMinutes
	}
	if req.AccessCode != "" {
		existing.AccessCode = req.AccessCode
	}

	if err := h.examService.Update(c.Request.Context(), claims.TeacherID, existing); err != nil {
		failForExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": existing})
}

// Delete godoc
// DELETE /api/v1/teacher/exams/:id
func (h *ExamHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.examService.Delete(c.Request.Context(), examID, claims.TeacherID); err != nil {
		failForExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ListQuestions godoc
// GET /api/v1/teacher/exams/:id/questions
// Returns the full question set including correct answers.
func (h *ExamHandler) ListQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questions, err := h.examService.ListQuestions(c.Request.Context(), examID, claims.TeacherID)
	if err != nil {
		failForExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// ReplaceQuestions godoc
// PUT /api/v1/teacher/exams/:id/questions
// Replaces a draft exam's question set wholesale.
func (h *ExamHandler) ReplaceQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions := make([]model.Question, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = model.Question{
			ExamID:        examID,
			TopicID:       q.TopicID,
			Text:          q.Text,
			Type:          model.QuestionType(q.Type),
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			SeqNum:        i + 1,
		}
	}

	if err := h.examService.ReplaceQuestions(c.Request.Context(), examID, claims.TeacherID, questions); err != nil {
		failForExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"count": len(questions)})
}

// Publish godoc
// POST /api/v1/teacher/exams/:id/publish
func (h *ExamHandler) Publish(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.examService.Publish(c.Request.Context(), examID, claims.TeacherID); err != nil {
		failForExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": model.ExamStatusPublished})
}

// Archive godoc
// POST /api/v1/teacher/exams/:id/archive
func (h *ExamHandler) Archive(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.examService.Archive(c.Request.Context(), examID, claims.TeacherID); err != nil {
		failForExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": model.ExamStatusArchived})
}

// ListAttempts godoc
// GET /api/v1/teacher/exams/:id/attempts
func (h *ExamHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	attempts, pagination, err := h.attemptService.ListByExam(c.Request.Context(), examID, claims.TeacherID, page, perPage)
	if err != nil {
		failForExamError(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, pagination)
}

// GetAttemptReport godoc
// GET /api/v1/teacher/exams/:id/attempts/:attemptId/report
// Returns the stored report for a completed attempt, owner-checked.
func (h *ExamHandler) GetAttemptReport(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if exam.OwnerID != claims.TeacherID {
		response.Fail(c, http.StatusForbidden, response.ErrNotExamOwner)
		return
	}

	report, err := h.attemptService.GetResults(c.Request.Context(), attemptID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": report})
}

// PublicInfo godoc
// GET /api/v1/exams/:id
// Returns what a student needs before starting: title, duration, and
// whether an access code is required. No questions leak here.
func (h *ExamHandler) PublicInfo(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil || exam.Status != model.ExamStatusPublished {
		response.Fail(c, http.StatusNotFound, response.ErrExamNotAvailable)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"exam": gin.H{
			"id":               exam.ID,
			"title":            exam.Title,
			"duration_minutes": exam.DurationMinutes,
			"question_count":   exam.QuestionCount,
			"requires_code":    exam.AccessCode != "",
		},
	})
}

// failForExamError maps exam service errors to API responses.
func failForExamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotExamOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotExamOwner)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	case errors.Is(err, service.ErrExamNotDraft), errors.Is(err, service.ErrExamNotPublished):
		response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
