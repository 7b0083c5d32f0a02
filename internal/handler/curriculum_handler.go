package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/topiclens/topiclens-backend/internal/middleware"
	"github.com/topiclens/topiclens-backend/internal/response"
	"github.com/topiclens/topiclens-backend/internal/service"
)

// CurriculumHandler handles curriculum intake endpoints.
type CurriculumHandler struct {
	curriculumService *service.CurriculumService
	maxUploadBytes    int64
}

// NewCurriculumHandler creates a new CurriculumHandler. maxUploadBytes
// bounds curriculum uploads (config MAX_UPLOAD_SIZE_MB).
func NewCurriculumHandler(curriculumService *service.CurriculumService, maxUploadBytes int64) *CurriculumHandler {
	return &CurriculumHandler{
		curriculumService: curriculumService,
		maxUploadBytes:    maxUploadBytes,
	}
}

// Upload godoc
// POST /api/v1/teacher/curricula
// Accepts a multipart file upload, extracts topics via the AI, and
// returns the new curriculum with its topic list.
func (h *CurriculumHandler) Upload(c *gin.Context) {
	claims := middleware.GetClaims(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = fileHeader.Filename
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes))
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	curriculum, topics, err := h.curriculumService.Upload(c.Request.Context(), claims.TeacherID, title, fileHeader.Filename, data)
	if err != nil {
		failForCurriculumError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"curriculum": curriculum,
		"topics":     topics,
	})
}

// List godoc
// GET /api/v1/teacher/curricula
func (h *CurriculumHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)

	curricula, err := h.curriculumService.ListByOwner(c.Request.Context(), claims.TeacherID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"curricula": curricula})
}

// ListTopics godoc
// GET /api/v1/teacher/curricula/:id/topics
func (h *CurriculumHandler) ListTopics(c *gin.Context) {
	claims := middleware.GetClaims(c)
	curriculumID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	topics, err := h.curriculumService.ListTopics(c.Request.Context(), curriculumID, claims.TeacherID)
	if err != nil {
		failForCurriculumError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"topics": topics})
}

// GenerateQuestions godoc
// POST /api/v1/teacher/exams/:id/generate-questions
// Authors a draft exam's question set from its curriculum's topics.
func (h *CurriculumHandler) GenerateQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	perTopic, _ := strconv.Atoi(c.DefaultQuery("per_topic", "3"))

	questions, err := h.curriculumService.GenerateExamQuestions(c.Request.Context(), examID, claims.TeacherID, perTopic)
	if err != nil {
		failForCurriculumError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// failForCurriculumError maps curriculum service errors to API responses.
func failForCurriculumError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnsupportedFile):
		response.Fail(c, http.StatusUnsupportedMediaType, response.ErrUnsupportedFile)
	case errors.Is(err, service.ErrNotCurriculumOwner), errors.Is(err, service.ErrNotExamOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrAIUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrAIUnavailable)
	case errors.Is(err, service.ErrExamNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrExamNoCurriculum):
		response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
