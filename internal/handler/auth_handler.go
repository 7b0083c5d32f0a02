package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/topiclens/topiclens-backend/internal/middleware"
	"github.com/topiclens/topiclens-backend/internal/model"
	"github.com/topiclens/topiclens-backend/internal/repository"
	"github.com/topiclens/topiclens-backend/internal/response"
	"github.com/topiclens/topiclens-backend/internal/service"
	"github.com/topiclens/topiclens-backend/internal/validator"
)

// AuthHandler handles teacher authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
	teacherRepo *repository.TeacherRepository
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, teacherRepo *repository.TeacherRepository) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		teacherRepo: teacherRepo,
	}
}

// Login godoc
// POST /api/v1/auth/login
// Validates email + password and returns a teacher JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.TeacherLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	teacher, err := h.teacherRepo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.authService.CheckPassword(teacher.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.authService.GenerateTeacherToken(c.Request.Context(), teacher.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"teacher": gin.H{
			"id":    teacher.ID,
			"name":  teacher.Name,
			"email": teacher.Email,
		},
	})
}

// Me godoc
// GET /api/v1/auth/me
// Returns the profile of the currently authenticated teacher.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	teacher, err := h.teacherRepo.GetByID(c.Request.Context(), claims.TeacherID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"teacher": gin.H{
			"id":    teacher.ID,
			"name":  teacher.Name,
			"email": teacher.Email,
		},
	})
}

// Logout godoc
// POST /api/v1/auth/logout
// Drops the active teacher session.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims.TeacherID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
