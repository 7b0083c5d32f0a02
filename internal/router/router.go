package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/topiclens/topiclens-backend/internal/config"
	"github.com/topiclens/topiclens-backend/internal/handler"
	"github.com/topiclens/topiclens-backend/internal/middleware"
	"github.com/topiclens/topiclens-backend/internal/response"
	"github.com/topiclens/topiclens-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Exam       *handler.ExamHandler
	Curriculum *handler.CurriculumHandler
	Attempt    *handler.AttemptHandler
	WS         *handler.WSHandler
	Monitor    *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally. SSE and WebSocket requests pass
	// through uncompressed.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for attempt starts and logins (30 per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/logout", middleware.RequireTeacherJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireTeacherJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Student Group (Public entry, then attempt token) ──────────
	exams := router.Group("/api/v1/exams")
	{
		exams.GET("/:id", handlers.Exam.PublicInfo)
		exams.POST("/:id/attempts", authLimiter.Middleware(), handlers.Attempt.Start)
	}

	attempts := router.Group("/api/v1/attempts")
	attempts.Use(middleware.RequireAttemptJWT(authService))
	{
		attempts.GET("/:attemptId/state", handlers.Attempt.State)
		attempts.PUT("/:attemptId/answers", handlers.Attempt.Answer)
		attempts.POST("/:attemptId/flags", handlers.Attempt.ToggleFlag)
		attempts.POST("/:attemptId/goto", handlers.Attempt.GoTo)
		attempts.POST("/:attemptId/submit", handlers.Attempt.Submit)
		attempts.GET("/:attemptId/results", handlers.Attempt.Results)
	}

	// ─── 3. WebSocket Group (Attempt WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireAttemptWSAuth(authService))
	{
		ws.GET("/attempts/:attemptId/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Teacher Group (JWT) ────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(authService))
	{
		// Curriculum intake
		teacherAPI.POST("/curricula", handlers.Curriculum.Upload)
		teacherAPI.GET("/curricula", handlers.Curriculum.List)
		teacherAPI.GET("/curricula/:id/topics", handlers.Curriculum.ListTopics)

		// Exam management
		teacherAPI.GET("/exams", handlers.Exam.List)
		teacherAPI.POST("/exams", handlers.Exam.Create)
		teacherAPI.GET("/exams/:id", handlers.Exam.Get)
		teacherAPI.PUT("/exams/:id", handlers.Exam.Update)
		teacherAPI.DELETE("/exams/:id", handlers.Exam.Delete)
		teacherAPI.GET("/exams/:id/questions", handlers.Exam.ListQuestions)
		teacherAPI.PUT("/exams/:id/questions", handlers.Exam.ReplaceQuestions)
		teacherAPI.POST("/exams/:id/generate-questions", handlers.Curriculum.GenerateQuestions)
		teacherAPI.POST("/exams/:id/publish", handlers.Exam.Publish)
		teacherAPI.POST("/exams/:id/archive", handlers.Exam.Archive)

		// Results and live monitoring
		teacherAPI.GET("/exams/:id/attempts", handlers.Exam.ListAttempts)
		teacherAPI.GET("/exams/:id/attempts/:attemptId/report", handlers.Exam.GetAttemptReport)
		teacherAPI.GET("/exams/:id/monitor", handlers.Monitor.MonitorExamSSE)
	}

	return router
}
