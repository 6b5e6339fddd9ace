package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/scholarpath/testportal-backend/internal/config"
	"github.com/scholarpath/testportal-backend/internal/handler"
	"github.com/scholarpath/testportal-backend/internal/middleware"
	"github.com/scholarpath/testportal-backend/internal/response"
	"github.com/scholarpath/testportal-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth        *handler.AuthHandler
	Session     *handler.SessionHandler
	AdminTest   *handler.AdminTestHandler
	Application *handler.ApplicationHandler
	QBank       *handler.QBankHandler
	WS          *handler.WSHandler
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

	// Request ID middleware runs globally so every response carries metadata.
	router.Use(response.RequestIDMiddleware())

	// Session payloads carry the whole paper; compress where accepted.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Entry verification gets its own limiter so application numbers cannot
	// be enumerated.
	verifyLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public) ────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/candidate/login", handlers.Auth.CandidateLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/candidate/logout", middleware.RequireCandidateJWT(authService), handlers.Auth.CandidateLogout)
		auth.GET("/candidate/me", middleware.RequireCandidateJWT(authService), handlers.Auth.GetCandidateProfile)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Candidate Group (JWT + Single Device) ──────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(
		middleware.RequireCandidateJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		candidateAPI.GET("/tests", handlers.Session.ListAvailableTests)
		candidateAPI.GET("/tests/:testId", handlers.Session.GetTestDetail)
		candidateAPI.POST("/tests/:testId/verify", verifyLimiter.Middleware(), handlers.Session.VerifyEntry)
		candidateAPI.POST("/tests/:testId/begin", handlers.Session.BeginSession)
		candidateAPI.GET("/tests/:testId/session", handlers.Session.GetSessionState)
		candidateAPI.POST("/tests/:testId/answer", handlers.Session.RecordAnswer)
		candidateAPI.POST("/tests/:testId/navigate", handlers.Session.Navigate)
		candidateAPI.POST("/tests/:testId/submit", handlers.Session.SubmitSession)
		candidateAPI.GET("/tests/:testId/result", handlers.Session.GetResult)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	{
		ws.GET("/tests/:testId/session", handlers.WS.SessionStream)
	}

	// ─── 4. Admin Group (Admin JWT) ────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.POST("/tests", handlers.AdminTest.CreateTest)
		adminAPI.GET("/tests", handlers.AdminTest.ListTests)
		adminAPI.GET("/tests/:testId", handlers.AdminTest.GetTest)
		adminAPI.PUT("/tests/:testId", handlers.AdminTest.UpdateTest)
		adminAPI.DELETE("/tests/:testId", handlers.AdminTest.DeleteTest)
		adminAPI.POST("/tests/:testId/publish", handlers.AdminTest.PublishTest)
		adminAPI.POST("/tests/:testId/archive", handlers.AdminTest.ArchiveTest)
		adminAPI.GET("/tests/:testId/results", handlers.AdminTest.ListTestResults)

		adminAPI.POST("/applications", handlers.Application.CreateApplication)
		adminAPI.GET("/applications", handlers.Application.ListApplications)
		adminAPI.GET("/applications/:applicationNo", handlers.Application.GetApplication)
		adminAPI.POST("/applications/:applicationNo/verify-payment", handlers.Application.VerifyPayment)

		adminAPI.POST("/qbanks", handlers.QBank.CreateBank)
		adminAPI.GET("/qbanks", handlers.QBank.ListBanks)
		adminAPI.GET("/qbanks/:qbankId", handlers.QBank.GetBank)
		adminAPI.DELETE("/qbanks/:qbankId", handlers.QBank.DeleteBank)
		adminAPI.GET("/qbanks/:qbankId/questions", handlers.QBank.ListBankQuestions)
		adminAPI.POST("/qbanks/:qbankId/questions", handlers.QBank.AddBankQuestion)
		adminAPI.PUT("/qbanks/:qbankId/questions", handlers.QBank.ReplaceBankQuestions)
	}

	return router
}
