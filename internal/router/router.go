package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/config"
	"github.com/stemsi/ielts-mock/internal/handler"
	"github.com/stemsi/ielts-mock/internal/middleware"
	"github.com/stemsi/ielts-mock/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health     *handler.HealthHandler
	Session    *handler.SessionHandler
	Result     *handler.ResultHandler
	Assignment *handler.AssignmentHandler
	Monitor    *handler.MonitorHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// The returned limiter must be stopped on shutdown.
func SetupRouter(handlers *Handlers, cfg *config.Config, log zerolog.Logger) (*gin.Engine, *middleware.RateLimiter) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))

	router.GET("/health", handlers.Health.Health)

	// ─── 1. Candidate Session ──────────────────────────────────────────
	autosaveLimiter := middleware.NewRateLimiter(cfg.AutosaveRate, time.Minute, middleware.ByParam("candidate_id"))

	candidate := router.Group("/api/v1/candidates/:candidate_id/session")
	candidate.Use(middleware.NoStore())
	{
		candidate.GET("", handlers.Session.GetSession)
		candidate.POST("/load", handlers.Session.LoadSession)
		candidate.POST("/start", handlers.Session.StartSection)
		candidate.PUT("/answers", autosaveLimiter.Middleware(), handlers.Session.SaveAnswers)
		candidate.PUT("/subsection", handlers.Session.SetSubSection)
		candidate.POST("/advance", handlers.Session.Advance)
		candidate.POST("/finish", handlers.Session.Finish)
		candidate.POST("/abandon", handlers.Session.Abandon)
		candidate.POST("/unload", handlers.Session.Unload)
	}

	// ─── 2. WebSocket ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/candidates/:candidate_id/session/stream", handlers.WS.SessionStream)
	}

	// ─── 3. Admin ──────────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.Brotli())
	{
		results := adminAPI.Group("/results")
		{
			results.GET("", handlers.Result.ListResults)
			results.GET("/stats", handlers.Result.GetStats)
			results.GET("/export", handlers.Result.ExportResults)
			results.GET("/:id", handlers.Result.GetResult)
			results.POST("/:id/auto-score", handlers.Result.AutoScore)
			results.PUT("/:id/score", handlers.Result.Rescore)
			results.DELETE("/:id", handlers.Result.DeleteResult)
		}

		assignments := adminAPI.Group("/assignments")
		{
			assignments.GET("", handlers.Assignment.ListAssignments)
			assignments.GET("/:candidate_id", handlers.Assignment.GetAssignment)
			assignments.PUT("/:candidate_id", handlers.Assignment.UpsertAssignment)
			assignments.DELETE("/:candidate_id", handlers.Assignment.DeleteAssignment)
		}

		sessions := adminAPI.Group("/sessions")
		sessions.Use(middleware.NoStore())
		{
			sessions.GET("", handlers.Monitor.ListSessions)
			sessions.GET("/monitor", handlers.Monitor.MonitorSSE)
		}

		adminAPI.GET("/answer-keys/:section", middleware.CacheControl(300), handlers.Assignment.ListAnswerKeys)
	}

	return router, autosaveLimiter
}
