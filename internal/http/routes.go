package http

import (
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/payboard/internal/auth"
	"github.com/sujalbistaa/payboard/internal/metrics"
	"github.com/sujalbistaa/payboard/internal/ws"
)

// Options holds the router's cross-cutting dependencies.
type Options struct {
	Verifier    *auth.Verifier
	CORSOrigins []string
	Limiter     *IPRateLimiter
	Metrics     *metrics.Metrics
}

// NewRouter returns an engine with every route and middleware installed.
func NewRouter(env *Env, opts Options) *gin.Engine {
	router := gin.New()
	SetupRoutes(router, env, opts)
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, env *Env, opts Options) {
	// --- Middleware ---
	router.Use(Recovery(env.Logger))
	router.Use(RequestLogger(env.Logger, opts.Metrics))
	router.Use(SecurityHeadersMiddleware())
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))

	requireAuth := AuthMiddleware(opts.Verifier, true)
	optionalAuth := AuthMiddleware(opts.Verifier, false)
	limit := RateLimitMiddleware(opts.Limiter)

	router.GET("/healthz", env.Health)

	// --- API Routes ---
	api := router.Group("/api")
	{
		api.GET("/salaries", requireAuth, env.ListSalaries)
		api.POST("/salaries", limit, optionalAuth, env.CreateSalary)
		api.GET("/salaries/stats", env.SalaryStats)
		api.GET("/salaries/:id", optionalAuth, env.GetSalary)

		api.POST("/votes", limit, requireAuth, env.CastVote)
		api.DELETE("/votes/:submissionId", limit, requireAuth, env.RemoveVote)
		api.GET("/votes/:submissionId/summary", optionalAuth, env.VoteSummary)

		api.POST("/reports", limit, requireAuth, env.CreateReport)

		moderation := api.Group("/reports", requireAuth, RequireModerator())
		moderation.GET("", env.ListReports)
		moderation.GET("/:id", env.GetReport)
		moderation.PATCH("/:id/review", env.ReviewReport)
		moderation.DELETE("/:id", env.DeleteReport)
	}

	// --- WebSocket Route ---
	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(env.Hub, c.Writer, c.Request)
	})
}
