package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentalspot/internal/infra/config"
	"rentalspot/internal/infra/obs"
)

type AvailabilityHTTP interface {
	Check(c *gin.Context)
	Calendar(c *gin.Context)
	PlaceHold(c *gin.Context)
	Confirm(c *gin.Context)
	Cancel(c *gin.Context)
	Release(c *gin.Context)
}

type AdminHTTP interface {
	ApplyBlock(c *gin.Context)
	ClearBlock(c *gin.Context)
	Generate(c *gin.Context)
	Reconcile(c *gin.Context)
	SweepHolds(c *gin.Context)
	Health(c *gin.Context)
}

type Handlers struct {
	Availability AvailabilityHTTP
	Admin        AdminHTTP
	Metrics      *obs.Metrics
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine without binding an address.
func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	if h.Metrics != nil {
		router.Use(h.Metrics.HTTPMiddleware())
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", "X-Request-ID"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	api := router.Group("/api/v1")
	if h.Availability != nil {
		api.GET("/properties/:id/availability", h.Availability.Check)
		api.GET("/properties/:id/calendar/:month", h.Availability.Calendar)
		api.POST("/holds", h.Availability.PlaceHold)
		api.POST("/holds/:id/release", h.Availability.Release)
		api.POST("/bookings/:id/confirm", h.Availability.Confirm)
		api.POST("/bookings/:id/cancel", h.Availability.Cancel)
	}
	if h.Admin != nil {
		admin := api.Group("/admin")
		admin.PUT("/properties/:id/blocks", h.Admin.ApplyBlock)
		admin.DELETE("/properties/:id/blocks", h.Admin.ClearBlock)
		admin.POST("/calendar/generate", h.Admin.Generate)
		admin.POST("/calendar/reconcile", h.Admin.Reconcile)
		admin.POST("/holds/sweep", h.Admin.SweepHolds)
		admin.GET("/health", h.Admin.Health)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
