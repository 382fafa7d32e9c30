// Package api assembles the HTTP surface of the schedule service: the
// gin router, its middleware chain and the request handlers.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/storage"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/handlers"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/middleware"
)

// Deps carries the wired components the HTTP API serves
type Deps struct {
	Imports   storage.ImportRepository
	Schedules storage.ScheduleRepository
	Service   handlers.ImportService
	Enqueuer  handlers.ImportEnqueuer  // nil runs accepted imports inline
	History   handlers.ImportHistory   // nil disables the history endpoint
	Activity  handlers.RecentActivity  // nil disables the recent-events endpoint
	Events    handlers.EventSubscriber // nil disables the live event stream
	Logger    *logrus.Logger
}

// Options tunes the HTTP surface
type Options struct {
	Version        string
	Auth           *middleware.JWTConfig   // nil disables authentication
	UploadLimiter  *middleware.RateLimiter // nil disables upload rate limiting
	MaxUploadBytes int64
	HealthChecks   map[string]handlers.CheckFunc
}

// NewRouter assembles the gin engine with its middleware and routes
func NewRouter(deps Deps, opts Options) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.ErrorHandler())

	health := handlers.NewHealthHandler(opts.Version)
	for name, check := range opts.HealthChecks {
		health.AddCheck(name, check)
	}
	router.GET("/health", health.Check)

	importHandler := handlers.NewImportHandler(
		deps.Imports, deps.Service, deps.Enqueuer, deps.History, deps.Logger, opts.MaxUploadBytes)
	scheduleHandler := handlers.NewScheduleHandler(deps.Schedules, opts.MaxUploadBytes)

	v1 := router.Group("/api/v1")
	if opts.Auth != nil {
		v1.Use(middleware.JWTAuth(opts.Auth))
	}

	// Uploads carry whole schedule exports; they get their own rate
	// limit and, when auth is on, a role check.
	uploads := v1.Group("")
	if opts.UploadLimiter != nil {
		uploads.Use(opts.UploadLimiter.RateLimit())
	}
	if opts.Auth != nil {
		uploads.Use(middleware.RequireRole("scheduler", "admin"))
	}
	uploads.POST("/programs/:program_id/imports", importHandler.UploadImport)
	uploads.POST("/schedule/preview", scheduleHandler.PreviewSchedule)

	v1.GET("/programs/:program_id/imports", importHandler.ListImports)
	v1.GET("/imports/:id", importHandler.GetImport)
	v1.GET("/imports/:id/history", importHandler.GetImportHistory)
	v1.POST("/imports/:id/cancel", importHandler.CancelImport)
	v1.GET("/programs/:program_id/schedule", scheduleHandler.GetSchedule)
	v1.GET("/programs/:program_id/schedule/tasks", scheduleHandler.ListTasks)

	eventsHandler := handlers.NewEventsHandler(deps.Activity, deps.Events, deps.Logger)
	v1.GET("/events/recent", eventsHandler.RecentEvents)
	v1.GET("/events/stream", eventsHandler.StreamEvents)

	return router
}
