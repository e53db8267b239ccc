package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/doorcount/backend/api/handler"
)

type Handlers struct {
	Auth      *apiHandler.AuthHandler
	Counter   *apiHandler.CounterHandler
	Stream    *apiHandler.StreamHandler
	Dashboard *apiHandler.DashboardHandler
	Archive   *apiHandler.ArchiveHandler
	Health    *apiHandler.HealthHandler
}

func New(handlers Handlers, adminOnly func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.GET("/api/v1/auth/me", adminOnly(handlers.Auth.Me))
	r.POST("/api/v1/auth/logout", adminOnly(handlers.Auth.Logout))

	// Door counter: staff devices record events and watch the live count.
	r.GET("/api/v1/counter", handlers.Counter.Current)
	r.POST("/api/v1/counter/record", handlers.Counter.Record)
	r.GET("/api/v1/counter/stream", handlers.Stream.Live)

	// Admin-only routes
	r.POST("/api/v1/counter/reset", adminOnly(handlers.Counter.Reset))
	r.GET("/api/v1/dashboard/{date}", adminOnly(handlers.Dashboard.Day))
	r.GET("/api/v1/archives", adminOnly(handlers.Archive.List))
	r.GET("/api/v1/archives/{id}", adminOnly(handlers.Archive.Get))

	return r
}
