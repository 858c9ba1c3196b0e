// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"tourplanner/config"
	"tourplanner/internal/delivery/api/router/handler"
	"tourplanner/internal/infra/metrics"
)

type RouterParams struct {
	fx.In

	SessionHandler *handler.SessionHandler
	TourHandler    *handler.TourHandler
	EventHandler   *handler.EventHandler
	Metrics        *metrics.Metrics
	Config         *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	sessionHandler *handler.SessionHandler
	tourHandler    *handler.TourHandler
	eventHandler   *handler.EventHandler
	metrics        *metrics.Metrics
	config         *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		sessionHandler: params.SessionHandler,
		tourHandler:    params.TourHandler,
		eventHandler:   params.EventHandler,
		metrics:        params.Metrics,
		config:         params.Config,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	apiV1 := e.Group("/api/v1")

	sessionsGroup := apiV1.Group("/sessions")
	{
		sessionsGroup.POST("", r.sessionHandler.CreateSession)
		sessionsGroup.GET("", r.sessionHandler.ListSessions)
		sessionsGroup.GET("/:id", r.sessionHandler.GetSession)
		sessionsGroup.DELETE("/:id", r.sessionHandler.DeleteSession)
		sessionsGroup.PUT("/:id/network", r.sessionHandler.LoadNetwork)
		sessionsGroup.PUT("/:id/requests", r.sessionHandler.LoadRequests)
	}

	// Tour routes of one session
	tourGroup := sessionsGroup.Group("/:id")
	{
		tourGroup.GET("/tour", r.tourHandler.GetTour)
		tourGroup.GET("/legs", r.tourHandler.GetLeg)
		tourGroup.POST("/recompute", r.tourHandler.Recompute)
		tourGroup.POST("/cancel", r.tourHandler.CancelComputation)

		tourGroup.GET("/requests", r.tourHandler.ListRequests)
		tourGroup.POST("/requests", r.tourHandler.AddRequest)
		tourGroup.DELETE("/requests/:requestId", r.tourHandler.RemoveRequest)
		tourGroup.POST("/adding", r.tourHandler.BeginAddRequest)
		tourGroup.DELETE("/adding", r.tourHandler.CancelAddRequest)

		tourGroup.DELETE("/demands/:demandId", r.tourHandler.RemoveDemand)
		tourGroup.PATCH("/demands/:demandId", r.tourHandler.SetServiceDuration)
		tourGroup.POST("/reorder", r.tourHandler.Reorder)
		tourGroup.POST("/undo", r.tourHandler.Undo)
		tourGroup.POST("/redo", r.tourHandler.Redo)

		tourGroup.PUT("/selection", r.tourHandler.Select)
		tourGroup.DELETE("/selection", r.tourHandler.ClearSelection)

		tourGroup.GET("/events", r.eventHandler.Stream)
	}
}

// RegisterMetricsRoute exposes the Prometheus registry when enabled.
func (r *router) RegisterMetricsRoute(e *echo.Echo) {
	if r.config.Metrics != nil && r.config.Metrics.Enabled {
		e.GET(r.config.Metrics.Path, echo.WrapHandler(r.metrics.Handler()))
	}
}
