package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/salesdesk/internal/auth"
	"github.com/straye-as/salesdesk/internal/config"
	"github.com/straye-as/salesdesk/internal/http/handler"
	"github.com/straye-as/salesdesk/internal/http/middleware"
	"go.uber.org/zap"
)

type Router struct {
	cfg              *config.Config
	logger           *zap.Logger
	authMiddleware   *auth.Middleware
	rateLimiter      *middleware.RateLimiter
	healthHandler    *handler.HealthHandler
	tableHandler     *handler.TableHandler
	sessionHandler   *handler.SessionHandler
	savedViewHandler *handler.SavedViewHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	healthHandler *handler.HealthHandler,
	tableHandler *handler.TableHandler,
	sessionHandler *handler.SessionHandler,
	savedViewHandler *handler.SavedViewHandler,
) *Router {
	return &Router{
		cfg:              cfg,
		logger:           logger,
		authMiddleware:   authMiddleware,
		rateLimiter:      rateLimiter,
		healthHandler:    healthHandler,
		tableHandler:     tableHandler,
		sessionHandler:   sessionHandler,
		savedViewHandler: savedViewHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	r.Get("/health", rt.healthHandler.Live)
	r.Get("/health/ready", rt.healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		// Probes stay public
		r.Get("/health", rt.healthHandler.Live)
		r.Get("/health/ready", rt.healthHandler.Ready)

		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(rt.rateLimiter.LimitByUser)

			r.Route("/tables", func(r chi.Router) {
				r.Get("/", rt.tableHandler.Entities)
				r.Get("/{entity}", rt.tableHandler.Get)
				r.Post("/{entity}/sessions", rt.sessionHandler.Create)
			})

			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", rt.sessionHandler.Get)
				r.Delete("/", rt.sessionHandler.Delete)

				r.Put("/search", rt.sessionHandler.Search)
				r.Put("/stage", rt.sessionHandler.Stage)
				r.Delete("/filters", rt.sessionHandler.ClearFilters)
				r.Put("/filters/{name}", rt.sessionHandler.Filter)
				r.Post("/filters/{name}/toggle", rt.sessionHandler.ToggleFilter)
				r.Put("/date-range", rt.sessionHandler.DateRange)

				r.Post("/page", rt.sessionHandler.Page)
				r.Put("/page-size", rt.sessionHandler.PageSize)

				r.Post("/sort/{column}", rt.sessionHandler.Sort)
				r.Put("/columns/{column}", rt.sessionHandler.Column)
				r.Put("/selection", rt.sessionHandler.SelectPage)
				r.Put("/selection/{rowId}", rt.sessionHandler.SelectRow)

				r.Post("/refresh", rt.sessionHandler.Refresh)
				r.Post("/actions/priority", rt.sessionHandler.UpdatePriority)
				r.Post("/actions/status", rt.sessionHandler.UpdateStatus)
			})

			r.Route("/views", func(r chi.Router) {
				r.Get("/", rt.savedViewHandler.List)
				r.Post("/", rt.savedViewHandler.Create)
				r.Delete("/{id}", rt.savedViewHandler.Delete)
				r.Post("/{id}/open", rt.savedViewHandler.Open)
			})
		})
	})

	return r
}
