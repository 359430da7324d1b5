package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stackmesh/commerce-api/internal/api"
	"github.com/stackmesh/commerce-api/internal/api/middleware"
)

// routes assembles the router: public auth and health endpoints, the
// authenticated API surface, and the metrics endpoint.
func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.Trace(app.logger))
	r.Use(chimw.Recoverer)
	r.Use(app.metrics.Middleware)

	// The limiter must run after the auth middleware so authenticated
	// traffic is keyed by user rather than by IP. On the public auth
	// routes there is no user and the limiter keys by IP.
	var limitRate func(http.Handler) http.Handler
	if app.config.Server.RateLimitPerMinute > 0 {
		limitRate = middleware.RateLimit(app.cache, app.config.Server.RateLimitPerMinute, app.logger)
	}

	authHandler := api.NewAuthHandler(app.userService, app.logger)
	userHandler := api.NewUserHandler(app.userService, app.logger)
	productHandler := api.NewProductHandler(app.productService, app.logger)
	orderHandler := api.NewOrderHandler(app.orderService, app.logger)
	taskHandler := api.NewTaskHandler(app.dispatcher, app.logger)
	reportHandler := api.NewReportHandler(app.reportService, app.logger)
	healthHandler := api.NewHealthHandler(app.db, app.cache, app.logger)

	requireAuth := middleware.Auth(app.jwtService, app.logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if limitRate != nil {
				r.Use(limitRate)
			}
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			if limitRate != nil {
				r.Use(limitRate)
			}

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", userHandler.Me)
				r.Get("/", userHandler.List)
				r.Get("/{id}", userHandler.Get)
				r.Patch("/{id}", userHandler.Update)
				r.Delete("/{id}", userHandler.Delete)
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", productHandler.List)
				r.Post("/", productHandler.Create)
				r.Post("/batch", productHandler.CreateBatch)
				r.Patch("/batch", productHandler.UpdateBatch)
				r.Delete("/batch", productHandler.DeleteBatch)
				r.Get("/{id}", productHandler.Get)
				r.Patch("/{id}", productHandler.Update)
				r.Delete("/{id}", productHandler.Delete)
				r.Post("/{id}/stock", productHandler.AdjustStock)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", orderHandler.List)
				r.Post("/", orderHandler.Create)
				r.Get("/mine", orderHandler.ListMine)
				r.Get("/{id}", orderHandler.Get)
				r.Patch("/{id}/status", orderHandler.UpdateStatus)
				r.Post("/{id}/cancel", orderHandler.Cancel)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/{id}", taskHandler.Status)
				r.Post("/{id}/revoke", taskHandler.Revoke)
			})

			r.Route("/reports/sales", func(r chi.Router) {
				r.Post("/", reportHandler.Submit)
				r.Get("/{id}", reportHandler.Status)
				r.Get("/{id}/result", reportHandler.Result)
				r.Post("/{id}/cancel", reportHandler.Cancel)
			})
		})
	})

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	return r
}
