package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/tasker-api/internal/api"
	apiMiddleware "github.com/phrazzld/tasker-api/internal/api/middleware"
	"github.com/rs/cors"
)

// setupRouter registers every route with its middleware stack.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(app.config.Server.WriteTimeout))
	r.Use(app.corsHandler())

	authHandler := api.NewAuthHandler(app.authService, app.logger)
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	tagHandler := api.NewTagHandler(app.tagService, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	var pinger api.Pinger
	if app.db != nil {
		pinger = app.db
	}
	r.Get("/health", api.NewHealthHandler(pinger).Health)

	r.Route("/api", func(r chi.Router) {
		// Public authentication endpoints
		r.Group(func(r chi.Router) {
			if app.authLimiter != nil {
				r.Use(apiMiddleware.RateLimit(app.authLimiter))
			}
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/refresh", authHandler.RefreshToken)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.ListTasks)
				r.Post("/", taskHandler.CreateTask)
				r.Get("/deleted", taskHandler.ListDeletedTasks)
				r.Get("/stats", taskHandler.Stats)
				r.Post("/bulk_action", taskHandler.BulkAction)
				r.Get("/{id}", taskHandler.GetTask)
				r.Patch("/{id}", taskHandler.UpdateTask)
				r.Delete("/{id}", taskHandler.DeleteTask)
				r.Post("/{id}/restore", taskHandler.RestoreTask)
			})

			r.Route("/tags", func(r chi.Router) {
				r.Get("/", tagHandler.ListTags)
				r.Post("/", tagHandler.CreateTag)
				r.Patch("/{id}", tagHandler.UpdateTag)
				r.Delete("/{id}", tagHandler.DeleteTag)
			})
		})
	})

	return r
}

func (app *application) corsHandler() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   app.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", apiMiddleware.TraceHeader},
		ExposedHeaders:   []string{apiMiddleware.TraceHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler
}
