package http

import (
	"log/slog"
	"net/http"
	"time"

	"planner/internal/auth"
	"planner/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type API struct {
	Service *service.Service
	Auth    *auth.Manager
	Origins []string
	Log     *slog.Logger
}

func (a *API) Router() http.Handler {
	if a.Log == nil {
		a.Log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(a.loggingMiddleware)
	r.Use(a.corsMiddleware)

	r.Get("/", a.handleRoot)
	r.Get("/health", a.handleHealth)
	r.Post("/users", a.handleRegister)
	r.Post("/token", a.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(a.authMiddleware)

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", a.handleMe)
			r.Get("/tasks", a.handleMyTasks)
			r.Get("/goals", a.handleMyGoals)
			r.Get("/activity", a.handleGetActivity)
			r.Post("/activity/increment", a.handleIncrementActivity)
			r.Get("/activity/debug", a.handleActivityDebug)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", a.handleListGoals)
			r.Post("/", a.handleCreateGoal)
			r.Get("/{id}", a.handleGetGoal)
			r.Put("/{id}", a.handleUpdateGoal)
			r.Delete("/{id}", a.handleDeleteGoal)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", a.handleListTasks)
			r.Post("/", a.handleCreateTask)
			r.Get("/{id}", a.handleGetTask)
			r.Put("/{id}", a.handleReplaceTask)
			r.Patch("/{id}", a.handlePatchTask)
			r.Delete("/{id}", a.handleDeleteTask)
			r.Patch("/{id}/complete", a.handleCompleteTask)
			r.Post("/{id}/complete", a.handleCompleteTask)
		})
	})

	return r
}
