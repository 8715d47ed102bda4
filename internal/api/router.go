// Package api implements the HTTP API of the todobot backend: task and
// category CRUD scoped by the X-Telegram-ID header, immediate task
// notification and a health probe.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/edgard/todobot/internal/database"
	"github.com/edgard/todobot/internal/logger"
	"github.com/edgard/todobot/internal/notify"
)

// TaskNotifier sends the reminder for one task immediately.
type TaskNotifier interface {
	NotifyTask(ctx context.Context, id string) notify.Outcome
}

// Deps holds what the API handlers need.
type Deps struct {
	Logger   *slog.Logger
	Store    database.Store
	Notifier TaskNotifier
}

// NewRouter builds the API router.
func NewRouter(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.With("component", "api")

	tasks := &TaskHandler{store: deps.Store, notifier: deps.Notifier, logger: log.With("handler", "tasks")}
	categories := &CategoryHandler{store: deps.Store, logger: log.With("handler", "categories")}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(traceMiddleware)
	r.Use(requestLogger(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", tasks.List)
			r.Post("/", tasks.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", tasks.Get)
				r.Put("/", tasks.Update)
				r.Patch("/", tasks.Patch)
				r.Delete("/", tasks.Delete)
				r.Post("/complete", tasks.Complete)
				r.Post("/uncomplete", tasks.Uncomplete)
				r.Post("/notify", tasks.Notify)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categories.List)
			r.Post("/", categories.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", categories.Get)
				r.Put("/", categories.Rename)
				r.Patch("/", categories.Rename)
				r.Delete("/", categories.Delete)
			})
		})
	})

	return r
}
