package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/paventhan183/dr-appointment/libs/auth"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/events"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/storage"
)

type RouterConfig struct {
	Store  storage.Store
	Events events.Publisher
	Logger *slog.Logger
	// Issuer enables the login route and the bearer gate; nil serves every
	// route without authentication.
	Issuer *auth.Issuer
	// Base serves everything outside /api, such as /healthz and /readyz.
	Base http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	appts := NewAppointmentHandler(cfg.Store, cfg.Events, cfg.Logger)

	r := chi.NewRouter()
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Route("/api", func(api chi.Router) {
		if cfg.Issuer != nil {
			api.Use(auth.RequireBearer(cfg.Issuer, publicRoute))
			api.Post("/auth/login", NewAuthHandler(cfg.Issuer, cfg.Logger).Login)
		}

		api.Get("/keepwake", appts.KeepWake)
		api.Get("/bill-details/{phone}", appts.BillDetails)

		api.Route("/appointments", func(ar chi.Router) {
			ar.Get("/", appts.List)
			ar.Post("/", appts.Create)
			ar.Delete("/", appts.DeleteAll)
			ar.Get("/by-date", appts.ListByDate)
			ar.Put("/{id}", appts.Update)
			ar.Delete("/{id}", appts.Delete)
		})
	})

	if cfg.Base != nil {
		r.Handle("/healthz", cfg.Base)
		r.Handle("/readyz", cfg.Base)
	}
	return r
}
