package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/cabinprep/internal/api/middleware"
	"github.com/kiranshivaraju/cabinprep/internal/api/response"
	"github.com/kiranshivaraju/cabinprep/internal/metrics"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit
	Metrics   *metrics.Metrics

	HealthHandler  http.Handler
	MetricsHandler http.Handler

	ListTargets    http.HandlerFunc
	RandomQuestion http.HandlerFunc

	StartSession http.HandlerFunc
	GetSession   http.HandlerFunc
	FeedMedia    http.HandlerFunc
	StopSession  http.HandlerFunc
	SaveSession  http.HandlerFunc
	ResetSession http.HandlerFunc

	ListReports http.HandlerFunc
	GetReport   http.HandlerFunc
	JobStatus   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.Instrument(deps.Metrics))

	// Public
	r.Get("/api/v1/health", orNotImplemented(handlerFunc(deps.HealthHandler)))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		if deps.Auth != nil {
			r.Use(deps.Auth.Authenticate)
		}
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Get("/api/v1/targets", orNotImplemented(deps.ListTargets))
		r.Get("/api/v1/targets/{name}/question", orNotImplemented(deps.RandomQuestion))

		r.Post("/api/v1/session", orNotImplemented(deps.StartSession))
		r.Get("/api/v1/session", orNotImplemented(deps.GetSession))
		r.Delete("/api/v1/session", orNotImplemented(deps.ResetSession))
		r.Put("/api/v1/session/media", orNotImplemented(deps.FeedMedia))
		r.Post("/api/v1/session/stop", orNotImplemented(deps.StopSession))
		r.Post("/api/v1/session/save", orNotImplemented(deps.SaveSession))

		r.Get("/api/v1/reports", orNotImplemented(deps.ListReports))
		r.Get("/api/v1/reports/{id}", orNotImplemented(deps.GetReport))

		r.Get("/api/v1/jobs/{kind}/{id}", orNotImplemented(deps.JobStatus))
	})

	return r
}

func handlerFunc(h http.Handler) http.HandlerFunc {
	if h == nil {
		return nil
	}
	return h.ServeHTTP
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
