package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter собирает маршруты веб-интерфейса.
func NewRouter(h *Handlers, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", h.HomeHandler)
	r.Get("/healthz", h.HealthHandler)

	r.Post("/intake", h.IntakeHandler)
	r.Post("/analyze", h.AnalyzeHandler)

	r.Route("/log", func(r chi.Router) {
		r.Get("/", h.LogHandler)
		r.Get("/{id}", h.EntryHandler)
		r.Get("/{id}/report", h.ReportHandler)
	})

	r.Route("/camera", func(r chi.Router) {
		r.Post("/open", h.CameraOpenHandler)
		r.Post("/snapshot", h.CameraSnapshotHandler)
		r.Post("/retake", h.CameraRetakeHandler)
		r.Post("/use", h.CameraUseHandler)
		r.Post("/close", h.CameraCloseHandler)
		r.Get("/preview.jpg", h.CameraPreviewHandler)
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
