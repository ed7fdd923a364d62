package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() {
	// Middleware stack
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(MetricsMiddleware(s.metrics))
	s.router.Use(RecoverMiddleware(s.errors, s.logger))

	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})

		r.Get("/stream", s.handleStream)

		r.Route("/theme", func(r chi.Router) {
			r.Get("/", s.handleGetTheme)           // GET /api/v1/theme
			r.Put("/", s.handleSetTheme)           // PUT /api/v1/theme
			r.Post("/toggle", s.handleToggleTheme) // POST /api/v1/theme/toggle
			r.Get("/export", s.handleExportTheme)  // GET /api/v1/theme/export
			r.Post("/import", s.handleImportTheme) // POST /api/v1/theme/import
			r.Get("/css", s.handleThemeCSS)        // GET /api/v1/theme/css
			r.Get("/presets", s.handleThemePresets)
		})

		r.Get("/document", s.handleDocument)

		r.Route("/i18n", func(r chi.Router) {
			r.Get("/language", s.handleGetLanguage)
			r.Put("/language", s.handleSetLanguage)
			r.Get("/languages", s.handleListLanguages)
			r.Get("/t/{key}", s.handleTranslate)
			r.Get("/format", s.handleFormat)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/consent", s.handleGetAnalyticsConsent)
			r.Put("/consent", s.handleSetAnalyticsConsent)
			r.Post("/events", s.handleTrackEvent)
		})

		r.Route("/errors", func(r chi.Router) {
			r.Post("/", s.handleCaptureError)
			r.Get("/breadcrumbs", s.handleBreadcrumbs)
			r.Put("/consent", s.handleSetErrorConsent)
		})

		r.Get("/preferences", s.handleListPreferences)
	})
}
