package web

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/KelvinMNH/FaceEventos/internal/web/handlers"
	"github.com/KelvinMNH/FaceEventos/internal/web/middleware"
	"github.com/KelvinMNH/FaceEventos/internal/web/static"
)

// requestTimeout bounds every API call except the record stream.
const requestTimeout = 30 * time.Second

func (s *Server) setupRoutes() {
	eventsHandler := handlers.NewEventsHandler(s.svc, s.broadcaster)
	participantsHandler := handlers.NewParticipantsHandler(s.svc)
	accessHandler := handlers.NewAccessHandler(s.svc)
	statusHandler := handlers.NewStatusHandler(s.svc, s.broadcaster)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireOperatorToken(s.config.Web.OperatorToken))

		// Streams are long-lived and skip the request timeout
		r.Get("/events/{id}/records/stream", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Get("/status", statusHandler.Get)

			// Events
			r.Get("/events", eventsHandler.List)
			r.Post("/events", eventsHandler.Create)
			r.Get("/events/active", eventsHandler.Active)
			r.Post("/events/{id}/activate", eventsHandler.Activate)
			r.Post("/events/{id}/finalize", eventsHandler.Finalize)
			r.Post("/events/{id}/reopen", eventsHandler.Reopen)
			r.Get("/events/{id}/summary", eventsHandler.Summary)
			r.Get("/events/{id}/records", eventsHandler.Records)

			// Roster
			r.Get("/participants", participantsHandler.List)
			r.Get("/participants/search", participantsHandler.Search)
			r.Post("/participants", participantsHandler.Enroll)
			r.Put("/participants/{id}/template", participantsHandler.UpdateTemplate)

			// Admission
			r.Post("/scan", accessHandler.Scan)
			r.Post("/access/confirm", accessHandler.Confirm)
			r.Post("/access/create", accessHandler.Create)
			r.Post("/access/companions", accessHandler.Companion)
			r.Post("/access/exit", accessHandler.Exit)
		})
	})

	// Serve the embedded dashboard
	s.router.Get("/*", s.serveStatic)
}

// serveStatic serves the embedded dashboard, falling back to index.html.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	fs := static.GetFileSystem()
	p := r.URL.Path
	if p == "/" {
		p = "/index.html"
	}

	f, err := fs.Open(p)
	if err != nil {
		f, err = fs.Open("/index.html")
		p = "/index.html"
	}
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	if stat, err := f.Stat(); err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if strings.HasPrefix(p, "/assets/") {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}
