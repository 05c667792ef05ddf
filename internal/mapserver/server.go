// Package mapserver exposes the overlay pipeline and the interactive
// selection state over HTTP for a Leaflet front end.
package mapserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/sells-group/crime-map/internal/model"
	"github.com/sells-group/crime-map/internal/notice"
	"github.com/sells-group/crime-map/internal/pipeline"
	"github.com/sells-group/crime-map/internal/selection"
)

// Server serves calls, overlays, legends, notices, and the shared session.
type Server struct {
	pipeline *pipeline.Pipeline
	session  *selection.Controller
	notifier *notice.Notifier
	defaults Defaults

	hub      *hub
	upgrader websocket.Upgrader
}

// Defaults fill in query parameters a request leaves out.
type Defaults struct {
	Filters model.Filters
	Metric  model.Metric
	// Center is the map center when no located call is selected.
	Center LatLon
}

// LatLon is a WGS84 position.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// New creates a Server. notifier may be nil.
func New(p *pipeline.Pipeline, session *selection.Controller, notifier *notice.Notifier, defaults Defaults) *Server {
	if defaults.Metric == "" {
		defaults.Metric = p.Profile().DefaultMetric()
	}
	s := &Server{
		pipeline: p,
		session:  session,
		notifier: notifier,
		defaults: defaults,
		hub:      newHub(),
	}
	session.Subscribe(s.onEvent)
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	s.upgrader = newUpgrader(allowedOrigins)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/calls", s.calls)
	r.Get("/overlay", s.overlay)
	r.Get("/legend", s.legend)
	r.Get("/notices", s.notices)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Put("/", s.putSession)
		r.Get("/overlay", s.sessionOverlay)
		r.Get("/events", s.sessionEvents)
	})

	return r
}
