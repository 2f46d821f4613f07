package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Dashboard4-0/MS5-App-sub002/engine"
	"github.com/Dashboard4-0/MS5-App-sub002/hub"
)

type Handlers struct {
	engine   *engine.Engine
	eventHub *hub.Hub
}

// NewRouter builds the HTTP API. The returned stop function closes all live
// connections.
func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	h := &Handlers{
		engine:   eng,
		eventHub: hub.New(eng.AppConfig().Hub.QueueSize),
	}
	h.eventHub.AttachEngine(eng)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Route("/api", func(r chi.Router) {
		r.Get("/latest", h.apiLatest)
		r.Get("/history", h.apiHistory)
		r.Get("/faults/active", h.apiActiveFaults)
		r.Get("/faults/events", h.apiFaultEvents)
		r.Get("/faults/downtime", h.apiFaultDowntime)
		r.Get("/oee", h.apiOEE)
		r.Get("/sources", h.apiSources)
		r.Get("/equipment", h.apiEquipment)
		r.Get("/health", h.apiHealthCheck)
		r.Get("/ws", h.eventHub.ServeWS)
	})

	stopFn := func() {
		h.eventHub.Close()
	}

	return r, stopFn
}
