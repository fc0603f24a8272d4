package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/selfcinema/server/internal/metrics"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)

	r.Get("/", c.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/rooms/{room-id}", func(r chi.Router) {
		r.Get("/playback", c.GetPlayback)
		r.Post("/playback", c.SetPlayback)
		r.Get("/messages", c.GetMessages)
		r.Post("/messages", c.PostMessage)
		r.Get("/members", c.GetOnlineMembers)
		r.HandleFunc("/events", c.ListenRoom)
	})

	return r
}
