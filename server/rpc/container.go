package rpc

import (
	"net/rpc"

	"github.com/go-chi/chi/v5"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/rest"
)

// Dependency injection container.
func Container(svc *rest.Service) (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName("Service", &Service{svc: svc}); err != nil {
		return nil, err
	}
	return server, nil
}

func ApplyRouter(server *rpc.Server, hub *Hub) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/ws", WebSocket(server))
		r.Post("/http", Post(server))
		r.Get("/events", Events(hub))
	}
}
