package rpc

import (
	"log/slog"
	"sync"

	"github.com/asaskevich/EventBus"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/kv"
)

const clientBuffer = 64

// Hub fans job updates out of the bus to every connected event stream. A
// client that does not keep up loses updates instead of stalling the
// publisher.
type Hub struct {
	bus     EventBus.Bus
	mu      sync.Mutex
	clients map[chan internal.Job]struct{}
}

func NewHub(bus EventBus.Bus) (*Hub, error) {
	h := &Hub{
		bus:     bus,
		clients: make(map[chan internal.Job]struct{}),
	}
	if err := bus.Subscribe(kv.TopicJobUpdate, h.broadcast); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Hub) broadcast(job internal.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c <- job:
		default:
			slog.Debug("event client lagging, update dropped", slog.String("id", job.Id))
		}
	}
}

func (h *Hub) join() chan internal.Job {
	c := make(chan internal.Job, clientBuffer)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	return c
}

func (h *Hub) leave(c chan internal.Job) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *Hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Close() error {
	return h.bus.Unsubscribe(kv.TopicJobUpdate, h.broadcast)
}
