package rpc

import (
	"io"
	"log/slog"
	"net/http"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn adapts a websocket to the stream expected by the jsonrpc codec. Each
// written response becomes one text message.
type wsConn struct {
	conn *websocket.Conn
	r    io.Reader
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			_, r, err := c.conn.NextReader()
			if err != nil {
				return 0, err
			}
			c.r = r
		}

		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return 0, err
	}

	n, err := w.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.Close()
}

func (c *wsConn) Close() error { return c.conn.Close() }

// WebSocket serves JSON-RPC requests over a websocket until the client
// disconnects.
func WebSocket(server *rpc.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", slog.Any("err", err))
			return
		}

		server.ServeCodec(jsonrpc.NewServerCodec(&wsConn{conn: conn}))
	}
}

type httpConn struct {
	io.Reader
	io.Writer
}

func (httpConn) Close() error { return nil }

// Post serves a single JSON-RPC request carried by the request body.
func Post(server *rpc.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		w.Header().Set("Content-Type", "application/json")

		if err := server.ServeRequest(jsonrpc.NewServerCodec(httpConn{r.Body, w})); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
}

// Events pushes job snapshots to the client as they change. The optional id
// query parameter restricts the stream to a single job.
func Events(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", slog.Any("err", err))
			return
		}
		defer conn.Close()

		var (
			filter  = r.URL.Query().Get("id")
			updates = hub.join()
			closed  = make(chan struct{})
		)
		defer hub.leave(updates)

		// reads are only needed to notice the client going away
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case job := <-updates:
				if filter != "" && job.Id != filter {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(job); err != nil {
					slog.Debug("event stream closed", slog.Any("err", err))
					return
				}
			}
		}
	}
}
