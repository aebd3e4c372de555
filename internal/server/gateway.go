package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"

	"github.com/praneethkukunuru/omi-all/internal/events"
)

// Gateway bridges the notification bus to presentation-layer clients
// over socket.io. Each bus event is broadcast under its type name to
// every connected client; with nobody connected the broadcast is a
// no-op, matching the channel's best-effort contract.
type Gateway struct {
	sio    *socketio.Server
	bus    *events.Bus
	logger *slog.Logger

	cancel func()
	done   chan struct{}
}

// NewGateway creates the socket.io server. The receiver is intended for
// trusted local presentation clients, so all origins are accepted.
func NewGateway(bus *events.Bus, logger *slog.Logger) *Gateway {
	allowOriginFunc := func(r *http.Request) bool {
		return true
	}

	sio := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})

	g := &Gateway{
		sio:    sio,
		bus:    bus,
		logger: logger,
		done:   make(chan struct{}),
	}

	sio.OnConnect("/", func(conn socketio.Conn) error {
		conn.SetContext("")
		g.logger.Info("Presentation client connected", slog.String("client_id", conn.ID()))
		return nil
	})

	sio.OnError("/", func(conn socketio.Conn, err error) {
		g.logger.Warn("Socket.io error", slog.String("error", err.Error()))
	})

	sio.OnDisconnect("/", func(conn socketio.Conn, reason string) {
		g.logger.Info("Presentation client disconnected", slog.String("reason", reason))
	})

	return g
}

// Attach mounts the socket.io endpoint on the HTTP mux.
func (g *Gateway) Attach(mux *http.ServeMux) {
	mux.Handle("/socket.io/", g.sio)
}

// Start runs the socket.io engine and begins forwarding bus events.
func (g *Gateway) Start() {
	go func() {
		if err := g.sio.Serve(); err != nil {
			g.logger.Error("Socket.io serve error", slog.String("error", err.Error()))
		}
	}()

	ch, cancel := g.bus.Subscribe()
	g.cancel = cancel

	go func() {
		defer close(g.done)
		for ev := range ch {
			g.broadcast(ev)
		}
	}()
}

// broadcast emits the event to every client under its type name. The
// payload travels as a JSON string; the event name carries the type.
func (g *Gateway) broadcast(ev events.Event) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		g.logger.Error("Failed to marshal event",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
		return
	}

	g.sio.BroadcastToNamespace("/", string(ev.Type), string(payload))
}

// Stop detaches from the bus and shuts the socket.io server down.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
		<-g.done
	}

	if err := g.sio.Close(); err != nil {
		g.logger.Warn("Failed to close socket.io server", slog.String("error", err.Error()))
	}
}
