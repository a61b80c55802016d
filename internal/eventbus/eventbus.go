// Package eventbus delivers scheduler [events.Event] values to connected
// WebSocket clients (the desktop shell's UI event bus).
//
// Bus accepts inbound WebSocket connections on an [http.Handler] and fans out
// every published event to all currently connected clients as JSON text
// frames. A slow or disconnected client never blocks Publish: each client has
// its own bounded outbound queue, and a client that falls behind is dropped.
package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/liveink/liveink/internal/events"
	"github.com/liveink/liveink/internal/observe"
)

// outboxSize bounds how many unsent events a single client may queue before
// it is considered slow and disconnected.
const outboxSize = 256

// envelope is the wire format for a single event frame: a type tag plus the
// event's own fields flattened into payload.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Bus fans scheduler events out to connected WebSocket clients.
type Bus struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	metrics *observe.Metrics
}

// New returns an empty, ready-to-use Bus.
func New() *Bus {
	return &Bus{clients: make(map[*client]struct{})}
}

// metricsOf returns b.metrics, falling back to the package-level default so
// a Bus built without a metrics value still records somewhere.
func (b *Bus) metricsOf() *observe.Metrics {
	if b.metrics != nil {
		return b.metrics
	}
	return observe.DefaultMetrics()
}

// client is one connected WebSocket peer.
type client struct {
	conn   *websocket.Conn
	outbox chan envelope
	done   chan struct{}
}

// Handler returns an [http.Handler] that accepts WebSocket upgrade requests
// and registers each connection as an event subscriber until it disconnects
// or the request context is cancelled.
func (b *Bus) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			slog.Warn("eventbus: accept failed", "err", err)
			return
		}

		c := &client{
			conn:   conn,
			outbox: make(chan envelope, outboxSize),
			done:   make(chan struct{}),
		}

		b.register(r.Context(), c)
		defer b.unregister(r.Context(), c)

		c.writeLoop(r.Context())
		conn.Close(websocket.StatusNormalClosure, "bus closed")
	})
}

func (b *Bus) register(ctx context.Context, c *client) {
	b.mu.Lock()
	wasEmpty := len(b.clients) == 0
	b.clients[c] = struct{}{}
	b.mu.Unlock()

	m := b.metricsOf()
	m.ActiveSubscribers.Add(ctx, 1)
	if wasEmpty {
		m.ActiveDocuments.Add(ctx, 1)
	}
}

func (b *Bus) unregister(ctx context.Context, c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.clients, c)
	close(c.done)
	nowEmpty := len(b.clients) == 0
	b.mu.Unlock()

	m := b.metricsOf()
	m.ActiveSubscribers.Add(ctx, -1)
	if nowEmpty {
		m.ActiveDocuments.Add(ctx, -1)
	}
}

// Publish encodes evt and enqueues it for delivery to every connected client.
// Clients whose outbox is full are dropped rather than allowed to block the
// publisher.
func (b *Bus) Publish(evt events.Event) {
	env := envelope{Type: eventType(evt), Payload: evt}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for c := range b.clients {
		select {
		case c.outbox <- env:
		default:
			slog.Warn("eventbus: client outbox full, dropping connection")
			go b.unregister(context.Background(), c)
		}
	}
}

// Close disconnects all clients and stops accepting new publishes.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	n := len(b.clients)
	for c := range b.clients {
		close(c.done)
		delete(b.clients, c)
	}
	b.mu.Unlock()

	if n > 0 {
		m := b.metricsOf()
		m.ActiveSubscribers.Add(context.Background(), int64(-n))
		m.ActiveDocuments.Add(context.Background(), -1)
	}
	return nil
}

// writeLoop drains the client's outbox onto the WebSocket connection until
// the client is unregistered or ctx is cancelled.
func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case env := <-c.outbox:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			data, err := json.Marshal(env)
			if err != nil {
				cancel()
				slog.Warn("eventbus: marshal failed", "type", env.Type, "err", err)
				continue
			}
			err = c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("eventbus: write failed, disconnecting client", "err", err)
				return
			}
		}
	}
}

// eventType returns the wire type tag for an event value.
func eventType(evt events.Event) string {
	switch evt.(type) {
	case events.DocumentUpdate:
		return "document-update"
	case events.TranscriptUpdate:
		return "transcript-update"
	case events.TodoUpdate:
		return "todo-update"
	case events.AgentStatus:
		return "agent-status"
	case events.MicVolume:
		return "mic-volume"
	case events.ShowToast:
		return "show-toast"
	case events.RecordingStarted:
		return "recording-started"
	case events.RecordingRenamed:
		return "recording-renamed"
	case events.RecordingsUpdated:
		return "recordings-updated"
	case events.SearchResults:
		return "search-results"
	default:
		return "unknown"
	}
}
