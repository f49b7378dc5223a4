package ws

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/selectorkit/internal/domain/registry"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/monitoring"
)

// Source is what the event stream needs from the registry.
type Source interface {
	Subscribe(fn registry.Observer) *registry.Subscription
	Health() registry.Health
}

// Message types.
const (
	TypeSystem = "system"
	TypeEvent  = "event"
	TypeHealth = "health"
	TypePong   = "pong"
	TypeError  = "error"
)

// Message is sent to clients.
type Message struct {
	Type      string                `json:"type"`
	Message   string                `json:"message,omitempty"`
	Event     *registry.EventRecord `json:"event,omitempty"`
	Health    *registry.Health      `json:"health,omitempty"`
	Dropped   int64                 `json:"dropped,omitempty"`
	Timestamp int64                 `json:"timestamp"`
}

// Request is received from clients.
//
//	{"type":"ping"}
//	{"type":"health"}
//	{"type":"filter","prefix":"/sites/shop/main"}
type Request struct {
	Type   string `json:"type"`
	Prefix string `json:"prefix,omitempty"`
}

// Options configures a Handler.
type Options struct {
	// Buffer is the per-connection event queue. Events beyond it are
	// dropped and counted. Default: 64.
	Buffer int
	// PingInterval is the keepalive period. Default: 30s.
	PingInterval time.Duration
	// WriteTimeout bounds each write. Default: 10s.
	WriteTimeout time.Duration
	// CheckOrigin overrides the upgrader origin check. Default: allow all.
	CheckOrigin func(r *http.Request) bool

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Handler streams registry change events over WebSocket.
type Handler struct {
	source   Source
	opts     Options
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader

	closing   chan struct{}
	closeOnce sync.Once
}

// NewHandler creates a new WebSocket handler
func NewHandler(source Source, opts Options) *Handler {
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(*http.Request) bool { return true }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		source:   source,
		opts:     opts,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		upgrader: websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
		closing:  make(chan struct{}),
	}
}

// Close ends every open stream with a going-away close frame. Hijacked
// connections are not covered by http.Server.Shutdown.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// HandleConnection upgrades the request and streams events until the
// client disconnects or the request context ends.
//
// All writes happen on this goroutine; a reader goroutine forwards client
// requests to it.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	var dropped atomic.Int64
	events := make(chan registry.EventRecord, h.opts.Buffer)
	sub := h.source.Subscribe(func(ev registry.ChangeEvent) {
		select {
		case events <- ev.Record():
		default:
			dropped.Add(1)
		}
	})
	defer sub.Unsubscribe()

	requests := make(chan Request)
	closed := make(chan struct{})
	done := make(chan struct{})
	defer close(done)
	go h.read(conn, requests, closed, done)

	if err := h.send(conn, Message{Type: TypeSystem, Message: "connected"}); err != nil {
		return
	}

	ping := time.NewTicker(h.opts.PingInterval)
	defer ping.Stop()

	var prefix string
	for {
		var msg Message
		select {
		case <-c.Request.Context().Done():
			return
		case <-closed:
			return
		case <-h.closing:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(h.opts.WriteTimeout))
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		case req := <-requests:
			switch req.Type {
			case "ping":
				msg = Message{Type: TypePong}
			case "health":
				health := h.source.Health()
				msg = Message{Type: TypeHealth, Health: &health}
			case "filter":
				prefix = req.Prefix
				msg = Message{Type: TypeSystem, Message: "filter set"}
			default:
				msg = Message{Type: TypeError, Message: "unknown message type"}
			}
		case rec := <-events:
			if prefix != "" && !strings.HasPrefix(rec.Path, prefix) {
				continue
			}
			msg = Message{Type: TypeEvent, Event: &rec, Dropped: dropped.Swap(0)}
		}

		if err := h.send(conn, msg); err != nil {
			h.logger.Debug("WebSocket write failed", zap.Error(err))
			return
		}
	}
}

// read forwards client requests until the connection fails.
func (h *Handler) read(conn *websocket.Conn, out chan<- Request, closed chan<- struct{}, done <-chan struct{}) {
	defer close(closed)
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", req.Type)
		}
		select {
		case out <- req:
		case <-done:
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msg Message) error {
	msg.Timestamp = time.Now().Unix()
	conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordWSMessage("out", msg.Type)
	}
	return nil
}
