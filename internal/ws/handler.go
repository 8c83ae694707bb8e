package ws

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/offscreen/internal/domain/webview"
	"github.com/GriffinCanCode/offscreen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/GriffinCanCode/offscreen/internal/shared/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxInbound = 4096
)

// Message is a client request or a non-event server reply
type Message struct {
	Type       string          `json:"type"`
	InstanceID string          `json:"instance_id,omitempty"`
	Message    string          `json:"message,omitempty"`
	Snapshot   *types.Snapshot `json:"snapshot,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}

// Handler streams instance events over WebSocket connections
type Handler struct {
	registry *webview.Registry
	metrics  *monitoring.Metrics
	log      *zap.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger sets the handler logger
func WithLogger(log *zap.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithMetrics records connections and messages
func WithMetrics(m *monitoring.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithOrigins restricts upgrades to the listed origins. "*" allows all.
func WithOrigins(origins []string) Option {
	return func(h *Handler) {
		if len(origins) == 0 || slices.Contains(origins, "*") {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, origin)
		}
	}
}

// NewHandler creates a new WebSocket handler
func NewHandler(registry *webview.Registry, opts ...Option) *Handler {
	h := &Handler{
		registry: registry,
		log:      zap.NewNop(),
		now:      time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleConnection upgrades the request and streams the events of the
// instance named by :id until either side goes away.
func (h *Handler) HandleConnection(c *gin.Context) {
	instID := c.Param("id")
	if err := utils.ValidateID(instID, "instance id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inst, err := h.registry.Get(instID)
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, types.ErrInstanceDestroyed) {
			status = http.StatusGone
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	sub, err := inst.Subscribe()
	if err != nil {
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	log := h.log.With(zap.String("instance_id", inst.ID()), zap.String("subscription_id", sub.ID.String()))
	log.Debug("Event stream opened")

	replies := make(chan Message, 8)
	readDone := make(chan struct{})
	go h.readLoop(conn, inst, replies, readDone, log)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := h.send(conn, h.reply("system", inst.ID(), "subscribed")); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				_ = h.send(conn, h.reply("closed", inst.ID(), types.ErrInstanceDestroyed.Error()))
				h.close(conn, websocket.CloseNormalClosure, "instance destroyed")
				return
			}
			if err := h.sendEvent(conn, ev); err != nil {
				log.Debug("Event stream write failed", zap.Error(err))
				return
			}
		case msg := <-replies:
			if err := h.send(conn, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			log.Debug("Event stream closed by client")
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// readLoop answers client requests until the connection fails
func (h *Handler) readLoop(conn *websocket.Conn, inst *webview.Instance, replies chan<- Message, done chan<- struct{}, log *zap.Logger) {
	defer close(done)

	conn.SetReadLimit(maxInbound)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				log.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		var out Message
		switch msg.Type {
		case "ping":
			out = h.reply("pong", inst.ID(), "")
		case "snapshot":
			snap := inst.Snapshot()
			out = h.reply("snapshot", inst.ID(), "")
			out.Snapshot = &snap
		default:
			out = h.reply("error", inst.ID(), "unknown message type")
		}

		select {
		case replies <- out:
		default:
			log.Warn("Dropping reply, writer is behind", zap.String("type", out.Type))
		}
	}
}

func (h *Handler) reply(kind, instID, message string) Message {
	return Message{Type: kind, InstanceID: instID, Message: message, Timestamp: h.now().Unix()}
}

func (h *Handler) send(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	h.metrics.RecordWSMessage("out", msg.Type)
	return conn.WriteJSON(msg)
}

func (h *Handler) sendEvent(conn *websocket.Conn, ev types.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	h.metrics.RecordWSMessage("out", string(ev.Type))
	return conn.WriteJSON(ev)
}

func (h *Handler) close(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
