package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType tags messages sent to websocket clients.
type MessageType string

const (
	// MessageAssessment carries every assessment the service produces.
	MessageAssessment MessageType = "assessment"
	// MessageResult answers a client's predict request.
	MessageResult MessageType = "result"
	MessageError  MessageType = "error"
	MessagePong   MessageType = "pong"
)

// Message is the envelope of every server-to-client frame.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id"`
	RequestID string          `json:"request_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ClientMessage is a frame sent by a client: {"type":"predict","record":{...}}
// or {"type":"ping"}.
type ClientMessage struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Record json.RawMessage `json:"record,omitempty"`
}

// RequestHandler answers an interactive predict request.
type RequestHandler func(ctx context.Context, record json.RawMessage) (any, error)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
	// closed by Run once the client is in the set
	ready chan struct{}
}

// PredictionHub fans assessments out to websocket clients.
type PredictionHub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	upgrader   websocket.Upgrader

	handler RequestHandler
	logger  *zap.Logger
	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPredictionHub creates a hub; call Run before serving clients.
func NewPredictionHub(logger *zap.Logger, metrics *Metrics, allowedOrigins []string) *PredictionHub {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PredictionHub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger.Named("ws"),
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// SetRequestHandler enables interactive predict requests. It must be called
// before Run.
func (h *PredictionHub) SetRequestHandler(handler RequestHandler) {
	h.handler = handler
}

// Run owns the client set until Stop is called.
func (h *PredictionHub) Run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			close(c.ready)
			h.clientsChanged(n)
			h.logger.Debug("client connected", zap.String("client", c.id), zap.Int("clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.clientsChanged(n)
			h.logger.Debug("client disconnected", zap.String("client", c.id), zap.Int("clients", n))

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// slow consumer
					close(c.send)
					delete(h.clients, c)
				}
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.clientsChanged(n)

		case <-h.ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.clientsChanged(0)
			return
		}
	}
}

func (h *PredictionHub) clientsChanged(n int) {
	if h.metrics != nil {
		h.metrics.SetWebSocketClients(n)
	}
}

// Stop disconnects every client and waits for Run to return.
func (h *PredictionHub) Stop() {
	h.cancel()
	<-h.done
}

func (h *PredictionHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and starts the client pumps.
func (h *PredictionHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), id: uuid.NewString(), ready: make(chan struct{})}

	select {
	case h.register <- c:
		<-c.ready
	case <-h.ctx.Done():
		conn.Close()
		return
	}
	go h.writePump(c)
	go h.readPump(c)
}

// BroadcastAssessment queues an assessment for every client. It never blocks:
// when the queue is full the message is dropped.
func (h *PredictionHub) BroadcastAssessment(assessment any) {
	payload, err := h.encode(Message{Type: MessageAssessment}, assessment)
	if err != nil {
		h.logger.Error("encode assessment", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("broadcast queue full, dropping assessment")
	}
}

func (h *PredictionHub) encode(msg Message, data any) ([]byte, error) {
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now().UTC()
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

func (h *PredictionHub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("websocket write failed", zap.String("client", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *PredictionHub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(c, Message{Type: MessageError, Error: "message is not valid JSON"}, nil)
			continue
		}
		h.handleClientMessage(c, msg)
	}
}

func (h *PredictionHub) handleClientMessage(c *client, msg ClientMessage) {
	switch msg.Type {
	case "ping":
		h.reply(c, Message{Type: MessagePong, RequestID: msg.ID}, nil)
	case "predict":
		if h.handler == nil {
			h.reply(c, Message{Type: MessageError, RequestID: msg.ID, Error: "predictions are not accepted on this stream"}, nil)
			return
		}
		result, err := h.handler(h.ctx, msg.Record)
		if err != nil {
			h.reply(c, Message{Type: MessageError, RequestID: msg.ID, Error: err.Error()}, nil)
			return
		}
		h.reply(c, Message{Type: MessageResult, RequestID: msg.ID}, result)
	default:
		h.reply(c, Message{Type: MessageError, RequestID: msg.ID, Error: "unknown message type " + msg.Type}, nil)
	}
}

func (h *PredictionHub) reply(c *client, msg Message, data any) {
	payload, err := h.encode(msg, data)
	if err != nil {
		h.logger.Error("encode reply", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- payload:
	default:
		h.logger.Warn("client send buffer full, dropping reply", zap.String("client", c.id))
	}
}
