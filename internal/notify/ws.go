package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// writeTimeout bounds how long a single WebSocket send may take before the
// connection manager gives up on a subscriber.
const writeTimeout = 5 * time.Second

// clientMessage is the JSON shape for client -> server WebSocket frames.
type clientMessage struct {
	Action string `json:"action"` // "subscribe", "unsubscribe", "ping"
	Topic  string `json:"topic,omitempty"`
}

// ConnectionManager bridges WebSocket connections to the Broker: each
// subscribed topic gets its own goroutine draining the Broker's channel and
// forwarding frames to the connection's single writer, mirroring the
// teacher's pkg/events.ConnectionManager shape (subscriber registry behind
// a mutex, broadcast/send paths release the lock before blocking writes).
type ConnectionManager struct {
	broker *Broker
	log    *slog.Logger

	mu    sync.Mutex
	conns map[string]*connection
}

// NewConnectionManager builds a ConnectionManager delivering from broker.
func NewConnectionManager(broker *Broker, log *slog.Logger) *ConnectionManager {
	if log == nil {
		log = slog.Default()
	}
	return &ConnectionManager{broker: broker, log: log, conns: make(map[string]*connection)}
}

type connection struct {
	id     string
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // serializes writes onto conn (single writer discipline)
	topics map[string]context.CancelFunc
}

// HandleConnection manages one client's WebSocket lifecycle: registers it,
// sends an initial acknowledgement, and processes subscribe/unsubscribe
// frames until the socket closes. Blocks until then.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, ws *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &connection{
		id:     uuid.New().String(),
		conn:   ws,
		ctx:    ctx,
		cancel: cancel,
		topics: make(map[string]context.CancelFunc),
	}

	m.register(c)
	defer m.unregister(c)

	m.send(c, map[string]string{"type": "connection.established", "connection_id": c.id})

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.log.Warn("invalid websocket frame", "connection_id", c.id, "error", err)
			continue
		}
		m.handle(c, msg)
	}
}

func (m *ConnectionManager) register(c *connection) {
	m.mu.Lock()
	m.conns[c.id] = c
	m.mu.Unlock()
}

func (m *ConnectionManager) unregister(c *connection) {
	m.mu.Lock()
	for topic, stop := range c.topics {
		stop()
		m.broker.Unsubscribe(topic, c.id)
	}
	delete(m.conns, c.id)
	m.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

func (m *ConnectionManager) handle(c *connection, msg clientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.Topic == "" {
			return
		}
		m.subscribe(c, msg.Topic)
	case "unsubscribe":
		if msg.Topic == "" {
			return
		}
		m.unsubscribeOne(c, msg.Topic)
	case "ping":
		m.send(c, map[string]string{"type": "pong"})
	}
}

// subscribe starts one cooperative forwarding task per topic per
// subscriber (§4.9 "one cooperative task per active subscriber"); broker
// dispatch into that task's channel is always non-blocking.
func (m *ConnectionManager) subscribe(c *connection, topic string) {
	m.mu.Lock()
	if _, already := c.topics[topic]; already {
		m.mu.Unlock()
		return
	}
	topicCtx, stop := context.WithCancel(c.ctx)
	c.topics[topic] = stop
	m.mu.Unlock()

	ch := m.broker.Subscribe(topic, c.id)
	go m.forward(topicCtx, c, topic, ch)

	m.send(c, map[string]string{"type": "subscription.confirmed", "topic": topic})
}

func (m *ConnectionManager) unsubscribeOne(c *connection, topic string) {
	m.mu.Lock()
	stop, ok := c.topics[topic]
	if ok {
		delete(c.topics, topic)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	stop()
	m.broker.Unsubscribe(topic, c.id)
}

func (m *ConnectionManager) forward(ctx context.Context, c *connection, topic string, ch <-chan Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			m.send(c, n)
		}
	}
}

func (m *ConnectionManager) send(c *connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.Warn("failed to marshal websocket message", "connection_id", c.id, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		m.log.Warn("failed to send websocket message", "connection_id", c.id, "error", err)
	}
}

// ActiveConnections returns the number of live WebSocket connections, for
// health/diagnostics endpoints.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}
