package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
	sendBuffer     = 256
)

// ItemTopic carries snapshots of one item to everyone watching it
func ItemTopic(itemID string) string {
	return "item:" + itemID
}

// UserTopic carries notifications addressed to one user
func UserTopic(userID string) string {
	return "user:" + userID
}

// Manager fans messages out to the clients subscribed to a topic.
// Membership changes only happen on the Run goroutine.
type Manager struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}

	logger *slog.Logger
}

// Client represents a WebSocket client connection
type Client struct {
	ID    string
	Topic string
	Conn  *websocket.Conn
	Send  chan []byte
}

// BroadcastMessage represents a message to broadcast to all clients of a topic
type BroadcastMessage struct {
	Topic   string
	Payload []byte
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, sendBuffer),
		done:       make(chan struct{}),
		topics:     make(map[string]map[*Client]struct{}),
		logger:     logger,
	}
}

// Run owns the subscriber sets until ctx is done, then disconnects every client
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return nil

		case client := <-m.register:
			m.registerClient(client)

		case client := <-m.unregister:
			m.removeClient(client)

		case message := <-m.broadcast:
			m.broadcastToTopic(message.Topic, message.Payload)
		}
	}
}

// RegisterClient adds a client to the manager. It reports false once the manager has stopped.
func (m *Manager) RegisterClient(client *Client) bool {
	select {
	case m.register <- client:
		return true
	case <-m.done:
		return false
	}
}

// UnregisterClient removes a client from the manager
func (m *Manager) UnregisterClient(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

// Broadcast sends a message to all clients subscribed to topic
func (m *Manager) Broadcast(topic string, payload []byte) {
	select {
	case m.broadcast <- &BroadcastMessage{Topic: topic, Payload: payload}:
	case <-m.done:
	}
}

// SubscriberCount returns the number of clients subscribed to topic
func (m *Manager) SubscriberCount(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.topics[topic])
}

func (m *Manager) registerClient(client *Client) {
	m.mu.Lock()
	set, ok := m.topics[client.Topic]
	if !ok {
		set = make(map[*Client]struct{})
		m.topics[client.Topic] = set
	}
	set[client] = struct{}{}
	m.mu.Unlock()

	m.logger.Debug("client subscribed", slog.String("client_id", client.ID), slog.String("topic", client.Topic))
}

// removeClient closes Send exactly once: only a client still in its set gets closed
func (m *Manager) removeClient(client *Client) {
	m.mu.Lock()
	set, ok := m.topics[client.Topic]
	if ok {
		_, ok = set[client]
		delete(set, client)
		if len(set) == 0 {
			delete(m.topics, client.Topic)
		}
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	close(client.Send)
	m.logger.Debug("client unsubscribed", slog.String("client_id", client.ID), slog.String("topic", client.Topic))
}

func (m *Manager) broadcastToTopic(topic string, payload []byte) {
	m.mu.RLock()
	var delivered int
	var slow []*Client
	for client := range m.topics[topic] {
		select {
		case client.Send <- payload:
			delivered++
		default:
			slow = append(slow, client)
		}
	}
	m.mu.RUnlock()

	// A full buffer means the client stopped reading; drop it rather than stall the topic
	for _, client := range slow {
		m.logger.Warn("dropping slow client", slog.String("client_id", client.ID), slog.String("topic", topic))
		m.removeClient(client)
	}

	m.logger.Debug("broadcast", slog.String("topic", topic), slog.Int("clients", delivered))
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	topics := m.topics
	m.topics = make(map[string]map[*Client]struct{})
	m.mu.Unlock()

	for _, set := range topics {
		for client := range set {
			close(client.Send)
		}
	}
}

// writePump pumps messages from the Send channel to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps the read deadline alive and unsubscribes the client once the socket closes.
// The feed is one-way, anything the client sends is discarded.
func (c *Client) readPump(m *Manager) {
	defer m.UnregisterClient(c)

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Info("websocket closed unexpectedly",
					slog.String("client_id", c.ID), slog.String("error", err.Error()))
			}
			return
		}
	}
}
