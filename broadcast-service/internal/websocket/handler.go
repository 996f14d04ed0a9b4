package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// HeaderUserID is set by the auth proxy in front of the service
const HeaderUserID = "X-User-ID"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks are left to the proxy
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections
type Handler struct {
	manager *Manager
	logger  *slog.Logger
	now     func() time.Time
}

func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetupRoutes configures WebSocket routes
func (h *Handler) SetupRoutes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/ws/items/{id}", h.WatchItem).Methods(http.MethodGet)
	router.HandleFunc("/ws/users/{id}", h.WatchUser).Methods(http.MethodGet)

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/stats/items/{id}", h.GetStats).Methods(http.MethodGet)

	return router
}

type welcomeMessage struct {
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	ClientID string `json:"client_id"`
}

// WatchItem streams snapshots of one item; anyone may watch
func (h *Handler) WatchItem(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, ItemTopic(mux.Vars(r)["id"]))
}

// WatchUser streams the notifications of the calling user only
func (h *Handler) WatchUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	caller := r.Header.Get(HeaderUserID)
	switch {
	case caller == "":
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing " + HeaderUserID + " header"})
		return
	case caller != userID:
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "notifications are only visible to their recipient"})
		return
	}

	h.serve(w, r, UserTopic(userID))
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request
		h.logger.Info("failed to upgrade connection", slog.String("topic", topic), slog.String("error", err.Error()))
		return
	}

	client := &Client{
		ID:    uuid.NewString(),
		Topic: topic,
		Conn:  conn,
		Send:  make(chan []byte, sendBuffer),
	}

	// Queued before registering so the welcome always precedes the first broadcast
	welcome, _ := json.Marshal(welcomeMessage{Type: "connected", Topic: topic, ClientID: client.ID})
	client.Send <- welcome

	if !h.manager.RegisterClient(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h.manager)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "broadcast-service",
		"time":    h.now().Format(time.RFC3339),
	})
}

type statsResponse struct {
	ItemID      string `json:"item_id"`
	Subscribers int    `json:"subscribers"`
}

// GetStats returns the number of open sockets watching an item
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]

	respondJSON(w, http.StatusOK, statsResponse{
		ItemID:      itemID,
		Subscribers: h.manager.SubscriberCount(ItemTopic(itemID)),
	})
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("can't write response", slog.String("error", err.Error()))
	}
}
