package services

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Constants for realtime streaming configuration
const (
	MaxWebSocketClients   = 100
	WebSocketWriteTimeout = 10 * time.Second
	WebSocketPongTimeout  = 60 * time.Second
	WebSocketPingInterval = 30 * time.Second
	DefaultPollInterval   = 15 * time.Second
)

// WebSocketMessage is the envelope broadcast to connected clients
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// wsClient represents one connected websocket client
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// RealtimeService pushes rebuilt watchlist views to connected clients on a
// poll interval. Each client only receives its own user's view.
type RealtimeService struct {
	aggregation *AggregationService

	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex

	upgrader     websocket.Upgrader
	pollInterval time.Duration
	stopChan     chan struct{}
	isRunning    bool
}

// NewRealtimeService creates a realtime watchlist streaming service
func NewRealtimeService(aggregation *AggregationService) *RealtimeService {
	return &RealtimeService{
		aggregation: aggregation,
		clients:     make(map[*wsClient]bool),
		register:    make(chan *wsClient),
		unregister:  make(chan *wsClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pollInterval: DefaultPollInterval,
		stopChan:     make(chan struct{}),
	}
}

// Start runs the hub loop until Stop is called
func (s *RealtimeService) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	log.Println("Realtime watchlist service started")
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			count := len(s.clients)
			s.mu.Unlock()
			log.Printf("Realtime client connected (user=%s, total=%d)", client.userID, count)

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.mu.Unlock()

		case <-ticker.C:
			s.pushViews()

		case <-s.stopChan:
			log.Println("Realtime watchlist service stopped")
			return
		}
	}
}

// Stop shuts the hub loop down
func (s *RealtimeService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		s.isRunning = false
		close(s.stopChan)
	}
}

// pushViews rebuilds the view once per connected user and fans the result out
// to that user's clients
func (s *RealtimeService) pushViews() {
	s.mu.RLock()
	byUser := make(map[string][]*wsClient)
	for client := range s.clients {
		byUser[client.userID] = append(byUser[client.userID], client)
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.pollInterval)
	defer cancel()

	for userID, clients := range byUser {
		view, err := s.aggregation.BuildView(ctx, userID)
		if err != nil {
			log.Printf("Realtime view build failed for user %s: %v", userID, err)
			continue
		}

		payload, err := json.Marshal(WebSocketMessage{
			Type: "watchlist_view",
			Data: view,
			Time: time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			continue
		}

		for _, client := range clients {
			select {
			case client.send <- payload:
			default:
				// Slow consumer, drop the frame
			}
		}
	}
}

// HandleConnection upgrades an HTTP request to a websocket and attaches the
// client to the hub. userID comes from the session middleware.
func (s *RealtimeService) HandleConnection(w http.ResponseWriter, r *http.Request, userID string) error {
	s.mu.RLock()
	count := len(s.clients)
	s.mu.RUnlock()
	if count >= MaxWebSocketClients {
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return nil
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan []byte, 16),
		userID: userID,
	}

	// The hub may already be stopped; never block on a dead loop
	select {
	case s.register <- client:
	case <-s.stopChan:
		conn.Close()
		return nil
	}

	go s.writePump(client)
	go s.readPump(client)
	return nil
}

// writePump writes outbound frames and keepalive pings
func (s *RealtimeService) writePump(client *wsClient) {
	ticker := time.NewTicker(WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames until the connection drops
func (s *RealtimeService) readPump(client *wsClient) {
	defer func() {
		select {
		case s.unregister <- client:
		case <-s.stopChan:
		}
		client.conn.Close()
	}()

	client.conn.SetReadLimit(1024)
	client.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
