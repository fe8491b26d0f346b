package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoppedRealtime(t *testing.T) *RealtimeService {
	t.Helper()
	agg := NewAggregationService(NewGormWatchlistStore(newTestDB(t)), newFakeProvider())
	svc := NewRealtimeService(agg)

	go svc.Start()
	require.Eventually(t, func() bool {
		svc.mu.RLock()
		defer svc.mu.RUnlock()
		return svc.isRunning
	}, time.Second, time.Millisecond)

	svc.Stop()
	return svc
}

func wsDial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestRealtimeService_HandleConnectionAfterStop(t *testing.T) {
	svc := newStoppedRealtime(t)

	done := make(chan error, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done <- svc.HandleConnection(w, r, "user-1")
	}))
	defer server.Close()

	conn := wsDial(t, server)
	defer conn.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("HandleConnection blocked on a stopped hub")
	}
}

func TestRealtimeService_ReadPumpReturnsAfterStop(t *testing.T) {
	svc := newStoppedRealtime(t)

	serverConns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	defer server.Close()

	clientConn := wsDial(t, server)
	serverConn := <-serverConns

	client := &wsClient{conn: serverConn, send: make(chan []byte, 1), userID: "user-1"}
	clientConn.Close()

	done := make(chan struct{})
	go func() {
		svc.readPump(client)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("readPump blocked on unregister after the hub stopped")
	}
}
