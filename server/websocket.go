package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"zimage_worker/logging"
)

// WSMessage is the envelope pushed to dashboard clients.
type WSMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// WebSocket message types.
const (
	WSTypeJobUpdate   = "job_update"
	WSTypeStatsUpdate = "stats_update"
)

// NewJobUpdateMessage wraps a job snapshot for broadcast. The image
// payload is stripped; clients fetch results over HTTP.
func NewJobUpdateMessage(job QueuedJob) WSMessage {
	if job.Output != nil {
		trimmed := *job.Output
		trimmed.Image = ""
		job.Output = &trimmed
	}
	return WSMessage{
		Type:      WSTypeJobUpdate,
		Timestamp: time.Now(),
		Data:      job,
	}
}

// Broadcaster manages WebSocket clients and fans messages out to all
// of them. Safe for concurrent use.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte

	broadcast  chan []byte
	unregister chan *websocket.Conn
	upgrader   websocket.Upgrader
	log        *logging.Logger

	pingInterval time.Duration
	pongWait     time.Duration
	writeWait    time.Duration
}

// NewBroadcaster creates a broadcaster. Call Start before accepting
// connections.
func NewBroadcaster(log *logging.Logger) *Broadcaster {
	return &Broadcaster{
		clients:    make(map[*websocket.Conn]chan []byte),
		broadcast:  make(chan []byte, 256),
		unregister: make(chan *websocket.Conn, 16),
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same-origin deployment; the dashboard serves the page.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingInterval: 30 * time.Second,
		pongWait:     60 * time.Second,
		writeWait:    10 * time.Second,
	}
}

// Start runs the fan-out loop until ctx is cancelled, then closes all
// client connections.
func (b *Broadcaster) Start(ctx context.Context) {
	pingTicker := time.NewTicker(b.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return
		case conn := <-b.unregister:
			b.removeClient(conn)
		case data := <-b.broadcast:
			b.fanOut(data)
		case <-pingTicker.C:
			b.pingAll()
		}
	}
}

// HandleConnection upgrades an HTTP request to WebSocket and manages
// the client lifecycle.
func (b *Broadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warnw("websocket upgrade failed",
			"remote", r.RemoteAddr,
			"error", err.Error(),
		)
		return
	}

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(b.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(b.pongWait))
		return nil
	})

	send := make(chan []byte, 64)
	b.mu.Lock()
	b.clients[conn] = send
	count := len(b.clients)
	b.mu.Unlock()

	b.log.Debugw("websocket client connected",
		"remote", r.RemoteAddr,
		"clients", count,
	)

	go b.writePump(conn, send)
	go b.readPump(conn)
}

// Broadcast queues a message for all clients. Non-blocking; drops the
// message when the buffer is full.
func (b *Broadcaster) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.log.Warnw("failed to marshal websocket message", "error", err.Error())
		return
	}

	select {
	case b.broadcast <- data:
	default:
		b.log.Warnw("broadcast buffer full, dropping message", "type", msg.Type)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) fanOut(data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for conn, send := range b.clients {
		select {
		case send <- data:
		default:
			// Slow client; disconnect rather than block everyone.
			select {
			case b.unregister <- conn:
			default:
			}
		}
	}
}

func (b *Broadcaster) pingAll() {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for conn := range b.clients {
		conn.SetWriteDeadline(time.Now().Add(b.writeWait))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			select {
			case b.unregister <- conn:
			default:
			}
		}
	}
}

func (b *Broadcaster) removeClient(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if send, ok := b.clients[conn]; ok {
		close(send)
		delete(b.clients, conn)
		conn.Close()
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for conn, send := range b.clients {
		close(send)
		conn.Close()
		delete(b.clients, conn)
	}
}

func (b *Broadcaster) readPump(conn *websocket.Conn) {
	defer func() {
		select {
		case b.unregister <- conn:
		default:
			conn.Close()
		}
	}()

	// Clients only pong; any read error ends the connection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writePump(conn *websocket.Conn, send <-chan []byte) {
	defer conn.Close()

	for data := range send {
		conn.SetWriteDeadline(time.Now().Add(b.writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	conn.SetWriteDeadline(time.Now().Add(b.writeWait))
	conn.WriteMessage(websocket.CloseMessage, []byte{})
}
