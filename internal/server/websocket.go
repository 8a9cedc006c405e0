package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/ssdpd/internal/logging"
	"github.com/muurk/ssdpd/internal/registry"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Messages buffered per client before it is considered too slow and dropped
	sendBuffer = 64
)

// Message types sent on the feed
const (
	MessageSnapshot  = "snapshot"
	MessagePublished = "published"
)

// Message is one JSON frame on the WebSocket feed
type Message struct {
	Type           string                   `json:"type"`
	New            bool                     `json:"new,omitempty"`
	Advertisement  *registry.Advertisement  `json:"advertisement,omitempty"`
	Advertisements []registry.Advertisement `json:"advertisements,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is read-only and carries no credentials
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one feed subscriber
type client struct {
	conn       *websocket.Conn
	remoteAddr string
	send       chan []byte
	closeOnce  sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// handleWebSocket upgrades the request, sends a snapshot of discovered
// advertisements and then streams every publish as it happens
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &client{
		conn:       conn,
		remoteAddr: r.RemoteAddr,
		send:       make(chan []byte, sendBuffer),
	}

	// Snapshot and registration happen under one lock so no publish falls between them
	s.mu.Lock()
	snapshot, err := json.Marshal(Message{Type: MessageSnapshot, Advertisements: s.source.All()})
	if err != nil {
		s.mu.Unlock()
		logging.Error("Failed to marshal snapshot", zap.Error(err))
		_ = conn.Close()
		return
	}
	c.send <- snapshot
	s.activeConns[c.remoteAddr] = c
	s.mu.Unlock()

	logging.Info("WebSocket client connected", zap.String("remote_addr", c.remoteAddr))

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.writePump(c)
	}()
	go func() {
		defer s.wg.Done()
		s.readPump(c)
	}()
}

// broadcast is the registry subscriber. It never blocks: a client whose
// buffer is full is disconnected.
func (s *Server) broadcast(ev registry.Event) {
	ad := ev.Advertisement
	data, err := json.Marshal(Message{Type: MessagePublished, New: ev.New, Advertisement: &ad})
	if err != nil {
		logging.Error("Failed to marshal advertisement", zap.String("id", ad.ID), zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, c := range s.activeConns {
		select {
		case c.send <- data:
		default:
			logging.Warn("WebSocket client too slow, dropping", zap.String("remote_addr", addr))
			delete(s.activeConns, addr)
			c.close()
		}
	}
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	if cur, ok := s.activeConns[c.remoteAddr]; ok && cur == c {
		delete(s.activeConns, c.remoteAddr)
		c.close()
	}
	s.mu.Unlock()
}

// readPump discards inbound messages and keeps the read deadline fresh
// with pongs. It returns when the peer goes away.
func (s *Server) readPump(c *client) {
	defer func() {
		s.remove(c)
		logging.Info("WebSocket client disconnected", zap.String("remote_addr", c.remoteAddr))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("WebSocket read error",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
		logging.LogWebSocketMessage(c.remoteAddr, "received", msgType, data)
	}
}

// writePump owns all writes to the connection
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debug("WebSocket write failed",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
				s.remove(c)
				return
			}
			logging.LogWebSocketMessage(c.remoteAddr, "sent", websocket.TextMessage, data)

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.remove(c)
				return
			}
		}
	}
}
