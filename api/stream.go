package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/i18n"
)

// MessageType discriminates stream messages.
type MessageType string

const (
	MessageThemeChanged    MessageType = "theme.changed"
	MessageLanguageChanged MessageType = "language.changed"
)

// Message is the envelope for all stream messages.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

func newMessage(t MessageType, data any) Message {
	return Message{Type: t, Timestamp: time.Now().UTC(), Data: data}
}

type languageInfo struct {
	Code i18n.Language `json:"code"`
	Name string        `json:"name"`
}

// Client is one connected stream subscriber.
type Client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub fans preference changes out to every connected client.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  suiteprefs.Logger
}

func NewHub(logger suiteprefs.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("Stream client connected")
}

// Unregister removes a client and closes its send channel. It is safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Debug("Stream client disconnected")
}

// Broadcast queues msg for every client, dropping it for clients whose buffer is full.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("Stream client buffer full, dropping message", "type", msg.Type)
		}
	}
}

// CloseAll unregisters every client, which ends their write loops.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump sends queued messages until the channel is closed or ctx ends.
func (c *Client) writePump(ctx context.Context, logger suiteprefs.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				logger.Debug("Stream write failed", "error", err)
				return
			}
		}
	}
}

// readPump drains client frames until the connection drops.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// handleStream upgrades to a websocket, sends the current theme and language,
// then streams every change.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Error("Websocket accept failed", "error", err)
		return
	}

	client := &Client{conn: conn, send: make(chan Message, 64)}
	lang := s.i18n.Language()
	client.send <- newMessage(MessageThemeChanged, s.theme.State())
	client.send <- newMessage(MessageLanguageChanged, languageInfo{Code: lang, Name: i18n.LanguageName(lang)})
	s.hub.Register(client)

	ctx, cancel := context.WithCancel(r.Context())
	done := make(chan struct{})
	go func() {
		client.writePump(ctx, s.logger)
		cancel()
		close(done)
	}()

	client.readPump(ctx)

	s.hub.Unregister(client)
	cancel()
	<-done
	conn.Close(websocket.StatusNormalClosure, "")
}
