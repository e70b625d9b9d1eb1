package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mathcards/grinddeck-server/internal/game"
	"github.com/mathcards/grinddeck-server/internal/game/rules"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Websocket message types.
const (
	msgState = "state"
	msgEvent = "event"
	msgTick  = "tick"
	msgError = "error"

	// client only
	msgGetState = "get_state"
	msgRestart  = "restart"
)

// WSMessage is the envelope of every websocket frame in both directions.
// Commands put their arguments next to the type, e.g.
// {"type": "play_arithmetic", "card_id": "...", "second_card_id": "..."}.
type WSMessage struct {
	Type   string `json:"type"`
	GameID string `json:"game_id,omitempty"`
	Data   any    `json:"data,omitempty"`
	commandRequest
}

// Client is one websocket connection bound to a game.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	gameID string
}

// Hub fans engine events and state snapshots out to the clients watching a game.
type Hub struct {
	mu           sync.Mutex
	clients      map[*Client]struct{}
	bus          *rules.EventBus
	handle       int
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewHub creates a hub listening on bus.
func NewHub(bus *rules.EventBus, writeTimeout time.Duration, logger *zap.Logger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	h := &Hub{
		clients:      make(map[*Client]struct{}),
		bus:          bus,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
	h.handle = bus.Subscribe(h.onEvent)
	return h
}

// Close stops listening and disconnects every client.
func (h *Hub) Close() {
	h.bus.Unsubscribe(h.handle)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client registered", zap.String("game_id", c.gameID))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Debug("websocket client unregistered", zap.String("game_id", c.gameID))
	}
}

// rebind moves a client to another game.
func (h *Hub) rebind(c *Client, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.gameID = gameID
}

// sendTo queues message for one client, dropping clients that fall behind.
// Callers hold h.mu.
func (h *Hub) sendTo(c *Client, message []byte) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- message:
	default:
		delete(h.clients, c)
		close(c.send)
		h.logger.Warn("dropping slow websocket client", zap.String("game_id", c.gameID))
	}
}

func (h *Hub) broadcast(gameID string, msg WSMessage) {
	message, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode websocket message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.gameID == gameID {
			h.sendTo(c, message)
		}
	}
}

func (h *Hub) reply(c *Client, msg WSMessage) {
	message, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode websocket message", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendTo(c, message)
}

// BroadcastState pushes a state snapshot to the clients of view's game.
func (h *Hub) BroadcastState(view game.View) {
	h.broadcast(view.ID, WSMessage{Type: msgState, GameID: view.ID, Data: view})
}

func (h *Hub) onEvent(event rules.Event) {
	msgType := msgEvent
	if event.Type == rules.EventTick {
		msgType = msgTick
	}
	h.broadcast(event.GameID, WSMessage{Type: msgType, GameID: event.GameID, Data: event})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	e, err := s.manager.Get(r.URL.Query().Get("game_id"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		gameID: e.ID(),
	}
	s.hub.register(client)
	s.hub.reply(client, WSMessage{Type: msgState, GameID: e.ID(), Data: e.View()})

	go s.writePump(client)
	go s.readPump(client)
}

func (s *Server) readPump(c *Client) {
	defer func() {
		s.hub.unregister(c)
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.hub.reply(c, WSMessage{Type: msgError, Data: errorResponse{
				Error:  fmt.Sprintf("invalid message: %v", err),
				Reason: "bad_request",
			}})
			continue
		}
		s.handleMessage(c, msg)
	}
}

func (s *Server) writePump(c *Client) {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(s.hub.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (s *Server) handleMessage(c *Client, msg WSMessage) {
	ctx := context.Background()

	s.hub.mu.Lock()
	gameID := c.gameID
	s.hub.mu.Unlock()

	e, err := s.manager.Get(gameID)
	if err != nil {
		s.replyError(c, gameID, err, nil)
		return
	}

	switch msg.Type {
	case msgGetState:
		s.hub.reply(c, WSMessage{Type: msgState, GameID: gameID, Data: e.View()})
	case msgRestart:
		next, err := s.manager.Restart(ctx, gameID)
		if err != nil {
			s.replyError(c, gameID, err, nil)
			return
		}
		s.hub.rebind(c, next.ID())
		s.hub.reply(c, WSMessage{Type: msgState, GameID: next.ID(), Data: next.View()})
	default:
		if err := dispatch(ctx, e, msg.Type, msg.commandRequest); err != nil {
			view := e.View()
			s.replyError(c, gameID, err, &view)
			return
		}
		s.hub.BroadcastState(e.View())
	}
}

func (s *Server) replyError(c *Client, gameID string, err error, state *game.View) {
	_, reason := classify(err)
	s.logger.Debug("websocket command failed", zap.String("game_id", gameID), zap.Error(err))
	s.hub.reply(c, WSMessage{Type: msgError, GameID: gameID, Data: errorResponse{
		Error:  err.Error(),
		Reason: reason,
		State:  state,
	}})
}
