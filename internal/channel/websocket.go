package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"babas/internal/agent"
	"babas/internal/metrics"

	"github.com/gorilla/websocket"
)

// WSMessage is the JSON frame exchanged on /ws.
type WSMessage struct {
	Type    string `json:"type"` // "message" | "clear" | "typing" | "status" | "error"
	Content string `json:"content,omitempty"`
	ChatID  string `json:"chat_id,omitempty"`
	ID      string `json:"id,omitempty"`
	Role    string `json:"role,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The page and the socket are served by the same process.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHub tracks connected widget clients so replies reach every tab that
// shares a session cookie.
type wsHub struct {
	loop   *agent.Loop
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*wsClient
}

type wsClient struct {
	conn   *websocket.Conn
	chatID string // browser session id, shown to the client
	key    string // session key in the loop
	mu     sync.Mutex
}

func newWSHub(loop *agent.Loop, logger *slog.Logger) *wsHub {
	return &wsHub{
		loop:    loop,
		logger:  logger,
		clients: make(map[string]*wsClient),
	}
}

func (w *Web) handleWS(rw http.ResponseWriter, r *http.Request) {
	var header http.Header
	chatID := sessionID(r)
	if chatID == "" {
		chatID = w.newSessionID()
		header = http.Header{"Set-Cookie": {newSessionCookie(chatID).String()}}
	}

	conn, err := upgrader.Upgrade(rw, r, header)
	if err != nil {
		w.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	w.hub.serve(r.Context(), conn, chatID)
}

func (h *wsHub) serve(ctx context.Context, conn *websocket.Conn, chatID string) {
	client := &wsClient{conn: conn, chatID: chatID, key: webKey(chatID)}
	clientID := fmt.Sprintf("%s-%p", chatID, conn)

	h.mu.Lock()
	h.clients[clientID] = client
	h.mu.Unlock()
	metrics.WSConnections.Inc()
	h.logger.Info("websocket client connected", "client_id", clientID, "chat_id", chatID)

	client.send(WSMessage{Type: "status", Content: "connected", ChatID: chatID})

	// The request context ends with the handler; replies in flight use a
	// context that outlives it so they are still recorded.
	submitCtx := context.WithoutCancel(ctx)

	defer func() {
		h.mu.Lock()
		delete(h.clients, clientID)
		h.mu.Unlock()
		metrics.WSConnections.Dec()
		conn.Close()
		h.logger.Info("websocket client disconnected", "client_id", clientID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Error("websocket read error", "err", err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("invalid websocket message", "err", err)
			client.send(WSMessage{Type: "error", Content: "invalid message"})
			continue
		}

		switch msg.Type {
		case "message":
			// Submit in the background so a second message while awaiting
			// is rejected instead of queued behind the first.
			go h.submit(submitCtx, client, msg.Content)
		case "clear":
			h.loop.Reset(client.key)
			h.broadcast(chatID, WSMessage{Type: "status", Content: "cleared", ChatID: chatID})
		default:
			h.logger.Debug("ignored websocket frame", "type", msg.Type, "chat_id", chatID)
		}
	}
}

func (h *wsHub) submit(ctx context.Context, client *wsClient, text string) {
	chatID := client.chatID

	// Rejections are answered to the sender alone; only a turn that will
	// run shows the typing indicator in every tab of the session.
	if strings.TrimSpace(text) == "" {
		client.send(WSMessage{Type: "error", Content: agent.ErrEmptyMessage.Error(), ChatID: chatID})
		return
	}
	if sess, ok := h.loop.Sessions().Get(client.key); ok && sess.Awaiting() {
		metrics.BusyRejections.Inc()
		client.send(WSMessage{Type: "error", Content: agent.ErrBusy.Error(), ChatID: chatID})
		return
	}

	h.broadcast(chatID, WSMessage{Type: "typing", ChatID: chatID})
	ex, err := h.loop.Submit(ctx, client.key, text)
	switch {
	case errors.Is(err, agent.ErrEmptyMessage), errors.Is(err, agent.ErrBusy):
		// Lost a race with another tab: that turn is pending, so the
		// typing frame still holds.
		client.send(WSMessage{Type: "error", Content: err.Error(), ChatID: chatID})
		return
	case err != nil:
		h.logger.Error("websocket submit failed", "chat_id", chatID, "err", err)
		client.send(WSMessage{Type: "error", Content: "internal error", ChatID: chatID})
		return
	}

	h.broadcast(chatID, WSMessage{
		Type: "message", ChatID: chatID,
		ID: ex.User.ID, Role: string(ex.User.Role), Content: ex.User.Text,
	})
	h.broadcast(chatID, WSMessage{
		Type: "message", ChatID: chatID,
		ID: ex.Reply.ID, Role: string(ex.Reply.Role), Content: ex.Reply.Text, IsError: ex.Reply.IsError,
	})
}

func (h *wsHub) broadcast(chatID string, msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.chatID == chatID {
			client.send(msg)
		}
	}
}

func (c *wsClient) send(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.TextMessage, data)
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.conn.Close()
		delete(h.clients, id)
	}
}
