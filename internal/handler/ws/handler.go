package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/beacon/internal/handler/chat"
	modelchat "github.com/zhouzirui/beacon/internal/model/chat"
	chatService "github.com/zhouzirui/beacon/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler exposes a session over a WebSocket so persona switches and clears
// can arrive while a reply is still being typed out.
type Handler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

// ConfigMessage 配置消息
type ConfigMessage struct {
	PersonaID string `json:"personaId"`
}

// Result frame kinds.
const (
	ResultConnected  = "connected"
	ResultTranscript = "transcript"
	ResultDelta      = "delta"
	ResultConfig     = "config"
	ResultInput      = "input"
	ResultEnd        = "end"
)

// ResultData is the payload of every "result" frame.
type ResultData struct {
	Kind     string              `json:"kind"`
	Content  string              `json:"content,omitempty"`
	Snapshot *modelchat.Snapshot `json:"snapshot,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// connection serialises writes; gorilla allows one concurrent writer.
type connection struct {
	conn      *websocket.Conn
	sessionID string
	writeMu   sync.Mutex
}

func (c *connection) write(msg outgoingMessage) {
	msg.Timestamp = time.Now().Unix()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed session=%s: %v", msg.Type, c.sessionID, err)
	}
}

func (c *connection) sendResult(data ResultData) {
	c.write(outgoingMessage{Type: "result", SessionID: c.sessionID, Data: data})
}

func (c *connection) sendSnapshot(kind string, snap modelchat.Snapshot) {
	c.sendResult(ResultData{Kind: kind, Snapshot: &snap})
}

func (c *connection) sendError(message string) {
	c.write(outgoingMessage{
		Type:      "error",
		SessionID: c.sessionID,
		Data:      map[string]string{"message": message},
	})
}

func (c *connection) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		chat.RespondServiceError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	// r.Context is detached from a hijacked connection's lifetime, so the
	// read loop cancels ctx itself when the socket goes away.
	ctx, cancel := context.WithCancel(context.Background())
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
	}()

	c := &connection{conn: conn, sessionID: sessionID}

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, c)

	c.sendSnapshot(ResultConnected, session.Snapshot())

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			c.sendError("session mismatch")
			continue
		}

		h.handleMessage(ctx, c, session, &msg, &inflight)
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *connection, session *chatService.Controller, msg *inboundMessage, inflight *sync.WaitGroup) {
	switch msg.Type {
	case "text":
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			c.sendError("invalid text payload")
			return
		}
		// Submit runs beside the read loop so config and clear can interrupt it.
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			h.submit(ctx, c, session, text.Text)
		}()

	case "config":
		var cfg ConfigMessage
		if err := json.Unmarshal(msg.Data, &cfg); err != nil || cfg.PersonaID == "" {
			c.sendError("invalid config payload")
			return
		}
		snap, err := session.SelectPersona(ctx, cfg.PersonaID)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		log.Printf("[websocket] config applied session=%s persona=%s", c.sessionID, snap.PersonaID)
		c.sendSnapshot(ResultConfig, snap)

	case "clear":
		c.sendSnapshot(ResultTranscript, session.Clear(ctx))

	case "input":
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			c.sendError("invalid input payload")
			return
		}
		c.sendSnapshot(ResultInput, session.SetInput(text.Text))

	default:
		c.sendError("unsupported message type: " + msg.Type)
	}
}

func (h *Handler) submit(ctx context.Context, c *connection, session *chatService.Controller, text string) {
	started := false
	final, err := session.Submit(ctx, text, func(snap modelchat.Snapshot) {
		if !started {
			started = true
			c.sendSnapshot(ResultTranscript, snap)
			return
		}
		last, _ := snap.LastTurn()
		c.sendResult(ResultData{Kind: ResultDelta, Content: last.Content})
	})

	switch {
	case err == nil:
		c.sendSnapshot(ResultEnd, final)
	case errors.Is(err, chatService.ErrSessionReset):
		// the switch or clear that caused this already sent its own frame
		log.Printf("[websocket] session=%s reply discarded after reset", c.sessionID)
	default:
		c.sendError(err.Error())
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, c *connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
