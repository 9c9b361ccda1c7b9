package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatHandler "github.com/zhouzirui/techbot/internal/handler/chat"
	"github.com/zhouzirui/techbot/internal/logger"
	"github.com/zhouzirui/techbot/internal/middleware"
	"github.com/zhouzirui/techbot/internal/model/chat"
	"github.com/zhouzirui/techbot/internal/service/assistant"
	chatService "github.com/zhouzirui/techbot/internal/service/chat"
	"github.com/zhouzirui/techbot/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// 入站消息类型
const (
	TypeMessage = "message"
	TypeNewChat = "new_chat"
	TypeClear   = "clear"
	TypeSelect  = "select"
)

// 出站消息类型
const (
	TypePhase   = "phase"
	TypeReply   = "reply"
	TypeSession = "session"
	TypeError   = "error"
)

// Handler WebSocket聊天处理器
type Handler struct {
	registry  *chatService.Registry
	assistant *assistant.Service
	upgrader  websocket.Upgrader
	log       *slog.Logger
}

// New 创建WebSocket处理器。allowedOrigins 为空时只接受同源握手。
func New(registry *chatService.Registry, assistantSvc *assistant.Service, allowedOrigins []string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		registry:  registry,
		assistant: assistantSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log.With("component", "websocket"),
	}
}

// checkOrigin returns nil for an empty list, which makes the upgrader fall
// back to its same-host check.
func checkOrigin(allowed []string) func(*http.Request) bool {
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = struct{}{}
		}
	}
	if len(origins) == 0 {
		return nil
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := origins[origin]
		return ok
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// InboundMessage 客户端发来的指令
type InboundMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// OutgoingMessage 服务端推送的消息
type OutgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Snapshot 当前会话与侧边栏历史
type Snapshot struct {
	Current chat.Session   `json:"current"`
	History []chat.Session `json:"history"`
}

// ErrorPayload 错误详情
type ErrorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	handle, ok := middleware.WorkspaceFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "workspace missing")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "upgrade failed", logger.Err(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go pingLoop(ctx, conn)

	h.log.InfoContext(ctx, "connection opened", "workspace", handle)
	h.sendSnapshot(conn, handle)

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WarnContext(ctx, "read failed", logger.Err(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, conn, handle, msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, handle string, msg InboundMessage) {
	switch msg.Type {
	case TypeMessage:
		h.handleAsk(ctx, conn, handle, msg.Content)
	case TypeNewChat:
		h.withStore(conn, handle, func(store *chatService.Store) error {
			_, err := h.assistant.NewChat(ctx, store)
			return err
		})
	case TypeClear:
		h.withStore(conn, handle, h.assistant.ClearCurrent)
	case TypeSelect:
		h.withStore(conn, handle, func(store *chatService.Store) error {
			return h.assistant.Select(store, msg.SessionID)
		})
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type, http.StatusBadRequest)
	}
}

func (h *Handler) handleAsk(ctx context.Context, conn *websocket.Conn, handle, content string) {
	store, release := h.registry.Acquire(handle)
	defer release()

	sessionID := store.CurrentID()
	reply, err := h.assistant.Ask(ctx, store, content, func(phase assistant.Phase) {
		h.send(conn, OutgoingMessage{Type: TypePhase, SessionID: sessionID, Data: map[string]assistant.Phase{"phase": phase}})
	})
	if err != nil {
		h.sendError(conn, err.Error(), chatHandler.StatusFor(err))
		return
	}
	h.send(conn, OutgoingMessage{Type: TypeReply, SessionID: reply.SessionID, Data: reply})
}

// withStore 执行会话操作后推送最新快照
func (h *Handler) withStore(conn *websocket.Conn, handle string, op func(*chatService.Store) error) {
	store, release := h.registry.Acquire(handle)
	err := op(store)
	release()

	if err != nil {
		h.sendError(conn, err.Error(), chatHandler.StatusFor(err))
		return
	}
	h.sendSnapshot(conn, handle)
}

func (h *Handler) sendSnapshot(conn *websocket.Conn, handle string) {
	store, release := h.registry.Acquire(handle)
	current, err := store.Current()
	history := h.assistant.History(store)
	release()

	if err != nil {
		h.sendError(conn, err.Error(), chatHandler.StatusFor(err))
		return
	}
	h.send(conn, OutgoingMessage{
		Type:      TypeSession,
		SessionID: current.ID,
		Data:      Snapshot{Current: current, History: history},
	})
}

func (h *Handler) sendError(conn *websocket.Conn, message string, status int) {
	h.send(conn, OutgoingMessage{Type: TypeError, Data: ErrorPayload{Message: message, Status: status}})
}

func (h *Handler) send(conn *websocket.Conn, msg OutgoingMessage) {
	msg.Timestamp = time.Now().Unix()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Warn("write failed", "type", msg.Type, logger.Err(err))
	}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
