package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/techbot/internal/middleware"
	"github.com/zhouzirui/techbot/internal/model/chat"
	"github.com/zhouzirui/techbot/internal/service/assistant"
	chatService "github.com/zhouzirui/techbot/internal/service/chat"
	"github.com/zhouzirui/techbot/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	registry  *chatService.Registry
	assistant *assistant.Service
}

// New 创建聊天处理器
func New(registry *chatService.Registry, assistantSvc *assistant.Service) *Handler {
	return &Handler{
		registry:  registry,
		assistant: assistantSvc,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleListSessions)
	r.Post("/sessions", h.handleNewChat)
	r.Get("/sessions/current", h.handleCurrentSession)
	r.Put("/sessions/current", h.handleSelectSession)
	r.Delete("/sessions/current/messages", h.handleClearCurrent)
	r.Post("/messages", h.handleSendMessage)
}

type historyResponse struct {
	CurrentSessionID string         `json:"currentSessionId"`
	Sessions         []chat.Session `json:"sessions"`
}

// handleListSessions 列出已生成主题的会话
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	store, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	utils.RespondJSON(w, http.StatusOK, historyResponse{
		CurrentSessionID: store.CurrentID(),
		Sessions:         h.assistant.History(store),
	})
}

// handleCurrentSession 返回当前会话及其消息
func (h *Handler) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	store, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	session, err := store.Current()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleNewChat 新建会话并切换过去
func (h *Handler) handleNewChat(w http.ResponseWriter, r *http.Request) {
	store, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	session, err := h.assistant.NewChat(r.Context(), store)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

// handleSelectSession 切换当前会话
func (h *Handler) handleSelectSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	store, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	if err := h.assistant.Select(store, payload.SessionID); err != nil {
		respondServiceError(w, err)
		return
	}
	session, err := store.Current()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleClearCurrent 清空当前会话的消息
func (h *Handler) handleClearCurrent(w http.ResponseWriter, r *http.Request) {
	store, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	if err := h.assistant.ClearCurrent(store); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSendMessage 发送一条用户消息并返回助手回复
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	store, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	reply, err := h.assistant.Ask(r.Context(), store, payload.Content, nil)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) acquire(w http.ResponseWriter, r *http.Request) (*chatService.Store, func(), bool) {
	handle, ok := middleware.WorkspaceFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "workspace missing")
		return nil, nil, false
	}
	store, release := h.registry.Acquire(handle)
	return store, release, true
}

// StatusFor 将服务层错误映射为HTTP状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, assistant.ErrSessionNotSelectable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	utils.RespondError(w, StatusFor(err), err.Error())
}
