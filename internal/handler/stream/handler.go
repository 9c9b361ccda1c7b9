package stream

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	chatHandler "github.com/zhouzirui/techbot/internal/handler/chat"
	"github.com/zhouzirui/techbot/internal/logger"
	"github.com/zhouzirui/techbot/internal/middleware"
	"github.com/zhouzirui/techbot/internal/service/assistant"
	chatService "github.com/zhouzirui/techbot/internal/service/chat"
	"github.com/zhouzirui/techbot/pkg/utils"
)

// Handler streams the progress of one question via Server-Sent Events.
type Handler struct {
	registry  *chatService.Registry
	assistant *assistant.Service
	log       *slog.Logger
}

// New creates a new stream handler
func New(registry *chatService.Registry, assistantSvc *assistant.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		registry:  registry,
		assistant: assistantSvc,
		log:       log.With("component", "stream"),
	}
}

// RegisterRoutes mounts GET /stream.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream", h.handleStream)
}

// PhaseEvent reports a state machine transition.
type PhaseEvent struct {
	Phase assistant.Phase `json:"phase"`
}

// EndEvent closes the stream.
type EndEvent struct {
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished"`
}

// ErrorEvent carries a request-level failure.
type ErrorEvent struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	message := strings.TrimSpace(r.URL.Query().Get("message"))
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	handle, ok := middleware.WorkspaceFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "workspace missing")
		return
	}

	store, release := h.registry.Acquire(handle)
	defer release()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	reply, err := h.assistant.Ask(r.Context(), store, message, func(phase assistant.Phase) {
		utils.SendSSEEvent(w, flusher, "phase", PhaseEvent{Phase: phase})
	})
	if err != nil {
		h.log.WarnContext(r.Context(), "stream ask failed", logger.Err(err))
		utils.SendSSEEvent(w, flusher, "error", ErrorEvent{Error: err.Error(), Status: chatHandler.StatusFor(err)})
		utils.SendSSEEvent(w, flusher, "end", EndEvent{Finished: true})
		return
	}

	utils.SendSSEEvent(w, flusher, "message", reply)
	utils.SendSSEEvent(w, flusher, "end", EndEvent{SessionID: reply.SessionID, Finished: true})
}
