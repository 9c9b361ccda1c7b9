package page

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	chatHandler "github.com/zhouzirui/techbot/internal/handler/chat"
	"github.com/zhouzirui/techbot/internal/logger"
	"github.com/zhouzirui/techbot/internal/middleware"
	"github.com/zhouzirui/techbot/internal/model/chat"
	"github.com/zhouzirui/techbot/internal/service/assistant"
	chatService "github.com/zhouzirui/techbot/internal/service/chat"
)

//go:embed templates/*.html
var templateFS embed.FS

var indexTemplate = template.Must(
	template.New("index.html").
		Funcs(template.FuncMap{"markdown": renderMarkdown}).
		ParseFS(templateFS, "templates/index.html"),
)

// Handler 服务端渲染的聊天页面
type Handler struct {
	registry  *chatService.Registry
	assistant *assistant.Service
	log       *slog.Logger
}

// New 创建页面处理器
func New(registry *chatService.Registry, assistantSvc *assistant.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		registry:  registry,
		assistant: assistantSvc,
		log:       log.With("component", "page"),
	}
}

// RegisterRoutes 注册页面路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/chat/messages", h.handleAsk)
	r.Post("/chat/new", h.handleNewChat)
	r.Post("/chat/clear", h.handleClear)
	r.Post("/chat/select/{sessionID}", h.handleSelect)
}

type historyEntry struct {
	ID        string
	CreatedAt string
	Topic     string
	Current   bool
}

type messageView struct {
	Role    chat.Role
	Content string
	Time    string
}

type indexView struct {
	Title    string
	History  []historyEntry
	Messages []messageView
	Error    string
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	store, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	view, err := h.buildView(store)
	release()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view.Error = r.URL.Query().Get("error")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, view); err != nil {
		h.log.ErrorContext(r.Context(), "render page", logger.Err(err))
	}
}

func (h *Handler) buildView(store *chatService.Store) (indexView, error) {
	current, err := store.Current()
	if err != nil {
		return indexView{}, err
	}

	view := indexView{Title: "TechBot"}
	for _, s := range h.assistant.History(store) {
		view.History = append(view.History, historyEntry{
			ID:        s.ID,
			CreatedAt: s.DisplayCreatedAt(),
			Topic:     s.Topic,
			Current:   s.ID == current.ID,
		})
	}
	for _, m := range current.Messages {
		view.Messages = append(view.Messages, messageView{
			Role:    m.Role,
			Content: m.Content,
			Time:    m.DisplayTime(),
		})
	}
	return view, nil
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	content := r.PostFormValue("content")
	h.mutate(w, r, func(store *chatService.Store) error {
		_, err := h.assistant.Ask(r.Context(), store, content, nil)
		return err
	})
}

func (h *Handler) handleNewChat(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(store *chatService.Store) error {
		_, err := h.assistant.NewChat(r.Context(), store)
		return err
	})
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.assistant.ClearCurrent)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	h.mutate(w, r, func(store *chatService.Store) error {
		return h.assistant.Select(store, id)
	})
}

// mutate 执行操作后重定向回首页
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(*chatService.Store) error) {
	store, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	err := op(store)
	release()

	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := chatHandler.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "page action failed", logger.Err(err))
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Redirect(w, r, "/?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
}

func (h *Handler) acquire(w http.ResponseWriter, r *http.Request) (*chatService.Store, func(), bool) {
	handle, ok := middleware.WorkspaceFromContext(r.Context())
	if !ok {
		http.Error(w, "workspace missing", http.StatusInternalServerError)
		return nil, nil, false
	}
	store, release := h.registry.Acquire(handle)
	return store, release, true
}
