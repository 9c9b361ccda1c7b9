package stream

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/techbot/internal/middleware"
	"github.com/zhouzirui/techbot/internal/service/assistant"
	"github.com/zhouzirui/techbot/internal/service/assistant/assistanttest"
	chatservice "github.com/zhouzirui/techbot/internal/service/chat"
)

type sseEvent struct {
	name string
	data string
}

func setupRouter(technical bool) *chi.Mux {
	fx := assistanttest.New(technical, "Use channels.")
	handler := New(chatservice.NewRegistry(), fx.Service, nil)

	r := chi.NewRouter()
	r.Use(middleware.Workspace("ws", false))
	handler.RegisterRoutes(r)
	return r
}

func readEvents(t *testing.T, body string) []sseEvent {
	t.Helper()

	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.name != "" {
				events = append(events, current)
			}
			current = sseEvent{}
		}
	}
	return events
}

func stream(r http.Handler, message string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/stream?message="+url.QueryEscape(message), nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestStreamTechnicalQuestion(t *testing.T) {
	resp := stream(setupRouter(true), "How do goroutines communicate?")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := readEvents(t, resp.Body.String())
	var names []string
	for _, e := range events {
		names = append(names, e.name)
	}
	want := []string{"phase", "phase", "phase", "message", "end"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected events %v", names)
	}

	var phases []assistant.Phase
	for _, e := range events[:3] {
		var p PhaseEvent
		if err := json.Unmarshal([]byte(e.data), &p); err != nil {
			t.Fatalf("decode phase: %v", err)
		}
		phases = append(phases, p.Phase)
	}
	if phases[0] != assistant.PhaseClassifying || phases[1] != assistant.PhaseResponding || phases[2] != assistant.PhaseIdle {
		t.Fatalf("unexpected phases %v", phases)
	}

	var reply assistant.Reply
	if err := json.Unmarshal([]byte(events[3].data), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Message.Content != "Use channels." {
		t.Fatalf("unexpected reply %q", reply.Message.Content)
	}
}

func TestStreamRefusal(t *testing.T) {
	events := readEvents(t, stream(setupRouter(false), "Tell me a joke").Body.String())
	if len(events) < 2 {
		t.Fatalf("expected events, got %v", events)
	}

	var p PhaseEvent
	if err := json.Unmarshal([]byte(events[1].data), &p); err != nil {
		t.Fatalf("decode phase: %v", err)
	}
	if p.Phase != assistant.PhaseRefusing {
		t.Fatalf("expected refusing, got %s", p.Phase)
	}
}

func TestStreamRequiresMessage(t *testing.T) {
	resp := stream(setupRouter(true), "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStreamBlankMessageRejected(t *testing.T) {
	for _, message := range []string{"", "   ", "\t\n"} {
		resp := stream(setupRouter(true), message)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", message, resp.Code)
		}
		if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected a JSON error for %q, got %q", message, ct)
		}
	}
}
