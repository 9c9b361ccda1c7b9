package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/techbot/internal/middleware"
	"github.com/zhouzirui/techbot/internal/service/assistant"
	"github.com/zhouzirui/techbot/internal/service/assistant/assistanttest"
	chatservice "github.com/zhouzirui/techbot/internal/service/chat"
)

func startServer(t *testing.T, fx *assistanttest.Fixture, allowedOrigins []string) string {
	t.Helper()

	handler := New(chatservice.NewRegistry(), fx.Service, allowedOrigins, nil)

	r := chi.NewRouter()
	r.Use(middleware.Workspace("ws", false))
	handler.RegisterRoutes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, technical bool) (*websocket.Conn, *assistanttest.Fixture) {
	t.Helper()

	fx := assistanttest.New(technical, "Prefer composition.")
	url := startServer(t, fx, nil)

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn, fx
}

type rawOutgoing struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func read(t *testing.T, conn *websocket.Conn) rawOutgoing {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg rawOutgoing
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func readSnapshot(t *testing.T, conn *websocket.Conn) Snapshot {
	t.Helper()

	msg := read(t, conn)
	if msg.Type != TypeSession {
		t.Fatalf("expected session message, got %s", msg.Type)
	}
	var snap Snapshot
	if err := json.Unmarshal(msg.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func TestConnectSendsSnapshot(t *testing.T) {
	conn, _ := dial(t, true)

	snap := readSnapshot(t, conn)
	if snap.Current.ID == "" {
		t.Fatal("expected a current session")
	}
	if len(snap.History) != 0 {
		t.Fatalf("expected empty history, got %d", len(snap.History))
	}
}

func TestAskStreamsPhasesAndReply(t *testing.T) {
	conn, fx := dial(t, true)
	readSnapshot(t, conn)

	if err := conn.WriteJSON(InboundMessage{Type: TypeMessage, Content: "Interfaces or generics?"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var phases []string
	for {
		msg := read(t, conn)
		if msg.Type == TypeReply {
			var reply assistant.Reply
			if err := json.Unmarshal(msg.Data, &reply); err != nil {
				t.Fatalf("decode reply: %v", err)
			}
			if reply.Message.Content != "Prefer composition." {
				t.Fatalf("unexpected reply %q", reply.Message.Content)
			}
			if msg.Timestamp == 0 {
				t.Fatal("expected timestamp")
			}
			break
		}
		if msg.Type != TypePhase {
			t.Fatalf("unexpected message type %s", msg.Type)
		}
		var p map[string]string
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			t.Fatalf("decode phase: %v", err)
		}
		phases = append(phases, p["phase"])
	}

	want := "classifying,responding,idle"
	if strings.Join(phases, ",") != want {
		t.Fatalf("expected phases %s, got %v", want, phases)
	}
	if fx.Gateway.Calls() != 1 {
		t.Fatalf("expected 1 gateway call, got %d", fx.Gateway.Calls())
	}
}

func TestNewChatMovesLabelledSessionToHistory(t *testing.T) {
	conn, _ := dial(t, false)
	first := readSnapshot(t, conn)

	if err := conn.WriteJSON(InboundMessage{Type: TypeMessage, Content: "Best pizza?"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for read(t, conn).Type != TypeReply {
	}

	if err := conn.WriteJSON(InboundMessage{Type: TypeNewChat}); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap := readSnapshot(t, conn)
	if snap.Current.ID == first.Current.ID {
		t.Fatal("expected a new current session")
	}
	if len(snap.History) != 1 || snap.History[0].ID != first.Current.ID {
		t.Fatalf("unexpected history %+v", snap.History)
	}

	if err := conn.WriteJSON(InboundMessage{Type: TypeSelect, SessionID: first.Current.ID}); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap = readSnapshot(t, conn)
	if snap.Current.ID != first.Current.ID {
		t.Fatalf("expected %s to be current, got %s", first.Current.ID, snap.Current.ID)
	}
}

func TestErrorsAreReported(t *testing.T) {
	conn, _ := dial(t, true)
	readSnapshot(t, conn)

	cases := []struct {
		msg    InboundMessage
		status int
	}{
		{InboundMessage{Type: "ping"}, http.StatusBadRequest},
		{InboundMessage{Type: TypeMessage, Content: " "}, http.StatusBadRequest},
		{InboundMessage{Type: TypeSelect, SessionID: "missing"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		if err := conn.WriteJSON(tc.msg); err != nil {
			t.Fatalf("write: %v", err)
		}
		msg := read(t, conn)
		if msg.Type != TypeError {
			t.Fatalf("expected error for %+v, got %s", tc.msg, msg.Type)
		}
		var payload ErrorPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if payload.Status != tc.status {
			t.Fatalf("expected status %d for %+v, got %d", tc.status, tc.msg, payload.Status)
		}
	}
}

func dialWithOrigin(url, origin string) (*websocket.Conn, *http.Response, error) {
	header := http.Header{}
	header.Set("Origin", origin)
	return websocket.DefaultDialer.Dial(url, header)
}

func TestForeignOriginRejectedWithoutAllowList(t *testing.T) {
	url := startServer(t, assistanttest.New(true, ""), nil)

	conn, resp, err := dialWithOrigin(url, "http://evil.test")
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake from a foreign origin to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}

func TestAllowListGovernsOrigins(t *testing.T) {
	url := startServer(t, assistanttest.New(true, ""), []string{"http://app.test"})

	conn, resp, err := dialWithOrigin(url, "http://app.test")
	if err != nil {
		t.Fatalf("expected allowed origin to connect: %v", err)
	}
	resp.Body.Close()
	conn.Close()

	conn, resp, err = dialWithOrigin(url, "http://evil.test")
	if err == nil {
		conn.Close()
		t.Fatal("expected unlisted origin to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}
