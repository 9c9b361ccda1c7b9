package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondError(t *testing.T) {
	resp := httptest.NewRecorder()
	RespondError(resp, http.StatusBadRequest, "bad")

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}
	if body := resp.Body.String(); body != "{\"error\":\"bad\"}\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestRespondJSONNoBody(t *testing.T) {
	resp := httptest.NewRecorder()
	RespondJSON(resp, http.StatusNoContent, nil)

	if resp.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", resp.Body.String())
	}
}

func TestSendSSEEvent(t *testing.T) {
	resp := httptest.NewRecorder()
	SetupSSEHeaders(resp)
	SendSSEEvent(resp, resp, "phase", map[string]string{"phase": "classifying"})

	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	want := "event: phase\ndata: {\"phase\":\"classifying\"}\n\n"
	if resp.Body.String() != want {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
	if !resp.Flushed {
		t.Fatal("expected flush")
	}
}
