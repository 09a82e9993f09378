package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/strainwise/convmem/pkg/api/events"
	"github.com/strainwise/convmem/pkg/eventbus"
)

func dialEvents(t *testing.T, serverURL, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForConnections(t *testing.T, stack *testStack, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for stack.handlers.Events.Connections() < n && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := stack.handlers.Events.Connections(); got < n {
		t.Fatalf("connections = %d, want %d", got, n)
	}
	// Registration completes just after the count moves.
	time.Sleep(50 * time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ev events.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	resp.Body.Close()
	return resp
}

func TestIntegration_RecordedEventReachesUserStream(t *testing.T) {
	stack := newTestStack(t, nil)
	server := httptest.NewServer(NewRouter(stack.cfg, testLogger(), stack.handlers))
	defer server.Close()

	conn := dialEvents(t, server.URL, "/api/v1/users/u1/events")
	waitForConnections(t, stack, 1)

	// Another user's activity must not reach u1's stream.
	resp := post(t, server.URL+"/api/v1/users/u2/conversations", `{"query":"Best strain for focus?","response":"Jack Herer."}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("u2 record status = %d", resp.StatusCode)
	}
	resp = post(t, server.URL+"/api/v1/users/u1/conversations", `{"query":"Best indica for sleep?","response":"Granddaddy Purple."}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("u1 record status = %d", resp.StatusCode)
	}

	ev := readEvent(t, conn)
	if ev.Type != eventbus.EventConversationRecorded {
		t.Fatalf("event type = %q, want %q", ev.Type, eventbus.EventConversationRecorded)
	}
	if ev.UserID != "u1" {
		t.Fatalf("event user = %q, want u1", ev.UserID)
	}
	if ev.SessionID == "" || ev.EventID == "" {
		t.Errorf("expected session and event IDs, got %+v", ev)
	}
	raw, _ := ev.Payload.(map[string]any)
	for key := range raw {
		if key == "query" || key == "response" {
			t.Errorf("event payload carries %q", key)
		}
	}
}

func TestIntegration_OperatorStreamSeesErasure(t *testing.T) {
	stack := newTestStack(t, nil)
	server := httptest.NewServer(NewRouter(stack.cfg, testLogger(), stack.handlers))
	defer server.Close()

	resp := post(t, server.URL+"/api/v1/users/u1/conversations", `{"query":"Tell me about Blue Dream","response":"A balanced hybrid."}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("record status = %d", resp.StatusCode)
	}

	conn := dialEvents(t, server.URL, "/ws/events")
	if err := conn.WriteJSON(map[string]any{"type": "subscribe", "user_id": "u1"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitForConnections(t, stack, 1)

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/users/u1", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("erase status = %d", delResp.StatusCode)
	}

	for {
		ev := readEvent(t, conn)
		if ev.Type == eventbus.EventMemoryErased {
			if ev.UserID != "u1" {
				t.Fatalf("erasure event user = %q", ev.UserID)
			}
			return
		}
	}
}
