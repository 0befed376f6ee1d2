package wsrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newEchoServer(t *testing.T, handle func(conn *websocket.Conn, req request)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req request
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			handle(conn, req)
		}
	}))
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestAccountSubscribeDeliversNotifications(t *testing.T) {
	srv := newEchoServer(t, func(conn *websocket.Conn, req request) {
		switch req.Method {
		case "accountSubscribe":
			conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 42})
			conn.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"method":  "accountNotification",
				"params": map[string]interface{}{
					"subscription": 42,
					"result":       map[string]string{"lamports": "1000"},
				},
			})
		}
	})
	defer srv.Close()

	client := NewClient(wsURL(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	received := make(chan json.RawMessage, 1)
	subID, err := client.AccountSubscribe("SomeAccount", func(data json.RawMessage) {
		received <- data
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if subID != 42 {
		t.Fatalf("expected subscription id 42, got %d", subID)
	}

	select {
	case data := <-received:
		var payload map[string]string
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("decode notification: %v", err)
		}
		if payload["lamports"] != "1000" {
			t.Fatalf("unexpected payload: %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestUnsubscribeRemovesCallback(t *testing.T) {
	srv := newEchoServer(t, func(conn *websocket.Conn, req request) {
		switch req.Method {
		case "accountSubscribe":
			conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 7})
		case "accountUnsubscribe":
			conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": true})
		}
	})
	defer srv.Close()

	client := NewClient(wsURL(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	subID, err := client.AccountSubscribe("SomeAccount", func(json.RawMessage) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := client.Unsubscribe("accountUnsubscribe", subID); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	client.subsMu.RLock()
	_, stillPresent := client.subs[subID]
	client.subsMu.RUnlock()
	if stillPresent {
		t.Fatal("expected callback to be removed after unsubscribe")
	}
}
