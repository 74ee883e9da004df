package bridge

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func dial(t *testing.T, ts *httptest.Server, ctx context.Context) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestBridgeReceivesPageSnapshot(t *testing.T) {
	srv := New(0)
	pages := srv.Pages()

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn := dial(t, ts, ctx)
	defer conn.CloseNow()

	msg := PageMsg{Type: "page", URL: "https://mail.google.com/mail/u/0/#inbox/abc", HTML: "<html></html>"}
	data, _ := json.Marshal(msg)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-pages:
		if got.URL != msg.URL || got.HTML != msg.HTML {
			t.Errorf("got %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for page snapshot")
	}
}

func TestBridgeIgnoresNonPageMessages(t *testing.T) {
	srv := New(0)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn := dial(t, ts, ctx)
	defer conn.CloseNow()

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-srv.Pages():
		t.Errorf("unexpected message %+v", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBridgeSendsState(t *testing.T) {
	srv := New(0)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn := dial(t, ts, ctx)
	defer conn.CloseNow()

	// Give the server a moment to register the connection.
	time.Sleep(50 * time.Millisecond)
	if !srv.Connected() {
		t.Fatal("server should report a connection")
	}

	if err := srv.Send(StateMsg{Type: "state", State: "playing", Progress: 0.4}); err != nil {
		t.Fatalf("send: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got StateMsg
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.State != "playing" || got.Progress != 0.4 {
		t.Errorf("got %+v", got)
	}
}

func TestBridgeSendWithoutConnection(t *testing.T) {
	srv := New(0)
	if err := srv.Send(StateMsg{Type: "state", State: "idle"}); err != nil {
		t.Errorf("send without connection should be a no-op, got %v", err)
	}
}
