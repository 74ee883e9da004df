package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/lotas/mailvox/internal/applog"
)

// PageMsg is a snapshot from the extension content script: the URL and
// serialized DOM of the currently visible Gmail view. The extension sends
// one on load and one per observed DOM mutation burst; the change detector
// downstream makes duplicates harmless.
type PageMsg struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	HTML string `json:"html"`
}

// StateMsg mirrors the widget state back to the extension so its toolbar
// icon can track what the player is doing.
type StateMsg struct {
	Type     string  `json:"type"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Notice   string  `json:"notice,omitempty"`
}

// Server manages the WebSocket connection to the browser extension.
type Server struct {
	port    int
	pages   chan PageMsg
	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port:  port,
		pages: make(chan PageMsg, 16),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Pages returns the channel of page snapshots from the extension.
func (s *Server) Pages() <-chan PageMsg {
	return s.pages
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send pushes a state update to the connected extension. A missing
// connection is not an error; the update is simply dropped.
func (s *Server) Send(msg StateMsg) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("bridge.accept", err)
			return
		}

		conn.SetReadLimit(8 << 20) // a full Gmail message view can be large

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("bridge.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.mu.Unlock()

		applog.Info("bridge.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("bridge.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg PageMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("bridge.parse", err)
				continue
			}
			if msg.Type != "page" {
				continue
			}
			select {
			case s.pages <- msg:
			default:
			}
		}
	})
}

// ListenAndServe starts the bridge server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("bridge.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}
