// Package server provides the development server: it serves the rendered
// document over HTTP, relays browser events back into the runtime over a
// WebSocket, and streams the re-rendered tree to every connected client.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/domwire/internal/logging"
	"github.com/conneroisu/domwire/internal/runtime"
)

const (
	// writeWait bounds a single frame write to a client.
	writeWait = 10 * time.Second

	// sendBuffer is the per-client outbound queue depth. A client that
	// falls further behind than this is disconnected.
	sendBuffer = 16
)

// Config holds the network-facing server options.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DevServer serves one runtime to any number of browser clients. All
// runtime access goes through a single mutex because the runtime itself is
// single-threaded.
type DevServer struct {
	cfg    Config
	rt     *runtime.Runtime
	logger logging.Logger

	mu sync.Mutex // serializes runtime access across connections

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]chan []byte

	httpServer *http.Server
}

// New returns a development server over the given runtime.
func New(cfg Config, rt *runtime.Runtime, logger logging.Logger) *DevServer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &DevServer{
		cfg:     cfg,
		rt:      rt,
		logger:  logger.WithComponent("server"),
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// Handler returns the HTTP handler for the server's routes.
func (s *DevServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start runs the HTTP server until ctx is cancelled.
func (s *DevServer) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info(ctx, "development server listening", "addr", s.cfg.Addr())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// eventMessage is what the browser sends for each DOM event: the handle of
// the nearest bound element, the event name, and an optional value for
// value-carrying events such as input.
type eventMessage struct {
	Handle uint32  `json:"handle"`
	Event  string  `json:"event"`
	Value  *string `json:"value,omitempty"`
}

// renderMessage carries a full re-render of the mounted document to the
// browser.
type renderMessage struct {
	Type string `json:"type"`
	HTML string `json:"html"`
}

func (s *DevServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPage().Render(r.Context(), w); err != nil {
		s.logger.Error(r.Context(), err, "failed to render index page")
	}
}

func (s *DevServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.cfg.AllowedOrigins,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		s.logger.Error(r.Context(), err, "websocket accept failed")
		return
	}

	ctx := r.Context()
	send := make(chan []byte, sendBuffer)
	s.register(conn, send)
	defer s.unregister(conn)

	go s.writePump(ctx, conn, send)

	// Initial render so a reconnecting client catches up immediately.
	if msg, err := s.renderMessage(); err == nil {
		send <- msg
	} else {
		s.logger.Error(ctx, err, "initial render failed")
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				s.logger.Debug(ctx, "websocket read ended", "error", err.Error())
			}
			return
		}

		var msg eventMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn(ctx, err, "malformed event message")
			continue
		}

		if err := s.dispatch(msg); err != nil {
			s.logger.Error(ctx, err, "event dispatch failed",
				"handle", int(msg.Handle), "event", msg.Event)
			continue
		}
		s.Broadcast()
	}
}

// dispatch delivers one browser event to the runtime under the runtime
// mutex and surfaces any error the apply cycle produced.
func (s *DevServer) dispatch(msg eventMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Value != nil {
		s.rt.FireValue(msg.Handle, msg.Event, *msg.Value)
	} else {
		s.rt.Fire(msg.Handle, msg.Event)
	}
	return s.rt.Err()
}

// Reload remounts the runtime and pushes the fresh document to every
// client. The watcher calls this after templates change on disk.
func (s *DevServer) Reload(ctx context.Context) error {
	s.mu.Lock()
	err := s.rt.Remount(ctx)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("remount: %w", err)
	}
	s.Broadcast()
	return nil
}

// Broadcast sends the current document to every connected client. Clients
// whose queues are full are skipped; they will catch up on their next
// event round trip.
func (s *DevServer) Broadcast() {
	msg, err := s.renderMessage()
	if err != nil {
		s.logger.Error(context.Background(), err, "render for broadcast failed")
		return
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for _, send := range s.clients {
		select {
		case send <- msg:
		default:
		}
	}
}

// renderMessage serializes the annotated document as a render frame.
func (s *DevServer) renderMessage() ([]byte, error) {
	s.mu.Lock()
	page, err := annotatedHTML(s.rt)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return json.Marshal(renderMessage{Type: "render", HTML: page})
}

func (s *DevServer) register(conn *websocket.Conn, send chan []byte) {
	s.clientsMu.Lock()
	s.clients[conn] = send
	s.clientsMu.Unlock()
}

func (s *DevServer) unregister(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if send, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		close(send)
	}
	s.clientsMu.Unlock()
	if err := conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		s.logger.Debug(context.Background(), "websocket close", "error", err.Error())
	}
}

// ClientCount reports the number of connected clients.
func (s *DevServer) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *DevServer) writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	for msg := range send {
		writeCtx, cancel := context.WithTimeout(ctx, writeWait)
		err := conn.Write(writeCtx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
}
