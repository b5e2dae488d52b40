// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jsonrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gpopd/gpopd/internal/event"
	"github.com/gpopd/gpopd/internal/log"
	"github.com/gpopd/gpopd/internal/manager"
	"github.com/gpopd/gpopd/internal/metrics"
)

// outboundCapacity bounds a connection's unsent message backlog. A slow
// reader never blocks the event fan-out or other connections: once full,
// the newest message is dropped rather than stalling the writer.
const outboundCapacity = 256

// maxClients bounds total concurrent WebSocket connections this server
// will accept.
const maxClients = 1000

// upgrader accepts every Origin at the library layer; the daemon applies
// its own allow-list policy before upgrading.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server wires the JSON-RPC/WebSocket transport to a manager.Manager.
type Server struct {
	manager        *manager.Manager
	apiKey         string
	allowedOrigins []string

	clients atomic.Int64
}

// NewServer constructs a transport bound to m. apiKey disables
// authentication when empty; allowedOrigins disables origin checks when
// empty.
func NewServer(m *manager.Manager, apiKey string, allowedOrigins []string) *Server {
	return &Server{manager: m, apiKey: apiKey, allowedOrigins: allowedOrigins}
}

// Router builds the chi mux exposing this server's single /ws endpoint.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWebSocket)
	return r
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponent("jsonrpc")

	if !originAllowed(r, s.allowedOrigins) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	if status := authStatus(r, s.apiKey); status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if s.clients.Add(1) > maxClients {
		s.clients.Add(-1)
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.clients.Add(-1)
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	metrics.WSClients.Inc()

	connID := uuid.NewString()
	connLogger := log.WithContext(log.ContextWithConnectionID(context.Background(), connID), logger)
	c := &connection{server: s, conn: conn, out: make(chan []byte, outboundCapacity), logger: connLogger}
	go c.run()
}

// connection owns one upgraded WebSocket and its lifetime: an inbound
// reader, an outbound writer, and an event-forwarding subscription. When the
// reader observes the socket is gone, it tears down the other two.
type connection struct {
	server *Server
	conn   *websocket.Conn
	out    chan []byte
	logger zerolog.Logger
}

func (c *connection) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := c.server.manager.Subscribe()
	defer sub.Close()

	writerDone := make(chan struct{})
	forwarderDone := make(chan struct{})
	go c.writePump(ctx, writerDone)
	go func() {
		c.forwardEvents(ctx, sub)
		close(forwarderDone)
	}()

	c.readPump(ctx)

	cancel()
	<-writerDone
	<-forwarderDone
	_ = c.conn.Close()
	c.server.clients.Add(-1)
	metrics.WSClients.Dec()
}

// readPump decodes inbound JSON-RPC requests and enqueues their responses.
// The legacy "snapshot" method bypasses the envelope; every other method
// goes through Dispatch.
func (c *connection) readPump(ctx context.Context) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.enqueue(mustMarshal(errorResponse("", CodeParseError, "invalid JSON-RPC request")))
			continue
		}
		if req.ID == "" || req.Method == "" {
			c.enqueue(mustMarshal(errorResponse(req.ID, CodeInvalidRequest, "invalid request: id and method are required")))
			continue
		}

		// correlation_id is a fresh per-request id and request_id is the
		// client's own id; both tag this request's dispatch log line only.
		// Neither is passed to the manager, so async events do not carry them.
		reqCtx := log.ContextWithRequestID(ctx, req.ID)
		reqCtx = log.ContextWithCorrelationID(reqCtx, uuid.NewString())
		log.WithContext(reqCtx, c.logger).Debug().Str("method", req.Method).Msg("dispatching request")

		if req.Method == "snapshot" {
			result, err := BuildSnapshot(c.server.manager, req.Params)
			if err != nil {
				c.enqueue(mustMarshal(errorResponse(req.ID, codeForError(err), err.Error())))
				continue
			}
			c.enqueue(mustMarshal(result))
			continue
		}

		c.enqueue(mustMarshal(Dispatch(c.server.manager, req)))
	}
}

// forwardEvents relays every delivery on sub to the connection's outbound
// queue until ctx is cancelled (the reader observed the socket close) or
// the subscription itself is closed.
func (c *connection) forwardEvents(ctx context.Context, sub *event.Subscription) {
	for {
		delivery, err := sub.Recv(ctx)
		if err != nil {
			return
		}
		c.enqueue(mustMarshal(delivery.Event))
	}
}

func (c *connection) writePump(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case msg := <-c.out:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// enqueue drops msg rather than block when the backlog is full, logging
// the drop so an operator can see a client falling behind.
func (c *connection) enqueue(msg []byte) {
	select {
	case c.out <- msg:
	default:
		c.logger.Warn().Msg("websocket client backlog full, dropping outbound message")
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.L().Error().Err(err).Msg("failed to marshal outbound frame")
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"internal error"}}`)
	}
	return b
}
