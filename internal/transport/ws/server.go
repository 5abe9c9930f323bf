package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
)

// ChatService is the part of the service the WebSocket transport drives.
type ChatService interface {
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
	Route(ctx context.Context, req domain.RouteRequest) (*domain.RouteResponse, error)
	// OpenSession returns id when it names a live session, else a new session id.
	OpenSession(id string) string
}

// Options tune connection handling.
type Options struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	ChatTimeout    time.Duration
}

// DefaultOptions returns the connection defaults.
func DefaultOptions() Options {
	return Options{
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 * 1024,
		ChatTimeout:    2 * time.Minute,
	}
}

// Server handles WebSocket connections.
type Server struct {
	hub      *Hub
	chat     ChatService
	opts     Options
	upgrader websocket.Upgrader
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	wg     sync.WaitGroup
}

// NewServer creates a new WebSocket server.
func NewServer(h *Hub, chat ChatService, logger *zap.Logger) *Server {
	return NewServerWithOptions(h, chat, DefaultOptions(), logger)
}

// NewServerWithOptions creates a server with explicit connection options.
func NewServerWithOptions(h *Hub, chat ChatService, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		hub:  h,
		chat: chat,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close cancels in-flight chats and waits for them to finish.
// Chats arriving after Close are rejected.
func (s *Server) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

// startChat registers a chat goroutine unless the server is closed.
func (s *Server) startChat() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	return true
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return err
	}

	conn := s.hub.NewConnection(ws)
	if err := s.hub.Register(conn); err != nil {
		ws.Close()
		return nil
	}

	ws.SetReadLimit(s.opts.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read failed", zap.String("conn_id", conn.ID), zap.Error(err))
			}
			return
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Warn("websocket write failed", zap.String("conn_id", conn.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.hub.Done():
			return
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *Connection, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch baseMsg.Type {
	case TypeHello:
		s.handleHello(conn, data)
	case TypeChat:
		s.handleChat(conn, data)
	case TypeRoute:
		s.handleRoute(conn, data)
	default:
		s.sendError(conn, baseMsg.RequestID, ErrorCodeInvalidMessage, "unknown message type: "+baseMsg.Type)
	}
}

// handleHello binds the connection to an existing or new session.
func (s *Server) handleHello(conn *Connection, data []byte) {
	var msg HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	sessionID := s.chat.OpenSession(msg.SessionID)
	s.hub.BindSession(conn, sessionID)

	ack := HelloAckMessage{
		BaseMessage: BaseMessage{
			Type:      TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: msg.RequestID,
			SessionID: sessionID,
		},
	}
	s.hub.SendJSONToConnection(conn, ack)

	s.logger.Info("hello handshake completed", zap.String("conn_id", conn.ID), zap.String("session_id", sessionID))
}

// handleChat answers a chat message asynchronously and broadcasts the result to the session.
func (s *Server) handleChat(conn *Connection, data []byte) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid chat message")
		return
	}

	sessionID := conn.SessionID()
	if sessionID == "" {
		s.sendError(conn, msg.RequestID, ErrorCodeSessionRequired, "must send hello first")
		return
	}
	if strings.TrimSpace(msg.Content) == "" {
		s.sendError(conn, msg.RequestID, ErrorCodeInvalidMessage, "content is required")
		return
	}

	if !s.startChat() {
		s.sendError(conn, msg.RequestID, ErrorCodeInternalError, "server is shutting down")
		return
	}
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.ChatTimeout)
		defer cancel()

		resp, err := s.chat.Chat(ctx, domain.ChatRequest{Message: msg.Content, SessionID: sessionID})
		if err != nil {
			s.logger.Warn("chat failed", zap.String("session_id", sessionID), zap.Error(err))
			s.broadcast(sessionID, ErrorMessage{
				BaseMessage: BaseMessage{Type: TypeError, Ts: time.Now().UnixMilli(), RequestID: msg.RequestID, SessionID: sessionID},
				Code:        ErrorCodeChatFailed,
				Message:     "Chat error: " + err.Error(),
			})
			return
		}

		if resp.SessionID != sessionID {
			s.hub.BindSession(conn, resp.SessionID)
		}
		s.broadcast(resp.SessionID, DoneMessage{
			BaseMessage:     BaseMessage{Type: TypeDone, Ts: time.Now().UnixMilli(), RequestID: msg.RequestID, SessionID: resp.SessionID},
			Response:        resp.Response,
			RoutingMetadata: resp.RoutingMetadata,
		})
	}()
}

// handleRoute returns the routing decision without answering.
func (s *Server) handleRoute(conn *Connection, data []byte) {
	var msg RouteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid route message")
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.ChatTimeout)
	defer cancel()
	resp, err := s.chat.Route(ctx, domain.RouteRequest{Query: msg.Query, SessionID: conn.SessionID()})
	if err != nil {
		code := ErrorCodeInternalError
		if errors.Is(err, domain.ErrEmptyMessage) {
			code = ErrorCodeInvalidMessage
		}
		s.sendError(conn, msg.RequestID, code, err.Error())
		return
	}

	s.hub.SendJSONToConnection(conn, RouteResultMessage{
		BaseMessage: BaseMessage{Type: TypeRouteResult, Ts: time.Now().UnixMilli(), RequestID: msg.RequestID, SessionID: conn.SessionID()},
		Decision:    resp.Decision,
	})
}

func (s *Server) broadcast(sessionID string, v interface{}) {
	if err := s.hub.BroadcastJSON(sessionID, v); err != nil {
		s.logger.Warn("broadcast failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *Connection, requestID, code, message string) {
	errMsg := ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: conn.SessionID(),
		},
		Code:    code,
		Message: message,
	}
	s.hub.SendJSONToConnection(conn, errMsg)
}
