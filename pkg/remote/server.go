// Package remote lets out-of-process hosts drive the plug-in over a
// WebSocket. Each connection is a session that issues property and IO
// requests and receives PropertiesChanged pushes.
package remote

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-syncvoice/internal/log"
	"github.com/teslashibe/go-syncvoice/pkg/hal"
	"github.com/teslashibe/go-syncvoice/pkg/protocol"
)

// ErrNoSession is returned when sending to an unknown session.
var ErrNoSession = errors.New("remote: session not connected")

// Backend is the property and timing surface a session talks to.
// *plugin.Driver satisfies it.
type Backend interface {
	GetProperty(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte) ([]byte, error)
	SetPropertyData(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte, data []byte) error
	GetZeroTimeStamp(deviceID hal.ObjectID, client hal.ClientID) (float64, uint64, uint64, error)
}

// IOController starts and stops IO per client. *host.Simulator satisfies it.
type IOController interface {
	Start(deviceID hal.ObjectID, client hal.ClientID) error
	Stop(deviceID hal.ObjectID, client hal.ClientID) error
}

// Session is one connected remote host.
type Session struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send writes a message to the session.
func (s *Session) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.LastSeen = time.Now()
	s.mu.Unlock()
}

// Server manages remote host sessions.
type Server struct {
	backend Backend
	io      IOController
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	requestErrors    atomic.Uint64
}

// NewServer creates a server. io may be nil, in which case start_io and
// stop_io are rejected.
func NewServer(backend Backend, io IOController, logger *slog.Logger) *Server {
	return &Server{
		backend:  backend,
		io:       io,
		logger:   log.Or(logger).With("component", "remote"),
		sessions: make(map[string]*Session),
	}
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/host", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/host", websocket.New(s.handleSession))
	app.Get("/ws/host/:id", websocket.New(s.handleSession))
}

func (s *Server) handleSession(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	sess := &Session{
		ID:        id,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	s.mu.Lock()
	if old, ok := s.sessions[id]; ok {
		old.Conn.Close()
	}
	s.sessions[id] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	s.logger.Info("host connected", "session", id, "total", count)

	defer func() {
		s.mu.Lock()
		if s.sessions[id] == sess {
			delete(s.sessions, id)
		}
		count := len(s.sessions)
		s.mu.Unlock()
		s.logger.Info("host disconnected", "session", id, "total", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			s.logger.Debug("read error", "session", id, "error", err)
			return
		}
		sess.touch()
		s.messagesReceived.Add(1)

		reply := s.handleMessage(data)
		if reply == nil {
			continue
		}
		s.messagesSent.Add(1)
		if err := sess.Send(reply); err != nil {
			s.logger.Debug("write error", "session", id, "error", err)
			return
		}
	}
}

// handleMessage executes one request and returns the reply, or nil when
// nothing should be sent back.
func (s *Server) handleMessage(data []byte) *protocol.Message {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.logger.Debug("parse error", "error", err)
		return s.errorReply("", hal.ErrIllegalOperation, err.Error())
	}

	switch msg.Type {
	case protocol.TypeGetProperty:
		req, err := msg.GetPropertyRequest()
		if err != nil {
			return s.errorReply(msg.ID, hal.ErrIllegalOperation, err.Error())
		}
		addr, err := req.Address.HAL()
		if err != nil {
			return s.errorReply(msg.ID, hal.ErrUnknownProperty, err.Error())
		}
		out, err := s.backend.GetProperty(hal.ObjectID(req.ObjectID), hal.ClientID(req.Client), addr, req.Qualifier)
		if err != nil {
			return s.errorReply(msg.ID, err, err.Error())
		}
		return s.reply(protocol.NewResultMessage(msg.ID, out))

	case protocol.TypeSetProperty:
		req, err := msg.GetPropertyRequest()
		if err != nil {
			return s.errorReply(msg.ID, hal.ErrIllegalOperation, err.Error())
		}
		addr, err := req.Address.HAL()
		if err != nil {
			return s.errorReply(msg.ID, hal.ErrUnknownProperty, err.Error())
		}
		if err := s.backend.SetPropertyData(hal.ObjectID(req.ObjectID), hal.ClientID(req.Client), addr, req.Qualifier, req.Data); err != nil {
			return s.errorReply(msg.ID, err, err.Error())
		}
		return s.reply(protocol.NewResultMessage(msg.ID, nil))

	case protocol.TypeStartIO, protocol.TypeStopIO:
		req, err := msg.GetIORequest()
		if err != nil {
			return s.errorReply(msg.ID, hal.ErrIllegalOperation, err.Error())
		}
		if s.io == nil {
			return s.errorReply(msg.ID, hal.ErrUnsupportedOperation, "io control not available")
		}
		op := s.io.Start
		if msg.Type == protocol.TypeStopIO {
			op = s.io.Stop
		}
		if err := op(hal.ObjectID(req.DeviceID), hal.ClientID(req.Client)); err != nil {
			return s.errorReply(msg.ID, err, err.Error())
		}
		return s.reply(protocol.NewResultMessage(msg.ID, nil))

	case protocol.TypeTimeStamp:
		req, err := msg.GetIORequest()
		if err != nil {
			return s.errorReply(msg.ID, hal.ErrIllegalOperation, err.Error())
		}
		sample, host, seed, err := s.backend.GetZeroTimeStamp(hal.ObjectID(req.DeviceID), hal.ClientID(req.Client))
		if err != nil {
			return s.errorReply(msg.ID, err, err.Error())
		}
		return s.reply(protocol.NewTimeStampMessage(msg.ID, sample, host, seed))

	case protocol.TypePing:
		pong, err := protocol.NewPongMessage(msg.ID, msg.Timestamp, time.Now().UnixMilli())
		return s.reply(pong, err)
	}

	return s.errorReply(msg.ID, hal.ErrUnsupportedOperation, "unknown message type "+string(msg.Type))
}

func (s *Server) reply(msg *protocol.Message, err error) *protocol.Message {
	if err != nil {
		return s.errorReply("", hal.ErrUnspecified, err.Error())
	}
	return msg
}

func (s *Server) errorReply(id string, cause error, text string) *protocol.Message {
	s.requestErrors.Add(1)
	msg, err := protocol.NewErrorMessage(id, hal.StatusOf(cause).String(), text)
	if err != nil {
		s.logger.Error("encode error reply", "error", err)
		return nil
	}
	return msg
}

// Notify pushes a PropertiesChanged notification to every session.
func (s *Server) Notify(objectID hal.ObjectID, addrs []hal.Address) {
	msg, err := protocol.NewPropertiesChangedMessage(uint32(objectID), protocol.AddressesOf(addrs))
	if err != nil {
		s.logger.Error("encode notification", "error", err)
		return
	}
	s.Broadcast(msg)
}

// Broadcast sends a message to all connected sessions
func (s *Server) Broadcast(msg *protocol.Message) {
	for _, sess := range s.Sessions() {
		s.messagesSent.Add(1)
		if err := sess.Send(msg); err != nil {
			s.logger.Debug("broadcast error", "session", sess.ID, "error", err)
		}
	}
}

// SendTo sends a message to one session.
func (s *Server) SendTo(id string, msg *protocol.Message) error {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	s.messagesSent.Add(1)
	return sess.Send(msg)
}

// Session returns a session by id, or nil.
func (s *Server) Session(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Sessions returns all connected sessions
func (s *Server) Sessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// SessionCount returns the number of connected sessions
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stats contains server statistics
type Stats struct {
	SessionCount     int    `json:"session_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	RequestErrors    uint64 `json:"request_errors"`
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	return Stats{
		SessionCount:     s.SessionCount(),
		MessagesReceived: s.messagesReceived.Load(),
		MessagesSent:     s.messagesSent.Load(),
		RequestErrors:    s.requestErrors.Load(),
	}
}

// SessionInfo describes a connected session
type SessionInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// SessionInfos returns info about all connected sessions
func (s *Server) SessionInfos() []SessionInfo {
	sessions := s.Sessions()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		infos = append(infos, SessionInfo{
			ID:        sess.ID,
			Connected: sess.Connected,
			LastSeen:  sess.LastSeen,
		})
		sess.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers session management routes
func (s *Server) RegisterAPIRoutes(api fiber.Router) {
	hosts := api.Group("/hosts")

	hosts.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"hosts": s.SessionInfos(),
			"count": s.SessionCount(),
		})
	})

	hosts.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(s.GetStats())
	})
}
