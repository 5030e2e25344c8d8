// Package web provides the HTTP control surface for the driver daemon: a
// REST API over the object tree and a live feed of property notifications.
package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-syncvoice/internal/log"
	"github.com/teslashibe/go-syncvoice/pkg/host"
	"github.com/teslashibe/go-syncvoice/pkg/hub"
	"github.com/teslashibe/go-syncvoice/pkg/plugin"
	"github.com/teslashibe/go-syncvoice/pkg/protocol"
)

// NotificationEntry is a PropertiesChanged notification as served to
// dashboards.
type NotificationEntry struct {
	Time string `json:"time"`
	protocol.PropertiesChangedData
}

// maxNotifications bounds the notification backlog.
const maxNotifications = 500

// Server is the HTTP control server
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	driver *plugin.Driver
	sim    *host.Simulator

	// Recent notifications
	notifications   []NotificationEntry
	notificationsMu sync.RWMutex

	// Hub for websocket broadcast
	notifyHub *hub.Hub
}

// NewServer creates the control server. Callers may register more routes
// on App before calling Start.
func NewServer(addr string, driver *plugin.Driver, sim *host.Simulator, logger *slog.Logger) *Server {
	logger = log.Or(logger).With("component", "web")
	s := &Server{
		addr:          addr,
		logger:        logger,
		driver:        driver,
		sim:           sim,
		notifications: make([]NotificationEntry, 0, maxNotifications),
		notifyHub:     hub.New("notifications", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "SyncVoice",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/objects", s.handleListObjects)
	api.Get("/devices", s.handleListDevices)
	api.Get("/objects/:id/properties/:selector", s.handleGetProperty)
	api.Put("/objects/:id/properties/:selector", s.handleSetProperty)
	api.Post("/devices/:id/start", s.handleStart)
	api.Post("/devices/:id/stop", s.handleStop)
	api.Get("/devices/:id/timestamp", s.handleTimeStamp)
	api.Get("/notifications", s.handleGetNotifications)

	// WebSocket upgrade middleware
	app.Use("/ws/notifications", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/notifications", websocket.New(s.handleNotificationsWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the notification hub and serves HTTP until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("http listening", "addr", s.addr)
	go s.notifyHub.Run(ctx)
	return s.app.Listen(s.addr)
}

// RunHub runs only the notification hub, for servers driven through
// App().Test.
func (s *Server) RunHub(ctx context.Context) {
	s.notifyHub.Run(ctx)
}

// Notify records a notification and broadcasts it to websocket clients.
// It has the shape of a host.Listener.
func (s *Server) Notify(n host.Notification) {
	entry := NotificationEntry{
		Time: time.Now().Format("15:04:05.000"),
		PropertiesChangedData: protocol.PropertiesChangedData{
			ObjectID:  uint32(n.ObjectID),
			Addresses: protocol.AddressesOf(n.Addresses),
		},
	}

	s.notificationsMu.Lock()
	s.notifications = append(s.notifications, entry)
	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[1:]
	}
	s.notificationsMu.Unlock()

	if err := s.notifyHub.BroadcastJSON(entry); err != nil {
		s.logger.Warn("broadcast notification", "err", err)
	}
}

// NotificationHub returns the hub feeding /ws/notifications.
func (s *Server) NotificationHub() *hub.Hub {
	return s.notifyHub
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
