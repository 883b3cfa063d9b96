// Package web provides a local HTTP surface for inspecting and poking the
// avatar: connection status, the expression table and manual animation
// triggers.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/poblanc/go-avatar/pkg/animation"
	"github.com/poblanc/go-avatar/pkg/connection"
	"github.com/poblanc/go-avatar/pkg/live2d"
)

// Server is the avatar status and control server.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	conn      *connection.Manager
	scheduler *animation.Scheduler
	registry  *live2d.Registry
	engine    *live2d.Engine
}

// NewServer creates the status server around the running components.
func NewServer(port string, conn *connection.Manager, scheduler *animation.Scheduler,
	registry *live2d.Registry, engine *live2d.Engine, logger *slog.Logger) *Server {

	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		port:      port,
		logger:    logger.With("component", "web"),
		conn:      conn,
		scheduler: scheduler,
		registry:  registry,
		engine:    engine,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Avatar Status",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/expressions", s.handleListExpressions)
	api.Get("/expressions/:name", s.handleGetExpression)
	api.Post("/expressions", s.handleCreateExpression)
	api.Post("/animate", s.handleAnimate)

	s.app = app
	return s
}

// Start blocks serving HTTP.
func (s *Server) Start() error {
	s.logger.Info("status server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("status server failed", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
