package ops

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/davit-gh/speech2text-bot/internal/storage"
)

// Server exposes a small operational API next to the bot: health,
// recent sessions, stored transcript text, and a live event feed.
type Server struct {
	app *fiber.App
	db  *storage.MetadataDB
	hub *EventHub
	log *logrus.Entry
}

// NewServer wires the routes. db may be nil when persistence is off.
func NewServer(db *storage.MetadataDB, hub *EventHub, log *logrus.Entry) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	s := &Server{app: app, db: db, hub: hub, log: log}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	app.Get("/transcripts", s.listSessions)
	app.Get("/transcripts/:id/text", s.transcriptText)
	app.Get("/ws/events", websocket.New(hub.Serve))

	return s
}

func (s *Server) listSessions(c *fiber.Ctx) error {
	if s.db == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "persistence disabled"})
	}
	limit := c.QueryInt("limit", 50)
	records, err := s.db.ListSessions(limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(records)
}

func (s *Server) transcriptText(c *fiber.Ctx) error {
	if s.db == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "persistence disabled"})
	}
	text, err := s.db.TranscriptText(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "transcript not found"})
	}
	return c.SendString(text)
}

// Listen serves until the app is shut down.
func (s *Server) Listen(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.log.WithField("addr", addr).Info("ops server listening")
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
