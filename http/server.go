// server/http/server.go
package http

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ViniZap4/lumi-drive/auth"
	"github.com/ViniZap4/lumi-drive/domain"
	"github.com/ViniZap4/lumi-drive/reminders"
	"github.com/ViniZap4/lumi-drive/repository"
	"github.com/ViniZap4/lumi-drive/taxonomy"
	"github.com/ViniZap4/lumi-drive/ws"
)

const requestIDHeader = "X-Request-ID"

// ReminderSyncer runs one reminder sync.
type ReminderSyncer interface {
	Sync(ctx context.Context) (reminders.Result, error)
}

type Server struct {
	repo     *repository.Repository
	taxonomy *taxonomy.Taxonomy
	hub      *ws.Hub
	guard    *auth.Guard
	syncer   ReminderSyncer
	log      zerolog.Logger
	app      *fiber.App
	pending  sync.WaitGroup
}

// NewServer wires the routes. syncer may be nil, which disables
// /api/reminders/sync.
func NewServer(repo *repository.Repository, tax *taxonomy.Taxonomy, hub *ws.Hub, guard *auth.Guard, syncer ReminderSyncer, log zerolog.Logger) *Server {
	s := &Server{
		repo:     repo,
		taxonomy: tax,
		hub:      hub,
		guard:    guard,
		syncer:   syncer,
		log:      log,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "lumi-drive",
		DisableStartupMessage: true,
		// params and queries outlive the handler in the listing cache,
		// the hub and the async error log
		Immutable:    true,
		ErrorHandler: s.errorHandler,
	})
	s.app.Use(s.accessLog)
	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type," + auth.HeaderToken,
	}))

	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"name": "lumi-drive", "status": "ok"})
	})
	s.app.Get("/ws", ws.Upgrade, hub.Handler())

	api := s.app.Group("/api", guard.Middleware())
	api.Get("/auth", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"success": true}) })
	api.Get("/counts", s.handleCounts)
	api.Get("/items/:folder", s.handleList)
	api.Get("/item/:id", s.handleItem)
	api.Post("/items", s.handleCreate)
	api.Put("/items/:id", s.handleUpdate)
	api.Post("/items/:id/move", s.handleMove)
	api.Post("/items/:id/pin", s.handlePin)
	api.Post("/items/:id/project", s.handleProject)
	api.Delete("/items/:id", s.handleDelete)
	api.Get("/companies", s.handleCompanies)
	api.Get("/projects", s.handleProjects)
	api.Get("/organizations", s.handleOrganizations)
	api.Get("/config", s.handleConfig)
	api.Post("/export", s.handleExport)
	api.Post("/refresh", s.handleRefresh)
	api.Post("/reminders/sync", s.handleReminderSync)

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.log.Info().Str("addr", addr).Msg("server starting")
	return s.app.Listen(addr)
}

// Shutdown stops the listener and waits for pending error-log writes.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.Wait()
	return err
}

// Wait blocks until every asynchronous error-log write has finished.
func (s *Server) Wait() {
	s.pending.Wait()
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	id := c.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDHeader, id)
	c.Locals("request_id", id)

	if err := c.Next(); err != nil {
		if herr := s.errorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	status := c.Response().StatusCode()
	ev := s.log.Info()
	if status >= fiber.StatusInternalServerError {
		ev = s.log.Error()
	}
	ev.Str("request_id", id).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("latency", time.Since(start)).
		Msg("request")
	return nil
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	kind := "internal"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		status = fe.Code
	case domain.IsNotFound(err):
		status, kind = fiber.StatusNotFound, "not_found"
	case domain.IsValidation(err):
		status, kind = fiber.StatusBadRequest, "validation"
	case domain.IsBackend(err):
		status, kind = fiber.StatusBadGateway, "backend"
	}

	if fe == nil {
		s.logErrorAsync(kind, err.Error(), map[string]any{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"request_id": c.Locals("request_id"),
		})
	}
	return c.Status(status).JSON(fiber.Map{"success": false, "error": err.Error()})
}

func (s *Server) logErrorAsync(kind, message string, details map[string]any) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.repo.LogError(ctx, kind, message, details)
	}()
}
