package routes

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/arnold/kanban-collab-api/internal/config"
	"github.com/arnold/kanban-collab-api/internal/handlers"
	"github.com/arnold/kanban-collab-api/internal/middleware"
)

// NewApp builds the fiber app with the shared middleware stack.
func NewApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "kanban-collab-api",
		DisableStartupMessage: cfg.IsProduction(),
	})

	app.Use(recover.New())

	prometheus := fiberprometheus.New("kanban_collab")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: cfg.AllowedOrigins != "*",
	}))
	return app
}

func Setup(app *fiber.App, h *handlers.Handler, ws *handlers.WebSocketHandler, identity *middleware.Identity) {
	api := app.Group("/api")

	api.Get("/health", h.Health)
	api.Post("/identity", h.IssueIdentity)

	boards := api.Group("/boards")
	boards.Get("/", h.GetBoards)
	boards.Post("/", h.CreateBoard)
	boards.Get("/:id", h.GetBoard)
	boards.Delete("/:id", h.DeleteBoard)

	api.Get("/audit-logs/:boardId", h.GetAuditLogs)

	notifications := api.Group("/notifications")
	notifications.Get("/:userId", h.GetNotifications)
	notifications.Put("/:id/read", h.MarkNotificationRead)

	// WebSocket for real-time board collaboration
	app.Use("/ws", handlers.WebSocketUpgrade(), identity.Identify())
	app.Get("/ws", websocket.New(ws.Handle))
}
