package http

import (
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, handler *Handler) {
	// Health check
	app.Get("/health", handler.HealthCheck)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		// One-shot lookup
		api.Get("/weather", handler.GetWeather)

		// Audit history
		api.Get("/lookups", handler.GetRecentLookups)

		// Interactive sessions
		sessions := api.Group("/sessions")
		sessions.Post("/", handler.CreateSession)
		sessions.Get("/:id", handler.GetSession)
		sessions.Delete("/:id", handler.DeleteSession)
		sessions.Put("/:id/query", handler.SetQuery)
		sessions.Post("/:id/keys", handler.PressKey)
		sessions.Post("/:id/search", handler.Search)
		sessions.Post("/:id/clear", handler.Clear)
		sessions.Put("/:id/units", handler.SetUnits)
		sessions.Get("/:id/events", handler.StreamSession)
	}
}
