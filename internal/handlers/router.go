package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// Routes holds the handlers to mount. Meetings and Metrics are optional.
type Routes struct {
	Transcribe *TranscribeHandler
	Meetings   *MeetingsHandler
	Health     *HealthHandler
	Logs       *LogsHandler
	Metrics    http.Handler
}

// Register mounts the API on app
func Register(app *fiber.App, r Routes) {
	api := app.Group("/api")

	api.Post("/transcribe", r.Transcribe.Handle)
	api.Get("/health", r.Health.Handle)
	api.Get("/logs", r.Logs.Handle)

	if r.Meetings != nil {
		api.Get("/meetings", r.Meetings.List)
		api.Get("/meetings/:id", r.Meetings.Get)
		api.Delete("/meetings/:id", r.Meetings.Delete)
	}

	if r.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(r.Metrics))
	}
}
