// Package api provides the HTTP handlers of the model router.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
	"github.com/xiaot623/gogo/modelrouter/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.Health)

	// Chat API
	e.POST("/chat", h.Chat)
	e.POST("/upload-pdf", h.UploadDocument)
	e.DELETE("/session/:session_id", h.DeleteSession)
	e.GET("/session/:session_id/history", h.GetSessionHistory)
	e.GET("/session/:session_id/events", h.GetSessionEvents)

	// Routing and tools
	e.POST("/v1/route", h.Route)
	e.POST("/v1/tools/:tool_name/invoke", h.InvokeTool)
}

// Root returns the service banner.
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, domain.HealthResponse{
		Status:  "ok",
		Message: "Multi-Model AI Chat System is running",
	})
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, domain.HealthResponse{
		Status:  "healthy",
		Message: "All systems operational",
	})
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
