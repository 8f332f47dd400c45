// Package api provides the HTTP handlers of the research assistant.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
	"github.com/xiaot623/gogo/researchbot/internal/service"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

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

// RegisterRoutes registers routes with the echo server. apiMiddleware is
// applied to the /api group only.
func (h *Handler) RegisterRoutes(e *echo.Echo, apiMiddleware ...echo.MiddlewareFunc) {
	e.GET("/", h.Index)
	e.GET("/health", h.Health)

	g := e.Group("/api", apiMiddleware...)
	g.POST("/chat", h.Chat)
	g.GET("/history/:session_id", h.History)
	g.Any("/test", h.Diagnose)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, domain.ErrorResponse{Error: msg})
}
