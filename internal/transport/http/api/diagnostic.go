package api

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Diagnose runs the fixed self-test question through the agent.
// POST /api/test
func (h *Handler) Diagnose(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		return errorJSON(c, http.StatusMethodNotAllowed, "Only POST method allowed")
	}
	resp, err := h.service.Diagnose(c.Request().Context())
	if err != nil {
		log.Printf("ERROR: diagnostic run failed: %v", err)
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}
