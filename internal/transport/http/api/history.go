package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

// History returns the turns of a session.
// GET /api/history/:session_id
func (h *Handler) History(c echo.Context) error {
	resp, err := h.service.History(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return errorJSON(c, http.StatusNotFound, "Session not found")
		}
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}
