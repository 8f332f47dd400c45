package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

// Chat answers one message.
// POST /api/chat
func (h *Handler) Chat(c echo.Context) error {
	req, err := decodeChatRequest(c.Request().Body)
	if err != nil {
		return chatError(c, err)
	}

	resp, err := h.service.Chat(c.Request().Context(), req)
	if err != nil {
		return chatError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func decodeChatRequest(body io.Reader) (domain.ChatRequest, error) {
	var req domain.ChatRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return req, nil
}

func chatError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return errorJSON(c, http.StatusBadRequest, "Invalid JSON")
	case errors.Is(err, domain.ErrEmptyMessage):
		return errorJSON(c, http.StatusBadRequest, "Message cannot be empty")
	}
	log.Printf("ERROR: chat failed: %v", err)
	return errorJSON(c, http.StatusInternalServerError, err.Error())
}
