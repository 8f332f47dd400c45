package api

import (
	"embed"
	"html/template"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer renders the embedded HTML templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() *Renderer {
	return &Renderer{templates: template.Must(template.ParseFS(templateFS, "templates/*.html"))}
}

// Render implements echo.Renderer.
func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type indexData struct {
	SessionID string
}

// Index serves the chat page, creating the session if needed.
// GET /
func (h *Handler) Index(c echo.Context) error {
	session, err := h.service.EnsureSession(c.Request().Context(), c.QueryParam("session_id"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.Render(http.StatusOK, "index.html", indexData{SessionID: session.SessionID})
}
