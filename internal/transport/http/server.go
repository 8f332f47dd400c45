// Package http assembles the echo server of the research assistant.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/xiaot623/gogo/researchbot/internal/config"
	"github.com/xiaot623/gogo/researchbot/internal/domain"
	"github.com/xiaot623/gogo/researchbot/internal/logging"
	"github.com/xiaot623/gogo/researchbot/internal/service"
	"github.com/xiaot623/gogo/researchbot/internal/transport/http/api"
	"github.com/xiaot623/gogo/researchbot/internal/transport/ws"
)

// NewServer creates and configures the HTTP server. wsServer may be nil.
func NewServer(cfg *config.Config, svc *service.Service, wsServer *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Renderer = api.NewRenderer()
	level := cfg.Level()
	e.Logger.SetLevel(level.Echo())

	// Middleware
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(echo.Context) bool { return level > logging.LevelInfo },
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	var apiMiddleware []echo.MiddlewareFunc
	if cfg.RateLimit > 0 {
		apiMiddleware = append(apiMiddleware, newRateLimiter(cfg.RateLimit))
	}

	// Handlers
	api.NewHandler(svc).RegisterRoutes(e, apiMiddleware...)
	if wsServer != nil {
		wsServer.RegisterRoutes(e)
	}
	return e
}

// newRateLimiter limits /api requests per client IP.
func newRateLimiter(rps float64) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(rps)),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, domain.ErrorResponse{Error: "unable to identify client"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, domain.ErrorResponse{Error: "Too many requests"})
		},
	})
}
