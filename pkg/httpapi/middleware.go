package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/abdhe/code-assistant/pkg/logging"
)

const headerRequestID = echo.HeaderXRequestID

// requestID tags each request with an id, echoed back in the response, and
// stores a logger carrying it in the request context.
func requestID(base *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c *echo.Context, id string) {
			req := c.Request()
			l := base.With("request_id", id)
			c.SetRequest(req.WithContext(logging.WithContext(req.Context(), l)))
		},
	})
}

func cors(origins []string) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		MaxAge:       600,
	})
}

// bodyLimit caps request bodies and answers oversized ones with the usual
// error body.
func bodyLimit(limit int64) echo.MiddlewareFunc {
	limiter := middleware.BodyLimit(limit)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		h := limiter(next)
		return func(c *echo.Context) error {
			err := h(c)
			if isTooLarge(err) {
				return c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: "Request body too large."})
			}
			return err
		}
	}
}

func isTooLarge(err error) bool {
	var sc interface{ StatusCode() int }
	return errors.As(err, &sc) && sc.StatusCode() == http.StatusRequestEntityTooLarge
}
