// Package httpapi serves the assistant over HTTP/JSON.
package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/abdhe/code-assistant/pkg/assistant"
	"github.com/abdhe/code-assistant/pkg/gen"
	"github.com/abdhe/code-assistant/pkg/webui"
)

const defaultMaxBodyBytes = 1 << 20

// Options configures the HTTP layer.
type Options struct {
	CORSOrigins  []string // "*" allows any origin; empty disables CORS headers
	MaxBodyBytes int64
	RetryAfter   time.Duration // advertised when the generation queue is full
}

// Server binds the assistant service to HTTP routes.
type Server struct {
	svc  *assistant.Service
	opts Options
	log  *slog.Logger
}

// NewServer creates a new HTTP server for svc.
func NewServer(svc *assistant.Service, opts Options, logger *slog.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, opts: opts, log: logger.With("component", "http")}
}

// Handler returns an echo instance with middleware and routes installed.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(requestID(s.log))
	e.Use(middleware.RequestLogger())
	if len(s.opts.CORSOrigins) > 0 {
		e.Use(cors(s.opts.CORSOrigins))
	}
	e.Use(bodyLimit(s.opts.MaxBodyBytes))
	s.Register(e)
	return e
}

// Register installs the routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/", s.handleIndex)
	e.GET("/api/health", s.handleHealth)
	e.POST("/api/generate", s.handleGenerate)
	e.POST("/api/debug", s.codeHandler(s.svc.Debug))
	e.POST("/api/explain", s.codeHandler(s.svc.Explain))
	e.POST("/api/optimize", s.codeHandler(s.svc.Optimize))
}

func (s *Server) handleIndex(c *echo.Context) error {
	return c.HTML(http.StatusOK, string(webui.IndexHTML()))
}

func (s *Server) handleHealth(c *echo.Context) error {
	h := s.svc.Health()
	return c.JSON(http.StatusOK, healthBody{
		Status:          h.Status,
		ModelLoaded:     h.ModelLoaded,
		TokenizerLoaded: h.TokenizerLoaded,
		Timestamp:       h.Timestamp.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleGenerate(c *echo.Context) error {
	req, err := decodeBody[generateRequest](c)
	if err != nil {
		return writeDecodeError(c, err)
	}
	res, err := s.svc.Generate(c.Request().Context(), assistant.GenerateInput{
		Prompt:      req.Prompt,
		Language:    req.Language,
		MaxLength:   req.MaxLength.intPtr(),
		Temperature: req.Temperature.floatPtr(),
	})
	return s.writeResult(c, res, err)
}

type codeTaskFunc func(ctx context.Context, in assistant.CodeInput) (gen.Result, error)

func (s *Server) codeHandler(fn codeTaskFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		req, err := decodeBody[codeRequest](c)
		if err != nil {
			return writeDecodeError(c, err)
		}
		res, err := fn(c.Request().Context(), assistant.CodeInput{Code: req.Code, Language: req.Language})
		return s.writeResult(c, res, err)
	}
}

func (s *Server) writeResult(c *echo.Context, res gen.Result, err error) error {
	if err != nil {
		if errors.Is(err, assistant.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		}
		s.log.Error("request failed", "path", c.Request().URL.Path, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "API Error: " + err.Error()})
	}
	if !res.OK() {
		if res.Err.Reason == gen.ReasonBusy {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(s.opts.RetryAfter.Seconds())))
		}
		return c.JSON(statusFor(res.Err.Reason), errorBody{Error: res.Err.Message})
	}
	if res.Cached {
		c.Response().Header().Set("X-Cache", "HIT")
	}
	return c.JSON(http.StatusOK, replyBody{Response: res.Text})
}

// statusFor maps a generation failure to an HTTP status.
func statusFor(r gen.Reason) int {
	switch r {
	case gen.ReasonModelUnavailable, gen.ReasonBusy:
		return http.StatusServiceUnavailable
	case gen.ReasonTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody[T any](c *echo.Context) (T, error) {
	var out T
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return out, err
	}
	// A missing body is treated like an empty object so the handler
	// reports the missing field.
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	err = json.Unmarshal(data, &out)
	return out, err
}

func writeDecodeError(c *echo.Context, err error) error {
	if isTooLarge(err) {
		return err
	}
	return c.JSON(http.StatusBadRequest, errorBody{Error: "Invalid JSON body."})
}
