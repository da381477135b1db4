// Package server exposes conversions over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ivlev/pdf2png/internal/engine"
	"github.com/ivlev/pdf2png/internal/objecturl"
	"github.com/ivlev/pdf2png/internal/pdflib"
	"github.com/ivlev/pdf2png/internal/system"
)

// FormField is the multipart field carrying the uploaded PDF.
const FormField = "pdf"

// Options wires a Server.
type Options struct {
	Converter *engine.Converter
	Store     *objecturl.Store
	// Loader is reported by /health; it may be nil.
	Loader         *pdflib.Loader
	Backend        string
	MaxUploadBytes int64
	Version        string
	Logger         *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	Echo *echo.Echo

	conv    *engine.Converter
	store   *objecturl.Store
	loader  *pdflib.Loader
	backend string
	maxSize int64
	version string
	logger  *slog.Logger
}

// New builds the server and registers its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Echo:    echo.New(),
		conv:    opts.Converter,
		store:   opts.Store,
		loader:  opts.Loader,
		backend: opts.Backend,
		maxSize: opts.MaxUploadBytes,
		version: opts.Version,
		logger:  logger,
	}

	e := s.Echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	if s.maxSize > 0 {
		// headroom for multipart headers
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dB", s.maxSize+1<<20)))
	}

	e.POST("/convert", s.Convert)
	e.GET("/preview/:id", s.Preview)
	e.DELETE("/preview/:id", s.Revoke)
	e.GET("/health", s.Health)
	return s
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting server", "address", addr, "backend", s.backend)
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

type convertResponse struct {
	Name       string  `json:"name"`
	DisplayURL string  `json:"display_url"`
	PreviewURL string  `json:"preview_url"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Scale      float64 `json:"scale"`
	Bytes      int     `json:"bytes"`
	Fallback   bool    `json:"fallback"`
}

type failureResponse struct {
	Kind    engine.Kind `json:"kind"`
	Message string      `json:"message"`
}

// Convert renders the first page of an uploaded PDF. With ?format=png the
// image itself is returned, otherwise a JSON description with a preview URL.
func (s *Server) Convert(c echo.Context) error {
	fh, err := c.FormFile(FormField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("missing %q file field", FormField))
	}
	if s.maxSize > 0 && fh.Size > s.maxSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "document too large")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}

	res := s.conv.Convert(c.Request().Context(), engine.Request{Data: data, Name: path.Base(fh.Filename)})
	if !res.OK() {
		return c.JSON(statusFor(res.Failure.Kind), failureResponse{Kind: res.Failure.Kind, Message: res.Failure.Message})
	}

	out := res.Success
	if c.QueryParam("format") == "png" {
		// No URL is needed when the bytes are sent directly.
		s.conv.Revoke(out.DisplayURL)
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", out.Name))
		return c.Blob(http.StatusOK, out.Image.Type(), out.Image.Bytes())
	}
	return c.JSON(http.StatusOK, convertResponse{
		Name:       out.Name,
		DisplayURL: out.DisplayURL,
		PreviewURL: "/preview/" + objecturl.ID(out.DisplayURL),
		Width:      out.Plan.Width,
		Height:     out.Plan.Height,
		Scale:      out.Plan.Scale,
		Bytes:      out.Image.Len(),
		Fallback:   out.Fallback,
	})
}

// Preview serves the image behind a display URL.
func (s *Server) Preview(c echo.Context) error {
	blob, err := s.store.Lookup(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "preview not found")
	}
	return c.Blob(http.StatusOK, blob.Type(), blob.Bytes())
}

// Revoke drops a display URL.
func (s *Server) Revoke(c echo.Context) error {
	s.store.RevokeObjectURL(objecturl.Scheme + c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

type healthResponse struct {
	Status   string         `json:"status"`
	Backend  string         `json:"backend"`
	Library  string         `json:"library"`
	Version  string         `json:"version,omitempty"`
	Previews int            `json:"previews"`
	Memory   *system.Memory `json:"memory,omitempty"`
}

// Health reports the library state and host memory.
func (s *Server) Health(c echo.Context) error {
	resp := healthResponse{
		Status:   "ok",
		Backend:  s.backend,
		Library:  pdflib.Unloaded.String(),
		Version:  s.version,
		Previews: s.store.Len(),
	}
	if s.loader != nil {
		resp.Library = s.loader.State().String()
	}
	if m, err := system.ReadMemory(); err == nil {
		resp.Memory = &m
	} else {
		s.logger.Debug("memory read failed", "error", err)
	}
	return c.JSON(http.StatusOK, resp)
}

func statusFor(kind engine.Kind) int {
	switch kind {
	case engine.DocumentParseFailure:
		return http.StatusUnprocessableEntity
	case engine.EnvironmentUnsupported, engine.LibraryLoadFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
