// Package api exposes the bit store and the G-code generator over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/japaniel/cncbits/pkg/generate"
	"github.com/japaniel/cncbits/pkg/store"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodySize bounds request bodies; every payload here is a few hundred bytes.
const maxBodySize = 64 * 1024

const shutdownTimeout = 5 * time.Second

// Store is what the handlers need from the persistence layer.
type Store interface {
	store.BitCoordinateStore
	store.BitCatalog
}

// Server holds the echo instance and its dependencies.
type Server struct {
	Echo *echo.Echo

	store     Store
	generator *generate.Generator
	logger    *slog.Logger
}

// New builds a server with all routes registered. gatherer backs /metrics
// and may be nil to leave the endpoint out.
func New(st Store, gen *generate.Generator, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{Echo: e, store: st, generator: gen, logger: logger}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64K"))
	e.Use(s.requestLogger())

	v1 := e.Group("/api/v1")
	v1.GET("/bits", s.ListBits)
	v1.POST("/bits", s.CreateBit)
	v1.GET("/coordinates", s.ListCoordinates)
	v1.PUT("/coordinates/:id", s.UpdateCoordinate)
	v1.POST("/gcode/:operation", s.Generate)

	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			s.logger.LogAttrs(c.Request().Context(), slog.LevelDebug, "request", attrs...)
			return nil
		},
	})
}

// Start listens on addr and serves until ctx is cancelled, then shuts down
// gracefully. A clean shutdown returns nil.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Echo.Listener = ln
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Echo.Start("")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}
