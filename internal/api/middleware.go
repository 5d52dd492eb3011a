package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// observe logs and counts every request by route pattern.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			// Let echo write the response now so the status is known
			c.Error(err)
		}

		status := c.Response().Status
		elapsed := time.Since(start)
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		s.metrics.RecordHTTPRequest(c.Request().Method, path, status, elapsed)

		entry := s.log.WithFields(logrus.Fields{
			"event_type":  "http_request",
			"method":      c.Request().Method,
			"path":        path,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
		})
		if status >= 500 {
			entry.WithError(err).Error("request failed")
		} else {
			entry.Debug("request served")
		}
		return nil
	}
}

// deadline bounds each request's context by the configured timeout.
func (s *Server) deadline(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), s.timeout)
		defer cancel()
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
