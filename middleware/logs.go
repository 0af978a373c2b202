package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"FalconFreight/Metrics"

	"github.com/gofiber/fiber/v2"
)

// LogConfig holds configuration for the request logger
type LogConfig struct {
	Logger *slog.Logger
	// Skip logging for specific paths
	SkipPaths []string
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Logger:    slog.Default(),
		SkipPaths: []string{"/health", "/metrics"},
	}
}

// RequestLogger logs every request and counts it by route, method and status.
func RequestLogger(config ...LogConfig) fiber.Handler {
	cfg := DefaultLogConfig()
	if len(config) > 0 {
		cfg = config[0]
		if cfg.Logger == nil {
			cfg.Logger = slog.Default()
		}
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := skip[c.Path()]; ok {
			return c.Next()
		}
		start := time.Now()

		err := c.Next()
		if err != nil {
			// Let the app's error handler write the response before we read
			// the status.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		latency := time.Since(start)
		status := c.Response().StatusCode()
		route := c.Route().Path

		Metrics.HTTPRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		Metrics.HTTPDuration.WithLabelValues(c.Method(), route).Observe(latency.Seconds())

		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", latency.String(),
			"ip", c.IP(),
		}
		if who, ok := CurrentIdentity(c); ok {
			attrs = append(attrs, "user_id", who.UserID, "role", who.Role)
		}
		if err != nil {
			attrs = append(attrs, "error", err.Error())
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			cfg.Logger.Error("request", attrs...)
		case status >= fiber.StatusBadRequest:
			cfg.Logger.Warn("request", attrs...)
		default:
			cfg.Logger.Info("request", attrs...)
		}
		return nil
	}
}
