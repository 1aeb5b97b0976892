package middleware

import (
	"strconv"
	"time"

	"dailyforge/pkg/metrics"

	"github.com/gofiber/fiber/v2"
)

// Metrics records request counts and latency labelled by route pattern.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path
		if path == "" || path == "/" && c.Path() != "/" {
			path = "unmatched"
		}

		metrics.ReqCount.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		metrics.ReqDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}
