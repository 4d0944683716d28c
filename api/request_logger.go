package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-madr/auth"
)

// RequestLogger logs one line per request once the handler chain and the
// error handler have run
func RequestLogger(logger auth.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		args := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start).String(),
			"request_id", requestID(c),
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request", args...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}

		return nil
	}
}
