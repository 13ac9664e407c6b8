package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"selfcheckout/internal/apperr"
)

// RateLimitConfig caps requests per client IP.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// Storage holds the counters. Nil keeps them in process memory.
	Storage fiber.Storage
}

// RateLimiter rejects requests beyond Max per rolling Window with TooManyRequests.
func RateLimiter(cfg RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               cfg.Max,
		Expiration:        cfg.Window,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return apperr.TooManyRequests("Too many requests, please try again later.")
		},
	})
}
