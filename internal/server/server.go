// Package server builds the Fiber application and wires every route.
package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"selfcheckout/internal/handlers"
	"selfcheckout/internal/logging"
	"selfcheckout/internal/middleware"
	"selfcheckout/internal/services"
)

// Deps are the services and settings the HTTP layer is built from.
type Deps struct {
	Products *services.ProductService
	Orders   *services.OrderService
	Auth     *services.AuthService
	Payments *services.PaymentService
	Log      *logging.Logger

	Production  bool
	FrontendURL string
	RateLimit   middleware.RateLimitConfig
	// Checks reports the state of optional integrations on /health.
	Checks map[string]func() string
}

// New returns a Fiber app with the middleware chain and all routes registered.
func New(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Self-Checkout API",
		ErrorHandler: middleware.ErrorHandler(deps.Log, deps.Production),
		BodyLimit:    1 << 20,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: deps.Log.Writer()}))
	// Credentials cannot be combined with a wildcard origin.
	origins, credentials := deps.FrontendURL, true
	if origins == "" || origins == "*" {
		origins, credentials = "*", false
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: credentials,
	}))
	if deps.RateLimit.Max > 0 {
		app.Use(middleware.RateLimiter(deps.RateLimit))
	}

	app.Get("/health", healthHandler(deps.Checks))

	auth := middleware.AuthRequired(deps.Auth)
	api := app.Group("/api")
	handlers.NewAuthHandler(deps.Auth).RegisterRoutes(api, auth)
	handlers.NewProductHandler(deps.Products).RegisterRoutes(api, auth)
	handlers.NewOrderHandler(deps.Orders).RegisterRoutes(api, auth)
	handlers.NewPaymentHandler(deps.Payments).RegisterRoutes(api)

	return app
}

func healthHandler(checks map[string]func() string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		}
		for name, check := range checks {
			body[name] = check()
		}
		return c.JSON(body)
	}
}
