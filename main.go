package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"selfcheckout/internal/config"
	"selfcheckout/internal/database"
	"selfcheckout/internal/identity"
	"selfcheckout/internal/logging"
	"selfcheckout/internal/middleware"
	"selfcheckout/internal/models"
	"selfcheckout/internal/notify"
	"selfcheckout/internal/payment"
	"selfcheckout/internal/repositories"
	"selfcheckout/internal/server"
	"selfcheckout/internal/services"
	"selfcheckout/pkg/rabbitmq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	logger, logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogFile, cfg.LogToFile)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := start(ctx, cfg, logger)
	stop()

	// os.Exit skips deferred calls, so the log file is closed here
	if err := logCloser.Close(); err != nil {
		log.Printf("failed to close log file: %v", err)
	}
	os.Exit(code)
}

// start validates the configuration and serves until ctx is cancelled. It returns the
// process exit code.
func start(ctx context.Context, cfg *config.Config, logger *logging.Logger) int {
	if err := cfg.Validate(); err != nil {
		if cfg.IsProduction() {
			logger.Errorf("invalid configuration: %v", err)
			return 1
		}
		logger.Warnf("configuration incomplete, continuing in %s mode: %v", cfg.Env, err)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Errorf("server stopped with error: %v", err)
		return 1
	}
	logger.Infof("server gracefully stopped")
	return 0
}

// run builds the application and serves it until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	app, closers, err := buildApp(ctx, cfg, logger)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i].Close(); cerr != nil {
				logger.Warnf("error during shutdown: %v", cerr)
			}
		}
	}()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("starting server on %s (%s)", cfg.AppPort, cfg.Env)
		return app.Listen(cfg.AppPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("shutting down server...")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	return g.Wait()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// buildApp wires repositories, services and optional integrations into a Fiber app.
// The returned closers must be closed in reverse order, even when err is not nil.
func buildApp(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*fiber.App, []io.Closer, error) {
	var closers []io.Closer
	checks := map[string]func() string{}

	var (
		productRepo repositories.ProductRepository
		userRepo    repositories.UserRepository
		orderRepo   repositories.OrderRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, closerFunc(func() error { return database.Close(db) }))
		checks["database"] = dbCheck(db)
		productRepo = repositories.NewGORMProductRepository(db)
		userRepo = repositories.NewGORMUserRepository(db)
		orderRepo = repositories.NewGORMOrderRepository(db)
	} else {
		if cfg.IsProduction() {
			return nil, closers, errors.New("DATABASE_URL must be set in production")
		}
		logger.Warnf("DATABASE_URL not set, using in-memory storage")
		checks["database"] = func() string { return "in-memory" }
		memProducts := repositories.NewMockProductRepository()
		seedProducts(ctx, memProducts, logger)
		productRepo = memProducts
		userRepo = repositories.NewMockUserRepository()
		orderRepo = repositories.NewMockOrderRepository()
	}

	var publisher services.EventPublisher
	checks["rabbitmq"] = func() string { return "disabled" }
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			// Events are best effort; the API works without a broker.
			logger.Warnf("RabbitMQ unavailable, order events disabled: %v", err)
		} else {
			closers = append(closers, mqClient)
			publisher = mqClient
			checks["rabbitmq"] = func() string { return "connected" }
		}
	}

	rateLimit := middleware.RateLimitConfig{Max: cfg.RateLimitMax, Window: cfg.RateLimitWindow}
	if cfg.RedisURL != "" {
		storage, err := middleware.NewRedisStorage(cfg.RedisURL)
		if err != nil {
			logger.Warnf("Redis unavailable, rate limiting per instance: %v", err)
		} else {
			closers = append(closers, closerFunc(storage.Close))
			rateLimit.Storage = storage
		}
	}

	authOpts := services.AuthOptions{
		JWTSecret:   cfg.JWTSecret,
		TokenTTL:    cfg.JWTExpiresIn,
		FrontendURL: cfg.FrontendURL,
		ExposeOTP:   cfg.IsDevelopment(),
		OTPSender:   notify.NewLogOTPSender(logger),
		Mailer:      notify.NewLogMailer(logger),
	}
	if cfg.SMTPEnabled() {
		authOpts.Mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		}, logger)
	}
	if cfg.FirebaseEnabled() {
		verifier, err := identity.NewFirebaseVerifier(ctx, identity.Config{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentialsFile,
			CredentialsJSON: cfg.FirebaseCredentialsJSON,
		})
		if err != nil {
			return nil, closers, fmt.Errorf("failed to initialize Firebase: %w", err)
		}
		authOpts.Identity = verifier
	} else {
		logger.Infof("Firebase not configured, identity-provider login disabled")
	}

	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(orderRepo, productRepo, publisher, logger)
	authService := services.NewAuthService(userRepo, authOpts, logger)
	paymentService := services.NewPaymentService(
		payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayBaseURL),
		orderService,
		services.PaymentOptions{
			KeyID:           cfg.RazorpayKeyID,
			KeySecret:       cfg.RazorpayKeySecret,
			DefaultCurrency: cfg.DefaultCurrency,
		},
		logger,
	)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return nil, closers, fmt.Errorf("failed to ensure admin account: %w", err)
		}
	}

	app := server.New(server.Deps{
		Products:    productService,
		Orders:      orderService,
		Auth:        authService,
		Payments:    paymentService,
		Log:         logger,
		Production:  cfg.IsProduction(),
		FrontendURL: cfg.FrontendURL,
		RateLimit:   rateLimit,
		Checks:      checks,
	})
	return app, closers, nil
}

func dbCheck(db *gorm.DB) func() string {
	return func() string {
		sqlDB, err := db.DB()
		if err != nil {
			return "error"
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			return "unreachable"
		}
		return "connected"
	}
}

// seedProducts populates the in-memory catalog so the scanner has something to find.
func seedProducts(ctx context.Context, repo repositories.ProductRepository, logger *logging.Logger) {
	products := []models.Product{
		{Barcode: "1234567890123", Name: "Whole Milk 1L", Price: 1.50, Category: "Dairy", Stock: 40, IsActive: true},
		{Barcode: "9876543210987", Name: "Banana", Price: 0.10, Category: "Produce", Stock: 200, IsActive: true},
		{Barcode: "5901234123457", Name: "Wholegrain Bread", Price: 2.25, Category: "Bakery", Stock: 25, IsActive: true},
	}

	for i := range products {
		if err := repo.Create(ctx, &products[i]); err != nil {
			logger.Warnf("error seeding product %s: %v", products[i].Barcode, err)
		} else {
			logger.Debugf("seeded product %s (%s)", products[i].Barcode, products[i].Name)
		}
	}
}
