package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/anjiri1684/referral_payments/configs"
	"github.com/anjiri1684/referral_payments/database"
	"github.com/anjiri1684/referral_payments/handlers"
	"github.com/anjiri1684/referral_payments/jobs"
	"github.com/anjiri1684/referral_payments/logging"
	"github.com/anjiri1684/referral_payments/notifications"
	"github.com/anjiri1684/referral_payments/payments"
	"github.com/anjiri1684/referral_payments/routes"
	"github.com/anjiri1684/referral_payments/services"
	"github.com/anjiri1684/referral_payments/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	settings := config.Load()
	log := logging.Setup("referral-payments", settings.Environment)

	if settings.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is not set")
	}
	if settings.StripeWebhookSecret == "" {
		log.Warn().Msg("STRIPE_WEBHOOK_SECRET is not set, webhooks will be rejected")
	}

	db, err := database.ConnectDB(settings.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}
	if err := database.SeedAdmin(db, settings); err != nil {
		log.Error().Err(err).Msg("admin seed failed")
	}

	users := database.NewUserStore(db)
	referrals := database.NewReferralStore(db)
	events := database.NewWebhookEventStore(db)

	hub := websocket.NewHub(log)
	email := notifications.NewEmailService(settings, log)
	notifier := notifications.Fanout{hub}
	if email != nil {
		notifier = append(notifier, email)
	}

	stripeClient := payments.NewStripeClient(payments.StripeConfig{SecretKey: settings.StripeSecretKey})
	if !stripeClient.Configured() {
		log.Warn().Msg("STRIPE_SECRET_KEY is not set, payment endpoints will fail")
	}

	h := &handlers.Handler{
		Ledger: services.NewLedgerService(database.NewLedgerStore(db), notifier, log,
			services.WithRewardAmount(settings.ReferralRewardAmount)),
		Dispatcher: services.NewWebhookDispatcher(stripeClient, events, log, settings.StripeWebhookSecret),
		Payments:   stripeClient,
		Accounts:   users,
		Referrals:  referrals,
		Events:     events,
		Hub:        hub,
		Settings:   settings,
		Logger:     log,
	}

	c := cron.New()
	err = jobs.Schedule(c,
		&jobs.PruneWebhookEvents{Events: events, RetentionDays: settings.WebhookRetentionDays, Logger: log},
		&jobs.AuditReferralCounters{Referrals: referrals, Logger: log},
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule jobs")
	}
	c.Start()
	defer c.Stop()

	app := fiber.New(fiber.Config{
		AppName:      "Referral Payments",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			log.Error().Err(err).Str("path", c.Path()).Str("method", c.Method()).Int("status", code).Msg("unhandled request error")
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Stripe-Signature, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, OPTIONS",
		ExposeHeaders: "Content-Length",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: time.RFC3339,
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to the Referral Payments API",
		})
	})
	routes.Register(app, h)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().Str("port", settings.Port).Msg("server starting")
	if err := app.Listen(":" + settings.Port); err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}
