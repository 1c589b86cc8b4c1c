package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/airtable"
	"storefront/internal/api"
	"storefront/internal/broker"
	"storefront/internal/cartstore"
	"storefront/internal/catalog"
	"storefront/internal/fedex"
	"storefront/internal/mailer"
	"storefront/internal/payment"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer(util.TracerOptions{
		Endpoint:    cfg.Observ.JaegerEndpoint,
		SampleRatio: cfg.Observ.TraceRatio,
		Env:         cfg.Server.Env,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Migrations applied")
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	logger.Info("Redis connected")

	records, err := airtable.NewClient(cfg.Airtable.APIKey, cfg.Airtable.BaseID,
		airtable.WithBaseURL(cfg.Airtable.BaseURL),
		airtable.WithRequestInterval(cfg.Airtable.RequestInterval),
	)
	if err != nil {
		logger.Fatal("Failed to configure Airtable", zap.Error(err))
	}

	productCatalog := catalog.New(records, redisclient.NewCache(redisClient, "catalog:"), catalog.Tables{
		Products:   cfg.Airtable.ProductsTable,
		Categories: cfg.Airtable.CategoriesTable,
	}, cfg.Airtable.CacheTTL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	var background sync.WaitGroup
	runBackground := func(name string, run func(ctx context.Context) error) {
		background.Add(1)
		go func() {
			defer background.Done()
			if err := run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Background task stopped", zap.String("task", name), zap.Error(err))
			}
		}()
	}

	var carts cartstore.Store
	if cfg.Checkout.CartStore == "memory" {
		arena := cartstore.NewMemory(cfg.Checkout.SessionTTL)
		carts = arena
		runBackground("cart-janitor", worker.NewCartJanitor(arena, time.Hour).Run)
	} else {
		carts = cartstore.NewRedis(redisClient, cfg.Checkout.SessionTTL)
	}
	logger.Info("Cart store ready", zap.String("backend", cfg.Checkout.CartStore))

	var gateway payment.Gateway = payment.Disabled{}
	if cfg.Stripe.APIKey != "" {
		stripeGateway, err := payment.NewStripeGateway(payment.StripeConfig{
			APIKey:        cfg.Stripe.APIKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Env:           cfg.Stripe.Env,
			Currency:      cfg.Stripe.Currency,
		})
		if err != nil {
			logger.Fatal("Failed to configure Stripe", zap.Error(err))
		}
		gateway = stripeGateway
		logger.Info("Card payments enabled", zap.String("stripe_env", stripeGateway.Environment()))
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, card payments disabled")
	}

	var resolver service.AddressResolver
	if cfg.FedEx.Enabled() {
		fedexClient, err := fedex.NewClient(cfg.FedEx.ClientID, cfg.FedEx.ClientSecret, fedex.WithBaseURL(cfg.FedEx.BaseURL))
		if err != nil {
			logger.Fatal("Failed to configure FedEx", zap.Error(err))
		}
		resolver = fedexClient
	}

	var sender mailer.Sender = mailer.NewLogSender()
	if cfg.Email.SendgridAPIKey != "" {
		sender = mailer.NewSendgridSender(cfg.Email.SendgridAPIKey, cfg.Email.FromAddress, cfg.Email.FromName)
	}

	repo := service.NewRepository(db)
	cartService := service.NewCartService(carts, productCatalog)
	affiliateService := service.NewAffiliateService(records, cfg.Airtable.AffiliateTable)
	sessions := session.NewRedisStore(redisClient, cfg.Checkout.SessionTTL)
	checkoutService := service.NewCheckoutService(repo, cartService, affiliateService, gateway, service.NewOrderWriter(), redisClient, service.CheckoutOptions{
		Bank:    cfg.Checkout.BankInstructions,
		Wallets: cfg.Checkout.CryptoWallets,
	})
	paymentService := service.NewPaymentService(repo, cartService, gateway, redisClient).
		WithCheckout(checkoutService, sessions)
	orderService := service.NewOrderService(repo)
	addressService := service.NewAddressService(resolver, cartService)

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))

	relay := worker.NewOutboxRelay(db, broker.NewEventPublisher(producer), worker.RelayConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
	})
	runBackground("outbox-relay", relay.Run)

	mirrorHandler := broker.NewEventHandler()
	worker.NewMirrorWorker(records, db, worker.MirrorTables{
		Checkouts: cfg.Airtable.CheckoutsTable,
		Orders:    cfg.Airtable.OrdersTable,
	}).Register(mirrorHandler)
	mirrorWorker := worker.NewEventWorker(worker.MirrorConsumer,
		broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup+"-mirror"),
		mirrorHandler)
	runBackground("mirror-worker", mirrorWorker.Start)

	notificationHandler := broker.NewEventHandler()
	worker.NewNotificationWorker(sender, db).Register(notificationHandler)
	notificationWorker := worker.NewEventWorker(worker.NotificationConsumer,
		broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup+"-notification"),
		notificationHandler)
	runBackground("notification-worker", notificationWorker.Start)

	sweeper := worker.NewAbandonmentSweeper(checkoutService, redisClient, cfg.Checkout.AbandonAfter, cfg.Checkout.AbandonSweepEvery)
	runBackground("abandonment-sweeper", sweeper.Run)

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Dependencies{
		Catalog:    productCatalog,
		Carts:      cartService,
		Checkout:   checkoutService,
		Affiliates: affiliateService,
		Payments:   paymentService,
		Orders:     orderService,
		Addresses:  addressService,
		Sessions:   sessions,
		Cookie: session.CookieOptions{
			TTL:    cfg.Checkout.SessionTTL,
			Secure: cfg.Server.IsProduction(),
		},
		AdminToken: cfg.Admin.Token,
		Readiness: map[string]api.Pinger{
			"postgres": db,
			"redis":    redisClient,
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	background.Wait()

	if err := multierr.Combine(
		mirrorWorker.Stop(),
		notificationWorker.Stop(),
		producer.Close(),
		redisClient.Close(),
		db.Close(),
	); err != nil {
		logger.Error("Errors while closing resources", zap.Error(err))
	}

	logger.Info("Server exited")
}
