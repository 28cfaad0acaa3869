package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadcall-service/internal/infrastructure/config"
	"leadcall-service/internal/infrastructure/otpcache"
	"leadcall-service/internal/infrastructure/persistence"
	"leadcall-service/internal/infrastructure/push"
	"leadcall-service/internal/interface/httpapi"
	"leadcall-service/internal/interface/notifier"
	mongoRepo "leadcall-service/internal/interface/repository"
	"leadcall-service/internal/usecase"
	"leadcall-service/pkg/logger"
	"leadcall-service/pkg/metrics"

	domainRepo "leadcall-service/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Create logger
	log := logger.NewLogger()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}
	log.Info("Starting Leadcall Service", "version", cfg.AppVersion)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up MongoDB connection
	log.Info("Connecting to MongoDB")
	mongoClient, db, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	// Catalog lives in Postgres, read-only from here
	gormDB, err := gorm.Open(postgres.Open(cfg.PostgresURI), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}

	// Set up repositories
	bookingRepo := mongoRepo.NewMongoBookingRepository(db)
	vendorRepo := mongoRepo.NewMongoVendorRepository(db)
	userRepo := mongoRepo.NewMongoUserRepository(db)
	catalogRepo := mongoRepo.NewGormCatalogRepository(gormDB)

	// Push channels: the in-process registry always; AMQP and the device
	// push gateway only when configured.
	m := metrics.NewMetrics("leadcall")
	registry := push.NewRegistry(cfg.EventBufferSize, log.Named("push"))

	notifiers := []domainRepo.Notifier{registry}
	if cfg.AmqpURL != "" {
		amqpNotifier, err := notifier.NewAmqpNotifier(cfg.AmqpURL, cfg.AmqpExchange, log.Named("amqp"))
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", "error", err)
		}
		defer amqpNotifier.Close()
		notifiers = append(notifiers, amqpNotifier)
	}
	if cfg.PushGatewayURL != "" {
		notifiers = append(notifiers, notifier.NewPushGatewayNotifier(
			cfg.PushGatewayURL, cfg.PushGatewayToken, log.Named("push_gateway")))
	}

	broadcaster := usecase.NewBroadcaster(notifiers, log.Named("broadcast"), m)

	// Set up the engine
	otps := otpcache.NewCache()
	guard := usecase.NewPolicyGuard(bookingRepo, userRepo, otps, usecase.PolicyConfig{
		RescheduleLimit:      cfg.RescheduleLimit,
		CancellationLockMins: cfg.CancellationLockMins,
		GracePeriodMins:      cfg.GracePeriodMins,
		FirstBookingDevOTP:   cfg.FirstBookingDevOTP,
	}, log.Named("policy"))

	matcher := usecase.NewLeadMatcher(bookingRepo, vendorRepo, catalogRepo, guard, broadcaster, log.Named("matcher"), m)
	lifecycle := usecase.NewBookingLifecycle(bookingRepo, guard, broadcaster, usecase.LifecycleConfig{
		TravelCharge:    cfg.TravelCharge,
		RescheduleLimit: cfg.RescheduleLimit,
	}, log.Named("lifecycle"), m)

	// API surface
	bookingHandler := httpapi.NewBookingHandler(matcher, lifecycle, log.Named("http"))
	streamHandler := httpapi.NewStreamHandler(registry, log.Named("stream"))
	router := httpapi.NewRouter(cfg.JWTSecret, bookingHandler, streamHandler, log.Named("http"))

	// Metrics and health stay on the unauthenticated mux
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})
	mux.Handle("/", router)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	registry.Shutdown()
	cancel()

	// Disconnect from MongoDB
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}

	log.Info("Leadcall Service stopped")
}
