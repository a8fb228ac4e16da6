package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	creditapp "github.com/credit/backend/internal/application/credit"
	"github.com/credit/backend/internal/domain/credit"
	"github.com/credit/backend/internal/domain/shared"
	"github.com/credit/backend/internal/infrastructure/cache"
	"github.com/credit/backend/internal/infrastructure/config"
	"github.com/credit/backend/internal/infrastructure/logger"
	"github.com/credit/backend/internal/infrastructure/messaging"
	"github.com/credit/backend/internal/infrastructure/migration"
	"github.com/credit/backend/internal/infrastructure/persistence"
	"github.com/credit/backend/internal/infrastructure/telemetry"
	"github.com/credit/backend/internal/interfaces/http/handler"
	"github.com/credit/backend/internal/interfaces/http/middleware"
	"github.com/credit/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/credit/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// health paths are excluded from request logs and spans
var healthPaths = []string{"/self", "/ready"}

//	@title			Credit Ingestion API
//	@version		1.0
//	@description	Publishes constituted tax credits to the ingestion topic and reads persisted credits back

//	@host		localhost:8080
//	@BasePath	/api

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		ServiceName: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize logger provider", zap.Error(err))
	}

	otelLevel, err := zapcore.ParseLevel(cfg.Telemetry.LogsMinLevel)
	if err != nil {
		otelLevel = zapcore.InfoLevel
	}
	log := telemetry.NewBridgedLogger(baseLog, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: loggerProvider,
		Level:          otelLevel,
	}))
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting credit backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("kafka", cfg.Kafka.Enabled),
		zap.Bool("consumer", cfg.Consumer.Enabled),
	)

	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
	pipelineMetrics, err := telemetry.NewPipelineMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create pipeline metrics", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log.Named("gorm"), logger.MapGormLogLevel(cfg.Database.LogLevel),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(gormLog),
		persistence.WithPlugins(dbTracing),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("database", cfg.Database.DBName))

	if cfg.Database.AutoMigrate {
		if err := runMigrations(db, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	sessions := persistence.NewGormCreditSessions(db.DB)

	// Broker
	var (
		broker    *messaging.Broker
		publisher credit.Publisher
	)
	if cfg.Kafka.Enabled {
		broker, err = messaging.NewBroker(messaging.BrokerConfig{
			Brokers:      cfg.Kafka.Brokers,
			ClientID:     cfg.Kafka.ClientID,
			DialTimeout:  cfg.Kafka.DialTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			MaxAttempts:  cfg.Kafka.MaxAttempts,
		}, log.Named("broker"))
		if err != nil {
			log.Fatal("Failed to configure broker", zap.Error(err))
		}

		if cfg.Kafka.AutoCreateTopic {
			topicCtx, cancel := context.WithTimeout(ctx, cfg.Kafka.DialTimeout)
			err := broker.EnsureTopic(topicCtx, cfg.Kafka.Topic, cfg.Kafka.TopicPartitions, cfg.Kafka.TopicReplication)
			cancel()
			if err != nil {
				log.Fatal("Failed to create topic", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
			}
		}

		kafkaPublisher := messaging.NewKafkaPublisher(broker.Writer(), messaging.PublisherConfig{
			FlushTimeout: cfg.Kafka.FlushTimeout,
		}, log.Named("publisher"))
		kafkaPublisher.SetRecorder(pipelineMetrics)
		publisher = kafkaPublisher
	} else {
		log.Warn("Kafka disabled, credits will not be published")
		publisher = messaging.NewNoopPublisher(log.Named("publisher"))
	}

	// Consumer
	var (
		consumer       *messaging.Consumer
		processedStore shared.IdempotencyStore
	)
	if cfg.Consumer.Enabled {
		var ingestOpts []creditapp.IngestionOption
		if cfg.Idempotency.Enabled {
			factory := cache.NewIdempotencyStoreFactory(cfg.Redis, cfg.Idempotency, cache.WithLogger(log.Named("idempotency")))
			processedStore, err = factory.CreateStore(ctx)
			if err != nil {
				log.Fatal("Failed to create processed-key store", zap.Error(err))
			}
			ingestOpts = append(ingestOpts, creditapp.WithProcessedKeyStore(processedStore, shared.IdempotencyConfig{
				TTL:     cfg.Idempotency.TTL,
				Enabled: true,
			}))
		}

		ingestion := creditapp.NewIngestionService(sessions, log.Named("ingestion"), ingestOpts...)
		consumer = messaging.NewConsumer(
			broker.NewReader(cfg.Kafka.Topic, cfg.Consumer.GroupID),
			messaging.NewCreditHandler(ingestion),
			messaging.ConsumerConfig{
				Topic:         cfg.Kafka.Topic,
				GroupID:       cfg.Consumer.GroupID,
				Backoff:       cfg.Consumer.Backoff,
				CommitTimeout: cfg.Consumer.CommitTimeout,
			},
			log.Named("consumer"),
		)
		consumer.SetRecorder(pipelineMetrics)
		consumer.Start(ctx)
	}

	// HTTP
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled && cfg.Telemetry.HTTPTraceEnabled,
		SkipPaths:   healthPaths,
	}))
	engine.Use(middleware.SpanEnricher())
	engine.Use(logger.GinMiddleware(log, healthPaths...))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.HTTPMetrics(meter, log))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	creditService := creditapp.NewCreditService(publisher, sessions, cfg.Kafka.Topic, log.Named("credit"))
	router.NewRouter(engine).
		Register(handler.NewCreditHandler(creditService).Routes()).
		Setup()
	handler.NewSystemHandler(db).Register(engine)

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.HTTP.SwaggerEnabled,
			AllowedIPs: cfg.HTTP.SwaggerAllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// Stop accepting requests first, then drain the consumer before closing what it writes to.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if consumer != nil {
		if err := consumer.Stop(shutdownCtx); err != nil {
			log.Error("Consumer did not stop in time", zap.Error(err))
		}
	}
	if broker != nil {
		if err := broker.Close(); err != nil {
			log.Error("Error closing broker", zap.Error(err))
		}
	}
	if processedStore != nil {
		if err := processedStore.Close(); err != nil {
			log.Error("Error closing processed-key store", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}

	shutdownTelemetry(shutdownCtx, log, tracerProvider, meterProvider, loggerProvider)
	log.Info("Server exited gracefully")
}

func runMigrations(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, log.Named("migration"))
	if err != nil {
		return err
	}
	// Closing the migrator would close sqlDB through the postgres driver.
	return m.Up()
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownTelemetry(ctx context.Context, log *zap.Logger, providers ...shutdowner) {
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Error("Error shutting down telemetry provider", zap.Error(err))
		}
	}
}
