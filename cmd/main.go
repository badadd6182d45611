package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"shop-service/internal/model"
	"shop-service/internal/realtime"
	"shop-service/internal/server"
	"shop-service/internal/service"
	"shop-service/pkg/cache"
	"shop-service/pkg/config"
	"shop-service/pkg/database"
	"shop-service/pkg/events"
	"shop-service/pkg/jwtutil"
	"shop-service/pkg/logger"
	"shop-service/prometheus"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"
)

const serviceName = "shop-service"

func main() {
	// Load configuration
	appConfig, err := config.Load(serviceName)
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(appConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting "+serviceName, appConfig.LogConfig()...)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized", zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	db, err := database.InitDB(&appConfig.DB, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateModels(db, model.All()...); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	jwtUtil := jwtutil.NewJWTUtil(&appConfig.JWT)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if appConfig.Shop.AdminEmail != "" && appConfig.Shop.AdminPassword != "" {
		if err := service.NewAuthService(db, jwtUtil, log).EnsureAdmin(ctx, appConfig.Shop.AdminEmail, appConfig.Shop.AdminPassword); err != nil {
			log.Fatal("Failed to seed admin user", zap.Error(err))
		}
	} else {
		log.Warn("ADMIN_EMAIL or ADMIN_PASSWORD not set, no admin user seeded")
	}

	// Optional backends; each one falls back to running without it
	var redisCache *cache.Cache
	if appConfig.Redis.Addr != "" {
		redisCache, err = cache.Connect(ctx, &appConfig.Redis, serviceName+":")
		if err != nil {
			log.Warn("Redis unavailable, running without cache", zap.Error(err))
			redisCache = nil
		} else {
			log.Info("Redis connected", zap.String("addr", appConfig.Redis.Addr))
		}
	}

	hub := realtime.NewHub(jwtUtil, log)
	orderEvents := events.Fanout{hub}

	var kafkaPublisher *events.KafkaPublisher
	if len(appConfig.Kafka.Brokers) > 0 {
		kafkaPublisher = events.NewKafkaPublisher(appConfig.Kafka.Brokers, appConfig.Kafka.OrderTopic)
		orderEvents = append(orderEvents, kafkaPublisher)
		log.Info("Kafka order events enabled", zap.String("topic", appConfig.Kafka.OrderTopic))
	}

	var contactEvents events.Publisher = events.Noop{}
	var channelPool *events.ChannelPool
	if appConfig.RabbitMQ.URL != "" {
		channelPool, err = events.NewChannelPool(appConfig.RabbitMQ.URL, appConfig.RabbitMQ.ContactQueue, appConfig.RabbitMQ.PoolSize, log)
		if err != nil {
			log.Warn("RabbitMQ unavailable, contact notifications disabled", zap.Error(err))
		} else {
			contactEvents = events.NewRabbitPublisher(channelPool)
			log.Info("RabbitMQ contact notifications enabled", zap.String("queue", appConfig.RabbitMQ.ContactQueue))
		}
	}

	e := server.New(server.Deps{
		Config:        appConfig,
		DB:            db,
		Cache:         redisCache,
		JWT:           jwtUtil,
		OrderEvents:   orderEvents,
		ContactEvents: contactEvents,
		Hub:           hub,
		Log:           log,
	})

	// Start server
	go func() {
		port := appConfig.Server.Port
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		appConfig.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			serviceName: func(ctx context.Context) error {
				log.Info("Graceful shutdown initiated")
				var errs []error
				errs = append(errs, e.Shutdown(ctx), hub.Close())
				if kafkaPublisher != nil {
					errs = append(errs, kafkaPublisher.Close())
				}
				if channelPool != nil {
					errs = append(errs, channelPool.Close())
				}
				if redisCache != nil {
					errs = append(errs, redisCache.Close())
				}
				errs = append(errs, database.Close(db))
				return errors.Join(errs...)
			},
		},
	)

	exitCode := <-wait
	log.Info("Server stopped", zap.Int("exit_code", exitCode))
	log.Sync()
	os.Exit(exitCode)
}
