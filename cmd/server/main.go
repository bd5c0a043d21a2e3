package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stayloft/service-booking/internal/application"
	"github.com/stayloft/service-booking/internal/config"
	"github.com/stayloft/service-booking/internal/consumer"
	"github.com/stayloft/service-booking/internal/events"
	"github.com/stayloft/service-booking/internal/handler"
	"github.com/stayloft/service-booking/internal/jobs"
	"github.com/stayloft/service-booking/internal/live"
	"github.com/stayloft/service-booking/internal/middleware"
	"github.com/stayloft/service-booking/internal/notify"
	"github.com/stayloft/service-booking/internal/pkg/kafka"
	"github.com/stayloft/service-booking/internal/pkg/lock"
	"github.com/stayloft/service-booking/internal/pkg/logger"
	"github.com/stayloft/service-booking/internal/repository"
)

const serviceName = "booking-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("service exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.ServiceConfig, zlog *zap.Logger) error {
	// Operational store.
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	mongoClient, err := mongo.Connect(connectCtx, mongoopts.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return err
	}
	defer mongoClient.Disconnect(context.Background()) //nolint:errcheck

	bookingRepo := repository.NewMongoBookingRepository(mongoClient.Database(cfg.Mongo.Database))
	if err := bookingRepo.EnsureIndexes(connectCtx); err != nil {
		return err
	}

	// Analytics store.
	gormDB, err := gorm.Open(postgres.Open(cfg.Postgres.DSN()), &gorm.Config{})
	if err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close() //nolint:errcheck
	if err := gormDB.AutoMigrate(
		&repository.BookingMirrorModel{},
		&repository.DailyStatModel{},
		&repository.InteractionModel{},
		&repository.TrainingMetricModel{},
	); err != nil {
		return err
	}
	mirrorRepo := repository.NewGormMirrorRepository(gormDB)
	analyticsRepo := repository.NewGormAnalyticsRepository(gormDB)

	// Lock service.
	redisClient, err := lock.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer redisClient.Close() //nolint:errcheck
	locker := lock.NewRedisLocker(redisClient)

	// Event bus.
	producer := kafka.NewProducer(cfg.Kafka.Brokers, serviceName, zlog)
	defer producer.Close() //nolint:errcheck
	dispatcher := kafka.NewDispatcher(producer, cfg.PublishQueueSize, zlog)
	dispatcher.Start()
	defer dispatcher.Close()

	// Application core.
	bookingService := application.NewBookingService(bookingRepo, locker, dispatcher, zlog)
	hub := live.NewHub(zlog)
	notifier := notify.NewConsoleNotifier(zlog)

	// Consumers. Each group gets independent offsets so one slow fan-out
	// target never stalls the others.
	consumers := []struct {
		group   string
		topics  []string
		handler kafka.Handler
	}{
		{
			group:   cfg.Kafka.GroupPrefix + "booking.payment",
			topics:  []string{events.TopicPaymentSuccessful, events.TopicPaymentExpired},
			handler: consumer.NewPaymentConsumer(bookingService, zlog).Handle,
		},
		{
			group:   cfg.Kafka.GroupPrefix + "booking.mirror",
			topics:  []string{events.TopicBookingConfirmed},
			handler: consumer.NewMirrorConsumer(mirrorRepo, zlog).Handle,
		},
		{
			group:   cfg.Kafka.GroupPrefix + "booking.notification",
			topics:  []string{events.TopicBookingConfirmed},
			handler: consumer.NewNotificationConsumer(notifier, zlog).Handle,
		},
		{
			group:   cfg.Kafka.GroupPrefix + "booking.live",
			topics:  []string{events.TopicBookingConfirmed},
			handler: consumer.NewLiveUpdateConsumer(hub, zlog).Handle,
		},
	}
	for _, c := range consumers {
		kc := kafka.NewConsumer(cfg.Kafka.Brokers, c.group, zlog, c.topics...)
		defer kc.Close() //nolint:errcheck
		go func(kc *kafka.Consumer, group string, h kafka.Handler) {
			if err := kc.Run(ctx, h); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("consumer stopped", zap.String("group", group), zap.Error(err))
			}
		}(kc, c.group, c.handler)
	}

	// Scheduled jobs.
	scheduler, err := jobs.NewScheduler(cfg.Jobs.Timezone, locker, cfg.Jobs.GuardTTL, cfg.Jobs.RunTimeout, zlog)
	if err != nil {
		return err
	}
	analyticsJob, err := jobs.NewAnalyticsJob(bookingRepo, analyticsRepo, cfg.Jobs.Timezone, zlog)
	if err != nil {
		return err
	}
	if err := scheduler.Register(cfg.Jobs.AnalyticsSpec, analyticsJob); err != nil {
		return err
	}
	gate := jobs.NewTrainingGate(analyticsRepo, jobs.ExecRunner{}, cfg.Training, zlog)
	if err := scheduler.Register(cfg.Jobs.TrainingSpec, jobs.NewTrainingJob(gate)); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP surface.
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery(zlog), middleware.RequestID(), middleware.RequestLogger(zlog))

	handler.NewHealthHandler(mongoClient, sqlDB, redisClient).RegisterRoutes(router)
	handler.NewAvailabilityHandler(bookingService, zlog).RegisterRoutes(router)
	api := router.Group("/api/v1")
	handler.NewBookingHandler(bookingService, zlog).RegisterRoutes(api)
	handler.NewAdminHandler(gate, zlog).RegisterRoutes(api)
	handler.NewLiveHandler(hub).RegisterRoutes(api)

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
