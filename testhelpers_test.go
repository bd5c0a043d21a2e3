//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stayloft/service-booking/internal/application"
	"github.com/stayloft/service-booking/internal/consumer"
	"github.com/stayloft/service-booking/internal/events"
	"github.com/stayloft/service-booking/internal/pkg/kafka"
	"github.com/stayloft/service-booking/internal/pkg/lock"
	"github.com/stayloft/service-booking/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	Mongo        *mongo.Database
	DB           *gorm.DB
	Redis        *lock.RedisLocker
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Service    *application.BookingService
	Repo       *repository.MongoBookingRepository
	MirrorRepo *repository.GormMirrorRepository
	Dispatcher *kafka.Dispatcher
	Cleanup    func()
}

// setupContainers starts MongoDB, PostgreSQL, Redis and Kafka testcontainers.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	// MongoDB for the operational store.
	mongoReq := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor: wait.ForLog("Waiting for connections").
			WithStartupTimeout(60 * time.Second),
	}
	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: mongoReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start MongoDB container")

	mongoHost, err := mongoContainer.Host(ctx)
	require.NoError(t, err)
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	require.NoError(t, err)

	mongoURI := fmt.Sprintf("mongodb://%s:%s", mongoHost, mongoPort.Port())
	var mongoClient *mongo.Client
	require.Eventually(t, func() bool {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		mongoClient, err = mongo.Connect(connectCtx, mongoopts.Client().ApplyURI(mongoURI))
		if err != nil {
			return false
		}
		return mongoClient.Ping(connectCtx, nil) == nil
	}, 30*time.Second, 1*time.Second, "MongoDB not ready for connections")

	// PostgreSQL for the analytics store.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_analytics",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_analytics sslmode=disable", pgHost, pgPort.Port())
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(
		&repository.BookingMirrorModel{},
		&repository.DailyStatModel{},
		&repository.InteractionModel{},
		&repository.TrainingMetricModel{},
	))

	// Redis for the lock service.
	redisReq := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: redisReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start Redis container")

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	redisClient, err := lock.NewClient(fmt.Sprintf("%s:%s", redisHost, redisPort.Port()), "", 0)
	require.NoError(t, err, "failed to connect to Redis")
	locker := lock.NewRedisLocker(redisClient)

	// Kafka using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers,
		events.TopicPaymentSuccessful,
		events.TopicPaymentExpired,
		events.TopicBookingConfirmed,
	)

	cleanup := func() {
		_ = redisClient.Close()
		_ = mongoClient.Disconnect(ctx)
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate MongoDB container: %v", err)
		}
	}

	return &testInfra{
		Mongo:        mongoClient.Database("test_booking"),
		DB:           db,
		Redis:        locker,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires up the full booking service stack.
func setupBookingStack(t *testing.T, infra *testInfra) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	repo := repository.NewMongoBookingRepository(infra.Mongo)
	require.NoError(t, repo.EnsureIndexes(context.Background()))

	producer := kafka.NewProducer(infra.KafkaBrokers, "booking-service-test", logger)
	dispatcher := kafka.NewDispatcher(producer, 64, logger)
	dispatcher.Start()

	svc := application.NewBookingService(repo, infra.Redis, dispatcher, logger)

	return &bookingStack{
		Service:    svc,
		Repo:       repo,
		MirrorRepo: repository.NewGormMirrorRepository(infra.DB),
		Dispatcher: dispatcher,
		Cleanup: func() {
			dispatcher.Close()
			_ = producer.Close()
		},
	}
}

// startConsumer runs a consumer group handler until the test ends.
func startConsumer(t *testing.T, ctx context.Context, brokers []string, handler kafka.Handler, topics ...string) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	groupID := fmt.Sprintf("test-%s", uuid.New().String()[:8])
	c := kafka.NewConsumer(brokers, groupID, logger, topics...)
	t.Cleanup(func() { _ = c.Close() })
	go func() { _ = c.Run(ctx, handler) }()
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, "test-publisher", logger)
	defer func() { _ = producer.Close() }()

	require.NoError(t, producer.Publish(context.Background(), topic, eventType, uuid.NewString(), data),
		"failed to publish event")
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		var ce kafka.CloudEvent
		if err := json.Unmarshal(msg.Value, &ce); err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	require.NoError(t, controllerConn.CreateTopics(topicConfigs...), "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}

// paymentHandler builds the payment consumer handler for tests.
func paymentHandler(t *testing.T, stack *bookingStack) kafka.Handler {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return consumer.NewPaymentConsumer(stack.Service, logger).Handle
}

// mirrorHandler builds the analytics projection handler for tests.
func mirrorHandler(t *testing.T, stack *bookingStack) kafka.Handler {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return consumer.NewMirrorConsumer(stack.MirrorRepo, logger).Handle
}
