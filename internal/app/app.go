package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ovs/internal/correlation"
	"github.com/vladislavdragonenkov/ovs/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ovs/internal/health"
	"github.com/vladislavdragonenkov/ovs/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ovs/internal/metrics"
	"github.com/vladislavdragonenkov/ovs/internal/service/aggregator"
	"github.com/vladislavdragonenkov/ovs/internal/service/dispatch"
	"github.com/vladislavdragonenkov/ovs/internal/service/order"
	"github.com/vladislavdragonenkov/ovs/internal/storage/memory"
	"github.com/vladislavdragonenkov/ovs/internal/storage/postgres"
	"github.com/vladislavdragonenkov/ovs/internal/version"
)

// Run поднимает order-сторону протокола: реестр корреляций с фоновой
// очисткой, агрегатор на собственной reply очереди, dispatcher и HTTP-приём
// заказов. Блокируется до отмены ctx.
func Run(ctx context.Context, cfg *Config) error {
	logger := log.WithField("component", "app")

	m := metrics.NewValidationMetrics()
	registry := correlation.NewRegistry(
		correlation.WithMetrics(m),
		correlation.WithGrace(cfg.EvictionGrace),
		correlation.WithSweepInterval(cfg.SweepInterval),
	)
	go registry.Run(ctx)

	producer, err := kafka.NewProducer(cfg.Brokers())
	if err != nil {
		return fmt.Errorf("init kafka producer: %w", err)
	}
	defer closeProducer(producer, logger)

	// Каждый инстанс слушает собственную reply очередь: ответы на его
	// корреляции не должны попадать агрегаторам других инстансов.
	instanceID := strings.Split(uuid.NewString(), "-")[0]
	replyTopic := cfg.ReplyTopic
	if replyTopic == "" {
		replyTopic = kafka.ReplyTopicForInstance(instanceID)
	}
	logger.WithFields(log.Fields{
		"instance_id": instanceID,
		"reply_topic": replyTopic,
	}).Info("reply topic selected")

	dispatcher := dispatch.NewDispatcher(producer, registry, replyTopic, cfg.ValidationTimeout, m, nil)
	agg := aggregator.NewAggregator(registry, m, nil)

	consumer, err := kafka.NewConsumerWithDLQ(
		cfg.Brokers(),
		"order-validator-"+instanceID,
		[]string{replyTopic},
		agg.Handle,
		producer,
		cfg.ConsumerMaxRetries,
	)
	if err != nil {
		return fmt.Errorf("init reply consumer: %w", err)
	}
	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("start reply consumer: %w", err)
	}
	defer stopConsumer(consumer, logger)

	var (
		repo  domain.OrderRepository
		store *postgres.Store
	)
	if cfg.DatabaseURL != "" {
		store, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		repo = postgres.NewOrderRepository(store)
		logger.Info("using postgres order repository")
	} else {
		repo = memory.NewOrderRepository()
		logger.Info("using in-memory order repository")
	}

	orderSvc := order.NewService(repo, dispatcher, agg, nil)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("registry", healthcheck.CheckerFunc(func() healthcheck.Check {
		return healthcheck.Check{
			Name:    "registry",
			Status:  healthcheck.StatusHealthy,
			Message: fmt.Sprintf("%d correlations in flight", registry.InFlight()),
		}
	}))
	if store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewPingChecker("postgres", defaultPingTimeout, store.Ping))
	}

	srv := startHTTPServer(ctx, cfg.HTTPAddr, orderSvc, healthHandler, logger)

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping order validator")
	shutdownHTTP(srv, logger)
	return ctx.Err()
}

func closeProducer(producer *kafka.Producer, logger *log.Entry) {
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

func stopConsumer(consumer *kafka.Consumer, logger *log.Entry) {
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop kafka consumer")
	}
}
