package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ovs/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ovs/internal/health"
	"github.com/vladislavdragonenkov/ovs/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ovs/internal/metrics"
	"github.com/vladislavdragonenkov/ovs/internal/service/participant"
	"github.com/vladislavdragonenkov/ovs/internal/storage/memory"
	"github.com/vladislavdragonenkov/ovs/internal/storage/postgres"
	"github.com/vladislavdragonenkov/ovs/internal/version"
)

// Consumer groups участников фиксированы: инстансы воркера делят между
// собой партиции своих request очередей.
const (
	customerWorkersGroup = "customer-validators"
	productWorkersGroup  = "product-validators"
)

// RunWorker поднимает сторону участников: customer и product валидаторы,
// каждый на своей request очереди. Блокируется до отмены ctx.
func RunWorker(ctx context.Context, cfg *Config) error {
	logger := log.WithField("component", "worker")

	m := metrics.NewValidationMetrics()

	producer, err := kafka.NewProducer(cfg.Brokers())
	if err != nil {
		return fmt.Errorf("init kafka producer: %w", err)
	}
	defer closeProducer(producer, logger)

	var (
		customerLookup domain.CustomerLookup
		productLookup  domain.ProductLookup
		store          *postgres.Store
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
		customerLookup = postgres.NewCustomerLookup(store)
		productLookup = postgres.NewProductLookup(store)
		logger.Info("using postgres lookups")
	} else {
		customerLookup = memory.NewSeededCustomerLookup()
		productLookup = memory.NewSeededProductLookup()
		logger.Info("using in-memory lookups with demo data")
	}

	customerParticipant := participant.NewParticipant(
		participant.NewCustomerEvaluator(customerLookup), producer, m, nil)
	productParticipant := participant.NewParticipant(
		participant.NewProductEvaluator(productLookup), producer, m, nil)

	customerConsumer, err := kafka.NewConsumerWithDLQ(
		cfg.Brokers(),
		customerWorkersGroup,
		[]string{kafka.TopicCustomerValidation},
		customerParticipant.Handle,
		producer,
		cfg.ConsumerMaxRetries,
	)
	if err != nil {
		return fmt.Errorf("init customer consumer: %w", err)
	}
	productConsumer, err := kafka.NewConsumerWithDLQ(
		cfg.Brokers(),
		productWorkersGroup,
		[]string{kafka.TopicProductValidation},
		productParticipant.Handle,
		producer,
		cfg.ConsumerMaxRetries,
	)
	if err != nil {
		return fmt.Errorf("init product consumer: %w", err)
	}

	// Каждый участник потребляет независимо: сбой одного не задевает другого.
	if err := customerConsumer.Start(ctx); err != nil {
		return fmt.Errorf("start customer consumer: %w", err)
	}
	defer stopConsumer(customerConsumer, logger)
	if err := productConsumer.Start(ctx); err != nil {
		return fmt.Errorf("start product consumer: %w", err)
	}
	defer stopConsumer(productConsumer, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewPingChecker("postgres", defaultPingTimeout, store.Ping))
	}

	srv := startHTTPServer(ctx, cfg.HTTPAddr, nil, healthHandler, logger)

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping validation worker")
	shutdownHTTP(srv, logger)
	return ctx.Err()
}
