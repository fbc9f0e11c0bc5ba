package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"rentalspot/internal/app/availability"
	"rentalspot/internal/app/commands"
	"rentalspot/internal/app/handlers/calendar"
	"rentalspot/internal/app/middleware"
	appoutbox "rentalspot/internal/app/outbox"
	"rentalspot/internal/app/queries"
	domain "rentalspot/internal/domain/availability"
	domainbooking "rentalspot/internal/domain/booking"
	"rentalspot/internal/infra/broker/kafka"
	rediscache "rentalspot/internal/infra/cache/redis"
	"rentalspot/internal/infra/catalog"
	"rentalspot/internal/infra/config"
	mongodb "rentalspot/internal/infra/db/mongo"
	ginserver "rentalspot/internal/infra/http/gin"
	"rentalspot/internal/infra/inbox"
	"rentalspot/internal/infra/obs"
	infraoutbox "rentalspot/internal/infra/outbox"
	"rentalspot/internal/infra/storage/memory"
	"rentalspot/internal/infra/storage/s3"
)

type outboxStore interface {
	appoutbox.Outbox
	infraoutbox.Source
}

type application struct {
	handlers ginserver.Handlers
	commands commands.Bus
	coord    *availability.Coordinator
	metrics  *obs.Metrics
	worker   *infraoutbox.Worker
	consumer *kafka.Consumer
	checks   []obs.Check
	closers  []func(context.Context) error
}

// storage bundles whichever backend STORE_BACKEND selected.
type storage struct {
	calendar    domain.Store
	bookings    domainbooking.Repository
	outbox      outboxStore
	inbox       kafka.Inbox
	idempotency middleware.IdempotencyStore
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *application, err error) {
	app := &application{metrics: obs.NewMetrics()}
	app.checks = []obs.Check{{Name: "availability_store", Probe: app.storeReady}}
	defer func() {
		if err != nil {
			app.close(logger)
		}
	}()

	props, err := catalog.Load(cfg.PropertiesFile)
	if err != nil {
		return nil, fmt.Errorf("load property catalog: %w", err)
	}
	logger.Info("property catalog loaded", "path", cfg.PropertiesFile, "properties", len(props))

	st, err := app.openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })
		app.checks = append(app.checks, obs.Check{Name: "redis", Probe: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }})
		st.idempotency = rediscache.NewIdempotencyStore(rdb, "rentalspot:idemp:", cfg.IdempotencyTTL)
		logger.Info("idempotency store", "backend", "redis", "addr", cfg.RedisAddr)
	}

	opts := []availability.Option{
		availability.WithLogger(logger),
		availability.WithMetrics(app.metrics),
		availability.WithHoldTTL(cfg.HoldTTL),
		availability.WithRetryBackoff(cfg.StoreRetryBackoff),
		availability.WithSweep(cfg.SweepBatch, sweepLimiter(cfg.SweepRate)),
		availability.WithMonthsAhead(cfg.GenerateMonthsAhead),
	}
	if cfg.S3Endpoint != "" {
		archive, err := s3.NewReportArchive(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3Prefix, logger)
		if err != nil {
			return nil, fmt.Errorf("report archive: %w", err)
		}
		opts = append(opts, availability.WithReportArchive(archive))
	}
	app.coord = availability.NewCoordinator(st.calendar, st.bookings, memory.NewPropertyCatalog(props...), opts...)

	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	calendar.Register(cmdBus, queryBus, app.coord, calendar.Publisher{Outbox: st.outbox, Encoder: appoutbox.JSONEventEncoder{}})
	app.commands = middleware.ChainCommands(cmdBus,
		middleware.Logging(logger),
		middleware.Validation(middleware.SelfValidator{}),
		middleware.Idempotency(st.idempotency, nil),
		middleware.OutboxFlush(st.outbox, logger),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus,
		middleware.QueryLogging(logger),
		middleware.QueryValidation(middleware.SelfValidator{}),
	)

	app.handlers = ginserver.Handlers{
		Availability: ginserver.AvailabilityHandler{Commands: app.commands, Queries: queryBusWithMiddleware, Logger: logger},
		Admin:        ginserver.AdminHandler{Commands: app.commands, Queries: queryBusWithMiddleware, Logger: logger},
		Metrics:      app.metrics,
	}

	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, calendar events stay in the outbox and payment events are not consumed")
		return app, nil
	}
	if err := app.wireKafka(cfg, st, logger); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *application) openStorage(ctx context.Context, cfg config.Config) (storage, error) {
	if cfg.StoreBackend == config.BackendMemory {
		return storage{
			calendar:    memory.NewCalendarStore(),
			bookings:    memory.NewBookingRepository(),
			outbox:      infraoutbox.NewMemoryStore(),
			inbox:       inbox.NewMemory(),
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		}, nil
	}

	client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, fmt.Errorf("mongo connect: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	var st storage
	var errs []error
	cal, err := mongodb.NewCalendarStore(ctx, client.DB)
	errs = append(errs, err)
	bookings, err := mongodb.NewBookingRepository(ctx, client.DB)
	errs = append(errs, err)
	box, err := infraoutbox.NewStore(ctx, client.DB)
	errs = append(errs, err)
	seen, err := inbox.NewStore(ctx, client.DB, cfg.KafkaConsumerGroup)
	errs = append(errs, err)
	idem, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return storage{}, fmt.Errorf("mongo collections: %w", err)
	}
	st.calendar, st.bookings, st.outbox, st.inbox, st.idempotency = cal, bookings, box, seen, idem
	return st, nil
}

func (a *application) wireKafka(cfg config.Config, st storage, logger *slog.Logger) error {
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, "rentalspot-calendar", nil)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
	a.worker = &infraoutbox.Worker{
		Store:       st.outbox,
		Producer:    producer,
		Logger:      logger,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
	}

	handler := &kafka.PaymentHandler{Bus: a.commands, Inbox: st.inbox, Logger: logger}
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, sarama.NewConfig(), handler, logger)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	a.consumer = consumer
	a.closers = append(a.closers, func(context.Context) error { return consumer.Close() })
	return nil
}

// storeReady reports the service unready while the availability store is
// down. Stale holds only show up in the gauge.
func (a *application) storeReady(ctx context.Context) error {
	h, err := a.coord.HealthCheck(ctx)
	a.metrics.ObserveHealth(h.AvailabilityStoreReachable, h.StaleHeldCount)
	if !h.AvailabilityStoreReachable {
		return errors.New("availability store unreachable")
	}
	return err
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// sweepLimiter paces sweep releases; zero means unlimited.
func sweepLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(math.Max(1, math.Ceil(perSecond)))
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
