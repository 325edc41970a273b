package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"bookwire/internal/audit"
	"bookwire/internal/broker"
	"bookwire/internal/config"
	"bookwire/internal/consumer"
	"bookwire/internal/dedup"
	"bookwire/internal/dlq"
	"bookwire/internal/event"
	"bookwire/internal/logger"
	"bookwire/internal/mailer"
	"bookwire/internal/notification"
	"bookwire/pkg/bootstrap"
	"bookwire/pkg/health"
	"bookwire/pkg/metrics"
)

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	redis       *redis.Client
	postgres    *sql.DB
	consumer    *consumer.Consumer
	router      *broker.RedeliveryRouter
	dlqMonitor  *dlq.Monitor
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("notification-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitProducer(); err != nil {
		return fmt.Errorf("failed to initialize producer: %w", err)
	}
	if err := a.InitBatchSource(); err != nil {
		return fmt.Errorf("failed to initialize batch source: %w", err)
	}

	if err := a.initPipeline(); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	metrics.RegisterPipelineMetrics()
	metrics.RegisterDLQMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb

	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.postgres = db
	return nil
}

func (a *App) initPipeline() error {
	codec := event.NewCodec(event.NewValidator(a.Config.Notification.AllowedSources))

	cc := notification.LoadCCConfig(os.LookupEnv, a.Logger)
	mapper := notification.NewMapper(a.Config.Notification, cc, a.Logger)

	var sender mailer.Sender = mailer.NewSMTPSender(a.Config.Notification.SMTP)
	if a.Config.Notification.RateLimit.Enabled {
		sender = mailer.NewRateLimitedSender(sender, a.Config.Notification.RateLimit)
	}
	if a.Config.CircuitBreaker.Enabled {
		sender = mailer.NewBreakerSender(sender, a.Config.CircuitBreaker)
		a.Logger.Info("Circuit breaker enabled for mail transport")
	}

	var guard dedup.Guard = dedup.NopGuard{}
	if a.Config.Notification.Dedup.Enabled && a.redis != nil {
		ttl := time.Duration(a.Config.Notification.Dedup.TTLSeconds) * time.Second
		guard = dedup.NewRedisGuard(a.redis, ttl, a.Logger)
	}

	var traces audit.Store = audit.NopStore{}
	if a.postgres != nil {
		traces = audit.NewPostgresStore(a.postgres)
	}

	a.consumer = consumer.New(
		codec,
		mapper,
		sender,
		guard,
		traces,
		a.Config.Notification.FromEmail,
		a.Logger,
	)

	a.router = broker.NewRedeliveryRouter(
		a.Producer,
		a.Config.Broker.Kafka.InputTopic,
		a.Config.Broker.Kafka.DLQTopic,
		a.Config.Consumer.MaxReceiveCount,
		a.Logger,
	)

	dlqReader, err := broker.NewDLQReader(a.Config.Broker, a.Logger)
	if err != nil {
		return err
	}
	a.dlqMonitor = dlq.NewMonitor(dlqReader, a.Config.DLQ.Monitor, a.Logger)
	return nil
}

func (a *App) initHTTPServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	if a.postgres != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.postgres))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/dlq/status", func(c *gin.Context) {
		h, err := a.dlqMonitor.Snapshot(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, h)
	})

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: router,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return a.dlqMonitor.Run(gCtx)
	})

	g.Go(func() error {
		return a.consumeLoop(gCtx)
	})

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func (a *App) consumeLoop(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Started consuming",
		"topic", a.Config.Broker.Kafka.InputTopic,
		"batch_size", a.Config.Consumer.BatchSize,
		"batch_window", a.Config.Consumer.BatchWindow,
	)

	for {
		records, err := a.Source.FetchBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				a.Logger.InfowCtx(ctx, "Stopped consuming", "reason", "context canceled")
				return ctx.Err()
			}
			a.Logger.ErrorwCtx(ctx, "Error fetching batch", "error", err)
			time.Sleep(time.Second)
			continue
		}

		result := a.consumer.HandleBatch(ctx, records)

		byID := make(map[string]consumer.Record, len(records))
		for _, rec := range records {
			byID[rec.ID] = rec
		}

		processed := make([]consumer.Record, 0, len(records))
		var unrouted []consumer.Record
		for _, res := range result.Results {
			rec := byID[res.ID]
			if res.Outcome == consumer.OutcomeAck {
				processed = append(processed, rec)
				continue
			}
			// Failed records are re-routed before their offsets are
			// committed.
			if err := a.router.Route(ctx, rec, res); err != nil {
				a.Logger.ErrorwCtx(ctx, "Failed to route failed record",
					"record_id", rec.ID, "error", err)
				unrouted = append(unrouted, rec)
				continue
			}
			processed = append(processed, rec)
		}

		// Committing an offset acknowledges everything before it in the
		// partition, so records at or past an unrouted failure stay
		// uncommitted and come back after a restart or rebalance.
		done, held := broker.Committable(processed, unrouted)
		a.Source.Forget(append(held, unrouted...)...)
		if err := a.Source.Commit(ctx, done...); err != nil {
			a.Logger.ErrorwCtx(ctx, "Failed to commit batch", "error", err)
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(ctx, func(shutdownCtx context.Context) []error {
		return a.dbConnector.ShutdownDatabases(shutdownCtx, a.redis, a.postgres)
	})
}
