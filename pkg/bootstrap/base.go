package bootstrap

import (
	"context"
	"fmt"

	"bookwire/internal/broker"
	"bookwire/internal/config"
	"bookwire/internal/logger"
)

// Base holds the broker handles shared by every binary.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Source   broker.BatchSource
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitProducer() error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	b.Producer = producer
	return nil
}

func (b *Base) InitBatchSource() error {
	source, err := broker.NewBatchSource(
		b.Config.Broker,
		b.Config.Consumer.BatchSize,
		b.Config.Consumer.BatchWindow,
		b.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create batch source: %w", err)
	}
	b.Source = source
	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if b.Source != nil {
		if err := b.Source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("batch source close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
