package broker

import (
	"fmt"
	"time"

	"bookwire/internal/config"
	"bookwire/internal/logger"
)

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaProducer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

func NewBatchSource(cfg config.BrokerConfig, batchSize int, batchWindow time.Duration, log logger.Logger) (BatchSource, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaBatchSource(cfg.Kafka, batchSize, batchWindow, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

func NewDLQReader(cfg config.BrokerConfig, log logger.Logger) (DLQReader, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaDLQReader(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
