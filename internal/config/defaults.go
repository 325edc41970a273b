package config

import (
	"time"

	"bookwire/internal/constants"
)

func applyDefaults(cfg *Config) {
	if cfg.Broker.Kafka.InputTopic == "" {
		cfg.Broker.Kafka.InputTopic = constants.DefaultInputTopic
	}
	if cfg.Broker.Kafka.DLQTopic == "" {
		cfg.Broker.Kafka.DLQTopic = constants.DefaultDLQTopic
	}

	if cfg.Consumer.BatchSize <= 0 {
		cfg.Consumer.BatchSize = constants.DefaultBatchSize
	}
	if cfg.Consumer.BatchWindow <= 0 {
		cfg.Consumer.BatchWindow = constants.DefaultBatchWindow
	}
	if cfg.Consumer.MaxReceiveCount <= 0 {
		cfg.Consumer.MaxReceiveCount = constants.DefaultMaxReceiveCount
	}

	if cfg.Notification.TargetEmail == "" {
		cfg.Notification.TargetEmail = constants.DefaultTargetEmail
	}
	if cfg.Notification.FromEmail == "" {
		cfg.Notification.FromEmail = constants.DefaultFromEmail
	}
	if cfg.Notification.Source == "" {
		cfg.Notification.Source = "book-workflow-service"
	}
	if len(cfg.Notification.AllowedSources) == 0 {
		cfg.Notification.AllowedSources = []string{
			"book-workflow-service",
			"book-import-tool",
			"migration-tool",
		}
	}
	if cfg.Notification.Dedup.TTLSeconds <= 0 {
		cfg.Notification.Dedup.TTLSeconds = 86400
	}

	if cfg.DLQ.RepeatedFailureThreshold <= 0 {
		cfg.DLQ.RepeatedFailureThreshold = cfg.Consumer.MaxReceiveCount
	}
	if cfg.DLQ.AnalyzeLimit <= 0 {
		cfg.DLQ.AnalyzeLimit = 1000
	}
	if cfg.DLQ.Monitor.WarningDepth <= 0 {
		cfg.DLQ.Monitor.WarningDepth = 10
	}
	if cfg.DLQ.Monitor.CriticalDepth <= 0 {
		cfg.DLQ.Monitor.CriticalDepth = 100
	}
	if cfg.DLQ.Monitor.WarningAge <= 0 {
		cfg.DLQ.Monitor.WarningAge = time.Hour
	}
	if cfg.DLQ.Monitor.CriticalAge <= 0 {
		cfg.DLQ.Monitor.CriticalAge = 24 * time.Hour
	}
	if cfg.DLQ.Monitor.Interval <= 0 {
		cfg.DLQ.Monitor.Interval = time.Minute
	}
}
