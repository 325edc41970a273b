package dlq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bookwire/internal/broker"
	"bookwire/internal/config"
	"bookwire/internal/logger"
	"bookwire/pkg/metrics"
)

type HealthStatus string

const (
	StatusHealthy  HealthStatus = "HEALTHY"
	StatusWarning  HealthStatus = "WARNING"
	StatusCritical HealthStatus = "CRITICAL"
)

type AlertType string

const (
	AlertMessageAccumulation AlertType = "MESSAGE_ACCUMULATION"
	AlertStaleMessages       AlertType = "STALE_MESSAGES"
	AlertGrowthRate          AlertType = "GROWTH_RATE"
)

type Alert struct {
	Type     AlertType
	Severity HealthStatus
	Message  string
}

type Health struct {
	Status    HealthStatus
	Depth     int64
	OldestAge time.Duration
	Alerts    []Alert
	CheckedAt time.Time
}

// Monitor watches the dead letter topic and escalates when messages pile up
// or sit unattended.
type Monitor struct {
	reader broker.DLQReader
	cfg    config.MonitorConfig
	logger logger.Logger

	mu        sync.Mutex
	prevDepth int64
	hasPrev   bool
}

func NewMonitor(reader broker.DLQReader, cfg config.MonitorConfig, log logger.Logger) *Monitor {
	return &Monitor{reader: reader, cfg: cfg, logger: log}
}

// Check takes one snapshot of queue health, updates the gauges, and advances
// the growth baseline. Run is the periodic caller.
func (m *Monitor) Check(ctx context.Context) (*Health, error) {
	return m.check(ctx, true)
}

// Snapshot is Check without advancing the growth baseline, for ad-hoc
// callers like the ops endpoint that must not skew the periodic comparison.
func (m *Monitor) Snapshot(ctx context.Context) (*Health, error) {
	return m.check(ctx, false)
}

func (m *Monitor) check(ctx context.Context, advance bool) (*Health, error) {
	depth, err := m.reader.Depth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to measure dlq depth: %w", err)
	}

	health := &Health{
		Status:    StatusHealthy,
		Depth:     depth,
		CheckedAt: time.Now().UTC(),
	}
	metrics.DLQDepth.Set(float64(depth))

	if depth > 0 {
		age, err := m.reader.OldestAge(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to measure oldest dlq message age: %w", err)
		}
		health.OldestAge = age
		metrics.DLQOldestMessageAge.Set(age.Seconds())
	} else {
		metrics.DLQOldestMessageAge.Set(0)
	}

	if alert, ok := m.depthAlert(depth); ok {
		health.Alerts = append(health.Alerts, alert)
	}
	if alert, ok := m.ageAlert(health.OldestAge); ok {
		health.Alerts = append(health.Alerts, alert)
	}
	if alert, ok := m.growthAlert(depth, advance); ok {
		health.Alerts = append(health.Alerts, alert)
	}
	for _, alert := range health.Alerts {
		if alert.Severity == StatusCritical {
			health.Status = StatusCritical
		} else if health.Status == StatusHealthy {
			health.Status = StatusWarning
		}
	}
	return health, nil
}

func (m *Monitor) depthAlert(depth int64) (Alert, bool) {
	switch {
	case m.cfg.CriticalDepth > 0 && depth >= m.cfg.CriticalDepth:
		return Alert{
			Type:     AlertMessageAccumulation,
			Severity: StatusCritical,
			Message:  fmt.Sprintf("%d messages in the dead letter queue (critical threshold %d)", depth, m.cfg.CriticalDepth),
		}, true
	case m.cfg.WarningDepth > 0 && depth >= m.cfg.WarningDepth:
		return Alert{
			Type:     AlertMessageAccumulation,
			Severity: StatusWarning,
			Message:  fmt.Sprintf("%d messages in the dead letter queue (warning threshold %d)", depth, m.cfg.WarningDepth),
		}, true
	}
	return Alert{}, false
}

func (m *Monitor) ageAlert(age time.Duration) (Alert, bool) {
	switch {
	case m.cfg.CriticalAge > 0 && age >= m.cfg.CriticalAge:
		return Alert{
			Type:     AlertStaleMessages,
			Severity: StatusCritical,
			Message:  fmt.Sprintf("oldest dead-lettered message is %s old (critical threshold %s)", age.Round(time.Minute), m.cfg.CriticalAge),
		}, true
	case m.cfg.WarningAge > 0 && age >= m.cfg.WarningAge:
		return Alert{
			Type:     AlertStaleMessages,
			Severity: StatusWarning,
			Message:  fmt.Sprintf("oldest dead-lettered message is %s old (warning threshold %s)", age.Round(time.Minute), m.cfg.WarningAge),
		}, true
	}
	return Alert{}, false
}

// growthAlert fires when the queue grew between two consecutive samples.
// Needs at least one prior sample, so one-shot checks never raise it.
func (m *Monitor) growthAlert(depth int64, advance bool) (Alert, bool) {
	m.mu.Lock()
	prev, has := m.prevDepth, m.hasPrev
	if advance {
		m.prevDepth = depth
		m.hasPrev = true
	}
	m.mu.Unlock()

	if !has || depth <= prev {
		return Alert{}, false
	}
	return Alert{
		Type:     AlertGrowthRate,
		Severity: StatusWarning,
		Message:  fmt.Sprintf("dead letter queue grew by %d messages since the last check", depth-prev),
	}, true
}

// Run checks on the configured interval until the context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	interval := m.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		health, err := m.Check(ctx)
		if err != nil {
			m.logger.Errorw("dead letter health check failed", "error", err)
		} else {
			m.report(health)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Monitor) report(health *Health) {
	fields := []interface{}{
		"status", health.Status,
		"depth", health.Depth,
		"oldest_age", health.OldestAge,
	}
	switch health.Status {
	case StatusCritical:
		m.logger.Errorw("dead letter queue critical", fields...)
	case StatusWarning:
		m.logger.Warnw("dead letter queue warning", fields...)
	default:
		m.logger.Debugw("dead letter queue healthy", fields...)
	}
}
