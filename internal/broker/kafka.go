package broker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"bookwire/internal/config"
	"bookwire/internal/constants"
	"bookwire/internal/consumer"
	"bookwire/internal/logger"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, msg OutboundMessage) error {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Headers: headers,
		Time:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaBatchSource accumulates messages into bounded batches: a batch closes
// when it reaches batchSize or when batchWindow elapses with at least one
// message fetched.
type KafkaBatchSource struct {
	reader      *kafka.Reader
	batchSize   int
	batchWindow time.Duration
	pending     map[string]kafka.Message
	logger      logger.Logger
}

func NewKafkaBatchSource(cfg config.KafkaConfig, batchSize int, batchWindow time.Duration, log logger.Logger) *KafkaBatchSource {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.InputTopic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	return &KafkaBatchSource{
		reader:      r,
		batchSize:   batchSize,
		batchWindow: batchWindow,
		pending:     make(map[string]kafka.Message),
		logger:      log,
	}
}

// FetchBatch blocks until the first message arrives, then collects more until
// the batch is full or the window closes. Returns a non-empty slice or an
// error; an expired parent context surfaces as that context's error.
func (s *KafkaBatchSource) FetchBatch(ctx context.Context) ([]consumer.Record, error) {
	first, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}

	records := []consumer.Record{s.track(first)}

	windowCtx, cancel := context.WithTimeout(ctx, s.batchWindow)
	defer cancel()
	for len(records) < s.batchSize {
		m, err := s.reader.FetchMessage(windowCtx)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			// Window expired or the fetch failed; serve what we have.
			break
		}
		records = append(records, s.track(m))
	}
	return records, nil
}

func (s *KafkaBatchSource) track(m kafka.Message) consumer.Record {
	rec := toRecord(m)
	s.pending[rec.ID] = m
	return rec
}

// Commit acknowledges the given records' offsets. Records routed to
// redelivery or the DLQ are committed too; the copy on the wire supersedes
// the original.
func (s *KafkaBatchSource) Commit(ctx context.Context, records ...consumer.Record) error {
	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		if m, ok := s.pending[rec.ID]; ok {
			msgs = append(msgs, m)
			delete(s.pending, rec.ID)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := s.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}

// Forget drops tracking for records that will not be committed in this
// session. Their offsets stay put, so the group serves them again after a
// restart or rebalance.
func (s *KafkaBatchSource) Forget(records ...consumer.Record) {
	for _, rec := range records {
		delete(s.pending, rec.ID)
	}
}

func (s *KafkaBatchSource) Close() error {
	return s.reader.Close()
}

func toRecord(m kafka.Message) consumer.Record {
	attrs := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		attrs[h.Key] = string(h.Value)
	}

	id := attrs[constants.HeaderMessageID]
	if id == "" {
		id = fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset)
	}

	receiveCount := 1
	if raw := attrs[constants.HeaderReceiveCount]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			receiveCount = n
		}
	}

	return consumer.Record{
		ID:           id,
		Body:         m.Value,
		ReceiveCount: receiveCount,
		Partition:    m.Partition,
		Offset:       m.Offset,
		Timestamp:    m.Time,
		Attributes:   attrs,
	}
}

// KafkaDLQReader reads the dead letter topic without a consumer group, so
// inspection never moves any committed offset.
type KafkaDLQReader struct {
	brokers []string
	topic   string
	logger  logger.Logger
}

func NewKafkaDLQReader(cfg config.KafkaConfig, log logger.Logger) *KafkaDLQReader {
	return &KafkaDLQReader{brokers: cfg.Brokers, topic: cfg.DLQTopic, logger: log}
}

// Drain reads up to limit messages from the start of the dead letter topic.
// Messages stay on the topic afterwards.
func (r *KafkaDLQReader) Drain(ctx context.Context, limit int) ([]DLQMessage, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   r.brokers,
		Topic:     r.topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffset(kafka.FirstOffset); err != nil {
		return nil, fmt.Errorf("failed to rewind dlq reader: %w", err)
	}

	var out []DLQMessage
	for limit <= 0 || len(out) < limit {
		readCtx, cancel := context.WithTimeout(ctx, constants.DLQReadTimeout)
		m, err := reader.ReadMessage(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			break
		}
		out = append(out, toDLQMessage(m))
	}
	return out, nil
}

func (r *KafkaDLQReader) Depth(ctx context.Context) (int64, error) {
	conn, err := r.dialLeader(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	first, last, err := conn.ReadOffsets()
	if err != nil {
		return 0, fmt.Errorf("failed to read dlq offsets: %w", err)
	}
	return last - first, nil
}

// OldestAge reports how long the oldest dead-lettered message has been
// sitting on the topic. Zero when the topic is empty.
func (r *KafkaDLQReader) OldestAge(ctx context.Context) (time.Duration, error) {
	depth, err := r.Depth(ctx)
	if err != nil {
		return 0, err
	}
	if depth == 0 {
		return 0, nil
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   r.brokers,
		Topic:     r.topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffset(kafka.FirstOffset); err != nil {
		return 0, fmt.Errorf("failed to rewind dlq reader: %w", err)
	}

	readCtx, cancel := context.WithTimeout(ctx, constants.DLQReadTimeout)
	defer cancel()
	m, err := reader.ReadMessage(readCtx)
	if err != nil {
		return 0, fmt.Errorf("failed to read oldest dlq message: %w", err)
	}
	return time.Since(m.Time), nil
}

func (r *KafkaDLQReader) Close() error {
	return nil
}

func (r *KafkaDLQReader) dialLeader(ctx context.Context) (*kafka.Conn, error) {
	if len(r.brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialLeader(ctx, "tcp", r.brokers[0], r.topic, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to dial dlq topic leader: %w", err)
	}
	return conn, nil
}

func toDLQMessage(m kafka.Message) DLQMessage {
	attrs := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		attrs[h.Key] = string(h.Value)
	}

	id := attrs[constants.HeaderMessageID]
	if id == "" {
		id = fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset)
	}

	receiveCount := 0
	if raw := attrs[constants.HeaderReceiveCount]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			receiveCount = n
		}
	}

	var failedAt time.Time
	if raw := attrs[constants.HeaderFailedAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			failedAt = t
		}
	}

	return DLQMessage{
		MessageID:     id,
		Body:          m.Value,
		Offset:        m.Offset,
		Partition:     m.Partition,
		ReceiveCount:  receiveCount,
		FailureReason: attrs[constants.HeaderFailureReason],
		FailureStage:  attrs[constants.HeaderFailureStage],
		FailureCode:   attrs[constants.HeaderFailureCode],
		SourceTopic:   attrs[constants.HeaderSourceTopic],
		FailedAt:      failedAt,
		EnqueuedAt:    m.Time,
	}
}
