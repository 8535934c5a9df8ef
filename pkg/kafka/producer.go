package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/electronicjova/storefront-backend/pkg/config"
	"github.com/electronicjova/storefront-backend/pkg/logger"
)

var (
	ErrProducerClosed  = errors.New("kafka producer closed")
	errBrokersRequired = errors.New("kafka brokers are required")
	errTopicRequired   = errors.New("kafka topic is required")
)

// Message is one record keyed by aggregate id so every event of an order
// lands on the same partition in order.
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer mirrors outbox events onto a Kafka topic.
type Producer struct {
	writer messageWriter
	topic  string
	closed atomic.Bool
}

// NewProducer builds a synchronous writer for cfg.OrdersTopic.
func NewProducer(cfg config.KafkaConfig, logg *logger.Logger) (*Producer, error) {
	if !cfg.Enabled() {
		return nil, errBrokersRequired
	}
	topic := strings.TrimSpace(cfg.OrdersTopic)
	if topic == "" {
		return nil, errTopicRequired
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  attempts,
		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				dialer := &kafka.Dialer{
					Timeout:   10 * time.Second,
					DualStack: true,
					KeepAlive: 30 * time.Second,
				}
				return dialer.DialContext(ctx, network, address)
			},
		},
	}
	if logg != nil {
		writer.ErrorLogger = kafka.LoggerFunc(func(msg string, args ...any) {
			logg.Warn(context.Background(), "kafka writer: "+fmt.Sprintf(msg, args...))
		})
		logg.Info(logg.WithFields(context.Background(), map[string]any{
			"brokers": cfg.Brokers,
			"topic":   topic,
		}), "kafka producer initialized")
	}
	return &Producer{writer: writer, topic: topic}, nil
}

func (p *Producer) Topic() string {
	return p.topic
}

// Publish writes the messages and blocks until the brokers acknowledge them.
func (p *Producer) Publish(ctx context.Context, msgs ...Message) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if len(msgs) == 0 {
		return nil
	}
	records := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		records[i] = msg.toKafka()
	}
	if err := p.writer.WriteMessages(ctx, records...); err != nil {
		return fmt.Errorf("write %s: %w", p.topic, err)
	}
	return nil
}

// IsTemporary reports whether a publish failure is worth retrying.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProducerClosed) {
		return false
	}
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}

func (m Message) toKafka() kafka.Message {
	record := kafka.Message{Key: []byte(m.Key), Value: m.Value}
	for key, value := range m.Headers {
		record.Headers = append(record.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	return record
}
