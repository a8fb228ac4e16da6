package messaging

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	readerMinBytes = 1
	readerMaxBytes = 10_000_000 // 10MB
)

// BrokerConfig holds connection settings shared by producer and consumer
type BrokerConfig struct {
	Brokers      []string
	ClientID     string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	BatchTimeout time.Duration
	MaxAttempts  int
}

// DefaultBrokerConfig returns default broker settings
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Brokers:      []string{"localhost:9092"},
		ClientID:     "credit-backend",
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  1,
	}
}

// Broker owns the process-wide broker connection.
// It is opened once at startup and handed to the publisher and consumer.
type Broker struct {
	config BrokerConfig
	writer *kafka.Writer
	dialer *kafka.Dialer
	logger *zap.Logger
}

// NewBroker creates the shared broker connection
func NewBroker(cfg BrokerConfig, logger *zap.Logger) (*Broker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker address is required")
	}

	dialer := &kafka.Dialer{
		ClientID:  cfg.ClientID,
		Timeout:   cfg.DialTimeout,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{}, // same credit number, same partition
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		Transport: &kafka.Transport{
			ClientID:    cfg.ClientID,
			DialTimeout: cfg.DialTimeout,
		},
	}

	logger.Info("broker connection configured",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("client_id", cfg.ClientID),
	)

	return &Broker{
		config: cfg,
		writer: writer,
		dialer: dialer,
		logger: logger,
	}, nil
}

// Writer returns the shared, concurrency-safe writer
func (b *Broker) Writer() *kafka.Writer {
	return b.writer
}

// NewReader creates a consumer-group reader for a topic, starting from the
// earliest offset when the group has no committed position.
// Offsets are committed explicitly through CommitMessages.
func (b *Broker) NewReader(topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        b.config.Brokers,
		GroupID:        groupID,
		Topic:          topic,
		Dialer:         b.dialer,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
		MinBytes:       readerMinBytes,
		MaxBytes:       readerMaxBytes,
		MaxWait:        500 * time.Millisecond,
	})
}

// Ping checks that at least one broker accepts connections
func (b *Broker) Ping(ctx context.Context) error {
	var lastErr error
	for _, addr := range b.config.Brokers {
		conn, err := b.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return &TransportError{Op: "ping", Err: lastErr}
}

// EnsureTopic creates the topic on the controller if it does not exist
func (b *Broker) EnsureTopic(ctx context.Context, topic string, partitions, replicationFactor int) error {
	conn, err := b.dialer.DialContext(ctx, "tcp", b.config.Brokers[0])
	if err != nil {
		return &TransportError{Op: "dial", Topic: topic, Err: err}
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return &TransportError{Op: "controller lookup", Topic: topic, Err: err}
	}

	controllerConn, err := b.dialer.DialContext(ctx, "tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return &TransportError{Op: "dial controller", Topic: topic, Err: err}
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replicationFactor,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return &TransportError{Op: "create topic", Topic: topic, Err: err}
	}

	b.logger.Info("topic ready",
		zap.String("topic", topic),
		zap.Int("partitions", partitions),
	)
	return nil
}

// Close flushes and closes the shared writer
func (b *Broker) Close() error {
	if err := b.writer.Close(); err != nil {
		return fmt.Errorf("failed to close broker writer: %w", err)
	}
	b.logger.Info("broker connection closed")
	return nil
}
