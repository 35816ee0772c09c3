// Package relay mirrors chat turns onto a Kafka topic.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/KafClaw/creatorhook/internal/config"
)

// Record is the JSON value written for each mirrored turn.
type Record struct {
	TraceID   string    `json:"trace_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Stage     string    `json:"stage,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher mirrors records somewhere durable.
type Publisher interface {
	Publish(ctx context.Context, rec *Record) error
	Close() error
}

// NopPublisher drops every record. It is used when the relay is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Record) error { return nil }
func (NopPublisher) Close() error                           { return nil }

// New returns a Kafka publisher for cfg, or a NopPublisher when the relay is
// disabled.
func New(cfg config.RelayConfig) Publisher {
	if !cfg.Enabled {
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes records synchronously with leader acks.
type KafkaPublisher struct {
	w            messageWriter
	topic        string
	maxRetries   int
	backoff      time.Duration
	writeTimeout time.Duration
}

// NewKafkaPublisher creates a publisher for a comma separated broker list.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafkaPublisher(w, topic)
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w:            w,
		topic:        topic,
		maxRetries:   3,
		backoff:      500 * time.Millisecond,
		writeTimeout: 10 * time.Second,
	}
}

// Publish writes rec keyed by its trace ID so every turn of a trace lands on
// the same partition. Leader elections are retried with a linear backoff.
func (p *KafkaPublisher) Publish(ctx context.Context, rec *Record) error {
	msg, err := buildMessage(rec)
	if err != nil {
		return err
	}

	start := time.Now()
	var writeErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * p.backoff
			slog.Debug("Relay: produce retry", "topic", p.topic, "attempt", attempt, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
		writeErr = p.w.WriteMessages(writeCtx, msg)
		cancel()
		if writeErr == nil {
			slog.Debug("Relay: produced", "topic", p.topic, "trace_id", rec.TraceID, "dur", time.Since(start).Truncate(time.Millisecond))
			return nil
		}
		if !retryable(writeErr) {
			break
		}
		slog.Warn("Relay: produce failed, retrying", "topic", p.topic, "error", writeErr)
	}
	return fmt.Errorf("relay produce to %s: %w", p.topic, writeErr)
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

func retryable(err error) bool {
	return errors.Is(err, kafka.NotLeaderForPartition) || errors.Is(err, kafka.LeaderNotAvailable)
}

func buildMessage(rec *Record) (kafka.Message, error) {
	if rec == nil {
		return kafka.Message{}, errors.New("nil relay record")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal relay record: %w", err)
	}
	return kafka.Message{
		Key:     []byte(rec.TraceID),
		Value:   value,
		Headers: []kafka.Header{{Key: "role", Value: []byte(rec.Role)}},
		Time:    rec.Timestamp,
	}, nil
}
