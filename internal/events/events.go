// Package events publishes sale lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TypeSaleCreated       = "sale.created"
	TypeSaleStatusChanged = "sale.status_changed"
)

type SaleEvent struct {
	Type          string    `json:"type"`
	SaleID        int64     `json:"sale_id"`
	UserID        int64     `json:"user_id,omitempty"`
	Status        string    `json:"status"`
	PreviousState string    `json:"previous_status,omitempty"`
	Source        string    `json:"source,omitempty"`
	Total         string    `json:"total,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e SaleEvent) error
	Close() error
}

// Noop drops every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, SaleEvent) error { return nil }
func (Noop) Close() error                             { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by sale id so one sale's events stay
// ordered on a single partition.
type KafkaPublisher struct {
	w   messageWriter
	log *zap.Logger
}

// NewKafkaPublisher returns an async publisher: Publish only queues the
// message, so a slow or missing broker never holds up a request. Delivery
// failures are logged from the writer's completion hook.
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	p := &KafkaPublisher{log: log}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   p.delivered,
	}
	return p
}

func (p *KafkaPublisher) delivered(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range msgs {
		p.log.Warn("sale event not delivered", zap.ByteString("sale_id", m.Key), zap.Error(err))
	}
}

// New picks Kafka when brokers are given, Noop otherwise.
func New(brokers []string, topic string, log *zap.Logger) Publisher {
	if len(brokers) == 0 {
		return Noop{}
	}
	return NewKafkaPublisher(brokers, topic, log)
}

func (p *KafkaPublisher) Publish(ctx context.Context, e SaleEvent) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(e.SaleID, 10)),
		Value: data,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("publish sale event", zap.String("type", e.Type), zap.Int64("sale_id", e.SaleID), zap.Error(err))
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
