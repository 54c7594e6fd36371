package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"
	"github.com/smallbiznis/importduty/internal/clock"
	obscontext "github.com/smallbiznis/importduty/internal/observability/context"
	"github.com/smallbiznis/importduty/internal/observability/metrics"
	"go.uber.org/zap"
)

type EventType string

const (
	EventVehicleCreated    EventType = "vehicle.created"
	EventVehicleUpdated    EventType = "vehicle.updated"
	EventVehicleDeleted    EventType = "vehicle.deleted"
	EventVehiclesRerated   EventType = "vehicles.rerated"
	EventExchangeRefreshed EventType = "exchange.refreshed"
	EventVehiclesImported  EventType = "vehicles.imported"
)

// Event is the JSON envelope written to the vehicles topic.
type Event struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	VehicleID     string          `json:"vehicle_id,omitempty"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// Publisher emits domain events. Callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, eventType EventType, vehicleID string, payload any) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes vehicle events to Kafka.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, clk clock.Clock, log *zap.Logger, m *metrics.Metrics) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, topic, clk, log, m)
}

func newKafkaPublisher(writer messageWriter, topic string, clk clock.Clock, log *zap.Logger, m *metrics.Metrics) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		topic:   topic,
		clock:   clk,
		log:     log.Named("events.kafka"),
		metrics: m,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType EventType, vehicleID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		VehicleID:     vehicleID,
		Data:          data,
		Timestamp:     p.clock.Now(),
		CorrelationID: obscontext.RequestIDFromContext(ctx),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(vehicleID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if event.CorrelationID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "correlation_id", Value: []byte(event.CorrelationID)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.RecordEventPublished(ctx, string(eventType), "failed")
		p.log.Warn("failed to publish event",
			zap.String("topic", p.topic),
			zap.String("event_type", string(eventType)),
			zap.String("vehicle_id", vehicleID),
			zap.Error(err),
		)
		return err
	}

	p.metrics.RecordEventPublished(ctx, string(eventType), "success")
	p.log.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(eventType)),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event; used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, EventType, string, any) error { return nil }

func (NoopPublisher) Close() error { return nil }
