package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes notification requests to a Kafka topic, keyed by
// appointment ID so all events for one appointment land on one partition.
type KafkaNotifier struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

func NewKafkaNotifier(brokers []string, topic string, log zerolog.Logger) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error().Msgf("kafka writer: "+msg, args...)
		}),
	}

	return &KafkaNotifier{
		writer: writer,
		log:    log.With().Str("component", "notifier").Logger(),
	}, nil
}

func (n *KafkaNotifier) Notify(ctx context.Context, req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(req.AppointmentID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(req.Kind)},
		},
	}

	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s notification: %w", req.Kind, err)
	}

	n.log.Debug().
		Str("kind", string(req.Kind)).
		Stringer("appointment_id", req.AppointmentID).
		Msg("notification published")

	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// LogNotifier is the dev fallback when no brokers are configured. Requests
// are written to the log instead of a topic.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, req Request) error {
	n.log.Info().
		Str("kind", string(req.Kind)).
		Stringer("appointment_id", req.AppointmentID).
		Str("patient", req.PatientName).
		Str("doctor", req.DoctorName).
		Time("date", req.Date).
		Str("session", req.Session).
		Msg("notification (log only)")
	return nil
}
