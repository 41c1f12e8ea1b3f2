package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/paventhan183/dr-appointment/libs/kafkax"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/model"
	"github.com/segmentio/kafka-go"
)

const (
	TypeCreated = "appointment.created.v1"
	TypeUpdated = "appointment.updated.v1"
	TypeDeleted = "appointment.deleted.v1"
	TypeCleared = "appointment.cleared.v1"

	DefaultTopic      = "appointments.v1"
	defaultBufferSize = 256
)

// Event is one appointment change. Appointment is nil for deletes.
type Event struct {
	Type          string
	AppointmentID string
	Appointment   *model.Appointment
}

type payload struct {
	EventType     string             `json:"event_type"`
	AppointmentID string             `json:"appointment_id,omitempty"`
	OccurredAt    string             `json:"occurred_at"`
	Appointment   *model.Appointment `json:"appointment,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Noop discards events; used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues events in a bounded buffer and writes them from Run.
// Publish never blocks; a full buffer drops the event.
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
	queue  chan kafka.Message
	now    func() time.Time
}

type PublisherConfig struct {
	Brokers    []string
	Topic      string
	BufferSize int
}

func NewKafkaPublisher(logger *slog.Logger, cfg PublisherConfig) *KafkaPublisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	return newKafkaPublisher(kafkax.NewWriter(cfg.Brokers, cfg.Topic), logger, cfg.BufferSize)
}

func newKafkaPublisher(writer messageWriter, logger *slog.Logger, size int) *KafkaPublisher {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &KafkaPublisher{
		writer: writer,
		logger: logger,
		queue:  make(chan kafka.Message, size),
		now:    time.Now,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) {
	msg, err := p.message(ctx, evt)
	if err != nil {
		p.logger.Error("event encode failed", "event_type", evt.Type, "err", err)
		return
	}
	select {
	case p.queue <- msg:
	default:
		p.logger.Warn("event buffer full, dropping event", "event_type", evt.Type, "appointment_id", evt.AppointmentID)
	}
}

// Run drains the buffer until ctx is done, then flushes what is left with a
// short deadline and closes the writer.
func (p *KafkaPublisher) Run(ctx context.Context) {
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Warn("event writer close failed", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case msg := <-p.queue:
			if err := p.writer.WriteMessages(ctx, msg); err != nil {
				p.logger.Error("event publish failed", "event_type", kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventType), "err", err)
			}
		}
	}
}

func (p *KafkaPublisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-p.queue:
			if err := p.writer.WriteMessages(ctx, msg); err != nil {
				p.logger.Error("event publish failed", "event_type", kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventType), "err", err)
				return
			}
		default:
			return
		}
	}
}

func (p *KafkaPublisher) message(ctx context.Context, evt Event) (kafka.Message, error) {
	body, err := json.Marshal(payload{
		EventType:     evt.Type,
		AppointmentID: evt.AppointmentID,
		OccurredAt:    p.now().UTC().Format(time.RFC3339),
		Appointment:   evt.Appointment,
	})
	if err != nil {
		return kafka.Message{}, err
	}
	msg := kafka.Message{
		Key:   []byte(evt.AppointmentID),
		Value: body,
		Headers: []kafka.Header{
			{Key: kafkax.HeaderEventID, Value: []byte(uuid.NewString())},
			{Key: kafkax.HeaderEventType, Value: []byte(evt.Type)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)
	return msg, nil
}
