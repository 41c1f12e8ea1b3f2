package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/paventhan183/dr-appointment/libs/kafkax"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/model"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestMessageShape(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{}, testLogger(), 1)
	p.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }

	appt := model.Appointment{ID: "42", Name: "Jane Doe", Date: "2024-06-01", Time: "10:00", Services: []model.Service{}}
	msg, err := p.message(context.Background(), Event{Type: TypeCreated, AppointmentID: "42", Appointment: &appt})
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Key) != "42" {
		t.Fatalf("expected key 42, got %q", msg.Key)
	}
	if kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventType) != TypeCreated {
		t.Fatalf("missing event_type header: %v", msg.Headers)
	}
	if kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventID) == "" {
		t.Fatal("missing event_id header")
	}

	var body map[string]any
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		t.Fatal(err)
	}
	if body["event_type"] != TypeCreated || body["occurred_at"] != "2024-06-01T10:00:00Z" {
		t.Fatalf("unexpected payload: %v", body)
	}
	if inner, ok := body["appointment"].(map[string]any); !ok || inner["name"] != "Jane Doe" {
		t.Fatalf("expected embedded appointment, got %v", body["appointment"])
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{}, testLogger(), 1)
	p.Publish(context.Background(), Event{Type: TypeDeleted, AppointmentID: "1"})
	p.Publish(context.Background(), Event{Type: TypeDeleted, AppointmentID: "2"})

	if len(p.queue) != 1 {
		t.Fatalf("expected one queued event, got %d", len(p.queue))
	}
	msg := <-p.queue
	if string(msg.Key) != "1" {
		t.Fatalf("expected the first event to be kept, got %q", msg.Key)
	}
}

func TestRunWritesAndFlushes(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, testLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.Publish(context.Background(), Event{Type: TypeCleared})
	p.Publish(context.Background(), Event{Type: TypeDeleted, AppointmentID: "7"})

	deadline := time.After(2 * time.Second)
	for w.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected 2 messages written, got %d", w.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		t.Fatal("expected writer to be closed on shutdown")
	}
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}
	p.Publish(context.Background(), Event{Type: TypeCreated})
}
