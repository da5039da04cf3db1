package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe(4)
	b, cancelB := bus.Subscribe(4)
	defer cancelA()
	defer cancelB()

	ev, err := New(BetPlaced, 7, map[string]string{"side": "yes"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := bus.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for i, ch := range []<-chan Event{a, b} {
		got := <-ch
		if got.Type != BetPlaced || got.MarketID != 7 {
			t.Errorf("subscriber %d got %+v", i, got)
		}
	}
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe(1)
	defer cancel()

	ev, _ := New(BetPlaced, 1, nil)
	for i := 0; i < 3; i++ {
		_ = bus.Publish(context.Background(), ev)
	}
	if bus.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", bus.Dropped())
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}
	if bus.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", bus.Subscribers())
	}
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

func TestFanoutContinuesPastFailures(t *testing.T) {
	boom := errors.New("boom")
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	f := Fanout{failingPublisher{err: boom}, nil, bus}
	ev, _ := New(MarketSettled, 3, nil)
	err := f.Publish(context.Background(), ev)
	if !errors.Is(err, boom) {
		t.Errorf("Publish() error = %v, want boom", err)
	}
	if got := <-ch; got.Type != MarketSettled {
		t.Errorf("bus got %s, want %s", got.Type, MarketSettled)
	}
}

type recordingWriter struct{ msgs []kafka.Message }

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaPublisherKeysByMarket(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisher(w)

	ev, _ := New(BetPlaced, 42, map[string]int{"amount": 5})
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "42" {
		t.Errorf("key = %q, want 42", msg.Key)
	}
	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("value is not an event: %v", err)
	}
	if decoded.Type != BetPlaced {
		t.Errorf("decoded type = %s", decoded.Type)
	}
}
