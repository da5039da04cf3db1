// Package events carries market domain events from the ledger to whoever is
// listening: the live websocket feed, Redis subscribers and Kafka consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// Type names a domain event.
type Type string

const (
	MarketCreated   Type = "market.created"
	BetPlaced       Type = "bet.placed"
	MarketSettled   Type = "market.settled"
	MarketCancelled Type = "market.cancelled"
	PayoutClaimed   Type = "payout.claimed"
)

// Event is emitted after the change it describes has committed.
type Event struct {
	Type     Type            `json:"type"`
	MarketID uint            `json:"market_id"`
	Data     json.RawMessage `json:"data,omitempty"`
	At       time.Time       `json:"at"`
}

// New builds an event, encoding data as JSON.
func New(t Type, marketID uint, data any) (Event, error) {
	ev := Event{Type: t, MarketID: marketID, At: time.Now().UTC()}
	if data == nil {
		return ev, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	ev.Data = raw
	return ev, nil
}

// Key is the partition key for ordered transports: all events of one market
// share it.
func (e Event) Key() string {
	return strconv.FormatUint(uint64(e.MarketID), 10)
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Fanout publishes every event to each publisher in turn and joins their
// errors. One failing transport does not stop the others.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
