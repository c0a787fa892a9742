package bus

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is one named occurrence published on the bus.
type Event struct {
	Name      string
	Payload   any
	Timestamp time.Time
}

// Handler consumes an event. Handlers run synchronously and to completion
// before Publish returns, so simulation ordering is preserved.
type Handler func(Event)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Bus is a typed registry of event-name -> handler list with synchronous
// dispatch. Components communicate only through it, never by direct
// reference. Subscribe and Publish are expected to run on the engine
// goroutine; the bus holds no locks.
type Bus struct {
	handlers map[string][]Handler
	logger   Logger

	published metric.Int64Counter
	handled   metric.Int64Counter
}

// New creates a new Bus with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Bus, error) {
	b := &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}

	m := meter()

	var err error

	b.published, err = m.Int64Counter(
		"bus.events.published",
		metric.WithDescription("Total events published"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating published counter: %w", err)
	}

	b.handled, err = m.Int64Counter(
		"bus.events.handled",
		metric.WithDescription("Total handler invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating handled counter: %w", err)
	}

	return b, nil
}

// Subscribe registers a handler for the named event. Handlers are invoked
// in subscription order.
func (b *Bus) Subscribe(name string, h Handler) {
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish delivers the payload to every subscriber of name, synchronously,
// in subscription order. Publishing an event nobody subscribes to is not an
// error. Handlers may publish further events; those are dispatched to
// completion before the outer Publish returns.
func (b *Bus) Publish(name string, payload any) {
	e := Event{Name: name, Payload: payload, Timestamp: time.Now()}

	hs := b.handlers[name]

	nameAttr := attribute.String("event", name)
	b.published.Add(context.Background(), 1, metric.WithAttributes(nameAttr))

	if b.logger != nil {
		b.logger.Debug("publishing event", "event", name, "handlers", len(hs))
	}

	for _, h := range hs {
		h(e)
		b.handled.Add(context.Background(), 1, metric.WithAttributes(nameAttr))
	}
}

// HasSubscribers returns true if at least one handler is registered for name.
func (b *Bus) HasSubscribers(name string) bool {
	return len(b.handlers[name]) > 0
}

// SubscriberCount returns the number of handlers registered for name.
func (b *Bus) SubscriberCount(name string) int {
	return len(b.handlers[name])
}
