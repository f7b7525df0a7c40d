// Package eventbus provides the in-process typed publish/subscribe
// multiplexer that decouples state-change producers from asynchronous
// reactors. Delivery is fire-and-forget: a published event that reaches zero
// subscribers is dropped, and a slow subscriber never throttles the
// publisher.
//
// Each subscription owns a buffered FIFO channel drained by its own
// goroutine, so delivery order to a given subscriber matches publish order
// while subscribers remain independent of each other. When a subscriber's
// buffer fills under sustained stalls, further events for that subscriber
// are dropped and logged rather than blocking the publisher; the buffer size
// bounds memory growth.
//
// A publish performed from inside a handler (re-entrant publish) is enqueued
// behind the event currently being handled, so the publishing subscriber
// sees it after finishing the current event.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/posflow/posflow/internal/events"
)

// DefaultBufferSize is the per-subscription channel capacity used when no
// explicit size is configured.
const DefaultBufferSize = 256

// Handler processes a single delivered event. A panicking handler is
// recovered and logged by the bus; it never prevents delivery to other
// subscribers or propagates back to the publisher.
type Handler func(event events.DomainEvent)

// Subscription is a live registration of a handler on the bus.
type Subscription struct {
	id        uuid.UUID
	eventName string // empty for subscribe-all
	handler   Handler
	ch        chan events.DomainEvent

	mu         sync.RWMutex
	closed     bool
	cancelOnce sync.Once
	bus        *Bus
}

// Cancel removes the subscription from the bus and stops its delivery
// goroutine once the already-enqueued events have been handled.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		s.bus.remove(s)
		// Block out in-flight publishes before closing the channel.
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.ch)
	})
}

// enqueue attempts a non-blocking send, reporting whether the event was
// accepted. A cancelled subscription or a full buffer rejects the event.
func (s *Subscription) enqueue(event events.DomainEvent) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- event:
		return true
	default:
		return false
	}
}

// Bus fans published domain events out to every matching subscription.
type Bus struct {
	mu         sync.RWMutex
	byName     map[string][]*Subscription
	all        []*Subscription
	closed     bool
	bufferSize int
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// New creates a Bus with the given per-subscription buffer size. A
// non-positive bufferSize falls back to DefaultBufferSize.
func New(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		byName:     make(map[string][]*Subscription),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe registers handler for all future events carrying eventName.
// Multiple subscribers per event name are allowed and independent.
func (b *Bus) Subscribe(eventName string, handler Handler) *Subscription {
	sub := b.newSubscription(eventName, handler)
	if sub == nil {
		return nil
	}

	b.mu.Lock()
	b.byName[eventName] = append(b.byName[eventName], sub)
	b.mu.Unlock()

	return sub
}

// SubscribeAll registers handler for every published event regardless of
// type. Used by generic reactors such as audit loggers and broadcasters.
func (b *Bus) SubscribeAll(handler Handler) *Subscription {
	sub := b.newSubscription("", handler)
	if sub == nil {
		return nil
	}

	b.mu.Lock()
	b.all = append(b.all, sub)
	b.mu.Unlock()

	return sub
}

// Publish delivers event to every live subscription whose tag matches the
// event's name, plus every subscribe-all subscription. It never fails and
// never blocks on a subscriber.
func (b *Bus) Publish(event events.DomainEvent) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	targets := make([]*Subscription, 0, len(b.byName[event.EventName()])+len(b.all))
	targets = append(targets, b.byName[event.EventName()]...)
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	for _, sub := range targets {
		if !sub.enqueue(event) {
			if b.logger != nil {
				b.logger.Warn("dropping event for subscriber",
					slog.String("event_name", event.EventName()),
					slog.String("subscription_id", sub.id.String()),
				)
			}
		}
	}
}

// Close cancels every subscription and waits for in-flight deliveries to
// finish. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.all))
	for _, list := range b.byName {
		subs = append(subs, list...)
	}
	subs = append(subs, b.all...)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	b.wg.Wait()
}

// newSubscription allocates a subscription and starts its delivery loop.
// Returns nil if the bus is already closed.
func (b *Bus) newSubscription(eventName string, handler Handler) *Subscription {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil
	}

	sub := &Subscription{
		id:        uuid.Must(uuid.NewV7()),
		eventName: eventName,
		handler:   handler,
		ch:        make(chan events.DomainEvent, b.bufferSize),
		bus:       b,
	}

	b.wg.Add(1)
	go b.deliver(sub)

	return sub
}

// deliver drains the subscription channel, isolating handler panics.
func (b *Bus) deliver(sub *Subscription) {
	defer b.wg.Done()
	for event := range sub.ch {
		b.handleOne(sub, event)
	}
}

// handleOne invokes the handler for a single event with panic recovery.
func (b *Bus) handleOne(sub *Subscription, event events.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			if b.logger != nil {
				b.logger.Error("event handler panicked",
					slog.String("event_name", event.EventName()),
					slog.String("subscription_id", sub.id.String()),
					slog.Any("panic", r),
				)
			}
		}
	}()
	sub.handler(event)
}

// remove detaches sub from the bus registries.
func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.eventName == "" {
		b.all = removeSub(b.all, sub)
		return
	}

	list := removeSub(b.byName[sub.eventName], sub)
	if len(list) == 0 {
		delete(b.byName, sub.eventName)
	} else {
		b.byName[sub.eventName] = list
	}
}

func removeSub(list []*Subscription, sub *Subscription) []*Subscription {
	for i, s := range list {
		if s == sub {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
