package event

import (
	"fmt"
	"log/slog"
	"sync"
)

// Bus is an in-memory publish/subscribe hub. Every subscriber sees every
// event published after it subscribed, in per-publisher order. Delivery is
// unbounded: a slow subscriber grows its own queue and never blocks Publish.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	logger *slog.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// Publish hands e to every current subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		s.enqueue(e)
	}
	b.logger.Debug("event published", "event", fmt.Sprintf("%T", e), "subscribers", len(b.subs))
}

// Subscribe registers a new subscriber. Callers must Close it when done.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{
		bus:    b,
		wake:   make(chan struct{}, 1),
		out:    make(chan Event),
		closed: make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.pump()
	return s
}

// SubscriberCount returns the number of registered subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscription is one subscriber's view of the bus.
type Subscription struct {
	bus *Bus

	mu     sync.Mutex
	queue  []Event
	wake   chan struct{}
	out    chan Event
	closed chan struct{}
	once   sync.Once
}

// C delivers events in publish order. It is closed after Close.
func (s *Subscription) C() <-chan Event {
	return s.out
}

// Close unregisters the subscription and discards undelivered events.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.closed)
	})
}

func (s *Subscription) enqueue(e Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	e := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return e, true
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		e, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.closed:
				return
			}
		}
		select {
		case s.out <- e:
		case <-s.closed:
			return
		}
	}
}
