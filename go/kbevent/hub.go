package kbevent

import (
	"reflect"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Handler is a subscriber callback. Handlers run on the hub's dispatch
// worker and must not block indefinitely.
type Handler func(Event)

// Subscription pairs an event type with a handler. Managers expose their
// subscriptions as a list which Hub.SubscribeAll consumes.
type Subscription struct {
	Type Event
	Fn   Handler
}

// Subscriber is implemented by components which handle hub events.
type Subscriber interface {
	EventHandlers() []Subscription
}

type subscription struct {
	key uintptr
	fn  Handler
}

// Hub is an in-process typed pub/sub with queued, strictly FIFO dispatch.
// PublishEvent never blocks; the queue is unbounded and in-memory.
type Hub struct {
	mu    sync.Mutex
	subs  map[reflect.Type][]subscription
	queue []Event
	wake  chan struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[reflect.Type][]subscription),
		wake: make(chan struct{}, 1),
	}
}

// handlerKey identifies a callback by its code pointer. Two closures built
// from distinct function literals, or two distinct named functions, never
// collide. Registering the same method of two instances of one type would;
// the core constructs exactly one instance of each manager.
func handlerKey(fn Handler) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// Subscribe registers |fn| for events of the concrete type of |prototype|.
// Duplicate registration of the same callback is a no-op.
func (h *Hub) Subscribe(prototype Event, fn Handler) {
	var typ = reflect.TypeOf(prototype)
	var key = handlerKey(fn)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[typ] {
		if sub.key == key {
			return
		}
	}
	h.subs[typ] = append(h.subs[typ], subscription{key: key, fn: fn})
}

// Unsubscribe removes a previously registered callback. Removing an absent
// callback is tolerated.
func (h *Hub) Unsubscribe(prototype Event, fn Handler) {
	var typ = reflect.TypeOf(prototype)
	var key = handlerKey(fn)

	h.mu.Lock()
	defer h.mu.Unlock()

	var subs = h.subs[typ]
	for i, sub := range subs {
		if sub.key == key {
			h.subs[typ] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// SubscribeAll registers every handler exposed by |s|.
func (h *Hub) SubscribeAll(s Subscriber) {
	for _, sub := range s.EventHandlers() {
		h.Subscribe(sub.Type, sub.Fn)
	}
}

// PublishEvent appends |ev| to the dispatch queue and returns immediately.
func (h *Hub) PublishEvent(ev Event) {
	h.mu.Lock()
	h.queue = append(h.queue, ev)
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
	eventsPublished.WithLabelValues(ev.EventName()).Inc()
}

func (h *Hub) pop() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.queue) == 0 {
		return nil, false
	}
	var ev = h.queue[0]
	h.queue = h.queue[1:]
	return ev, true
}

// DispatchNextEvent dequeues at most one event within |timeout| and invokes
// every subscriber for its concrete type. It reports whether an event was
// dispatched.
func (h *Hub) DispatchNextEvent(timeout time.Duration) bool {
	var timer = time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if ev, ok := h.pop(); ok {
			h.dispatch(ev)
			return true
		}
		select {
		case <-h.wake:
			// Re-check the queue.
		case <-timer.C:
			return false
		}
	}
}

// Flush dispatches all currently-queued events, returning the count.
func (h *Hub) Flush() int {
	var count int
	for {
		var ev, ok = h.pop()
		if !ok {
			return count
		}
		h.dispatch(ev)
		count++
	}
}

func (h *Hub) dispatch(ev Event) {
	h.mu.Lock()
	var subs = append([]subscription(nil), h.subs[reflect.TypeOf(ev)]...)
	h.mu.Unlock()

	for _, sub := range subs {
		h.invoke(ev, sub.fn)
	}
	eventsDispatched.WithLabelValues(ev.EventName()).Inc()
}

// invoke runs a single subscriber. A panicking subscriber must not prevent
// the remaining subscribers from running.
func (h *Hub) invoke(ev Event, fn Handler) {
	defer func() {
		if r := recover(); r != nil {
			subscriberPanics.Inc()
			log.WithFields(log.Fields{
				"event": ev.EventName(),
				"panic": r,
			}).Error("subscriber panicked")
		}
	}()
	fn(ev)
}
