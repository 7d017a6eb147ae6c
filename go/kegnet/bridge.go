package kegnet

import (
	"context"
	"reflect"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.gazette.dev/core/task"

	"github.com/kegbot/kegcore/go/kbevent"
)

// outboundPrototypes are the event types republished to external
// consumers on the kegnet channel.
var outboundPrototypes = []kbevent.Event{
	&kbevent.MeterUpdate{},
	&kbevent.ThermoEvent{},
	&kbevent.TokenAuthEvent{},
	&kbevent.FlowUpdate{},
	&kbevent.DrinkCreatedEvent{},
	&kbevent.SetRelayOutputEvent{},
	&kbevent.ControllerConnectedEvent{},
}

// sendTimeout bounds one outbound publish so a stalled broker cannot
// stall event dispatch.
const sendTimeout = 5 * time.Second

// Bridge is the bidirectional adapter between the EventHub and the kegnet
// channel. Inbound messages are decoded and published into the hub;
// selected hub events are encoded and republished to the broker.
//
// Events which themselves arrived from the broker are not republished:
// the bridge tracks in-flight inbound events by identity and skips them
// on the outbound path.
type Bridge struct {
	hub    *kbevent.Hub
	client *Client
	logger *log.Entry
	ctx    context.Context

	mu       sync.Mutex
	inflight map[kbevent.Event]struct{}
	outbound map[reflect.Type]struct{}
}

// NewBridge returns a Bridge between |hub| and |client|.
func NewBridge(hub *kbevent.Hub, client *Client) *Bridge {
	var outbound = make(map[reflect.Type]struct{}, len(outboundPrototypes))
	for _, proto := range outboundPrototypes {
		outbound[reflect.TypeOf(proto)] = struct{}{}
	}
	return &Bridge{
		hub:      hub,
		client:   client,
		logger:   log.WithField("component", "kegnet-bridge"),
		inflight: make(map[kbevent.Event]struct{}),
		outbound: outbound,
	}
}

// QueueTasks registers the outbound hub subscriptions and queues the
// inbound listen worker.
func (b *Bridge) QueueTasks(tasks *task.Group) {
	b.ctx = tasks.Context()

	for _, proto := range outboundPrototypes {
		b.hub.Subscribe(proto, b.handleOutbound)
	}
	tasks.Queue("kegnetInbound", func() error {
		return b.client.Listen(tasks.Context(), b.publishInbound)
	})
}

// publishInbound feeds a broker-originated event into the hub.
func (b *Bridge) publishInbound(ev kbevent.Event) {
	if _, ok := b.outbound[reflect.TypeOf(ev)]; ok {
		b.mu.Lock()
		b.inflight[ev] = struct{}{}
		b.mu.Unlock()
	}
	b.hub.PublishEvent(ev)
}

// handleOutbound republishes a hub event to the broker, unless it was
// itself received from the broker. Publish failures drop the message;
// downstream consumers are telemetry sinks, not critical.
func (b *Bridge) handleOutbound(ev kbevent.Event) {
	b.mu.Lock()
	if _, ok := b.inflight[ev]; ok {
		delete(b.inflight, ev)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	var ctx = b.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := b.client.Send(ctx, ev); err != nil {
		b.logger.WithFields(log.Fields{
			"event": ev.EventName(),
			"err":   err,
		}).Warn("connection unavailable, dropping message")
		messagesDropped.WithLabelValues("publish").Inc()
		return
	}
	messagesPublished.Inc()
}
