package core

import (
	"github.com/kegbot/kegcore/go/kbevent"
)

// recorder captures hub events of selected types, in dispatch order.
type recorder struct {
	events []kbevent.Event
}

func recordEvents(hub *kbevent.Hub, prototypes ...kbevent.Event) *recorder {
	var r = new(recorder)
	for _, prototype := range prototypes {
		hub.Subscribe(prototype, func(ev kbevent.Event) {
			r.events = append(r.events, ev)
		})
	}
	return r
}

func (r *recorder) clear() { r.events = nil }

func (r *recorder) flowUpdates() []*kbevent.FlowUpdate {
	var out []*kbevent.FlowUpdate
	for _, ev := range r.events {
		if update, ok := ev.(*kbevent.FlowUpdate); ok {
			out = append(out, update)
		}
	}
	return out
}

func (r *recorder) relayEvents() []*kbevent.SetRelayOutputEvent {
	var out []*kbevent.SetRelayOutputEvent
	for _, ev := range r.events {
		if relay, ok := ev.(*kbevent.SetRelayOutputEvent); ok {
			out = append(out, relay)
		}
	}
	return out
}

func (r *recorder) drinkEvents() []*kbevent.DrinkCreatedEvent {
	var out []*kbevent.DrinkCreatedEvent
	for _, ev := range r.events {
		if drink, ok := ev.(*kbevent.DrinkCreatedEvent); ok {
			out = append(out, drink)
		}
	}
	return out
}
