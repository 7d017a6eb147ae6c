package kbevent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kegcore_events_published_total",
	Help: "counter of events enqueued on the event hub",
}, []string{"event"})

var eventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kegcore_events_dispatched_total",
	Help: "counter of events dispatched to subscribers by the event hub",
}, []string{"event"})

var subscriberPanics = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kegcore_subscriber_panics_total",
	Help: "counter of panics recovered from event hub subscribers",
})
