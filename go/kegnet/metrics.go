package kegnet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kegcore_kegnet_messages_received_total",
	Help: "counter of messages received from the kegnet channel",
})

var messagesPublished = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kegcore_kegnet_messages_published_total",
	Help: "counter of messages published to the kegnet channel",
})

var messagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kegcore_kegnet_messages_dropped_total",
	Help: "counter of kegnet messages dropped",
}, []string{"reason"})
