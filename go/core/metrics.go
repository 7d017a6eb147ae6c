package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var meterTicks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kegcore_meter_ticks_total",
	Help: "counter of accepted flow meter ticks",
}, []string{"meter"})

var flowsStarted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kegcore_flows_started_total",
	Help: "counter of started flows",
})

var flowsCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kegcore_flows_completed_total",
	Help: "counter of completed flows",
})

var drinksRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kegcore_drinks_recorded_total",
	Help: "counter of drinks acknowledged by the backend",
})

var drinkPostRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kegcore_drink_post_retries_total",
	Help: "counter of drink posts re-queued after a transient backend error",
})

var drinksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kegcore_drinks_dropped_total",
	Help: "counter of completed flows dropped without a drink record",
}, []string{"reason"})

var thermoRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kegcore_thermo_readings_recorded_total",
	Help: "counter of temperature readings recorded to the backend",
})

var thermoDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kegcore_thermo_readings_dropped_total",
	Help: "counter of temperature readings dropped before recording",
}, []string{"reason"})
