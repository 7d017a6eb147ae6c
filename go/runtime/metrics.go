package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var syncs = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kegcore_syncs_total",
	Help: "counter of backend status sync attempts",
}, []string{"status"})
