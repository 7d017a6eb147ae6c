package core

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kegbot/kegcore/go/backend"
	"github.com/kegbot/kegcore/go/kbevent"
)

// ThermoManager records temperature telemetry, rate-limited to one reading
// per sensor per minute and clamped to a plausible range. Recording is
// best-effort: backend failures drop the reading.
type ThermoManager struct {
	hub     *kbevent.Hub
	backend backend.Backend
	logger  *log.Entry

	// lastRecord maps sensor name to the minute of its last recording.
	lastRecord map[string]time.Time
	// sensorLog maps sensor name to its last update, for staleness sweeps.
	sensorLog map[string]time.Time

	// now is a test seam; it is time.Now outside of tests.
	now func() time.Time
}

// NewThermoManager returns a ThermoManager with no known sensors.
func NewThermoManager(hub *kbevent.Hub, be backend.Backend) *ThermoManager {
	return &ThermoManager{
		hub:        hub,
		backend:    be,
		logger:     log.WithField("manager", "thermo"),
		lastRecord: make(map[string]time.Time),
		sensorLog:  make(map[string]time.Time),
		now:        time.Now,
	}
}

// EventHandlers implements kbevent.Subscriber.
func (m *ThermoManager) EventHandlers() []kbevent.Subscription {
	return []kbevent.Subscription{
		{Type: &kbevent.ThermoEvent{}, Fn: func(ev kbevent.Event) {
			m.handleThermoUpdate(ev.(*kbevent.ThermoEvent))
		}},
		{Type: &kbevent.HeartbeatMinuteEvent{}, Fn: func(kbevent.Event) {
			m.sweepStaleSensors()
		}},
	}
}

func (m *ThermoManager) handleThermoUpdate(ev *kbevent.ThermoEvent) {
	// Out-of-range telemetry is silently dropped. The backend may be
	// performing the same check.
	if ev.SensorValue < ThermoSensorMin || ev.SensorValue > ThermoSensorMax {
		thermoDropped.WithLabelValues("out-of-range").Inc()
		return
	}

	var now = m.now().Truncate(time.Minute)

	// One recording per sensor per minute.
	if last, ok := m.lastRecord[ev.SensorName]; ok && last.Equal(now) {
		m.logger.Debug("dropping excessive temp event")
		thermoDropped.WithLabelValues("rate-limited").Inc()
		return
	}

	var logger = m.logger.WithFields(log.Fields{
		"sensor": ev.SensorName,
		"value":  ev.SensorValue,
	})
	if _, known := m.sensorLog[ev.SensorName]; !known {
		logger.Info("recording temperature")
	} else {
		logger.Debug("recording temperature")
	}
	m.sensorLog[ev.SensorName] = now

	var ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.backend.LogSensorReading(ctx, ev.SensorName, ev.SensorValue, now); err != nil {
		// Telemetry is best-effort.
		logger.WithField("err", err).Debug("dropping temperature reading")
		thermoDropped.WithLabelValues("backend").Inc()
		return
	}
	m.lastRecord[ev.SensorName] = now
	thermoRecorded.Inc()
}

// sweepStaleSensors forgets sensors that stopped reporting; they re-enter
// on their next update.
func (m *ThermoManager) sweepStaleSensors() {
	var now = m.now()
	for sensorName, lastUpdate := range m.sensorLog {
		if now.Sub(lastUpdate) > ThermoMaxAge {
			m.logger.WithField("sensor", sensorName).Warn("stopped receiving updates for thermo sensor")
			delete(m.sensorLog, sensorName)
		}
	}
}
