package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kegbot/kegcore/go/backend"
	"github.com/kegbot/kegcore/go/kbevent"
)

func newThermoFixture(t *testing.T) (*kbevent.Hub, *backend.Fake, *ThermoManager, *time.Time) {
	t.Helper()
	var hub = kbevent.NewHub()
	var fake = backend.NewFake()
	var thermo = NewThermoManager(hub, fake)

	var clock = time.Date(2020, 6, 1, 12, 0, 30, 0, time.UTC)
	thermo.now = func() time.Time { return clock }

	hub.SubscribeAll(thermo)
	return hub, fake, thermo, &clock
}

func thermoEvent(sensor string, value float64) *kbevent.ThermoEvent {
	return &kbevent.ThermoEvent{SensorName: sensor, SensorValue: value}
}

func TestThermoReadingRecorded(t *testing.T) {
	var hub, fake, _, clock = newThermoFixture(t)

	hub.PublishEvent(thermoEvent("kegerator", 4.5))
	hub.Flush()

	require.Len(t, fake.SensorReadings, 1)
	require.Equal(t, "kegerator", fake.SensorReadings[0].SensorName)
	require.Equal(t, 4.5, fake.SensorReadings[0].Value)
	require.Equal(t, clock.Truncate(time.Minute), fake.SensorReadings[0].When)
}

func TestOutOfRangeReadingsDropped(t *testing.T) {
	var hub, fake, _, _ = newThermoFixture(t)

	hub.PublishEvent(thermoEvent("kegerator", ThermoSensorMin-0.1))
	hub.PublishEvent(thermoEvent("kegerator", ThermoSensorMax+0.1))
	hub.Flush()

	require.Empty(t, fake.SensorReadings)
}

func TestThermoRateLimitPerSensorMinute(t *testing.T) {
	var hub, fake, _, clock = newThermoFixture(t)

	hub.PublishEvent(thermoEvent("kegerator", 4.0))
	hub.PublishEvent(thermoEvent("kegerator", 4.1))
	hub.Flush()
	require.Len(t, fake.SensorReadings, 1)

	// A second sensor is limited independently.
	hub.PublishEvent(thermoEvent("ambient", 22.0))
	hub.Flush()
	require.Len(t, fake.SensorReadings, 2)

	// The next minute admits a fresh reading.
	*clock = clock.Add(time.Minute)
	hub.PublishEvent(thermoEvent("kegerator", 4.2))
	hub.Flush()
	require.Len(t, fake.SensorReadings, 3)
	require.Equal(t, 4.2, fake.SensorReadings[2].Value)
}

func TestBackendFailureDropsReading(t *testing.T) {
	var hub, fake, _, _ = newThermoFixture(t)
	fake.LogSensorErr = &backend.Error{Kind: backend.KindServer, Op: "log-sensor",
		Err: errors.New("boom")}

	hub.PublishEvent(thermoEvent("kegerator", 4.0))
	hub.Flush()
	require.Empty(t, fake.SensorReadings)

	// The failed minute does not count against the rate limit.
	fake.LogSensorErr = nil
	hub.PublishEvent(thermoEvent("kegerator", 4.1))
	hub.Flush()
	require.Len(t, fake.SensorReadings, 1)
	require.Equal(t, 4.1, fake.SensorReadings[0].Value)
}

func TestStaleSensorsForgotten(t *testing.T) {
	var hub, _, thermo, clock = newThermoFixture(t)

	hub.PublishEvent(thermoEvent("kegerator", 4.0))
	hub.Flush()
	require.Len(t, thermo.sensorLog, 1)

	// Not yet stale.
	*clock = clock.Add(time.Minute)
	hub.PublishEvent(&kbevent.HeartbeatMinuteEvent{})
	hub.Flush()
	require.Len(t, thermo.sensorLog, 1)

	*clock = clock.Add(2 * time.Minute)
	hub.PublishEvent(&kbevent.HeartbeatMinuteEvent{})
	hub.Flush()
	require.Empty(t, thermo.sensorLog)
}
