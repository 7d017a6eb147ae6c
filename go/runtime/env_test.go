package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.gazette.dev/core/task"

	"github.com/kegbot/kegcore/go/backend"
	"github.com/kegbot/kegcore/go/kbevent"
)

func newEnvFixture(t *testing.T) (*Env, *backend.Fake) {
	t.Helper()
	var fake = backend.NewFake()
	fake.Status = json.RawMessage(`{
		"current_session": null,
		"taps": [{"meter_name": "flow0", "ml_per_tick": 0.4545, "relay_name": "relay0"}]
	}`)
	return NewEnvWith(fake, nil), fake
}

func TestSyncRegistersBackendTaps(t *testing.T) {
	var env, _ = newEnvFixture(t)

	require.NoError(t, env.SyncNow())
	env.Hub.Flush()

	tap, ok := env.TapManager.GetTap("flow0")
	require.True(t, ok)
	require.Equal(t, 0.4545, tap.MLPerTick)
	require.Equal(t, "relay0", tap.RelayName)
}

func TestSyncErrorIsReturned(t *testing.T) {
	var env, fake = newEnvFixture(t)
	fake.StatusErr = &backend.Error{Kind: backend.KindTransport, Op: "status",
		Err: errors.New("connection refused")}

	require.Error(t, env.SyncNow())
	require.Equal(t, 0, env.Hub.Flush())
}

func TestSyncTracksActiveSession(t *testing.T) {
	var env, fake = newEnvFixture(t)

	require.NoError(t, env.SyncNow())
	require.False(t, env.syncer.sessionActive)

	fake.Status = json.RawMessage(`{"current_session": {"id": 7}, "taps": []}`)
	require.NoError(t, env.SyncNow())
	require.True(t, env.syncer.sessionActive)
}

// TestPourLifecycle drives a complete authenticated pour through the wired
// core: sync, token attach, meter activity, token detach, drink recording.
func TestPourLifecycle(t *testing.T) {
	var env, fake = newEnvFixture(t)
	fake.AddToken("core.onewire", "deadbeef", "bob", true)

	var drinks []*kbevent.DrinkCreatedEvent
	env.Hub.Subscribe(&kbevent.DrinkCreatedEvent{}, func(ev kbevent.Event) {
		drinks = append(drinks, ev.(*kbevent.DrinkCreatedEvent))
	})

	require.NoError(t, env.SyncNow())
	env.Hub.Flush()

	env.Hub.PublishEvent(&kbevent.TokenAuthEvent{
		MeterName:      "flow0",
		AuthDeviceName: "core.onewire",
		TokenValue:     "deadbeef",
		Status:         kbevent.TokenAdded,
	})
	env.Hub.Flush()

	var flow = env.FlowManager.GetFlow("flow0")
	require.NotNil(t, flow)
	require.Equal(t, "bob", flow.Username())

	env.Hub.PublishEvent(&kbevent.MeterUpdate{MeterName: "flow0", Reading: 1000})
	env.Hub.PublishEvent(&kbevent.MeterUpdate{MeterName: "flow0", Reading: 3200})
	env.Hub.Flush()
	require.Equal(t, uint64(2200), flow.Ticks())

	env.Hub.PublishEvent(&kbevent.TokenAuthEvent{
		MeterName:      "flow0",
		AuthDeviceName: "core.onewire",
		TokenValue:     "deadbeef",
		Status:         kbevent.TokenRemoved,
	})
	env.Hub.Flush()

	require.Nil(t, env.FlowManager.GetFlow("flow0"))
	require.Len(t, fake.RecordedDrinks, 1)
	require.Equal(t, int64(2200), fake.RecordedDrinks[0].Ticks)
	require.Equal(t, "bob", fake.RecordedDrinks[0].Username)

	require.Len(t, drinks, 1)
	require.Equal(t, flow.ID(), drinks[0].FlowID)
	require.Equal(t, 0, env.DrinkManager.PendingCount())
}

func TestAnonymousPourBelowMinimumIsNotRecorded(t *testing.T) {
	var env, fake = newEnvFixture(t)

	require.NoError(t, env.SyncNow())
	env.Hub.Flush()

	// 10 ticks at 0.4545 ml/tick is under the recording floor.
	env.Hub.PublishEvent(&kbevent.MeterUpdate{MeterName: "flow0", Reading: 0})
	env.Hub.PublishEvent(&kbevent.MeterUpdate{MeterName: "flow0", Reading: 10})
	env.Hub.Flush()

	env.FlowManager.StopFlow("flow0")
	env.Hub.Flush()

	require.Empty(t, fake.RecordedDrinks)
	require.Equal(t, 0, env.DrinkManager.PendingCount())
}

func TestThermoEventReachesBackend(t *testing.T) {
	var env, fake = newEnvFixture(t)

	env.Hub.PublishEvent(&kbevent.ThermoEvent{SensorName: "kegerator", SensorValue: 4.5})
	env.Hub.Flush()

	require.Len(t, fake.SensorReadings, 1)
	require.Equal(t, "kegerator", fake.SensorReadings[0].SensorName)
}

func TestQueueTasksStartupAndShutdown(t *testing.T) {
	var env, _ = newEnvFixture(t)

	var started = make(chan struct{}, 1)
	var quit = make(chan struct{}, 1)
	env.Hub.Subscribe(&kbevent.StartedEvent{}, func(kbevent.Event) { started <- struct{}{} })
	env.Hub.Subscribe(&kbevent.QuitEvent{}, func(kbevent.Event) { quit <- struct{}{} })

	var tasks = task.NewGroup(context.Background())
	env.QueueTasks(tasks)
	tasks.GoRun()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("StartedEvent was not dispatched")
	}

	tasks.Cancel()
	require.NoError(t, tasks.Wait())

	// The dispatch loop drains the queue on shutdown, QuitEvent included.
	select {
	case <-quit:
	default:
		t.Fatal("QuitEvent was not dispatched")
	}
}

func TestIdleFlowIsSweptByHeartbeat(t *testing.T) {
	var env, fake = newEnvFixture(t)

	require.NoError(t, env.SyncNow())
	env.Hub.Flush()

	var flow, _ = env.FlowManager.StartFlow("flow0", "alice", time.Millisecond)
	env.Hub.PublishEvent(&kbevent.MeterUpdate{MeterName: "flow0", Reading: 0})
	env.Hub.PublishEvent(&kbevent.MeterUpdate{MeterName: "flow0", Reading: 2200})
	env.Hub.Flush()

	time.Sleep(5 * time.Millisecond)
	env.Hub.PublishEvent(&kbevent.HeartbeatSecondEvent{})
	env.Hub.Flush()

	require.Nil(t, env.FlowManager.GetFlow("flow0"))
	require.Len(t, fake.RecordedDrinks, 1)
	require.Equal(t, flow.Username(), fake.RecordedDrinks[0].Username)
}
