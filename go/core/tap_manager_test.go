package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kegbot/kegcore/go/backend"
	"github.com/kegbot/kegcore/go/kbevent"
)

func newTapFixture(t *testing.T) (*kbevent.Hub, *backend.Fake, *TapManager) {
	t.Helper()
	var hub = kbevent.NewHub()
	var fake = backend.NewFake()
	var taps = NewTapManager(hub, fake)
	hub.SubscribeAll(taps)
	return hub, fake, taps
}

func TestSyncRegistersTaps(t *testing.T) {
	var hub, _, taps = newTapFixture(t)

	var status = json.RawMessage(`{
		"current_session": null,
		"taps": [
			{"meter_name": "flow0", "ml_per_tick": 0.4545, "relay_name": "relay0"},
			{"meter_name": "flow1", "ml_per_tick": 0.25}
		]
	}`)
	hub.PublishEvent(&kbevent.SyncEvent{Data: status})
	hub.Flush()

	require.Len(t, taps.GetAllTaps(), 2)

	tap, ok := taps.GetTap("flow0")
	require.True(t, ok)
	require.Equal(t, Tap{Name: "flow0", MLPerTick: 0.4545, RelayName: "relay0"}, tap)

	tap, ok = taps.GetTap("flow1")
	require.True(t, ok)
	require.Equal(t, "", tap.RelayName)
}

func TestSyncReplacesChangedTap(t *testing.T) {
	var hub, _, taps = newTapFixture(t)
	taps.RegisterOrUpdateTap("flow0", 0.25, "")

	hub.PublishEvent(&kbevent.SyncEvent{Data: json.RawMessage(
		`{"taps": [{"meter_name": "flow0", "ml_per_tick": 0.5, "relay_name": "relay0"}]}`)})
	hub.Flush()

	var tap, _ = taps.GetTap("flow0")
	require.Equal(t, 0.5, tap.MLPerTick)
	require.Equal(t, "relay0", tap.RelayName)
}

func TestSyncIsAdditive(t *testing.T) {
	var hub, _, taps = newTapFixture(t)
	taps.RegisterOrUpdateTap("flow0", 0.25, "")

	// A sync omitting a known tap does not remove it.
	hub.PublishEvent(&kbevent.SyncEvent{Data: json.RawMessage(
		`{"taps": [{"meter_name": "flow1", "ml_per_tick": 0.5}]}`)})
	hub.Flush()

	require.Len(t, taps.GetAllTaps(), 2)
}

func TestMalformedSyncIgnored(t *testing.T) {
	var hub, _, taps = newTapFixture(t)

	hub.PublishEvent(&kbevent.SyncEvent{Data: json.RawMessage(`{"taps": "nope"}`)})
	hub.Flush()
	require.Empty(t, taps.GetAllTaps())
}

func TestControllerConnectedCreatesController(t *testing.T) {
	var hub, fake, _ = newTapFixture(t)

	hub.PublishEvent(&kbevent.ControllerConnectedEvent{ControllerName: "kegboard"})
	hub.Flush()
	require.Equal(t, []string{"kegboard"}, fake.ControllerNames)
}

func TestControllerCreationErrorIsSwallowed(t *testing.T) {
	var hub, fake, _ = newTapFixture(t)
	fake.ControllerErr = &backend.Error{Kind: backend.KindOther, Op: "create-controller",
		Err: errors.New("already exists")}

	require.NotPanics(t, func() {
		hub.PublishEvent(&kbevent.ControllerConnectedEvent{ControllerName: "kegboard"})
		hub.Flush()
	})
	require.Empty(t, fake.ControllerNames)
}
