package kbevent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatchIsFIFO(t *testing.T) {
	var hub = NewHub()
	var got []uint64

	hub.Subscribe(&MeterUpdate{}, func(ev Event) {
		got = append(got, ev.(*MeterUpdate).Reading)
	})

	for i := uint64(0); i != 10; i++ {
		hub.PublishEvent(&MeterUpdate{MeterName: "flow0", Reading: i})
	}
	require.Equal(t, 10, hub.Flush())
	require.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	var hub = NewHub()
	var count int
	var fn = func(Event) { count++ }

	hub.Subscribe(&Ping{}, fn)
	hub.PublishEvent(&Ping{})
	hub.Flush()
	require.Equal(t, 1, count)

	hub.Unsubscribe(&Ping{}, fn)
	hub.PublishEvent(&Ping{})
	hub.Flush()
	require.Equal(t, 1, count)

	// Unsubscribing an absent callback is tolerated.
	hub.Unsubscribe(&Ping{}, fn)
}

func TestDuplicateSubscribeIsIdempotent(t *testing.T) {
	var hub = NewHub()
	var count int
	var fn = func(Event) { count++ }

	hub.Subscribe(&Ping{}, fn)
	hub.Subscribe(&Ping{}, fn)
	hub.PublishEvent(&Ping{})
	hub.Flush()
	require.Equal(t, 1, count)
}

func TestSubscribersSeeOnlyTheirType(t *testing.T) {
	var hub = NewHub()
	var pings, meters int

	hub.Subscribe(&Ping{}, func(Event) { pings++ })
	hub.Subscribe(&MeterUpdate{}, func(Event) { meters++ })

	hub.PublishEvent(&Ping{})
	hub.PublishEvent(&MeterUpdate{MeterName: "flow0"})
	hub.PublishEvent(&Ping{})
	hub.Flush()

	require.Equal(t, 2, pings)
	require.Equal(t, 1, meters)
}

func TestEventWithNoSubscribersIsDiscarded(t *testing.T) {
	var hub = NewHub()
	hub.PublishEvent(&Ping{})
	require.Equal(t, 1, hub.Flush())
	require.Equal(t, 0, hub.Flush())
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	var hub = NewHub()
	var survived int

	hub.Subscribe(&Ping{}, func(Event) { panic("boom") })
	hub.Subscribe(&Ping{}, func(Event) { survived++ })

	require.NotPanics(t, func() {
		hub.PublishEvent(&Ping{})
		hub.Flush()
	})
	require.Equal(t, 1, survived)
}

func TestDispatchNextEventTimesOut(t *testing.T) {
	var hub = NewHub()
	require.False(t, hub.DispatchNextEvent(time.Millisecond))

	hub.PublishEvent(&Ping{})
	require.True(t, hub.DispatchNextEvent(time.Millisecond))
	require.False(t, hub.DispatchNextEvent(time.Millisecond))
}

func TestDispatchNextEventWakesOnPublish(t *testing.T) {
	var hub = NewHub()
	var done = make(chan bool, 1)

	go func() {
		done <- hub.DispatchNextEvent(5 * time.Second)
	}()
	time.Sleep(10 * time.Millisecond)
	hub.PublishEvent(&Ping{})

	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("dispatch did not wake on publish")
	}
}

func TestPublishDuringDispatchIsFlushed(t *testing.T) {
	var hub = NewHub()
	var pings int

	hub.Subscribe(&MeterUpdate{}, func(Event) {
		hub.PublishEvent(&Ping{})
	})
	hub.Subscribe(&Ping{}, func(Event) { pings++ })

	hub.PublishEvent(&MeterUpdate{MeterName: "flow0"})
	require.Equal(t, 2, hub.Flush())
	require.Equal(t, 1, pings)
}
