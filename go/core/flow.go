package core

import (
	"fmt"
	"time"

	"github.com/kegbot/kegcore/go/kbevent"
)

// Flow aggregates the contiguous ticks of a single pour on one meter,
// optionally bound to a user. Flows live in memory only; a completed flow
// is published as a terminal FlowUpdate and recorded as a drink.
//
// A Flow is owned by the FlowManager, which serializes all access.
type Flow struct {
	flowID       uint64
	meterName    string
	username     string
	maxIdle      time.Duration
	state        kbevent.FlowState
	startTime    time.Time
	lastActivity time.Time
	totalTicks   uint64
	volumeML     *float64
}

// NewFlow starts a Flow in the ACTIVE state.
func NewFlow(meterName string, flowID uint64, username string, maxIdle time.Duration, when time.Time) *Flow {
	return &Flow{
		flowID:       flowID,
		meterName:    meterName,
		username:     username,
		maxIdle:      maxIdle,
		state:        kbevent.FlowStateActive,
		startTime:    when,
		lastActivity: when,
	}
}

func (f *Flow) String() string {
	return fmt.Sprintf("<Flow 0x%08x: meter_name=%s ticks=%d username=%q max_idle=%s>",
		f.flowID, f.meterName, f.totalTicks, f.username, f.maxIdle)
}

// UpdateEvent builds the FlowUpdate describing the flow's current state.
func (f *Flow) UpdateEvent() *kbevent.FlowUpdate {
	var ev = &kbevent.FlowUpdate{
		FlowID:           f.flowID,
		MeterName:        f.meterName,
		State:            f.state,
		Username:         f.username,
		StartTime:        f.startTime,
		LastActivityTime: f.lastActivity,
		Ticks:            f.totalTicks,
	}
	if f.volumeML != nil {
		var v = *f.volumeML
		ev.VolumeML = &v
	}
	return ev
}

// AddTicks adds |amount| ticks at time |when|. When the flow's Tap is
// known its volume is recomputed; otherwise the volume stays unset until
// a Tap appears.
func (f *Flow) AddTicks(amount uint64, when time.Time, tap *Tap) {
	f.totalTicks += amount
	f.lastActivity = when
	if tap != nil {
		var v = tap.TicksToMilliliters(f.totalTicks)
		f.volumeML = &v
	}
}

// ID returns the process-unique flow identifier.
func (f *Flow) ID() uint64 { return f.flowID }

// State returns the current flow state.
func (f *Flow) State() kbevent.FlowState { return f.state }

// SetState moves the flow to |state|.
func (f *Flow) SetState(state kbevent.FlowState) { f.state = state }

// Ticks returns the flow's accumulated ticks.
func (f *Flow) Ticks() uint64 { return f.totalTicks }

// VolumeML returns the computed volume, or nil if no Tap is known yet.
func (f *Flow) VolumeML() *float64 { return f.volumeML }

// Username returns the bound username, or "" for an anonymous flow.
func (f *Flow) Username() string { return f.username }

// SetUsername binds the flow to |username|.
func (f *Flow) SetUsername(username string) { f.username = username }

// MeterName returns the name of the meter producing this flow.
func (f *Flow) MeterName() string { return f.meterName }

// StartTime returns when the flow started.
func (f *Flow) StartTime() time.Time { return f.startTime }

// LastActivityTime returns the time of the flow's most recent activity.
func (f *Flow) LastActivityTime() time.Time { return f.lastActivity }

// IsIdle reports whether the flow has exceeded its idle timeout as of
// |when|.
func (f *Flow) IsIdle(when time.Time) bool {
	return when.Sub(f.lastActivity) > f.maxIdle
}
