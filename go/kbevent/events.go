// Package kbevent defines the events exchanged within the kegcore process
// and over the kegnet channel, together with the EventHub which routes them.
package kbevent

import (
	"encoding/json"
	"time"
)

// Event is implemented by every message routed through the EventHub.
// Events are always passed by pointer.
type Event interface {
	// EventName is the wire name of the event, as used in the JSON envelope.
	EventName() string
}

// FlowState is the lifecycle state of a Flow.
type FlowState string

const (
	FlowStateActive    FlowState = "active"
	FlowStateIdle      FlowState = "idle"
	FlowStateCompleted FlowState = "completed"
)

// TokenState reports whether an authentication token was attached or detached.
type TokenState string

const (
	TokenAdded   TokenState = "added"
	TokenRemoved TokenState = "removed"
)

// FlowRequestAction is a client-requested flow operation.
type FlowRequestAction string

const (
	RequestStartFlow    FlowRequestAction = "start_flow"
	RequestStopFlow     FlowRequestAction = "stop_flow"
	RequestReportStatus FlowRequestAction = "report_status"
)

// RelayMode is the desired state of a relay output.
type RelayMode string

const (
	RelayEnabled  RelayMode = "enabled"
	RelayDisabled RelayMode = "disabled"
)

// MeterUpdate reports an instantaneous raw reading of a flow meter.
type MeterUpdate struct {
	MeterName string `json:"meter_name"`
	Reading   uint64 `json:"reading"`
}

// FlowUpdate describes the current state of a flow. A FlowUpdate with
// state "completed" is the terminal record of a pour.
type FlowUpdate struct {
	FlowID           uint64    `json:"flow_id"`
	MeterName        string    `json:"meter_name"`
	State            FlowState `json:"state"`
	Username         string    `json:"username,omitempty"`
	StartTime        time.Time `json:"start_time"`
	LastActivityTime time.Time `json:"last_activity_time"`
	Ticks            uint64    `json:"ticks"`
	VolumeML         *float64  `json:"volume_ml,omitempty"`
}

// DrinkCreatedEvent announces that a completed flow was recorded by the
// backend as a drink.
type DrinkCreatedEvent struct {
	FlowID    uint64    `json:"flow_id"`
	DrinkID   string    `json:"drink_id"`
	MeterName string    `json:"meter_name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Username  string    `json:"username,omitempty"`
}

// TokenAuthEvent reports an authentication token attach or detach.
type TokenAuthEvent struct {
	MeterName      string     `json:"meter_name"`
	AuthDeviceName string     `json:"auth_device_name"`
	TokenValue     string     `json:"token_value"`
	Status         TokenState `json:"status"`
}

// ThermoEvent reports a temperature sensor reading, in degrees C.
type ThermoEvent struct {
	SensorName  string  `json:"sensor_name"`
	SensorValue float64 `json:"sensor_value"`
}

// FlowRequest asks the core to start or stop a flow on a meter.
type FlowRequest struct {
	MeterName string            `json:"meter_name"`
	Request   FlowRequestAction `json:"request"`
}

// ControllerConnectedEvent reports that a hardware controller attached.
type ControllerConnectedEvent struct {
	ControllerName string `json:"controller_name"`
}

// SetRelayOutputEvent commands a relay output to a new mode.
type SetRelayOutputEvent struct {
	OutputName string    `json:"output_name"`
	OutputMode RelayMode `json:"output_mode"`
}

// SyncEvent carries an opaque backend status payload. The payload includes
// a `taps` list which TapManager consumes.
type SyncEvent struct {
	Data json.RawMessage `json:"data"`
}

// Ping is a no-payload liveness probe.
type Ping struct{}

// StartedEvent is published once when the core has started all workers.
type StartedEvent struct{}

// QuitEvent signals that the core is shutting down.
type QuitEvent struct{}

// HeartbeatSecondEvent is published once per second.
type HeartbeatSecondEvent struct{}

// HeartbeatMinuteEvent is published once per minute.
type HeartbeatMinuteEvent struct{}

func (*MeterUpdate) EventName() string              { return "MeterUpdate" }
func (*FlowUpdate) EventName() string               { return "FlowUpdate" }
func (*DrinkCreatedEvent) EventName() string        { return "DrinkCreatedEvent" }
func (*TokenAuthEvent) EventName() string           { return "TokenAuthEvent" }
func (*ThermoEvent) EventName() string              { return "ThermoEvent" }
func (*FlowRequest) EventName() string              { return "FlowRequest" }
func (*ControllerConnectedEvent) EventName() string { return "ControllerConnectedEvent" }
func (*SetRelayOutputEvent) EventName() string      { return "SetRelayOutputEvent" }
func (*SyncEvent) EventName() string                { return "SyncEvent" }
func (*Ping) EventName() string                     { return "Ping" }
func (*StartedEvent) EventName() string             { return "StartedEvent" }
func (*QuitEvent) EventName() string                { return "QuitEvent" }
func (*HeartbeatSecondEvent) EventName() string     { return "HeartbeatSecondEvent" }
func (*HeartbeatMinuteEvent) EventName() string     { return "HeartbeatMinuteEvent" }
