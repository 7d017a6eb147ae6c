package kbevent

import (
	"encoding/json"
	"fmt"
)

// Envelope is the JSON framing of an event on the kegnet channel:
// {"event": "<EventName>", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ErrUnknownEvent is returned by Decode for event names this build does
// not recognize. Callers are expected to skip such messages.
type ErrUnknownEvent struct {
	Name string
}

func (e ErrUnknownEvent) Error() string {
	return fmt.Sprintf("unknown event %q", e.Name)
}

var eventFactories = map[string]func() Event{
	"MeterUpdate":              func() Event { return new(MeterUpdate) },
	"FlowUpdate":               func() Event { return new(FlowUpdate) },
	"DrinkCreatedEvent":        func() Event { return new(DrinkCreatedEvent) },
	"TokenAuthEvent":           func() Event { return new(TokenAuthEvent) },
	"ThermoEvent":              func() Event { return new(ThermoEvent) },
	"FlowRequest":              func() Event { return new(FlowRequest) },
	"ControllerConnectedEvent": func() Event { return new(ControllerConnectedEvent) },
	"SetRelayOutputEvent":      func() Event { return new(SetRelayOutputEvent) },
	"SyncEvent":                func() Event { return new(SyncEvent) },
	"Ping":                     func() Event { return new(Ping) },
	"StartedEvent":             func() Event { return new(StartedEvent) },
	"QuitEvent":                func() Event { return new(QuitEvent) },
	"HeartbeatSecondEvent":     func() Event { return new(HeartbeatSecondEvent) },
	"HeartbeatMinuteEvent":     func() Event { return new(HeartbeatMinuteEvent) },
}

// Encode frames |ev| into its JSON envelope.
func Encode(ev Event) ([]byte, error) {
	var data, err = json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", ev.EventName(), err)
	}
	return json.Marshal(Envelope{Event: ev.EventName(), Data: data})
}

// Decode parses a JSON envelope into its concrete Event.
// It returns ErrUnknownEvent for event names it does not recognize.
func Decode(msg []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	var factory, ok = eventFactories[env.Event]
	if !ok {
		return nil, ErrUnknownEvent{Name: env.Event}
	}
	var ev = factory()
	if len(env.Data) != 0 {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", env.Event, err)
		}
	}
	return ev, nil
}
