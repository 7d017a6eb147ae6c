// Package core implements the managers at the heart of kegcore: tap
// registry, flow state machine, authentication policy, drink posting,
// and temperature telemetry.
package core

import "time"

// MinVolumeToRecord is the smallest pour, in mL, worth recording as a drink.
const MinVolumeToRecord = 10.0

// MaxMeterReadingDelta is the largest difference between consecutive meter
// readings considered valid. Larger jumps are treated as glitches.
const MaxMeterReadingDelta = 2200 * 2

// Thermo sensor clamp range, in degrees C.
const (
	ThermoSensorMin = -20.0
	ThermoSensorMax = 80.0
)

// ThermoRecordDelta is the minimum interval between recorded readings of
// one sensor.
const ThermoRecordDelta = time.Minute

// ThermoMaxAge is how long a sensor may go silent before it is considered
// stale and forgotten.
const ThermoMaxAge = 2 * time.Minute

// AliasAllTaps is the wildcard meter name meaning "every registered tap".
const AliasAllTaps = "__all_taps__"

// Known authentication device names.
const (
	AuthModuleCoreOneWire        = "core.onewire"
	AuthModuleCoreRFID           = "core.rfid"
	AuthModuleContribPhidgetRFID = "core.phidget.rfid"
)

// DevicePolicy is the per-auth-device flow policy.
//
// A captive device physically retains its token and reliably signals
// detachment, so token removal forcibly ends the flow. A contactless
// device (RFID) presents a tag only briefly; its flows end by idle
// timeout instead, so they get a shorter MaxIdle.
type DevicePolicy struct {
	Captive bool
	MaxIdle time.Duration
}

const defaultPolicyKey = "default"

var devicePolicies = map[string]DevicePolicy{
	AuthModuleCoreOneWire: {Captive: true, MaxIdle: 120 * time.Second},
	AuthModuleCoreRFID:    {Captive: false, MaxIdle: 20 * time.Second},
	defaultPolicyKey:      {Captive: true, MaxIdle: 10 * time.Second},
}

// deviceAliases maps alternate auth device names onto their canonical
// policy keys.
var deviceAliases = map[string]string{
	AuthModuleContribPhidgetRFID: AuthModuleCoreRFID,
}

// PolicyForDevice resolves the flow policy of an auth device. Unknown
// devices inherit the default policy.
func PolicyForDevice(authDevice string) DevicePolicy {
	if canonical, ok := deviceAliases[authDevice]; ok {
		authDevice = canonical
	}
	if policy, ok := devicePolicies[authDevice]; ok {
		return policy
	}
	return devicePolicies[defaultPolicyKey]
}

// DefaultMaxIdle is the idle timeout of flows started without an
// authentication device.
const DefaultMaxIdle = 10 * time.Second
