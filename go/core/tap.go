package core

import "fmt"

// Tap is the immutable configuration of a single fluid path. Taps are
// compared structurally; any change replaces the Tap wholesale.
type Tap struct {
	// Name uniquely identifies the tap, and is also its meter name.
	Name string
	// MLPerTick converts meter ticks to milliliters.
	MLPerTick float64
	// RelayName is the relay output gating this tap, if any.
	RelayName string
}

func (t Tap) String() string {
	return fmt.Sprintf("<Tap name=%s ml_per_tick=%g relay_name=%s>",
		t.Name, t.MLPerTick, t.RelayName)
}

// TicksToMilliliters converts a tick count to a volume in mL.
func (t Tap) TicksToMilliliters(ticks uint64) float64 {
	return t.MLPerTick * float64(ticks)
}
