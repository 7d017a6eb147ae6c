package core

import (
	log "github.com/sirupsen/logrus"
)

// FlowMeter accumulates ticks from a single raw meter counter, filtering
// counter rollovers, device resets, and implausible jumps.
type FlowMeter struct {
	name       string
	maxDelta   uint64
	lastTicks  uint64
	hasReading bool
	totalTicks uint64
	logger     *log.Entry
}

// NewFlowMeter returns a FlowMeter accepting deltas of at most |maxDelta|
// ticks between consecutive readings. A maxDelta of 0 disables the check.
func NewFlowMeter(name string, maxDelta uint64) *FlowMeter {
	return &FlowMeter{
		name:     name,
		maxDelta: maxDelta,
		logger:   log.WithField("meter", name),
	}
}

// SetTicks reports an instantaneous reading of the meter and returns the
// resulting tick delta.
//
// The first reading establishes a baseline and returns 0. Afterwards the
// delta against the previous reading is computed as a signed quantity: a
// positive delta within maxDelta is accumulated and returned, while a
// negative delta (reset or rollover) or an implausibly large one returns
// 0. The reading always becomes the new baseline, so the meter
// resynchronizes after a glitch.
func (m *FlowMeter) SetTicks(reading uint64) uint64 {
	if !m.hasReading {
		m.hasReading = true
		m.lastTicks = reading
		return 0
	}

	var delta = int64(reading - m.lastTicks)
	m.lastTicks = reading

	if delta <= 0 || (m.maxDelta != 0 && uint64(delta) > m.maxDelta) {
		m.logger.WithFields(log.Fields{
			"reading": reading,
			"delta":   delta,
		}).Warn("bad ticks report")
		return 0
	}

	m.totalTicks += uint64(delta)
	meterTicks.WithLabelValues(m.name).Add(float64(delta))
	return uint64(delta)
}

// GetTicks returns the total accumulated ticks.
func (m *FlowMeter) GetTicks() uint64 { return m.totalTicks }

// GetLastReading returns the most recent raw reading, and whether any
// reading was seen.
func (m *FlowMeter) GetLastReading() (uint64, bool) {
	return m.lastTicks, m.hasReading
}

// GetName returns the meter name.
func (m *FlowMeter) GetName() string { return m.name }
