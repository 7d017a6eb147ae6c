package core

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kegbot/kegcore/go/kbevent"
)

// FlowManager owns the flow state machine: it maintains at most one live
// Flow per meter, applies meter deltas, sweeps idle flows, and gates relay
// outputs.
//
// Event handlers run on the hub's dispatch worker and are serialized with
// respect to each other; the mutex exists because the public API may also
// be entered directly.
type FlowManager struct {
	hub    *kbevent.Hub
	taps   *TapManager
	logger *log.Entry

	mu         sync.Mutex
	meters     map[string]*FlowMeter
	flows      map[string]*Flow
	nextFlowID uint64
}

// NewFlowManager returns a FlowManager with no active flows. Flow IDs are
// seeded from wall-clock seconds to reduce cross-restart collision.
func NewFlowManager(hub *kbevent.Hub, taps *TapManager) *FlowManager {
	return &FlowManager{
		hub:        hub,
		taps:       taps,
		logger:     log.WithField("manager", "flow"),
		meters:     make(map[string]*FlowMeter),
		flows:      make(map[string]*Flow),
		nextFlowID: uint64(time.Now().Unix()),
	}
}

// GetMeter returns the FlowMeter of |meterName|, creating it on first
// reference. Meters are never destroyed during the process lifetime.
func (m *FlowManager) GetMeter(meterName string) *FlowMeter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getMeterLocked(meterName)
}

func (m *FlowManager) getMeterLocked(meterName string) *FlowMeter {
	var meter, ok = m.meters[meterName]
	if !ok {
		meter = NewFlowMeter(meterName, MaxMeterReadingDelta)
		m.meters[meterName] = meter
	}
	return meter
}

func (m *FlowManager) nextFlowIDLocked() uint64 {
	var id = m.nextFlowID
	m.nextFlowID++
	return id
}

// GetFlow returns the live flow on |meterName|, or nil.
func (m *FlowManager) GetFlow(meterName string) *Flow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flows[meterName]
}

// GetActiveFlows returns all live flows.
func (m *FlowManager) GetActiveFlows() []*Flow {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out = make([]*Flow, 0, len(m.flows))
	for _, flow := range m.flows {
		out = append(out, flow)
	}
	return out
}

// IterIdleFlows returns the live flows which are idle as of |when|.
func (m *FlowManager) IterIdleFlows(when time.Time) []*Flow {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Flow
	for _, flow := range m.flows {
		if flow.IsIdle(when) {
			out = append(out, flow)
		}
	}
	return out
}

// StartFlow starts a new flow on |meterName|, or takes over the existing
// one. It returns the flow and whether it is newly created.
func (m *FlowManager) StartFlow(meterName, username string, maxIdle time.Duration) (*Flow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startFlowLocked(meterName, username, maxIdle, time.Now())
}

func (m *FlowManager) startFlowLocked(meterName, username string, maxIdle time.Duration, when time.Time) (*Flow, bool) {
	if current := m.flows[meterName]; current != nil {
		switch {
		case current.Username() == username:
			// Already have a flow for this user; no change.
			return current, false
		case current.Username() == "" && username != "":
			m.logger.WithField("username", username).Info("user is taking over the existing flow")
			current.SetUsername(username)
			m.publishUpdateLocked(current)
			return current, false
		default:
			m.logger.WithField("username", username).Info("user is replacing the existing flow")
			m.stopFlowLocked(meterName)
		}
	}

	var flow = NewFlow(meterName, m.nextFlowIDLocked(), username, maxIdle, when)
	m.flows[meterName] = flow
	m.logger.WithField("flow", flow.String()).Info("starting flow")
	flowsStarted.Inc()
	m.publishUpdateLocked(flow)

	// Open up the relay if the flow is authenticated.
	if username != "" {
		m.publishRelayLocked(flow, true)
	}
	return flow, true
}

// StopFlow ends the flow on |meterName|, returning the previously live
// flow or nil if none was live.
func (m *FlowManager) StopFlow(meterName string) *Flow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopFlowLocked(meterName)
}

func (m *FlowManager) stopFlowLocked(meterName string) *Flow {
	var flow = m.flows[meterName]
	if flow == nil {
		m.logger.WithField("meter", meterName).Warn("no flow to stop on meter")
		return nil
	}

	m.logger.WithField("flow", flow.String()).Info("stopping flow")
	m.publishRelayLocked(flow, false)
	delete(m.flows, meterName)
	flow.SetState(kbevent.FlowStateCompleted)
	flowsCompleted.Inc()
	m.publishUpdateLocked(flow)
	return flow
}

// UpdateFlow applies an instantaneous meter reading at time |when|,
// implicitly starting an anonymous flow if none is live. It returns the
// flow and whether it is newly created.
func (m *FlowManager) UpdateFlow(meterName string, reading uint64, when time.Time) (*Flow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var meter = m.getMeterLocked(meterName)
	var delta = meter.SetTicks(reading)

	m.logger.WithFields(log.Fields{
		"meter":   meterName,
		"reading": reading,
		"delta":   delta,
	}).Debug("flow update")

	var isNew bool
	var flow = m.flows[meterName]
	if flow == nil {
		m.logger.Debug("starting flow implicitly due to activity")
		flow, isNew = m.startFlowLocked(meterName, "", DefaultMaxIdle, when)
	}

	var tapPtr *Tap
	if tap, ok := m.taps.GetTap(meterName); ok {
		tapPtr = &tap
	}
	flow.AddTicks(delta, when, tapPtr)
	m.publishUpdateLocked(flow)
	return flow, isNew
}

// sweepIdle runs the heartbeat pass over all live flows: idle flows are
// moved ACTIVE -> IDLE -> COMPLETED within this one tick, while
// authenticated flows have their relay re-energized against transient
// dropout.
func (m *FlowManager) sweepIdle(when time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, flow := range m.flows {
		if flow.IsIdle(when) {
			m.logger.WithField("flow", flow.String()).Info("flow has become too idle, ending")
			flow.SetState(kbevent.FlowStateIdle)
			m.publishUpdateLocked(flow)
			m.stopFlowLocked(flow.MeterName())
		} else if flow.Username() != "" {
			m.publishRelayLocked(flow, true)
		}
	}
}

func (m *FlowManager) publishUpdateLocked(flow *Flow) {
	m.hub.PublishEvent(flow.UpdateEvent())
}

func (m *FlowManager) publishRelayLocked(flow *Flow, enable bool) {
	var tap, ok = m.taps.GetTap(flow.MeterName())
	if !ok {
		// Unknown meter; don't touch any relays for it since we don't
		// know its configuration.
		return
	}
	if tap.RelayName == "" {
		return
	}

	var mode = kbevent.RelayDisabled
	if enable {
		mode = kbevent.RelayEnabled
	}
	m.hub.PublishEvent(&kbevent.SetRelayOutputEvent{
		OutputName: tap.RelayName,
		OutputMode: mode,
	})
}

// EventHandlers implements kbevent.Subscriber.
func (m *FlowManager) EventHandlers() []kbevent.Subscription {
	return []kbevent.Subscription{
		{Type: &kbevent.MeterUpdate{}, Fn: func(ev kbevent.Event) {
			var update = ev.(*kbevent.MeterUpdate)
			m.UpdateFlow(update.MeterName, update.Reading, time.Now())
		}},
		{Type: &kbevent.HeartbeatSecondEvent{}, Fn: func(kbevent.Event) {
			m.sweepIdle(time.Now())
		}},
		{Type: &kbevent.FlowRequest{}, Fn: func(ev kbevent.Event) {
			m.handleFlowRequest(ev.(*kbevent.FlowRequest))
		}},
	}
}

func (m *FlowManager) handleFlowRequest(ev *kbevent.FlowRequest) {
	switch ev.Request {
	case kbevent.RequestStartFlow:
		m.StartFlow(ev.MeterName, "", DefaultMaxIdle)
	case kbevent.RequestStopFlow:
		m.StopFlow(ev.MeterName)
	default:
		m.logger.WithField("request", ev.Request).Debug("ignoring flow request")
	}
}
