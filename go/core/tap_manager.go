package core

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kegbot/kegcore/go/backend"
	"github.com/kegbot/kegcore/go/kbevent"
)

// TapManager maintains the registry of configured taps. Taps arrive via
// periodic backend sync; the sync is additive and never removes taps.
type TapManager struct {
	hub     *kbevent.Hub
	backend backend.Backend
	logger  *log.Entry

	mu   sync.RWMutex
	taps map[string]Tap
}

// NewTapManager returns an empty TapManager.
func NewTapManager(hub *kbevent.Hub, be backend.Backend) *TapManager {
	return &TapManager{
		hub:     hub,
		backend: be,
		logger:  log.WithField("manager", "tap"),
		taps:    make(map[string]Tap),
	}
}

// GetAllTaps returns all registered taps.
func (m *TapManager) GetAllTaps() []Tap {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out = make([]Tap, 0, len(m.taps))
	for _, tap := range m.taps {
		out = append(out, tap)
	}
	return out
}

// GetTap returns the registered tap named |name|, if any.
func (m *TapManager) GetTap(name string) (Tap, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tap, ok = m.taps[name]
	return tap, ok
}

// RegisterOrUpdateTap installs a Tap, replacing a structurally different
// existing registration.
func (m *TapManager) RegisterOrUpdateTap(name string, mlPerTick float64, relayName string) {
	var tap = Tap{Name: name, MLPerTick: mlPerTick, RelayName: relayName}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.taps[name]; ok && existing == tap {
		return
	}
	m.logger.WithField("tap", tap.String()).Info("updating tap")
	m.taps[name] = tap
}

// EventHandlers implements kbevent.Subscriber.
func (m *TapManager) EventHandlers() []kbevent.Subscription {
	return []kbevent.Subscription{
		{Type: &kbevent.SyncEvent{}, Fn: func(ev kbevent.Event) {
			m.handleSync(ev.(*kbevent.SyncEvent))
		}},
		{Type: &kbevent.ControllerConnectedEvent{}, Fn: func(ev kbevent.Event) {
			m.handleControllerConnected(ev.(*kbevent.ControllerConnectedEvent))
		}},
	}
}

func (m *TapManager) handleSync(ev *kbevent.SyncEvent) {
	var payload struct {
		Taps []backend.TapDescriptor `json:"taps"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		m.logger.WithField("err", err).Debug("ignoring malformed sync payload")
		return
	}
	for _, tap := range payload.Taps {
		m.RegisterOrUpdateTap(tap.MeterName, tap.MLPerTick, tap.RelayName)
	}
}

func (m *TapManager) handleControllerConnected(ev *kbevent.ControllerConnectedEvent) {
	var ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var controller, err = m.backend.CreateController(ctx, ev.ControllerName)
	if err != nil {
		// Typically the controller already exists. Backend errors never
		// propagate past the log here.
		m.logger.WithFields(log.Fields{
			"controller": ev.ControllerName,
			"err":        err,
		}).Info("not creating controller")
		return
	}
	m.logger.WithField("controller", controller.Name).Info("created new controller")
}
