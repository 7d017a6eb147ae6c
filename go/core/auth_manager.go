package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kegbot/kegcore/go/backend"
	"github.com/kegbot/kegcore/go/kbevent"
)

// TokenStatus is the lifecycle state of a TokenRecord.
type TokenStatus string

const (
	TokenStatusActive  TokenStatus = "active"
	TokenStatusRemoved TokenStatus = "removed"
)

// TokenRecord tracks one authentication token attached at one meter.
type TokenRecord struct {
	AuthDevice string
	TokenValue string
	MeterName  string
	Status     TokenStatus
}

func (r TokenRecord) String() string {
	return fmt.Sprintf("%s:%s@%s", r.AuthDevice, r.TokenValue, r.MeterName)
}

// sameToken reports whether two records name the same token at the same
// meter, regardless of status.
func (r TokenRecord) sameToken(other TokenRecord) bool {
	return r.AuthDevice == other.AuthDevice &&
		r.TokenValue == other.TokenValue &&
		r.MeterName == other.MeterName
}

// FlowController is the slice of FlowManager the authenticator drives.
// The two managers are wired as independent subscribers on the same hub;
// this interface breaks their natural reference cycle.
type FlowController interface {
	StartFlow(meterName, username string, maxIdle time.Duration) (*Flow, bool)
	StopFlow(meterName string) *Flow
}

// AuthenticationManager maps token attach/detach events to flow start and
// stop, according to the captive-vs-contactless policy of the reporting
// auth device.
type AuthenticationManager struct {
	hub     *kbevent.Hub
	flows   FlowController
	taps    *TapManager
	backend backend.Backend
	logger  *log.Entry

	mu     sync.Mutex
	tokens map[string]TokenRecord // meter name -> active token
}

// NewAuthenticationManager returns an AuthenticationManager with no
// attached tokens.
func NewAuthenticationManager(hub *kbevent.Hub, flows FlowController, taps *TapManager, be backend.Backend) *AuthenticationManager {
	return &AuthenticationManager{
		hub:     hub,
		flows:   flows,
		taps:    taps,
		backend: be,
		logger:  log.WithField("manager", "authentication"),
		tokens:  make(map[string]TokenRecord),
	}
}

// EventHandlers implements kbevent.Subscriber.
func (m *AuthenticationManager) EventHandlers() []kbevent.Subscription {
	return []kbevent.Subscription{
		{Type: &kbevent.TokenAuthEvent{}, Fn: func(ev kbevent.Event) {
			m.handleTokenAuth(ev.(*kbevent.TokenAuthEvent))
		}},
	}
}

func (m *AuthenticationManager) handleTokenAuth(ev *kbevent.TokenAuthEvent) {
	var taps = m.resolveTaps(ev.MeterName)
	m.logger.WithFields(log.Fields{
		"device": ev.AuthDeviceName,
		"token":  ev.TokenValue,
		"meter":  ev.MeterName,
		"status": ev.Status,
		"taps":   len(taps),
	}).Info("token auth event")

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tap := range taps {
		var record = TokenRecord{
			AuthDevice: ev.AuthDeviceName,
			TokenValue: ev.TokenValue,
			MeterName:  tap.Name,
			Status:     TokenStatusActive,
		}
		if ev.Status == kbevent.TokenAdded {
			m.tokenAdded(record)
		} else {
			m.tokenRemoved(record)
		}
	}
}

// resolveTaps maps a meter-valued field to target taps: the wildcard
// AliasAllTaps (or an empty name) means every registered tap.
func (m *AuthenticationManager) resolveTaps(meterName string) []Tap {
	if meterName == "" || meterName == AliasAllTaps {
		return m.taps.GetAllTaps()
	}
	if tap, ok := m.taps.GetTap(meterName); ok {
		return []Tap{tap}
	}
	return nil
}

// tokenAdded processes a token attach. Callers hold m.mu.
func (m *AuthenticationManager) tokenAdded(record TokenRecord) {
	m.logger.WithField("token", record.String()).Info("token attached")

	if existing, ok := m.tokens[record.MeterName]; ok {
		if existing.sameToken(record) {
			// Token is already known; nothing to do except refresh it.
			existing.Status = TokenStatusActive
			m.tokens[record.MeterName] = existing
			return
		}
		m.logger.Info("removing previous token")
		m.tokenRemoved(existing)
	}

	m.tokens[record.MeterName] = record
	m.maybeStartFlow(record)
}

// tokenRemoved processes a token detach. Callers hold m.mu.
func (m *AuthenticationManager) tokenRemoved(record TokenRecord) {
	m.logger.WithField("token", record.String()).Info("token detached")

	var existing, ok = m.tokens[record.MeterName]
	if !ok || !existing.sameToken(record) {
		m.logger.Warn("token has already been removed")
		return
	}

	existing.Status = TokenStatusRemoved
	delete(m.tokens, record.MeterName)
	m.maybeEndFlow(existing)
}

// maybeStartFlow looks the token up on the backend, and starts or renews
// a flow if it resolves to an enabled, user-bound token.
func (m *AuthenticationManager) maybeStartFlow(record TokenRecord) {
	var ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var token, err = m.backend.GetAuthToken(ctx, record.AuthDevice, record.TokenValue)
	if err != nil {
		// Tokens the backend cannot resolve are treated as unassigned.
		m.logger.WithFields(log.Fields{
			"token": record.String(),
			"err":   err,
		}).Info("token not assigned")
		return
	}
	if token.Username == "" {
		m.logger.WithField("token", record.String()).Info("token not assigned")
		return
	}
	if !token.Enabled {
		m.logger.WithField("token", record.String()).Info("token disabled")
		return
	}

	var policy = PolicyForDevice(record.AuthDevice)
	m.flows.StartFlow(record.MeterName, token.Username, policy.MaxIdle)
}

// maybeEndFlow forcibly ends the flow when the token came from a captive
// device. For contactless devices this is a no-op; the flow ends by idle
// timeout instead.
func (m *AuthenticationManager) maybeEndFlow(record TokenRecord) {
	if PolicyForDevice(record.AuthDevice).Captive {
		m.logger.Debug("captive auth device, ending flow immediately")
		m.flows.StopFlow(record.MeterName)
	} else {
		m.logger.Debug("non-captive auth device, not ending flow")
	}
}
