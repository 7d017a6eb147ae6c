package core

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kegbot/kegcore/go/backend"
	"github.com/kegbot/kegcore/go/kbevent"
)

// DrinkManager posts completed flows to the backend as drinks with
// at-least-once delivery. Completed FlowUpdates wait in an ordered pending
// queue until the backend acknowledges them; transient failures re-queue
// the event in original order for the next flush.
type DrinkManager struct {
	hub     *kbevent.Hub
	backend backend.Backend
	logger  *log.Entry

	mu      sync.Mutex
	pending []*kbevent.FlowUpdate
}

// NewDrinkManager returns a DrinkManager with an empty pending queue.
func NewDrinkManager(hub *kbevent.Hub, be backend.Backend) *DrinkManager {
	return &DrinkManager{
		hub:     hub,
		backend: be,
		logger:  log.WithField("manager", "drink"),
	}
}

// EventHandlers implements kbevent.Subscriber.
func (m *DrinkManager) EventHandlers() []kbevent.Subscription {
	return []kbevent.Subscription{
		{Type: &kbevent.FlowUpdate{}, Fn: func(ev kbevent.Event) {
			m.handleFlowUpdate(ev.(*kbevent.FlowUpdate))
		}},
		{Type: &kbevent.HeartbeatMinuteEvent{}, Fn: func(kbevent.Event) {
			m.FlushPending()
		}},
	}
}

func (m *DrinkManager) handleFlowUpdate(ev *kbevent.FlowUpdate) {
	if ev.State != kbevent.FlowStateCompleted {
		return
	}
	m.logger.WithField("flow_id", ev.FlowID).Info("flow completed")

	m.mu.Lock()
	m.pending = append(m.pending, ev)
	m.mu.Unlock()

	m.FlushPending()
}

// FlushPending drains a snapshot of the pending queue, posting each
// completed flow. Events the backend transiently fails are re-queued in
// original order.
func (m *DrinkManager) FlushPending() {
	m.mu.Lock()
	var pending = m.pending
	m.pending = nil
	m.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	m.logger.WithField("count", len(pending)).Info("posting pending events")

	var retry []*kbevent.FlowUpdate
	for _, ev := range pending {
		if err := m.postDrink(ev); err != nil {
			m.logger.WithFields(log.Fields{
				"flow_id": ev.FlowID,
				"err":     err,
			}).Warn("error posting drink; will retry")
			drinkPostRetries.Inc()
			retry = append(retry, ev)
		}
	}

	if len(retry) != 0 {
		m.mu.Lock()
		m.pending = append(retry, m.pending...)
		m.mu.Unlock()
	}
}

// postDrink records one completed flow. It returns a non-nil error only
// for transient failures which should be retried; events dropped by
// policy return nil.
func (m *DrinkManager) postDrink(ev *kbevent.FlowUpdate) error {
	m.logger.WithFields(log.Fields{
		"flow_id": ev.FlowID,
		"meter":   ev.MeterName,
		"ticks":   ev.Ticks,
	}).Info("processing pending drink")

	if ev.VolumeML != nil && *ev.VolumeML < MinVolumeToRecord {
		m.logger.WithField("volume_ml", *ev.VolumeML).Info("not recording flow: too small")
		drinksDropped.WithLabelValues("small-pour").Inc()
		return nil
	}
	if ev.Ticks == 0 {
		m.logger.Info("not recording flow: no ticks")
		drinksDropped.WithLabelValues("no-ticks").Inc()
		return nil
	}

	var ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// If the username is empty or invalid, the backend will assign the
	// drink to the anonymous user, and will pick the keg itself.
	var drink, err = m.backend.RecordDrink(ctx, backend.DrinkRequest{
		MeterName: ev.MeterName,
		Ticks:     int64(ev.Ticks),
		Username:  ev.Username,
		PourTime:  ev.LastActivityTime,
		Duration:  int64(ev.LastActivityTime.Sub(ev.StartTime).Seconds()),
		Spilled:   false,
	})
	if backend.IsNotFound(err) {
		// The meter does not exist on the server.
		m.logger.WithField("err", err).Info("no drink recorded")
		drinksDropped.WithLabelValues("not-found").Inc()
		return nil
	} else if err != nil {
		return err
	}

	m.logger.WithFields(log.Fields{
		"drink_id": drink.ID,
		"username": drink.UserID,
		"keg_id":   drink.KegID,
		"ticks":    drink.Ticks,
	}).Info("logged drink")
	drinksRecorded.Inc()

	m.hub.PublishEvent(&kbevent.DrinkCreatedEvent{
		FlowID:    ev.FlowID,
		DrinkID:   drink.ID,
		MeterName: ev.MeterName,
		StartTime: drink.Time,
		EndTime:   drink.Time,
		Username:  drink.UserID,
	})
	return nil
}

// PendingCount returns the size of the pending queue.
func (m *DrinkManager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
