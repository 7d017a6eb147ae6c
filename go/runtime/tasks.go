package runtime

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
	"go.gazette.dev/core/task"

	"github.com/kegbot/kegcore/go/backend"
	"github.com/kegbot/kegcore/go/kbevent"
)

// heartbeatLoop publishes a HeartbeatSecondEvent every second, and a
// HeartbeatMinuteEvent alongside every 60th.
func heartbeatLoop(ctx context.Context, hub *kbevent.Hub) error {
	var ticker = time.NewTicker(time.Second)
	defer ticker.Stop()

	var seconds int
	for {
		select {
		case <-ticker.C:
			seconds++
			hub.PublishEvent(&kbevent.HeartbeatSecondEvent{})
			if seconds%60 == 0 {
				hub.PublishEvent(&kbevent.HeartbeatMinuteEvent{})
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Sync intervals: a live drinking session warrants a faster status sync.
const (
	syncIntervalSession = 10 * time.Second
	syncIntervalIdle    = 60 * time.Second
)

// Syncer periodically fetches the full backend status and publishes it as
// a SyncEvent. A failed sync skips the cycle.
type Syncer struct {
	hub     *kbevent.Hub
	backend backend.Backend
	logger  *log.Entry

	sessionActive bool
}

// NewSyncer returns a Syncer over |be|.
func NewSyncer(hub *kbevent.Hub, be backend.Backend) *Syncer {
	return &Syncer{
		hub:     hub,
		backend: be,
		logger:  log.WithField("component", "sync"),
	}
}

// QueueTasks queues the periodic sync worker.
func (s *Syncer) QueueTasks(tasks *task.Group) {
	tasks.Queue("syncLoop", func() error {
		for {
			if err := s.SyncNow(); err != nil {
				s.logger.WithField("err", err).Warn("backend error during sync")
			}

			var interval = syncIntervalIdle
			if s.sessionActive {
				interval = syncIntervalSession
			}
			select {
			case <-time.After(interval):
			case <-tasks.Context().Done():
				return nil
			}
		}
	})
}

// SyncNow fetches the backend status once and publishes a SyncEvent on
// success.
func (s *Syncer) SyncNow() error {
	var ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Debug("syncing")
	var status, err = s.backend.GetStatus(ctx)
	if err != nil {
		syncs.WithLabelValues("error").Inc()
		return err
	}
	s.logger.Debug("sync complete")
	syncs.WithLabelValues("ok").Inc()

	var skim struct {
		CurrentSession json.RawMessage `json:"current_session"`
	}
	// A malformed status still syncs; it only loses the session hint.
	_ = json.Unmarshal(status, &skim)
	s.sessionActive = len(skim.CurrentSession) != 0 && string(skim.CurrentSession) != "null"

	s.hub.PublishEvent(&kbevent.SyncEvent{Data: status})
	return nil
}
