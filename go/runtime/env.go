package runtime

import (
	"fmt"
	"time"

	"go.gazette.dev/core/task"

	"github.com/kegbot/kegcore/go/backend"
	"github.com/kegbot/kegcore/go/core"
	"github.com/kegbot/kegcore/go/kbevent"
	"github.com/kegbot/kegcore/go/kegnet"
)

// dispatchTimeout is the queue wait of one dispatch tick. A quit signal
// is observed within at most one tick.
const dispatchTimeout = 500 * time.Millisecond

// Env owns the hub, managers, bridge, and workers of one kegcore
// instance. There is exactly one Env per deployment.
type Env struct {
	Hub     *kbevent.Hub
	Backend backend.Backend

	TapManager            *core.TapManager
	FlowManager           *core.FlowManager
	AuthenticationManager *core.AuthenticationManager
	DrinkManager          *core.DrinkManager
	ThermoManager         *core.ThermoManager

	Bridge *kegnet.Bridge
	syncer *Syncer
}

// NewEnv builds an Env from |cfg|, connecting the web backend and the
// kegnet channel.
func NewEnv(cfg Config) (*Env, error) {
	var be, err = backend.NewWebClient(cfg.Core.APIURL, cfg.Core.APIKey)
	if err != nil {
		return nil, fmt.Errorf("building backend client: %w", err)
	}
	client, err := kegnet.NewClient(cfg.Kegnet.RedisURL, cfg.Kegnet.Channel)
	if err != nil {
		return nil, fmt.Errorf("building kegnet client: %w", err)
	}
	return NewEnvWith(be, client), nil
}

// NewEnvWith builds an Env over an explicit Backend and kegnet Client.
// A nil |client| leaves the core without a broker bridge, which tests use.
func NewEnvWith(be backend.Backend, client *kegnet.Client) *Env {
	var env = &Env{
		Hub:     kbevent.NewHub(),
		Backend: be,
	}

	env.TapManager = core.NewTapManager(env.Hub, be)
	env.FlowManager = core.NewFlowManager(env.Hub, env.TapManager)
	env.AuthenticationManager = core.NewAuthenticationManager(
		env.Hub, env.FlowManager, env.TapManager, be)
	env.DrinkManager = core.NewDrinkManager(env.Hub, be)
	env.ThermoManager = core.NewThermoManager(env.Hub, be)

	for _, mgr := range []kbevent.Subscriber{
		env.TapManager,
		env.FlowManager,
		env.AuthenticationManager,
		env.DrinkManager,
		env.ThermoManager,
	} {
		env.Hub.SubscribeAll(mgr)
	}

	if client != nil {
		env.Bridge = kegnet.NewBridge(env.Hub, client)
	}
	env.syncer = NewSyncer(env.Hub, be)
	return env
}

// QueueTasks queues every worker of the core: event dispatch, heartbeat,
// backend sync, and the broker bridge. A worker returning a non-nil error
// cancels the group, which is fatal to the process.
func (env *Env) QueueTasks(tasks *task.Group) {
	tasks.Queue("dispatchLoop", func() error {
		for tasks.Context().Err() == nil {
			env.Hub.DispatchNextEvent(dispatchTimeout)
		}
		// Announce shutdown and drain remaining events, so every
		// subscriber observes QuitEvent last.
		env.Hub.PublishEvent(&kbevent.QuitEvent{})
		env.Hub.Flush()
		return nil
	})

	tasks.Queue("heartbeat", func() error {
		return heartbeatLoop(tasks.Context(), env.Hub)
	})

	env.syncer.QueueTasks(tasks)

	if env.Bridge != nil {
		env.Bridge.QueueTasks(tasks)
	}

	env.Hub.PublishEvent(&kbevent.StartedEvent{})
}

// SyncNow runs one backend sync cycle. Visible for testing.
func (env *Env) SyncNow() error {
	return env.syncer.SyncNow()
}
