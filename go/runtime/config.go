// Package runtime wires the kegcore managers, hub, bridge, and workers
// into a running core.
package runtime

import (
	mbp "go.gazette.dev/core/mainboilerplate"
)

// Config is the top-level configuration object of the kegcore application.
type Config struct {
	Core struct {
		APIURL string `long:"api-url" env:"KEGBOT_API_URL" default:"http://localhost:8000/api/" description:"Kegbot backend API URL"`
		APIKey string `long:"api-key" env:"KEGBOT_API_KEY" default:"" description:"Kegbot backend API key"`
	} `group:"Core" namespace:"core" env-namespace:"CORE"`

	Kegnet struct {
		RedisURL string `long:"redis-url" env:"KEGBOT_REDIS_URL" default:"redis://localhost:6379/0" description:"URL of the redis service"`
		Channel  string `long:"channel" env:"CHANNEL" default:"kegnet" description:"Pub/sub channel name"`
	} `group:"Kegnet" namespace:"kegnet" env-namespace:"KEGNET"`

	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
}
