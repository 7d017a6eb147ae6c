package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	mbp "go.gazette.dev/core/mainboilerplate"
	"go.gazette.dev/core/task"

	"github.com/kegbot/kegcore/go/runtime"
)

const iniFilename = "kegcore.ini"

// Config is the top-level configuration object of the kegcore application.
var Config = new(runtime.Config)

type cmdServe struct{}

func (cmdServe) Execute(_ []string) error {
	defer mbp.InitDiagnosticsAndRecover(Config.Diagnostics)()
	mbp.InitLog(Config.Log)

	log.WithFields(log.Fields{
		"config":    Config,
		"version":   mbp.Version,
		"buildDate": mbp.BuildDate,
	}).Info("kegcore configuration")

	var env, err = runtime.NewEnv(*Config)
	if err != nil {
		return fmt.Errorf("building environment: %w", err)
	}

	var tasks = task.NewGroup(context.Background())
	env.QueueTasks(tasks)

	// Install signal handler.
	var signalCh = make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)

	tasks.Queue("watch signalCh", func() error {
		select {
		case sig := <-signalCh:
			log.WithField("signal", sig).Info("caught signal")
			tasks.Cancel()
			return nil

		case <-tasks.Context().Done():
			return nil
		}
	})
	tasks.GoRun()

	// Block until all tasks complete. An unexpected worker death cancels
	// the group and surfaces here.
	if err = tasks.Wait(); err != nil {
		return fmt.Errorf("task failed: %w", err)
	}

	log.Info("kegcore stopped")
	return nil
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)

	_, _ = parser.AddCommand("serve", "Serve as the kegbot core", `
Serve the kegbot core with the provided configuration, until signaled to
exit (via SIGTERM). There is exactly one core per deployment.
`, &cmdServe{})

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}
