/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"
	"os"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/testbed"
)

func main() {
	configPath := flag.String("config", "config.toml", "engine configuration file")
	logLevel := flag.String("log", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	tb := testbed.NewTestGame(*configPath, *logLevel)

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogError("failed to create engine: %s", err)
		os.Exit(1)
	}

	if err := e.Initialize(); err != nil {
		core.LogError("failed to initialize engine: %s", err)
		_ = e.Shutdown()
		os.Exit(1)
	}

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogError("engine stopped: %+v", runErr)
		os.Exit(1)
	}
}
