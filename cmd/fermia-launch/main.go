// Command fermia-launch starts or stops a stream server in the background
// and prints the viewer URL.
//
//	fermia-launch start color
//	fermia-launch stop depth
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/zachmartin/fermia-camera/internal/launcher"
	"github.com/zachmartin/fermia-camera/internal/logging"
)

func main() {
	command := pflag.String("stream-command", "fermia-stream", "stream server executable")
	stateDir := pflag.String("state-dir", filepath.Join(os.TempDir(), "fermia"), "directory for pid and log files")
	logLevel := pflag.String("log-level", "info", "debug, info, warn or error")
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: fermia-launch [flags] start|stop color|depth")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 2 {
		pflag.Usage()
		os.Exit(2)
	}
	action, variant := pflag.Arg(0), pflag.Arg(1)

	log := logging.New("fermia-launch", *logLevel, "console")
	l := launcher.New(*command, *stateDir, log)

	switch action {
	case "start":
		url, err := l.Start(context.Background(), variant)
		if err != nil {
			log.Error().Err(err).Str("variant", variant).Msg("start failed")
			os.Exit(1)
		}
		fmt.Println(url)
	case "stop":
		err := l.Stop(variant)
		if errors.Is(err, launcher.ErrNotRunning) {
			log.Warn().Str("variant", variant).Msg("not running")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("variant", variant).Msg("stop failed")
			os.Exit(1)
		}
	default:
		pflag.Usage()
		os.Exit(2)
	}
}
