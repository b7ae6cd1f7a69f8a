// Command scpid is the instrument command server's process entrypoint:
// it parses flags, builds the command tree and session registry,
// starts the configured transports, runs preload/postload modules, and
// waits for a shutdown signal (spec.md §6).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "scpid",
		Short:         "SCPI-style instrument command server",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.shutdown {
				return sendShutdown(opts.pidfile)
			}
			if opts.fork {
				return forkDaemon(os.Args)
			}
			return runServer(opts)
		},
	}

	f := rootCmd.PersistentFlags()
	f.StringVar(&opts.bind, "bind", "", "TCP bind address (host:port)")
	f.StringVar(&opts.telnet, "telnet", "", "Telnet bind address (host:port)")
	f.StringVar(&opts.serial, "serial", "", "Serial device path")
	f.BoolVar(&opts.shutdown, "shutdown", false, "Signal the running instance named by --pidfile to shut down cleanly")
	f.StringVar(&opts.pidfile, "pidfile", "", "Path to write (or read, with --shutdown) the process id")
	f.BoolVar(&opts.fork, "fork", false, "Re-exec detached from the controlling terminal")
	f.StringArrayVar(&opts.preload, "preload", nil, "Module to load before accepting connections (repeatable)")
	f.StringArrayVar(&opts.postload, "postload", nil, "Module to load after accepting connections (repeatable)")
	f.StringVar(&opts.exitModule, "exit-module", "", "Module to run on the shutdown chain")
	f.BoolVar(&opts.watchModules, "watch-modules", false, "Hot-reload preload modules on file change")
	f.StringVar(&opts.configPath, "config", "", "Path to the YAML settings file")
	f.StringVar(&opts.output, "output", "", "Record a wire transcript of preload/postload execution to this file")
	f.StringVar(&opts.outputFormat, "output-format", "text", `Transcript format for --output: "text" or "cbor"`)
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.BoolVar(&opts.logJSON, "log-json", false, "Emit logs as JSON instead of text")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "scpid:", err)
		os.Exit(exitCodeFor(err))
	}
}

// options collects every flag spec.md §6 lists (plus --watch-modules
// and --config from the expansion, plus --serial for the third
// transport), grouped into one struct passed down to runServer.
type options struct {
	bind, telnet, serial string

	shutdown bool
	pidfile  string
	fork     bool

	preload, postload []string
	exitModule        string
	watchModules      bool

	configPath string

	output       string
	outputFormat string

	logLevel string
	logJSON  bool
}

// startupError marks an error that occurred before the server began
// accepting connections, mapped to exit code 2 (spec.md §6); any other
// error returned by rootCmd.RunE exits 1.
type startupError struct{ err error }

func (e *startupError) Error() string { return e.err.Error() }
func (e *startupError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var se *startupError
	if asStartupError(err, &se) {
		return 2
	}
	return 1
}

func asStartupError(err error, target **startupError) bool {
	for err != nil {
		if se, ok := err.(*startupError); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newCancellableContext returns a context cancelled on SIGINT or
// SIGTERM, the way the teacher's CLI lets Ctrl+C propagate through a
// whole execution chain (opal-lang-opal/cli/main.go).
func newCancellableContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}
