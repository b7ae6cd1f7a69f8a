package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/config"
	"github.com/scpid/scpid/internal/moduleload"
	"github.com/scpid/scpid/internal/obs"
	"github.com/scpid/scpid/internal/pubsub"
	"github.com/scpid/scpid/internal/reply"
	"github.com/scpid/scpid/internal/scrub"
	"github.com/scpid/scpid/internal/session"
	"github.com/scpid/scpid/internal/transport/serial"
	"github.com/scpid/scpid/internal/transport/tcp"
	"github.com/scpid/scpid/internal/transport/telnet"
	"github.com/scpid/scpid/internal/tree"
)

// runServer builds the command tree and registry, starts the
// configured transports, runs the preload/postload module chain, and
// blocks until a shutdown signal arrives (spec.md §6/§7).
func runServer(opts *options) error {
	scrubber := scrub.New(os.Stderr)
	defer scrubber.Flush()
	logger := obs.New(scrubber, parseLogLevel(opts.logLevel), opts.logJSON)

	settings, caps, creds, err := loadConfig(opts)
	if err != nil {
		return &startupError{err}
	}
	applySettingsDefaults(opts, settings)
	_ = creds // wired through internal/auth by a Challenger the caller constructs; no built-in store here

	root := tree.NewRoot()
	if err := session.RegisterBuiltins(root); err != nil {
		return &startupError{fmt.Errorf("registering builtins: %w", err)}
	}

	bus := pubsub.New()
	for name, level := range settings.TopicLevels() {
		bus.AddTopic(name, level)
	}

	reg := session.NewRegistry(root, bus)

	modulePath := moduleload.ParseSearchPath(os.Getenv("MODULEPATH"))
	loader := moduleload.NewLoader(modulePath, moduleLoadFunc(reg, scrubber, logger, opts))

	if opts.pidfile != "" {
		if err := writePidfile(opts.pidfile); err != nil {
			return &startupError{err}
		}
		defer os.Remove(opts.pidfile)
	}

	preload := opts.preload
	if len(preload) == 0 {
		preload = settings.Preload
	}
	for _, name := range preload {
		if err := loader.LoadByName(name); err != nil {
			return &startupError{fmt.Errorf("preload %q: %w", name, err)}
		}
	}

	if opts.watchModules || settings.WatchModules {
		if err := loader.Watch(); err != nil {
			logger.Warn("module watch failed to start", slog.Any("error", err))
		} else {
			defer loader.Close()
		}
	}

	closers, err := startTransports(reg, caps, scrubber, logger, opts, settings)
	if err != nil {
		return &startupError{err}
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	postload := opts.postload
	if len(postload) == 0 {
		postload = settings.Postload
	}
	for _, name := range postload {
		if err := loader.LoadByName(name); err != nil {
			logger.Error("postload module failed", slog.String("module", name), slog.Any("error", err))
		}
	}

	logger.Info("scpid ready", slog.String("bind", opts.bind), slog.String("telnet", opts.telnet))

	ctx, cancel := newCancellableContext()
	defer cancel()
	<-ctx.Done()

	logger.Info("shutting down")
	exitModule := opts.exitModule
	if exitModule == "" {
		exitModule = settings.ExitModule
	}
	if exitModule != "" {
		if err := loader.LoadByName(exitModule); err != nil {
			logger.Error("exit module failed", slog.Any("error", err))
		}
	}

	return nil
}

func loadConfig(opts *options) (*config.Settings, *config.AccessCaps, *config.Credentials, error) {
	settings := &config.Settings{}
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, nil, nil, err
		}
		settings = loaded
	}

	var caps *config.AccessCaps
	if settings.AccessCapsPath != "" {
		loaded, err := config.LoadAccessCaps(settings.AccessCapsPath)
		if err != nil {
			return nil, nil, nil, err
		}
		caps = loaded
	}

	var creds *config.Credentials
	if settings.CredentialsPath != "" {
		loaded, err := config.LoadCredentials(settings.CredentialsPath)
		if err != nil {
			return nil, nil, nil, err
		}
		creds = loaded
	}

	return settings, caps, creds, nil
}

// applySettingsDefaults fills any transport address left unset on the
// command line from the YAML settings file, command-line flags taking
// priority.
func applySettingsDefaults(opts *options, settings *config.Settings) {
	if opts.bind == "" {
		opts.bind = settings.Bind
	}
	if opts.telnet == "" {
		opts.telnet = settings.Telnet
	}
	if opts.serial == "" {
		opts.serial = settings.Serial
	}
}

type closer interface{ Close() error }

// startTransports starts a listener for every transport address the
// caller configured; none are mandatory; at least one should normally
// be set or the server accepts no connections at all.
func startTransports(reg *session.Registry, caps *config.AccessCaps, scrubber *scrub.Writer, logger *slog.Logger, opts *options, settings *config.Settings) ([]closer, error) {
	var closers []closer

	if opts.bind != "" {
		l, err := tcp.Listen(opts.bind, reg, caps.Limit("tcp"), access.Full, logger)
		if err != nil {
			return nil, fmt.Errorf("tcp listen %s: %w", opts.bind, err)
		}
		l.Scrub = scrubber
		go func() {
			if err := l.Serve(); err != nil {
				logger.Error("tcp listener stopped", slog.Any("error", err))
			}
		}()
		closers = append(closers, l)
	}

	if opts.telnet != "" {
		l, err := telnet.Listen(opts.telnet, reg, caps.Limit("telnet"), access.Full, logger)
		if err != nil {
			return nil, fmt.Errorf("telnet listen %s: %w", opts.telnet, err)
		}
		l.Scrub = scrubber
		go func() {
			if err := l.Serve(); err != nil {
				logger.Error("telnet listener stopped", slog.Any("error", err))
			}
		}()
		closers = append(closers, l)
	}

	if opts.serial != "" {
		dev, err := os.OpenFile(opts.serial, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("opening serial device %s: %w", opts.serial, err)
		}
		port := &serial.Port{Registry: reg, AccessLimit: caps.Limit("serial"), AuthLimit: access.Full, Logger: logger, Scrub: scrubber}
		go func() {
			if err := port.Serve(dev); err != nil {
				logger.Error("serial session ended", slog.Any("error", err))
			}
		}()
	}

	return closers, nil
}

// moduleLoadFunc builds the callback moduleload.Loader calls to
// actually execute a resolved module file's contents as a dedicated
// Module-kind session (spec.md §4.4's module session note), optionally
// recording its wire transcript per --output/--output-format.
func moduleLoadFunc(reg *session.Registry, scrubber *scrub.Writer, logger *slog.Logger, opts *options) func(path string) error {
	return func(path string) error {
		if opts.output != "" && opts.outputFormat == "cbor" {
			out, err := os.OpenFile(opts.output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return err
			}
			defer out.Close()
			return runModuleCBOR(reg, logger, path, out)
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		w := reply.New(io.Discard)
		if opts.output != "" {
			out, err := os.OpenFile(opts.output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return err
			}
			defer out.Close()
			w.SetRecorder(out)
		}

		s := session.New(reg, session.KindModule, reg.Root, w, access.Full, access.Full, obs.Session(logger, "module"))
		s.SetScrub(scrubber)
		defer s.Close()
		return session.Serve(s, f)
	}
}
