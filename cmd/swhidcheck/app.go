package main

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/swhidcheck/swhidcheck/internal/adapter"
	"github.com/swhidcheck/swhidcheck/internal/capability"
	"github.com/swhidcheck/swhidcheck/internal/config"
	"github.com/swhidcheck/swhidcheck/internal/logger"
	"github.com/swhidcheck/swhidcheck/internal/reference"
	"github.com/swhidcheck/swhidcheck/internal/sandbox"
)

// app bundles everything a command needs after configuration is loaded.
type app struct {
	cfg      *config.Config
	baseDir  string
	staging  string
	log      *logger.Logger
	box      *sandbox.Sandbox
	registry *adapter.Registry
}

// builtins is the explicit name-to-constructor table for in-process
// implementations. Discovery is registration, not introspection.
var builtins = map[string]func(id string, caps capability.Descriptor, box *sandbox.Sandbox) adapter.Implementation{
	"reference": func(id string, caps capability.Descriptor, box *sandbox.Sandbox) adapter.Implementation {
		return reference.NewWithDescriptor(id, caps, box)
	},
}

// builtinCapabilities mirrors builtins with each implementation's base
// descriptor, the starting point for configuration overlays.
var builtinCapabilities = map[string]func() capability.Descriptor{
	"reference": reference.Capabilities,
}

func newLogger(flags *rootFlags) (*logger.Logger, error) {
	level := "info"
	if flags.verbose {
		level = "debug"
	}

	console := false
	switch flags.logFormat {
	case "console":
		console = true
	case "json":
	case "auto", "":
		console = term.IsTerminal(int(os.Stderr.Fd()))
	default:
		return nil, fmt.Errorf("unknown log format %q", flags.logFormat)
	}

	return logger.New(logger.Options{Level: level, Console: console, NoColor: flags.noColor})
}

// newApp loads the suite, prepares the staging area, and registers every
// enabled implementation. The caller owns cleanup via close.
func newApp(flags *rootFlags) (*app, error) {
	log, err := newLogger(flags)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Parse(flags.configPath)
	if err != nil {
		return nil, err
	}

	baseDir, err := filepath.Abs(filepath.Dir(flags.configPath))
	if err != nil {
		return nil, err
	}

	staging, err := os.MkdirTemp("", "swhidcheck-staging-*")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	box := sandbox.New(staging, log)
	registry := adapter.NewRegistry(log)
	for _, imp := range cfg.Implementations {
		if !imp.Enabled {
			continue
		}
		impl, err := buildImplementation(imp, box, log)
		if err != nil {
			os.RemoveAll(staging)
			return nil, err
		}
		if err := registry.Register(impl); err != nil {
			os.RemoveAll(staging)
			return nil, err
		}
	}

	return &app{
		cfg:      cfg,
		baseDir:  baseDir,
		staging:  staging,
		log:      log,
		box:      box,
		registry: registry,
	}, nil
}

func (a *app) close() {
	os.RemoveAll(a.staging)
}

func buildImplementation(imp config.Implementation, box *sandbox.Sandbox, log *logger.Logger) (adapter.Implementation, error) {
	switch imp.Kind {
	case "builtin":
		ctor, ok := builtins[imp.Builtin]
		if !ok {
			return nil, fmt.Errorf("implementation %q: unknown builtin %q", imp.ID, imp.Builtin)
		}
		caps, err := imp.Capabilities.Apply(builtinCapabilities[imp.Builtin]())
		if err != nil {
			return nil, fmt.Errorf("implementation %q: %w", imp.ID, err)
		}
		return ctor(imp.ID, caps, box), nil

	case "command":
		caps, err := imp.Capabilities.Apply(capability.Default())
		if err != nil {
			return nil, fmt.Errorf("implementation %q: %w", imp.ID, err)
		}
		return adapter.NewExternal(adapter.ExternalConfig{
			ID:           imp.ID,
			Command:      imp.Command,
			Args:         imp.Args,
			Env:          imp.Env,
			Capabilities: caps,
		}, box, log), nil

	case "json":
		caps, err := imp.Capabilities.Apply(capability.Default())
		if err != nil {
			return nil, fmt.Errorf("implementation %q: %w", imp.ID, err)
		}
		return adapter.NewJSONProto(adapter.JSONConfig{
			ID:           imp.ID,
			Command:      imp.Command,
			Args:         imp.Args,
			Env:          imp.Env,
			Capabilities: caps,
		}, box, log), nil
	}
	return nil, fmt.Errorf("implementation %q: unknown kind %q", imp.ID, imp.Kind)
}
