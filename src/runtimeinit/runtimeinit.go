package runtimeinit

import (
	"fmt"
	"io"

	"screen-grab/src/clipboard"
	"screen-grab/src/config"
	"screen-grab/src/logutil"
)

type Options struct {
	LoadOptions config.LoadOptions
	// Console receives human-readable log output; nil keeps the console
	// quiet so stdout and stderr stay clean for scripting.
	Console io.Writer
	// NeedClipboard initializes the system clipboard even when
	// COPY_TO_CLIPBOARD is off.
	NeedClipboard bool
	// SetupLogging replaces logutil.Setup, mainly for tests.
	SetupLogging func(logutil.Options)
	// InitClipboard replaces clipboard.Init, mainly for tests.
	InitClipboard func() error
}

// Bootstrap loads configuration, configures logging and initializes the
// clipboard when the configuration needs it.
func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	setup := opts.SetupLogging
	if setup == nil {
		setup = logutil.Setup
	}
	setup(logutil.Options{
		FileLogging: cfg.EnableFileLogging,
		Level:       cfg.LogLevel,
		Pretty:      true,
		Console:     opts.Console,
	})

	log := logutil.WithComponent("runtimeinit")
	if cfg.EnvPath != "" {
		log.Info().Str("path", cfg.EnvPath).Msg("loaded configuration file")
	}

	if cfg.CopyToClipboard || opts.NeedClipboard {
		initClipboard := opts.InitClipboard
		if initClipboard == nil {
			initClipboard = clipboard.Init
		}
		if err := initClipboard(); err != nil {
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	}

	log.Debug().
		Bool("ratio_constraint", cfg.Ratio.Enabled).
		Float64("ratio", cfg.Ratio.Ratio).
		Str("selector", cfg.Selector).
		Str("output_dir", cfg.OutputDir).
		Msg("runtime initialized")
	return cfg, nil
}
