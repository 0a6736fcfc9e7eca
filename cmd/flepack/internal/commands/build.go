package commands

import (
	"context"

	"github.com/wolfeidau/flepack/internal/logger"
	"github.com/wolfeidau/flepack/internal/plugins"
)

type BuildCmd struct {
	Dev       bool     `help:"build in development mode" default:"false" env:"FLEPACK_DEV"`
	Plugins   []string `help:"plugin kinds to apply, defaults depend on the mode" env:"FLEPACK_PLUGINS"`
	Pages     []string `help:"entry chunks to render an HTML page for" env:"FLEPACK_PAGES"`
	Telemetry bool     `help:"export build metrics and traces over OTLP" default:"false" env:"FLEPACK_TELEMETRY"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	cfg, err := globals.loadConfig()
	if err != nil {
		return err
	}
	if c.Dev {
		cfg.Dev = true
	}
	log = logger.Build(log, cfg.Mode(), cfg.Root)

	if c.Telemetry {
		log.Info().Msg("Telemetry is enabled")
		defer setupTelemetry(ctx, log, globals.Version)()
	}

	desktop, waitNotifications := desktopNotifier(log)
	defer waitNotifications()

	req := buildRequest{
		Kinds:   c.Plugins,
		Pages:   c.Pages,
		Options: []plugins.Option{plugins.WithNotifier(desktop)},
	}
	if _, err := runPipeline(ctx, log, cfg, req); err != nil {
		return err
	}

	log.Info().Str("output", cfg.Resolve(cfg.OutputDir)).Msg("Build complete")
	return nil
}
