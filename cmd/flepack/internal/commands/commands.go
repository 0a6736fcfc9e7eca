package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/flepack/internal/assets"
	"github.com/wolfeidau/flepack/internal/buildconfig"
	"github.com/wolfeidau/flepack/internal/notify"
	"github.com/wolfeidau/flepack/internal/plugins"
	"github.com/wolfeidau/flepack/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string
	// Config is the optional YAML build configuration path
	Config string
}

func (g *Globals) loadConfig() (*buildconfig.Config, error) {
	cfg := buildconfig.Default()
	if g.Config != "" {
		var err error
		cfg, err = buildconfig.Load(g.Config)
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// buildRequest selects the descriptors for a pipeline run.
type buildRequest struct {
	// Kinds overrides the mode's default plugin kinds when not empty
	Kinds []string
	// Pages are entry chunks that get an html/<chunk>.html page
	Pages   []string
	Options []plugins.Option
}

func descriptors(cfg *buildconfig.Config, req buildRequest) ([]plugins.Descriptor, error) {
	registry := plugins.New(cfg, req.Options...)

	kinds := registry.DefaultKinds()
	if len(req.Kinds) > 0 {
		kinds = make([]plugins.Kind, 0, len(req.Kinds))
		for _, k := range req.Kinds {
			kinds = append(kinds, plugins.Kind(k))
		}
	}

	out, err := registry.BuildAll(kinds...)
	if err != nil {
		return nil, err
	}

	for _, page := range req.Pages {
		filename := "html/" + page + ".html"
		out = append(out, registry.HTML(plugins.HTMLOverrides{
			Filename: &filename,
			Chunks:   []string{page},
		}))
	}

	return out, nil
}

func runPipeline(ctx context.Context, log zerolog.Logger, cfg *buildconfig.Config, req buildRequest) (*assets.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid build config: %w", err)
	}

	req.Options = append([]plugins.Option{plugins.WithLogger(log)}, req.Options...)
	selected, err := descriptors(cfg, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build plugins: %w", err)
	}

	pipeline := assets.New(assets.FromBuildConfig(cfg), log, selected...)
	if err := pipeline.Build(ctx); err != nil {
		return nil, fmt.Errorf("failed to build assets: %w", err)
	}
	return pipeline, nil
}

// notifyWaitTimeout bounds how long a command lingers on exit for desktop
// notifications still being delivered.
const notifyWaitTimeout = 3 * time.Second

// desktopNotifier returns the notifier for build errors and a func that waits
// for pending notifications, to be deferred by the command.
func desktopNotifier(log zerolog.Logger) (*notify.Desktop, func()) {
	desktop := notify.NewDesktop(log)
	return desktop, func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyWaitTimeout)
		defer cancel()
		if err := desktop.Wait(ctx); err != nil {
			log.Debug().Err(err).Msg("Gave up waiting for desktop notifications")
		}
	}
}

// setupTelemetry starts the OTLP exporters, the returned func flushes them.
func setupTelemetry(ctx context.Context, log zerolog.Logger, version string) func() {
	shutdown, err := telemetry.InitTelemetry(ctx, log, "flepack", version)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		return func() {}
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
