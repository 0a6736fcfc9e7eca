package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httpmiddleware "github.com/wolfeidau/flepack/internal/http"
	"github.com/wolfeidau/flepack/internal/logger"
	"github.com/wolfeidau/flepack/internal/plugins"
)

type ServeCmd struct {
	Host      string   `help:"dev server host, overrides the config file" env:"FLEPACK_HOST"`
	Port      int      `help:"dev server port, overrides the config file" env:"FLEPACK_PORT"`
	Pages     []string `help:"entry chunks to render an HTML page for" env:"FLEPACK_PAGES"`
	Watch     []string `help:"source directories to watch, changes trigger a rebuild" default:"src" env:"FLEPACK_WATCH"`
	NoWatch   bool     `help:"serve the initial build without watching" default:"false"`
	Telemetry bool     `help:"export build and request telemetry over OTLP" default:"false" env:"FLEPACK_TELEMETRY"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	cfg, err := globals.loadConfig()
	if err != nil {
		return err
	}
	cfg.Dev = true
	if c.Host != "" {
		cfg.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Port = c.Port
	}
	log = logger.Build(log, cfg.Mode(), cfg.Root)

	if c.Telemetry {
		log.Info().Msg("Telemetry is enabled")
		defer setupTelemetry(ctx, log, globals.Version)()
	}

	desktop, waitNotifications := desktopNotifier(log)
	defer waitNotifications()

	pipeline, err := runPipeline(ctx, log, cfg, buildRequest{
		Pages:   c.Pages,
		Options: []plugins.Option{plugins.WithNotifier(desktop)},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !c.NoWatch && len(c.Watch) > 0 {
		dirs := make([]string, 0, len(c.Watch))
		for _, dir := range c.Watch {
			dirs = append(dirs, cfg.Resolve(dir))
		}
		go func() {
			if err := pipeline.Watch(ctx, dirs...); err != nil {
				log.Error().Err(err).Msg("Watcher stopped")
			}
		}()
	}

	server := configureHTTPServer(cfg.Addr(), devHandler(log, cfg.Resolve(cfg.OutputDir)))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown dev server")
		}
	}()

	log.Info().Str("addr", cfg.Addr()).Msg("Starting dev server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func devHandler(log zerolog.Logger, dir string) http.Handler {
	handler := httpmiddleware.Chain(http.FileServer(http.Dir(dir)),
		httpmiddleware.AccessLog(log),
		httpmiddleware.NoCache(),
	)
	return otelhttp.NewHandler(handler, "dev-server")
}
