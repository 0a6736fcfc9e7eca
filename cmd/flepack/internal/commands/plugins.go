package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/flepack/internal/buildconfig"
	"github.com/wolfeidau/flepack/internal/logger"
	"github.com/wolfeidau/flepack/internal/notify"
	"github.com/wolfeidau/flepack/internal/plugins"
)

type PluginsCmd struct {
	Dev  bool     `help:"print development mode descriptors" default:"false" env:"FLEPACK_DEV"`
	Kind []string `help:"plugin kinds to print, defaults to every kind"`
}

func (c *PluginsCmd) Run(_ context.Context, globals *Globals) error {
	cfg, err := globals.loadConfig()
	if err != nil {
		return err
	}
	if c.Dev {
		cfg.Dev = true
	}

	return printPlugins(os.Stdout, cfg, c.Kind, plugins.WithLogger(logger.Setup(globals.Debug)))
}

type printedPlugin struct {
	Kind    plugins.Kind       `yaml:"kind"`
	Options plugins.Descriptor `yaml:"options"`
}

// printPlugins writes one YAML document per descriptor.
func printPlugins(w io.Writer, cfg *buildconfig.Config, kinds []string, opts ...plugins.Option) error {
	// printing never sends notifications
	opts = append(opts, plugins.WithNotifier(notify.Nop{}))
	registry := plugins.New(cfg, opts...)

	selected := plugins.Kinds()
	if len(kinds) > 0 {
		selected = make([]plugins.Kind, 0, len(kinds))
		for _, k := range kinds {
			selected = append(selected, plugins.Kind(k))
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	for _, kind := range selected {
		d, err := registry.Build(kind)
		if err != nil {
			return err
		}
		if err := enc.Encode(printedPlugin{Kind: kind, Options: d}); err != nil {
			return fmt.Errorf("failed to encode %s: %w", kind, err)
		}
	}

	return enc.Close()
}
