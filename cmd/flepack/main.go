package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/flepack/cmd/flepack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool             `help:"Enable debug mode."`
		Config  string           `help:"Path to the build configuration file." type:"path" env:"FLEPACK_CONFIG"`
		Version kong.VersionFlag `help:"Print version information and quit"`

		Build   commands.BuildCmd   `cmd:"" help:"Bundle the project"`
		Serve   commands.ServeCmd   `cmd:"" help:"Build in development mode and serve the output"`
		Plugins commands.PluginsCmd `cmd:"" help:"Print plugin descriptors"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("flepack"),
		kong.Description("Bundler front end driven by plugin descriptors."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Config: cli.Config})
	cmd.FatalIfErrorf(err)
}
