package assets

import (
	"path/filepath"

	"github.com/wolfeidau/flepack/internal/buildconfig"
)

type Config struct {
	// Entry point glob patterns (e.g., "src/pages/*.js")
	EntryPoints []string
	// Output directory for built files
	OutputDir string
	// Path to metafile
	MetafilePath string
	// Whether to enable source maps, uglify can still turn them off
	SourceMap bool
	// Directory entry points and relative paths are resolved against
	WorkingDir string
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		EntryPoints:  []string{"src/pages/*.js"},
		OutputDir:    "dist",
		MetafilePath: "dist/meta.json",
		SourceMap:    true,
	}
}

// FromBuildConfig derives the pipeline configuration from the shared build
// configuration.
func FromBuildConfig(cfg *buildconfig.Config) Config {
	out := cfg.Resolve(cfg.OutputDir)

	entryPoints := make([]string, 0, len(cfg.EntryPoints))
	for _, pattern := range cfg.EntryPoints {
		entryPoints = append(entryPoints, cfg.Resolve(pattern))
	}

	return Config{
		EntryPoints:  entryPoints,
		OutputDir:    out,
		MetafilePath: filepath.Join(out, "meta.json"),
		SourceMap:    cfg.Dev,
		WorkingDir:   cfg.Root,
	}
}
