package assets

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/flepack/internal/plugins"
)

type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string               `json:"entryPoint"`
	Imports    []ImportInfo         `json:"imports"`
	Bytes      int                  `json:"bytes"`
	Inputs     map[string]InputInfo `json:"inputs"`
	// CSSBundle is the stylesheet esbuild emitted next to a JS entry
	CSSBundle string `json:"cssBundle"`
}

type ImportInfo struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

type InputInfo struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// Pipeline runs the bundler with the options carried by a set of plugin
// descriptors and performs the post build steps they ask for.
type Pipeline struct {
	config      Config
	descriptors []plugins.Descriptor
	logger      zerolog.Logger
	metadata    *BuildMetadata
	// renamed maps esbuild output paths to the paths actually written
	renamed map[string]string
	mu      sync.RWMutex
}

// New creates a new asset pipeline with the given configuration. Relative
// paths in config are resolved against config.WorkingDir, which defaults to
// the current directory.
func New(config Config, logger zerolog.Logger, descriptors ...plugins.Descriptor) *Pipeline {
	if config.WorkingDir == "" {
		if wd, err := os.Getwd(); err == nil {
			config.WorkingDir = wd
		}
	}

	config.OutputDir = absPath(config.WorkingDir, config.OutputDir)
	config.MetafilePath = absPath(config.WorkingDir, config.MetafilePath)
	entryPoints := make([]string, 0, len(config.EntryPoints))
	for _, pattern := range config.EntryPoints {
		entryPoints = append(entryPoints, absPath(config.WorkingDir, pattern))
	}
	config.EntryPoints = entryPoints

	return &Pipeline{
		config:      config,
		descriptors: descriptors,
		logger:      logger,
	}
}

func absPath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// find returns the last descriptor of type T, later descriptors win the same
// way later plugins do in a bundler plugin list.
func find[T plugins.Descriptor](descriptors []plugins.Descriptor) (T, bool) {
	var (
		found T
		ok    bool
	)
	for _, d := range descriptors {
		if v, match := d.(T); match {
			found, ok = v, true
		}
	}
	return found, ok
}

// findAll returns every descriptor of type T in order.
func findAll[T plugins.Descriptor](descriptors []plugins.Descriptor) []T {
	var out []T
	for _, d := range descriptors {
		if v, ok := d.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
