package buildconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide build configuration. It is loaded once at
// startup and treated as read-only by everything that receives it.
type Config struct {
	// Development mode disables minification and injects "development" as NODE_ENV
	Dev bool `yaml:"dev"`
	// Project root used to resolve relative paths
	Root string `yaml:"root"`
	// Dev server address
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Whether build errors raise a desktop notification
	Notify bool `yaml:"notify"`
	// Default assets linked into every generated HTML page
	CSS   []string `yaml:"css"`
	PreJS []string `yaml:"prejs"`
	JS    []string `yaml:"js"`
	// Directory holding shared templates and images (relative to Root)
	ShareDir string `yaml:"share_dir"`
	// Directory for dll manifests and reports (relative to Root)
	CacheDir string `yaml:"cache_dir"`
	// Bundler output directory (relative to Root)
	OutputDir string `yaml:"output_dir"`
	// Entry point globs handed to the bundler
	EntryPoints []string `yaml:"entry_points"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}

	return &Config{
		Dev:         false,
		Root:        root,
		Host:        "localhost",
		Port:        8080,
		Notify:      true,
		CSS:         []string{},
		PreJS:       []string{},
		JS:          []string{},
		ShareDir:    "build/.share",
		CacheDir:    ".cache",
		OutputDir:   "dist",
		EntryPoints: []string{"src/pages/*.js"},
	}
}

// Load reads a YAML file over the defaults. Fields absent from the file keep
// their default value.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read build config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse build config %s: %w", path, err)
	}

	if !filepath.IsAbs(cfg.Root) {
		abs, err := filepath.Abs(filepath.Join(filepath.Dir(path), cfg.Root))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root %s: %w", cfg.Root, err)
		}
		cfg.Root = abs
	}

	return cfg, nil
}

// Resolve maps a project-relative path to an absolute path under Root.
func (c *Config) Resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(c.Root, rel)
}

// Mode returns the NODE_ENV style name of the current mode.
func (c *Config) Mode() string {
	if c.Dev {
		return "development"
	}
	return "production"
}

// Addr returns the dev server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("root directory is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
