package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/flepack/internal/buildconfig"
	"github.com/wolfeidau/flepack/internal/notify"
	"github.com/wolfeidau/flepack/internal/plugins"
)

type notifications struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *notifications) notifier() notify.Notifier {
	return notify.Func(func(msg notify.Notification) {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.sent = append(n.sent, msg)
	})
}

func (n *notifications) all() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.sent...)
}

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func projectConfig(t *testing.T, dev bool) *buildconfig.Config {
	t.Helper()
	cfg := buildconfig.Default()
	cfg.Root = t.TempDir()
	cfg.Dev = dev
	cfg.EntryPoints = []string{"src/pages/*.js"}
	return cfg
}

func TestOptions(t *testing.T) {
	cfg := projectConfig(t, false)
	registry := plugins.New(cfg, plugins.WithNotifier(notify.Nop{}))

	descriptors, err := registry.BuildAll(
		plugins.KindDefine,
		plugins.KindLoader,
		plugins.KindUglify,
		plugins.KindCommonsChunk,
		plugins.KindFriendlyErrors,
		plugins.KindHMR,
	)
	require.NoError(t, err)

	p := New(FromBuildConfig(cfg), zerolog.Nop(), descriptors...)
	opts := p.Options([]string{"a.js"})

	assert.Equal(t, `"production"`, opts.Define["process.env.NODE_ENV"])
	assert.True(t, opts.MinifyWhitespace)
	assert.True(t, opts.MinifyIdentifiers)
	assert.True(t, opts.MinifySyntax)
	assert.Equal(t, api.DropDebugger, opts.Drop&api.DropDebugger)
	assert.Equal(t, api.LegalCommentsNone, opts.LegalComments)
	assert.Equal(t, api.SourceMapNone, opts.Sourcemap)
	assert.True(t, opts.Splitting)
	assert.Equal(t, api.FormatESModule, opts.Format)
	assert.Equal(t, "[name].[hash]", opts.ChunkNames)
	assert.False(t, opts.Write)
	assert.True(t, opts.Metafile)
	require.Len(t, opts.Plugins, 1)
	assert.Equal(t, "friendly-errors", opts.Plugins[0].Name)
}

func TestOptions_Development(t *testing.T) {
	cfg := projectConfig(t, true)
	registry := plugins.New(cfg, plugins.WithNotifier(notify.Nop{}))

	descriptors, err := registry.BuildAll(plugins.KindDefine, plugins.KindLoader)
	require.NoError(t, err)

	opts := New(FromBuildConfig(cfg), zerolog.Nop(), descriptors...).Options(nil)

	assert.Equal(t, `"development"`, opts.Define["process.env.NODE_ENV"])
	assert.False(t, opts.MinifyWhitespace)
	assert.False(t, opts.MinifyIdentifiers)
	assert.False(t, opts.Splitting)
	assert.Equal(t, api.FormatIIFE, opts.Format)
	assert.Equal(t, api.SourceMapLinked, opts.Sourcemap)
}

func TestOptions_CommonsKinds(t *testing.T) {
	cfg := projectConfig(t, false)
	registry := plugins.New(cfg, plugins.WithNotifier(notify.Nop{}))

	t.Run("manifest alone keeps a single bundle", func(t *testing.T) {
		opts := New(FromBuildConfig(cfg), zerolog.Nop(), registry.CommonsManifest(plugins.FilenameParams{})).Options(nil)
		assert.False(t, opts.Splitting)
		assert.Equal(t, api.FormatIIFE, opts.Format)
		assert.Empty(t, opts.ChunkNames)
	})

	t.Run("async splits without renaming chunks", func(t *testing.T) {
		opts := New(FromBuildConfig(cfg), zerolog.Nop(), registry.CommonsAsync()).Options(nil)
		assert.True(t, opts.Splitting)
		assert.Equal(t, api.FormatESModule, opts.Format)
		assert.Empty(t, opts.ChunkNames)
	})

	t.Run("manifest does not override chunk names", func(t *testing.T) {
		opts := New(FromBuildConfig(cfg), zerolog.Nop(),
			registry.CommonsChunk(plugins.CommonsChunkParams{}),
			registry.CommonsManifest(plugins.FilenameParams{}),
		).Options(nil)
		assert.True(t, opts.Splitting)
		assert.Equal(t, "[name].[hash]", opts.ChunkNames)
	})
}

func TestNameTemplate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"[name].[chunkhash:8].js", "[name].[hash]"},
		{"common/manifest.[chunkhash:8].js", "common/manifest.[hash]"},
		{"css/[name].[contenthash:8].css", "css/[name].[hash]"},
		{"vendor_[hash]", "vendor_[hash]"},
		{"bundle.js", "bundle"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.expected, nameTemplate(tt.input))
		})
	}
}

func TestExpandFilename(t *testing.T) {
	contents := []byte("a{color:red}")
	sum := sha256.Sum256(contents)
	digest := hex.EncodeToString(sum[:])

	require.Equal(t, "css/pages/index."+digest[:8]+".css",
		expandFilename("css/[name].[contenthash:8].css", "pages/index", contents))
	require.Equal(t, "index."+digest[:20]+".css",
		expandFilename("[name].[contenthash].css", "index", contents))
	require.Equal(t, "style.css", expandFilename("style.css", "index", contents))
	require.Equal(t, "index."+digest+".css",
		expandFilename("[name].[contenthash:64].css", "index", contents))
	require.Equal(t, "index."+digest[:20]+".css",
		expandFilename("[name].[contenthash:65].css", "index", contents))
}

func TestCSSProcessor(t *testing.T) {
	cfg := projectConfig(t, false)
	registry := plugins.New(cfg, plugins.WithNotifier(notify.Nop{}))

	t.Run("optimize and extract", func(t *testing.T) {
		processor, err := newCSSProcessor([]plugins.Descriptor{
			registry.OptimizeCSS(),
			registry.ExtractCSS(plugins.FilenameParams{}),
		})
		require.NoError(t, err)

		out, target, err := processor.process("index.css", []byte("a { color : red ; }\n/* note */\n"))
		require.NoError(t, err)
		require.Equal(t, "a{color:red}", string(out))

		sum := sha256.Sum256(out)
		require.Equal(t, "css/index."+hex.EncodeToString(sum[:])[:8]+".css", target)
	})

	t.Run("extract rewrites the source map reference", func(t *testing.T) {
		processor, err := newCSSProcessor([]plugins.Descriptor{registry.ExtractCSS(plugins.FilenameParams{})})
		require.NoError(t, err)

		body := "body {\n  margin: 0;\n}"
		out, target, err := processor.process("index.css", []byte(body+"\n/*# sourceMappingURL=index.css.map */\n"))
		require.NoError(t, err)

		sum := sha256.Sum256([]byte(body))
		require.Equal(t, "css/index."+hex.EncodeToString(sum[:])[:8]+".css", target)
		require.Equal(t, body+"\n/*# sourceMappingURL="+filepath.Base(target)+".map */\n", string(out))
	})

	t.Run("scripts pass through", func(t *testing.T) {
		processor, err := newCSSProcessor([]plugins.Descriptor{registry.OptimizeCSS()})
		require.NoError(t, err)

		out, target, err := processor.process("index.js", []byte("let a = 1"))
		require.NoError(t, err)
		require.Equal(t, "let a = 1", string(out))
		require.Equal(t, "index.js", target)
	})

	t.Run("no descriptors", func(t *testing.T) {
		processor, err := newCSSProcessor(nil)
		require.NoError(t, err)

		out, target, err := processor.process("index.css", []byte("a { color: red; }"))
		require.NoError(t, err)
		require.Equal(t, "a { color: red; }", string(out))
		require.Equal(t, "index.css", target)
	})
}

func TestBuild_Production(t *testing.T) {
	cfg := projectConfig(t, false)
	writeFile(t, cfg.Root, "src/pages/index.js", `
import "./index.css";
debugger;
console.log(process.env.NODE_ENV);
`)
	writeFile(t, cfg.Root, "src/pages/index.css", "body { margin : 0 ; }\n/* layout */\n")

	registry := plugins.New(cfg, plugins.WithNotifier(notify.Nop{}))
	descriptors, err := registry.BuildAll(registry.DefaultKinds()...)
	require.NoError(t, err)

	page := registry.HTML(plugins.HTMLOverrides{
		Title:    ptr("Shop"),
		Filename: ptr("index.html"),
		Chunks:   []string{"index"},
	})
	report := registry.Analyzer(plugins.FilenameParams{Filename: filepath.Join(cfg.Root, ".cache", "report.html")})
	descriptors = append(descriptors, page, report)

	p := New(FromBuildConfig(cfg), zerolog.Nop(), descriptors...)
	require.NoError(t, p.Build(context.Background()))

	out := filepath.Join(cfg.Root, "dist")

	script, err := os.ReadFile(filepath.Join(out, "index.js"))
	require.NoError(t, err)
	assert.Contains(t, string(script), `"production"`)
	assert.NotContains(t, string(script), "debugger")

	styles, err := filepath.Glob(filepath.Join(out, "css", "index.*.css"))
	require.NoError(t, err)
	require.Len(t, styles, 1)
	css, err := os.ReadFile(styles[0])
	require.NoError(t, err)
	assert.NotContains(t, string(css), "layout")

	html, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>Shop</title>")
	assert.Contains(t, string(html), "/index.js")
	assert.Contains(t, string(html), "/css/"+filepath.Base(styles[0]))
	assert.Contains(t, string(html), "module")

	scripts, entry, err := p.LoadScripts("src/pages/index.js")
	require.NoError(t, err)
	assert.Equal(t, "/index.js", entry)
	assert.Equal(t, []string{"/index.js"}, scripts)

	_, err = os.Stat(filepath.Join(out, "meta.json"))
	require.NoError(t, err)

	reportHTML, err := os.ReadFile(filepath.Join(cfg.Root, ".cache", "report.html"))
	require.NoError(t, err)
	assert.Contains(t, string(reportHTML), "index.js")
	assert.Contains(t, string(reportHTML), "src/pages/index.js")
}

func TestRelocateSourceMap(t *testing.T) {
	in := []byte(`{"version":3,"sources":["../src/pages/index.css","/srv/shop/vendor.css"],"mappings":"AAAA"}`)

	out, err := relocateSourceMap(in, ".", "css")
	require.NoError(t, err)

	var sm struct {
		Version  int      `json:"version"`
		Sources  []string `json:"sources"`
		Mappings string   `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(out, &sm))
	assert.Equal(t, 3, sm.Version)
	assert.Equal(t, []string{"../../src/pages/index.css", "/srv/shop/vendor.css"}, sm.Sources)
	assert.Equal(t, "AAAA", sm.Mappings)

	_, err = relocateSourceMap([]byte("not json"), ".", "css")
	require.Error(t, err)
}

func TestBuild_ExtractCSSSourceMap(t *testing.T) {
	cfg := projectConfig(t, true)
	writeFile(t, cfg.Root, "src/pages/index.js", `import "./index.css"`)
	writeFile(t, cfg.Root, "src/pages/index.css", "body { margin: 0; }\n")

	registry := plugins.New(cfg, plugins.WithNotifier(notify.Nop{}))
	p := New(FromBuildConfig(cfg), zerolog.Nop(), registry.ExtractCSS(plugins.FilenameParams{}))
	require.NoError(t, p.Build(context.Background()))

	out := filepath.Join(cfg.Root, "dist")
	styles, err := filepath.Glob(filepath.Join(out, "css", "index.*.css"))
	require.NoError(t, err)
	require.Len(t, styles, 1)

	css, err := os.ReadFile(styles[0])
	require.NoError(t, err)
	assert.Contains(t, string(css), "sourceMappingURL="+filepath.Base(styles[0])+".map")

	raw, err := os.ReadFile(styles[0] + ".map")
	require.NoError(t, err)
	var sm struct {
		Sources []string `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(raw, &sm))
	assert.Equal(t, []string{"../../src/pages/index.css"}, sm.Sources)

	_, err = os.Stat(filepath.Join(out, "index.css.map"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuild_DevelopmentPage(t *testing.T) {
	cfg := projectConfig(t, true)
	cfg.CSS = []string{"/static/reset.css"}
	writeFile(t, cfg.Root, "src/pages/home.js", `console.log(process.env.NODE_ENV)`)
	writeFile(t, cfg.Root, "build/.share/template/default.html",
		"<html><head><title>{{.Title}}</title>{{range .CSS}}<link href=\"{{.}}\">{{end}}</head>\n\n<body>{{range .Scripts}}<script src=\"{{.}}\"></script>{{end}}</body></html>")

	registry := plugins.New(cfg, plugins.WithNotifier(notify.Nop{}))
	descriptors, err := registry.BuildAll(plugins.KindDefine, plugins.KindLoader)
	require.NoError(t, err)
	descriptors = append(descriptors, registry.HTML(plugins.HTMLOverrides{
		Filename: ptr("html/home.html"),
		Chunks:   []string{"home"},
	}))

	p := New(FromBuildConfig(cfg), zerolog.Nop(), descriptors...)
	require.NoError(t, p.Build(context.Background()))

	script, err := os.ReadFile(filepath.Join(cfg.Root, "dist", "home.js"))
	require.NoError(t, err)
	assert.Contains(t, string(script), `"development"`)

	html, err := os.ReadFile(filepath.Join(cfg.Root, "dist", "html", "home.html"))
	require.NoError(t, err)
	// development pages are not minified
	assert.Contains(t, string(html), "</head>\n\n<body>")
	assert.Contains(t, string(html), `<title>fle-cli</title>`)
	assert.Contains(t, string(html), `<link href="/static/reset.css">`)
	assert.Contains(t, string(html), `<script src="/home.js"></script>`)
}

func TestBuild_ErrorsNotify(t *testing.T) {
	cfg := projectConfig(t, true)
	cfg.Notify = true
	writeFile(t, cfg.Root, "src/pages/broken.js", "const = ;\n")

	sent := &notifications{}
	registry := plugins.New(cfg, plugins.WithNotifier(sent.notifier()))

	p := New(FromBuildConfig(cfg), zerolog.Nop(), registry.Define(), registry.FriendlyErrors())
	err := p.Build(context.Background())
	require.ErrorIs(t, err, ErrBuildFailed)

	all := sent.all()
	require.Len(t, all, 1)
	assert.Equal(t, filepath.Base(cfg.Root), all[0].Title)
	assert.Contains(t, all[0].Message, "error: ")
	assert.Equal(t, "src/pages/broken.js", all[0].Subtitle)

	_, err = os.Stat(filepath.Join(cfg.Root, "dist", "broken.js"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuild_NotifyDisabled(t *testing.T) {
	cfg := projectConfig(t, true)
	cfg.Notify = false
	writeFile(t, cfg.Root, "src/pages/broken.js", "const = ;\n")

	sent := &notifications{}
	registry := plugins.New(cfg, plugins.WithNotifier(sent.notifier()))

	p := New(FromBuildConfig(cfg), zerolog.Nop(), registry.FriendlyErrors())
	require.ErrorIs(t, p.Build(context.Background()), ErrBuildFailed)
	require.Empty(t, sent.all())
}

func TestBuild_NoEntryPoints(t *testing.T) {
	cfg := projectConfig(t, false)

	p := New(FromBuildConfig(cfg), zerolog.Nop())
	require.ErrorIs(t, p.Build(context.Background()), ErrNoEntryPoints)
}

func TestLoadScripts_NotBuilt(t *testing.T) {
	p := New(DefaultConfig(), zerolog.Nop())
	_, _, err := p.LoadScripts("src/pages/index.js")
	require.ErrorIs(t, err, ErrNotBuilt)
}

func TestNew_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.WorkingDir = dir

	p := New(cfg, zerolog.Nop())
	assert.Equal(t, filepath.Join(dir, "dist"), p.config.OutputDir)
	assert.Equal(t, filepath.Join(dir, "dist", "meta.json"), p.config.MetafilePath)
	assert.Equal(t, []string{filepath.Join(dir, "src", "pages", "*.js")}, p.config.EntryPoints)
	// the caller's config is left alone
	assert.Equal(t, []string{"src/pages/*.js"}, cfg.EntryPoints)
}

func ptr[T any](v T) *T { return &v }

func TestWatch_Rebuilds(t *testing.T) {
	cfg := projectConfig(t, true)
	writeFile(t, cfg.Root, "src/pages/index.js", `console.log("one")`)

	p := New(FromBuildConfig(cfg), zerolog.Nop())
	require.NoError(t, p.Build(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, filepath.Join(cfg.Root, "src"))
	}()

	source := filepath.Join(cfg.Root, "src", "pages", "index.js")
	output := filepath.Join(cfg.Root, "dist", "index.js")

	// the watcher registers asynchronously so keep touching the source
	require.Eventually(t, func() bool {
		_ = os.WriteFile(source, []byte(`console.log("two")`), 0o600)
		built, err := os.ReadFile(output)
		return err == nil && strings.Contains(string(built), "two")
	}, 10*time.Second, 250*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestIsOutput(t *testing.T) {
	p := New(Config{OutputDir: "/srv/shop/dist", WorkingDir: "/srv/shop"}, zerolog.Nop())

	assert.True(t, p.isOutput("/srv/shop/dist"))
	assert.True(t, p.isOutput("/srv/shop/dist/css/index.css"))
	assert.False(t, p.isOutput("/srv/shop/src/pages/index.js"))
	assert.False(t, p.isOutput("/srv/shop/distribution/index.js"))
}
