package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/flepack/internal/buildconfig"
	"github.com/wolfeidau/flepack/internal/notify"
	"github.com/wolfeidau/flepack/internal/telemetry"
)

var ErrUnknownKind = errors.New("unknown plugin kind")

const dllManifest = "dll/dll-manifest.json"

// Registry builds plugin descriptors from the shared build configuration.
// It holds no mutable state, every factory returns a fresh value and is safe
// to call from multiple goroutines.
type Registry struct {
	cfg      *buildconfig.Config
	notifier notify.Notifier
	logger   zerolog.Logger
}

type Option func(*Registry)

// WithNotifier sets where friendly-errors notifications are delivered.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Registry) {
		r.notifier = n
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates a registry reading from cfg. Without WithNotifier notifications
// go to the desktop.
func New(cfg *buildconfig.Config, opts ...Option) *Registry {
	r := &Registry{
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.notifier == nil {
		r.notifier = notify.NewDesktop(r.logger)
	}
	return r
}

// Define injects the environment detection constant read by application code.
func (r *Registry) Define() *DefineOptions {
	mode, _ := json.Marshal(r.cfg.Mode())

	r.built(KindDefine)
	return &DefineOptions{
		Definitions: map[string]string{
			"process.env.NODE_ENV": string(mode),
		},
	}
}

// Loader shares minimize and debug flags with every loader.
func (r *Registry) Loader() *LoaderOptions {
	r.built(KindLoader)
	return &LoaderOptions{
		Minimize: !r.cfg.Dev,
		Debug:    r.cfg.Dev,
		Options: map[string]string{
			"context": "/",
		},
	}
}

func (r *Registry) Dll() *DllOptions {
	r.built(KindDll)
	return &DllOptions{
		Name: "vendor_[hash]",
		Path: r.cfg.Resolve(filepath.Join(r.cfg.CacheDir, dllManifest)),
	}
}

func (r *Registry) DllReference() *DllReferenceOptions {
	r.built(KindDllReference)
	return &DllReferenceOptions{
		Manifest: r.cfg.Resolve(filepath.Join(r.cfg.CacheDir, dllManifest)),
	}
}

// HMR enables hot module replacement.
func (r *Registry) HMR() *Toggle { return r.toggle(KindHMR) }

// NamedModules prints readable module names in the console.
func (r *Registry) NamedModules() *Toggle { return r.toggle(KindNamedModules) }

// NoErrors skips emitting assets when compilation fails.
func (r *Registry) NoErrors() *Toggle { return r.toggle(KindNoErrors) }

// Hash keys modules by a hash of their path instead of a counter.
func (r *Registry) Hash() *Toggle { return r.toggle(KindHash) }

// Scope enables scope hoisting.
func (r *Registry) Scope() *Toggle { return r.toggle(KindScope) }

// Merge merges chunks aggressively.
func (r *Registry) Merge() *Toggle { return r.toggle(KindMerge) }

func (r *Registry) toggle(kind Kind) *Toggle {
	r.built(kind)
	return &Toggle{Of: kind}
}

func (r *Registry) Uglify() *UglifyOptions {
	r.built(KindUglify)
	return &UglifyOptions{
		Exclude:   `\.min\.js$`,
		Parallel:  true,
		SourceMap: false,
		Compress: UglifyCompress{
			Unused:       true,
			Warnings:     false,
			DropDebugger: true,
		},
		Output: UglifyOutput{
			Comments: false,
		},
	}
}

// CommonsChunk extracts third party dependencies. The base chunk is always
// first, followed by p.Commons.
func (r *Registry) CommonsChunk(p CommonsChunkParams) *CommonsChunkOptions {
	r.built(KindCommonsChunk)
	return &CommonsChunkOptions{
		kind:     KindCommonsChunk,
		Names:    append([]string{"common/_base"}, p.Commons...),
		Filename: orDefault(p.Filename, "[name].[chunkhash:8].js"),
	}
}

// CommonsAsync extracts modules shared by split chunks into an async chunk,
// similar to the vendor chunk.
func (r *Registry) CommonsAsync() *CommonsChunkOptions {
	r.built(KindCommonsAsync)
	return &CommonsChunkOptions{
		kind:      KindCommonsAsync,
		Name:      "app",
		Async:     "vendor-async",
		Children:  true,
		MinChunks: 3,
	}
}

// CommonsManifest moves the runtime and module manifest into their own file
// so the vendor hash does not change whenever application code does.
func (r *Registry) CommonsManifest(p FilenameParams) *CommonsChunkOptions {
	r.built(KindCommonsManifest)
	return &CommonsChunkOptions{
		kind:      KindCommonsManifest,
		Name:      "manifest",
		Filename:  orDefault(p.Filename, "common/manifest.[chunkhash:8].js"),
		MinChunks: MinChunksInfinity,
	}
}

// InlineManifest inlines the manifest into HTML, saving a request.
func (r *Registry) InlineManifest() *InlineManifestOptions {
	r.built(KindInlineManifest)
	return &InlineManifestOptions{Name: "webpackManifest"}
}

func (r *Registry) VConsole() *VConsoleOptions {
	r.built(KindVConsole)
	return &VConsoleOptions{Enable: true}
}

// FriendlyErrors prints where the dev server listens and reports build
// errors through the registry notifier.
func (r *Registry) FriendlyErrors() *FriendlyErrorsOptions {
	r.built(KindFriendlyErrors)

	f := &FriendlyErrorsOptions{
		notifyEnabled: r.cfg.Notify,
		notifier:      r.notifier,
		title:         filepath.Base(r.cfg.Resolve(".")),
		icon:          r.cfg.Resolve(filepath.Join(r.cfg.ShareDir, "images", "logo.png")),
	}
	f.CompilationSuccessInfo.Messages = []string{
		fmt.Sprintf("Listening at http://%s:%d/", r.cfg.Host, r.cfg.Port),
	}
	return f
}

func (r *Registry) ExtractCSS(p FilenameParams) *ExtractCSSOptions {
	r.built(KindExtractCSS)
	return &ExtractCSSOptions{
		AllChunks: true,
		Filename:  orDefault(p.Filename, "css/[name].[contenthash:8].css"),
	}
}

// OptimizeCSS minifies stylesheets once, after extraction, so duplicated
// rules across modules are removed.
func (r *Registry) OptimizeCSS() *OptimizeCSSOptions {
	o := &OptimizeCSSOptions{
		AssetNameRegExp: `(\.module)?\.css$`,
		CanPrint:        true,
	}
	o.CSSProcessorOptions.DiscardComments.RemoveAll = true

	r.built(KindOptimizeCSS)
	return o
}

// Analyzer writes a static dependency report.
func (r *Registry) Analyzer(p FilenameParams) *AnalyzerOptions {
	r.built(KindAnalyzer)
	return &AnalyzerOptions{
		OpenAnalyzer:   true,
		AnalyzerMode:   "static",
		ReportFilename: orDefault(p.Filename, r.cfg.Resolve(filepath.Join(r.cfg.CacheDir, "report.html"))),
	}
}

// HTMLDefaults returns the page defaults that HTML overrides are applied to.
func (r *Registry) HTMLDefaults() HTMLOptions {
	opts := HTMLOptions{
		Title:          "fle-cli",
		Keywords:       "",
		Description:    "",
		Icon:           "",
		CSS:            slices.Clone(r.cfg.CSS),
		PreJS:          slices.Clone(r.cfg.PreJS),
		JS:             slices.Clone(r.cfg.JS),
		Filename:       "html/404.html",
		Template:       r.cfg.Resolve(filepath.Join(r.cfg.ShareDir, "template", "default.html")),
		Inject:         true,
		Chunks:         []string{},
		ChunksSortMode: "dependency",
	}
	if !r.cfg.Dev {
		opts.Minify = productionMinify()
	}
	return opts
}

// HTML generates a page from the defaults with o shallow merged on top.
func (r *Registry) HTML(o HTMLOverrides) *HTMLOptions {
	opts := o.Apply(r.HTMLDefaults())

	r.built(KindHTML)
	return &opts
}

// Kinds lists every supported build concern in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindDefine,
		KindLoader,
		KindDll,
		KindDllReference,
		KindHMR,
		KindNamedModules,
		KindNoErrors,
		KindHash,
		KindScope,
		KindUglify,
		KindMerge,
		KindCommonsChunk,
		KindCommonsAsync,
		KindCommonsManifest,
		KindInlineManifest,
		KindVConsole,
		KindFriendlyErrors,
		KindExtractCSS,
		KindOptimizeCSS,
		KindAnalyzer,
		KindHTML,
	}
}

// Build returns the default descriptor for kind.
func (r *Registry) Build(kind Kind) (Descriptor, error) {
	switch kind {
	case KindDefine:
		return r.Define(), nil
	case KindLoader:
		return r.Loader(), nil
	case KindDll:
		return r.Dll(), nil
	case KindDllReference:
		return r.DllReference(), nil
	case KindHMR:
		return r.HMR(), nil
	case KindNamedModules:
		return r.NamedModules(), nil
	case KindNoErrors:
		return r.NoErrors(), nil
	case KindHash:
		return r.Hash(), nil
	case KindScope:
		return r.Scope(), nil
	case KindUglify:
		return r.Uglify(), nil
	case KindMerge:
		return r.Merge(), nil
	case KindCommonsChunk:
		return r.CommonsChunk(CommonsChunkParams{}), nil
	case KindCommonsAsync:
		return r.CommonsAsync(), nil
	case KindCommonsManifest:
		return r.CommonsManifest(FilenameParams{}), nil
	case KindInlineManifest:
		return r.InlineManifest(), nil
	case KindVConsole:
		return r.VConsole(), nil
	case KindFriendlyErrors:
		return r.FriendlyErrors(), nil
	case KindExtractCSS:
		return r.ExtractCSS(FilenameParams{}), nil
	case KindOptimizeCSS:
		return r.OptimizeCSS(), nil
	case KindAnalyzer:
		return r.Analyzer(FilenameParams{}), nil
	case KindHTML:
		return r.HTML(HTMLOverrides{}), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// BuildAll builds the default descriptor of every kind in order.
func (r *Registry) BuildAll(kinds ...Kind) ([]Descriptor, error) {
	descriptors := make([]Descriptor, 0, len(kinds))
	for _, kind := range kinds {
		d, err := r.Build(kind)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// DefaultKinds returns the plugin set used for a build in the configured mode.
func (r *Registry) DefaultKinds() []Kind {
	if r.cfg.Dev {
		return []Kind{
			KindDefine,
			KindLoader,
			KindHMR,
			KindNamedModules,
			KindNoErrors,
			KindFriendlyErrors,
			KindHTML,
		}
	}
	return []Kind{
		KindDefine,
		KindLoader,
		KindHash,
		KindScope,
		KindUglify,
		KindCommonsChunk,
		KindCommonsManifest,
		KindExtractCSS,
		KindOptimizeCSS,
		KindHTML,
	}
}

func (r *Registry) built(kind Kind) {
	r.logger.Debug().Str("kind", string(kind)).Str("mode", r.cfg.Mode()).Msg("Built plugin descriptor")
	telemetry.GetMetrics().PluginsBuiltTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", string(kind))))
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
