package plugins

// Kind names a build concern. Each kind has exactly one factory on Registry.
type Kind string

const (
	KindDefine          Kind = "define"
	KindLoader          Kind = "loader"
	KindDll             Kind = "dll"
	KindDllReference    Kind = "dll-reference"
	KindHMR             Kind = "hmr"
	KindNamedModules    Kind = "named-modules"
	KindNoErrors        Kind = "no-errors"
	KindHash            Kind = "hash"
	KindScope           Kind = "scope"
	KindUglify          Kind = "uglify"
	KindMerge           Kind = "merge"
	KindCommonsChunk    Kind = "commons-chunk"
	KindCommonsAsync    Kind = "commons-async"
	KindCommonsManifest Kind = "commons-manifest"
	KindInlineManifest  Kind = "inline-manifest"
	KindVConsole        Kind = "vconsole"
	KindFriendlyErrors  Kind = "friendly-errors"
	KindExtractCSS      Kind = "extract-css"
	KindOptimizeCSS     Kind = "optimize-css"
	KindAnalyzer        Kind = "analyzer"
	KindHTML            Kind = "html"
)

// Descriptor is a fully configured plugin handed to the bundler. The
// registry only builds these values, the bundler decides what they mean.
type Descriptor interface {
	Kind() Kind
}

// DefineOptions replaces free identifiers in application code with constant
// expressions. Values are JSON source text.
type DefineOptions struct {
	Definitions map[string]string `yaml:"definitions"`
}

func (*DefineOptions) Kind() Kind { return KindDefine }

// LoaderOptions carries options shared by all loaders.
type LoaderOptions struct {
	Minimize bool              `yaml:"minimize"`
	Debug    bool              `yaml:"debug"`
	Options  map[string]string `yaml:"options"`
}

func (*LoaderOptions) Kind() Kind { return KindLoader }

// DllOptions emits a vendor dll together with its manifest.
type DllOptions struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

func (*DllOptions) Kind() Kind { return KindDll }

// DllReferenceOptions maps imports onto a previously built dll.
type DllReferenceOptions struct {
	Manifest string `yaml:"manifest"`
}

func (*DllReferenceOptions) Kind() Kind { return KindDllReference }

// Toggle is a descriptor for plugins that take no options at all.
type Toggle struct {
	Of Kind `yaml:"kind"`
}

func (t *Toggle) Kind() Kind { return t.Of }

// UglifyCompress holds the compressor switches of the code minifier.
type UglifyCompress struct {
	Unused       bool `yaml:"unused"`
	Warnings     bool `yaml:"warnings"`
	DropDebugger bool `yaml:"drop_debugger"`
}

// UglifyOutput holds the printer switches of the code minifier.
type UglifyOutput struct {
	Comments bool `yaml:"comments"`
}

// UglifyOptions minifies emitted code.
type UglifyOptions struct {
	// Files matching this pattern are left untouched
	Exclude   string         `yaml:"exclude"`
	Parallel  bool           `yaml:"parallel"`
	SourceMap bool           `yaml:"source_map"`
	Compress  UglifyCompress `yaml:"compress"`
	Output    UglifyOutput   `yaml:"output"`
}

func (*UglifyOptions) Kind() Kind { return KindUglify }

// MinChunksInfinity keeps every module out of a chunk; only the runtime is
// moved into it.
const MinChunksInfinity = -1

// CommonsChunkOptions extracts shared modules into separate chunks.
type CommonsChunkOptions struct {
	// kind distinguishes the three commons factories
	kind Kind

	Names     []string `yaml:"names,omitempty"`
	Name      string   `yaml:"name,omitempty"`
	Filename  string   `yaml:"filename,omitempty"`
	Async     string   `yaml:"async,omitempty"`
	Children  bool     `yaml:"children,omitempty"`
	MinChunks int      `yaml:"min_chunks,omitempty"`
}

func (c *CommonsChunkOptions) Kind() Kind { return c.kind }

// InlineManifestOptions inlines the runtime manifest into generated HTML.
type InlineManifestOptions struct {
	Name string `yaml:"name"`
}

func (*InlineManifestOptions) Kind() Kind { return KindInlineManifest }

// VConsoleOptions injects the in-page debugging console.
type VConsoleOptions struct {
	Enable bool `yaml:"enable"`
}

func (*VConsoleOptions) Kind() Kind { return KindVConsole }

// ExtractCSSOptions moves styles out of scripts into standalone files.
type ExtractCSSOptions struct {
	AllChunks bool   `yaml:"all_chunks"`
	Filename  string `yaml:"filename"`
}

func (*ExtractCSSOptions) Kind() Kind { return KindExtractCSS }

// CSSProcessorOptions configures the CSS optimizer.
type CSSProcessorOptions struct {
	DiscardComments struct {
		RemoveAll bool `yaml:"remove_all"`
	} `yaml:"discard_comments"`
}

// OptimizeCSSOptions minifies emitted stylesheets.
type OptimizeCSSOptions struct {
	AssetNameRegExp     string              `yaml:"asset_name_regexp"`
	CSSProcessorOptions CSSProcessorOptions `yaml:"css_processor_options"`
	CanPrint            bool                `yaml:"can_print"`
}

func (*OptimizeCSSOptions) Kind() Kind { return KindOptimizeCSS }

// AnalyzerOptions writes a report of bundle contents.
type AnalyzerOptions struct {
	OpenAnalyzer   bool   `yaml:"open_analyzer"`
	AnalyzerMode   string `yaml:"analyzer_mode"`
	ReportFilename string `yaml:"report_filename"`
}

func (*AnalyzerOptions) Kind() Kind { return KindAnalyzer }

// CommonsChunkParams are the caller overrides accepted by Registry.CommonsChunk.
type CommonsChunkParams struct {
	Filename string
	Commons  []string
}

// FilenameParams are the caller overrides accepted by factories whose only
// tunable is the output filename.
type FilenameParams struct {
	Filename string
}
