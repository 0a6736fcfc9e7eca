package plugins

// HTMLMinify lists the minifier switches applied to generated pages.
type HTMLMinify struct {
	RemoveComments                bool `yaml:"remove_comments"`
	CollapseWhitespace            bool `yaml:"collapse_whitespace"`
	RemoveRedundantAttributes     bool `yaml:"remove_redundant_attributes"`
	UseShortDoctype               bool `yaml:"use_short_doctype"`
	RemoveEmptyAttributes         bool `yaml:"remove_empty_attributes"`
	RemoveStyleLinkTypeAttributes bool `yaml:"remove_style_link_type_attributes"`
	KeepClosingSlash              bool `yaml:"keep_closing_slash"`
	MinifyJS                      bool `yaml:"minify_js"`
	MinifyCSS                     bool `yaml:"minify_css"`
	MinifyURLs                    bool `yaml:"minify_urls"`
}

func productionMinify() *HTMLMinify {
	return &HTMLMinify{
		RemoveComments:                true,
		CollapseWhitespace:            true,
		RemoveRedundantAttributes:     true,
		UseShortDoctype:               true,
		RemoveEmptyAttributes:         true,
		RemoveStyleLinkTypeAttributes: true,
		KeepClosingSlash:              true,
		MinifyJS:                      true,
		MinifyCSS:                     true,
		MinifyURLs:                    true,
	}
}

// HTMLOptions generates one HTML page.
type HTMLOptions struct {
	Title          string   `yaml:"title"`
	Keywords       string   `yaml:"keywords"`
	Description    string   `yaml:"description"`
	Icon           string   `yaml:"icon"`
	CSS            []string `yaml:"css"`
	PreJS          []string `yaml:"prejs"`
	JS             []string `yaml:"js"`
	Filename       string   `yaml:"filename"`
	Template       string   `yaml:"template"`
	Inject         bool     `yaml:"inject"`
	Chunks         []string `yaml:"chunks"`
	ChunksSortMode string   `yaml:"chunks_sort_mode"`
	// Minify is nil when generated HTML is left as is
	Minify *HTMLMinify `yaml:"minify"`
}

func (*HTMLOptions) Kind() Kind { return KindHTML }

// HTMLOverrides are caller supplied replacements for HTMLOptions fields.
// A nil field keeps the default. A set field replaces the default value as a
// whole, slices and the minify record included; nested values are never
// merged.
type HTMLOverrides struct {
	Title          *string
	Keywords       *string
	Description    *string
	Icon           *string
	CSS            []string
	PreJS          []string
	JS             []string
	Filename       *string
	Template       *string
	Inject         *bool
	Chunks         []string
	ChunksSortMode *string

	minify    *HTMLMinify
	minifySet bool
}

// SetMinify replaces the default minify record. Passing nil turns HTML
// minification off even in production.
func (o HTMLOverrides) SetMinify(m *HTMLMinify) HTMLOverrides {
	o.minify = m
	o.minifySet = true
	return o
}

// Apply returns base with every set override copied over it.
//
//	Title, Keywords, Description, Icon   replaced when non-nil
//	CSS, PreJS, JS, Chunks               replaced when non-nil (an empty slice clears)
//	Filename, Template, ChunksSortMode   replaced when non-nil
//	Inject                               replaced when non-nil
//	Minify                               replaced when SetMinify was called
func (o HTMLOverrides) Apply(base HTMLOptions) HTMLOptions {
	out := base

	if o.Title != nil {
		out.Title = *o.Title
	}
	if o.Keywords != nil {
		out.Keywords = *o.Keywords
	}
	if o.Description != nil {
		out.Description = *o.Description
	}
	if o.Icon != nil {
		out.Icon = *o.Icon
	}
	if o.CSS != nil {
		out.CSS = o.CSS
	}
	if o.PreJS != nil {
		out.PreJS = o.PreJS
	}
	if o.JS != nil {
		out.JS = o.JS
	}
	if o.Filename != nil {
		out.Filename = *o.Filename
	}
	if o.Template != nil {
		out.Template = *o.Template
	}
	if o.Inject != nil {
		out.Inject = *o.Inject
	}
	if o.Chunks != nil {
		out.Chunks = o.Chunks
	}
	if o.ChunksSortMode != nil {
		out.ChunksSortMode = *o.ChunksSortMode
	}
	if o.minifySet {
		out.Minify = o.minify
	}

	return out
}
