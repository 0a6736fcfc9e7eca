package assets

import (
	"path"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/flepack/internal/plugins"
)

// webpack style fingerprint placeholders, optionally truncated ("[chunkhash:8]")
var hashPlaceholder = regexp.MustCompile(`\[(?:chunkhash|contenthash|hash)(?::(\d+))?\]`)

// Options maps the pipeline descriptors onto esbuild build options.
func (p *Pipeline) Options(entryPoints []string) api.BuildOptions {
	opts := api.BuildOptions{
		EntryPoints:   entryPoints,
		Bundle:        true,
		Write:         false,
		Outdir:        p.config.OutputDir,
		AbsWorkingDir: p.config.WorkingDir,
		Format:        api.FormatIIFE,
		EntryNames:    "[dir]/[name]",
		TreeShaking:   api.TreeShakingTrue,
		Sourcemap:     cond(p.config.SourceMap, api.SourceMapLinked, api.SourceMapNone),
		Metafile:      true,
		LogLevel:      api.LogLevelSilent,
		Define:        map[string]string{},
	}

	for _, d := range p.descriptors {
		switch v := d.(type) {
		case *plugins.DefineOptions:
			for k, val := range v.Definitions {
				opts.Define[k] = val
			}
		case *plugins.LoaderOptions:
			if v.Minimize {
				opts.MinifyWhitespace = true
			}
		case *plugins.UglifyOptions:
			opts.MinifyWhitespace = true
			opts.MinifyIdentifiers = true
			opts.MinifySyntax = true
			if v.Compress.DropDebugger {
				opts.Drop |= api.DropDebugger
			}
			if !v.Output.Comments {
				opts.LegalComments = api.LegalCommentsNone
			}
			if !v.SourceMap {
				opts.Sourcemap = api.SourceMapNone
			}
		case *plugins.CommonsChunkOptions:
			if !splitsChunks(v) {
				p.logger.Debug().Str("kind", string(d.Kind())).Msg("Plugin has no esbuild equivalent, skipping")
				continue
			}
			// code splitting in esbuild requires ES modules
			opts.Splitting = true
			opts.Format = api.FormatESModule
			if v.Kind() == plugins.KindCommonsChunk && v.Filename != "" {
				opts.ChunkNames = nameTemplate(v.Filename)
			}
		case *plugins.FriendlyErrorsOptions:
			opts.Plugins = append(opts.Plugins, friendlyErrorsPlugin(v, p.logger))
		default:
			if !handledAfterBuild(d) {
				p.logger.Debug().Str("kind", string(d.Kind())).Msg("Plugin has no esbuild equivalent, skipping")
			}
		}
	}

	return opts
}

// splitsChunks reports whether a commons descriptor turns on code splitting.
// The runtime manifest has no esbuild counterpart.
func splitsChunks(c *plugins.CommonsChunkOptions) bool {
	return c.Kind() != plugins.KindCommonsManifest
}

func handledAfterBuild(d plugins.Descriptor) bool {
	switch d.(type) {
	case *plugins.ExtractCSSOptions, *plugins.OptimizeCSSOptions, *plugins.HTMLOptions, *plugins.AnalyzerOptions:
		return true
	}
	return false
}

// nameTemplate converts a webpack filename template into an esbuild name
// template: fingerprint placeholders become [hash] and the extension is
// dropped because esbuild appends it.
func nameTemplate(filename string) string {
	name := hashPlaceholder.ReplaceAllString(filename, "[hash]")
	if ext := path.Ext(name); ext == ".js" || ext == ".css" || ext == ".mjs" {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// friendlyErrorsPlugin reports problems of each build to the friendly errors
// handler and prints the success messages when there are none.
func friendlyErrorsPlugin(f *plugins.FriendlyErrorsOptions, logger zerolog.Logger) api.Plugin {
	return api.Plugin{
		Name: "friendly-errors",
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				switch {
				case len(result.Errors) > 0:
					f.OnErrors(plugins.SeverityError, compileErrors(result.Errors))
				case len(result.Warnings) > 0:
					f.OnErrors(plugins.SeverityWarning, compileErrors(result.Warnings))
				default:
					for _, msg := range f.CompilationSuccessInfo.Messages {
						logger.Info().Msg(msg)
					}
				}
				return api.OnEndResult{}, nil
			})
		},
	}
}

func compileErrors(messages []api.Message) []plugins.CompileError {
	errs := make([]plugins.CompileError, 0, len(messages))
	for _, msg := range messages {
		ce := plugins.CompileError{
			Name:    messageName(msg),
			Message: msg.Text,
		}
		if msg.Location != nil {
			ce.File = msg.Location.File
			if msg.Location.Namespace != "" && msg.Location.Namespace != "file" {
				ce.File = msg.Location.Namespace + "!" + ce.File
			}
		}
		errs = append(errs, ce)
	}
	return errs
}

func messageName(msg api.Message) string {
	if msg.PluginName != "" {
		return msg.PluginName + "Error"
	}
	if msg.ID != "" {
		return msg.ID
	}
	return "BuildError"
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
