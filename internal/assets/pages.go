package assets

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"

	"github.com/wolfeidau/flepack/internal/plugins"
	"github.com/wolfeidau/flepack/internal/telemetry"
)

//go:embed templates/*.html
var templates embed.FS

var scriptMediaType = regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$")

type pageData struct {
	Title       string
	Keywords    string
	Description string
	Icon        string
	CSS         []string
	PreJS       []string
	JS          []string
	// Scripts are the bundled chunks injected into the page
	Scripts []string
	Module  bool
}

func (p *Pipeline) renderPage(ctx context.Context, page *plugins.HTMLOptions) error {
	tmpl, err := p.loadTemplate(page.Template)
	if err != nil {
		return err
	}

	data := pageData{
		Title:       page.Title,
		Keywords:    page.Keywords,
		Description: page.Description,
		Icon:        page.Icon,
		CSS:         slices.Clone(page.CSS),
		PreJS:       slices.Clone(page.PreJS),
		JS:          slices.Clone(page.JS),
	}

	if page.Inject {
		data.Module = slices.ContainsFunc(findAll[*plugins.CommonsChunkOptions](p.descriptors), splitsChunks)
		for _, chunk := range page.Chunks {
			scripts, styles, err := p.chunkAssets(chunk, page.ChunksSortMode)
			if err != nil {
				return err
			}
			data.Scripts = append(data.Scripts, scripts...)
			data.CSS = append(data.CSS, styles...)
		}
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, data); err != nil {
		return err
	}

	out := buf.Bytes()
	if page.Minify != nil {
		out, err = htmlMinifier(page.Minify).Bytes("text/html", out)
		if err != nil {
			return err
		}
	}

	dest := filepath.Join(p.config.OutputDir, filepath.FromSlash(page.Filename))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dest, out, 0o644); err != nil { //nolint:gosec
		return err
	}

	telemetry.GetMetrics().PagesRenderedTotal.Add(ctx, 1)
	p.logger.Info().Str("file", dest).Str("title", page.Title).Strs("chunks", page.Chunks).Msg("Generated page")
	return nil
}

// chunkAssets returns the script and stylesheet URLs of a named entry chunk.
// The chunk name is the entry output path without extension, relative to the
// output directory.
func (p *Pipeline) chunkAssets(chunk, sortMode string) ([]string, []string, error) {
	for outputPath, info := range p.metadata.Outputs {
		if info.EntryPoint == "" || path.Ext(outputPath) != ".js" {
			continue
		}
		if strings.TrimSuffix(p.outputRel(outputPath), ".js") != chunk {
			continue
		}

		scripts := p.scripts(outputPath, info)
		if sortMode == "dependency" {
			slices.Reverse(scripts)
		}

		var styles []string
		if info.CSSBundle != "" {
			styles = append(styles, p.url(info.CSSBundle))
		}
		return scripts, styles, nil
	}

	return nil, nil, errors.New("chunk not found in metadata: " + chunk)
}

// loadTemplate parses the page template, falling back to the built in
// default page when the file does not exist.
func (p *Pipeline) loadTemplate(name string) (*template.Template, error) {
	funcs := template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
	}

	if name != "" {
		tmpl, err := template.New(filepath.Base(name)).Funcs(funcs).ParseFiles(name)
		if err == nil {
			return tmpl, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		p.logger.Debug().Str("template", name).Msg("Page template not found, using built in default")
	}

	return template.New("default.html").Funcs(funcs).ParseFS(templates, "templates/default.html")
}

func htmlMinifier(o *plugins.HTMLMinify) *minify.M {
	m := minify.New()
	m.Add("text/html", &html.Minifier{
		KeepComments:        !o.RemoveComments,
		KeepWhitespace:      !o.CollapseWhitespace,
		KeepDefaultAttrVals: !o.RemoveRedundantAttributes,
		KeepDocumentTags:    true,
		KeepEndTags:         true,
	})
	if o.MinifyCSS {
		m.AddFunc("text/css", css.Minify)
	}
	if o.MinifyJS {
		m.AddFuncRegexp(scriptMediaType, js.Minify)
	}
	return m
}

func marshal(value any) (string, error) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(value); err != nil {
		return "", errors.New("context can only be json serializable")
	}
	return buf.String(), nil
}
