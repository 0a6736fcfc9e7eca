package assets

import (
	"bytes"
	"cmp"
	"html/template"
	"os"
	"path/filepath"
	"slices"

	"github.com/wolfeidau/flepack/internal/plugins"
)

type reportInput struct {
	Path  string
	Bytes int
}

type reportOutput struct {
	Path       string
	EntryPoint string
	Bytes      int
	Inputs     []reportInput
}

type reportData struct {
	Title      string
	TotalBytes int
	Outputs    []reportOutput
}

// writeReport renders a static dependency report from the build metadata.
func (p *Pipeline) writeReport(opts *plugins.AnalyzerOptions) error {
	if opts.AnalyzerMode == "disabled" {
		return nil
	}
	if opts.AnalyzerMode != "static" {
		p.logger.Warn().Str("mode", opts.AnalyzerMode).Msg("Only static bundle reports are supported, writing a static report")
	}

	data := p.reportData()

	tmpl, err := template.ParseFS(templates, "templates/report.html")
	if err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, data); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(opts.ReportFilename), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(opts.ReportFilename, buf.Bytes(), 0600); err != nil {
		return err
	}

	event := p.logger.Info().Str("report", opts.ReportFilename).Int("outputs", len(data.Outputs))
	if opts.OpenAnalyzer {
		event = event.Str("open", "file://"+filepath.ToSlash(opts.ReportFilename))
	}
	event.Msg("Wrote bundle report")
	return nil
}

func (p *Pipeline) reportData() reportData {
	data := reportData{Title: "Bundle report"}

	for outputPath, info := range p.metadata.Outputs {
		out := reportOutput{
			Path:       p.outputRel(outputPath),
			EntryPoint: info.EntryPoint,
			Bytes:      info.Bytes,
		}
		for inputPath, input := range info.Inputs {
			out.Inputs = append(out.Inputs, reportInput{Path: inputPath, Bytes: input.BytesInOutput})
		}
		// largest contributors first
		slices.SortFunc(out.Inputs, func(a, b reportInput) int {
			return cmp.Or(cmp.Compare(b.Bytes, a.Bytes), cmp.Compare(a.Path, b.Path))
		})

		data.TotalBytes += info.Bytes
		data.Outputs = append(data.Outputs, out)
	}

	slices.SortFunc(data.Outputs, func(a, b reportOutput) int {
		return cmp.Compare(a.Path, b.Path)
	})

	return data
}
