package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfeidau/flepack/internal/plugins"
	"github.com/wolfeidau/flepack/internal/telemetry"
)

var (
	ErrNoEntryPoints = errors.New("no entry points found")
	ErrBuildFailed   = errors.New("esbuild failed with errors")
	ErrNotBuilt      = errors.New("assets not built yet, call Build() first")
)

// Build runs esbuild with the configured settings, writes the outputs and
// runs the post build steps requested by the descriptors.
func (p *Pipeline) Build(ctx context.Context) error {
	ctx, span := telemetry.Tracer().Start(ctx, "assets.Build")
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	metrics := telemetry.GetMetrics()
	metrics.BuildsTotal.Add(ctx, 1)

	entryPoints, err := p.entryPoints()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	p.logger.Info().Strs("entrypoints", entryPoints).Int("plugins", len(p.descriptors)).Msg("Building assets")

	started := time.Now()
	result := api.Build(p.Options(entryPoints))
	metrics.BuildDuration.Record(ctx, float64(time.Since(started).Milliseconds()))

	for _, msg := range result.Warnings {
		p.logger.Warn().Str("warning", msg.Text).Str("file", messageFile(msg)).Msg("Build warning")
	}
	metrics.BuildWarningsTotal.Add(ctx, int64(len(result.Warnings)))

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			p.logger.Error().Str("error", msg.Text).Str("file", messageFile(msg)).Msg("Build error")
		}
		metrics.BuildErrorsTotal.Add(ctx, int64(len(result.Errors)))
		span.SetStatus(codes.Error, ErrBuildFailed.Error())
		return ErrBuildFailed
	}

	if err := p.writeOutputs(ctx, result.OutputFiles); err != nil {
		return fmt.Errorf("failed to write outputs: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.config.MetafilePath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(p.config.MetafilePath, []byte(result.Metafile), 0600); err != nil {
		return err
	}

	// Parse and cache metadata
	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return err
	}
	p.metadata = &metadata

	for _, page := range findAll[*plugins.HTMLOptions](p.descriptors) {
		if err := p.renderPage(ctx, page); err != nil {
			return fmt.Errorf("failed to render %s: %w", page.Filename, err)
		}
	}

	if analyzer, ok := find[*plugins.AnalyzerOptions](p.descriptors); ok {
		if err := p.writeReport(analyzer); err != nil {
			return fmt.Errorf("failed to write bundle report: %w", err)
		}
	}

	span.SetAttributes(attribute.Int("outputs", len(result.OutputFiles)))
	return nil
}

func (p *Pipeline) entryPoints() ([]string, error) {
	var entryPoints []string
	for _, pattern := range p.config.EntryPoints {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		entryPoints = append(entryPoints, matches...)
	}

	if len(entryPoints) == 0 {
		return nil, ErrNoEntryPoints
	}

	slices.Sort(entryPoints)
	return slices.Compact(entryPoints), nil
}

func (p *Pipeline) writeOutputs(ctx context.Context, files []api.OutputFile) error {
	processor, err := newCSSProcessor(p.descriptors)
	if err != nil {
		return err
	}

	p.renamed = map[string]string{}

	// stylesheet maps are written once their stylesheet has its final name
	var cssMaps []api.OutputFile
	for _, file := range files {
		rel, err := p.relOutput(file.Path)
		if err != nil {
			return err
		}
		if strings.HasSuffix(rel, ".css.map") {
			cssMaps = append(cssMaps, file)
			continue
		}

		contents, target, err := processor.process(rel, file.Contents)
		if err != nil {
			return fmt.Errorf("failed to process %s: %w", rel, err)
		}
		if target != rel {
			p.renamed[rel] = target
		}
		if err := p.writeOutput(ctx, target, contents); err != nil {
			return err
		}
	}

	for _, file := range cssMaps {
		rel, err := p.relOutput(file.Path)
		if err != nil {
			return err
		}

		contents, target := file.Contents, rel
		if renamed, ok := p.renamed[strings.TrimSuffix(rel, ".map")]; ok {
			target = renamed + ".map"
			contents, err = relocateSourceMap(contents, path.Dir(rel), path.Dir(target))
			if err != nil {
				return fmt.Errorf("failed to process %s: %w", rel, err)
			}
			p.renamed[rel] = target
		}
		if err := p.writeOutput(ctx, target, contents); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) relOutput(file string) (string, error) {
	rel, err := filepath.Rel(p.config.OutputDir, file)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func (p *Pipeline) writeOutput(ctx context.Context, target string, contents []byte) error {
	dest := filepath.Join(p.config.OutputDir, filepath.FromSlash(target))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dest, contents, 0o644); err != nil { //nolint:gosec
		return err
	}

	metrics := telemetry.GetMetrics()
	metrics.OutputFilesTotal.Add(ctx, 1)
	metrics.OutputBytesTotal.Add(ctx, int64(len(contents)))
	p.logger.Info().Str("file", dest).Int("bytes", len(contents)).Msg("Built file")
	return nil
}

// LoadScripts returns the ordered list of script paths needed for the given entrypoint
// and the main entrypoint file path
func (p *Pipeline) LoadScripts(entryPointPath string) ([]string, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil, "", ErrNotBuilt
	}

	for outputPath, info := range p.metadata.Outputs {
		if info.EntryPoint == entryPointPath {
			scripts := p.scripts(outputPath, info)
			return scripts, scripts[0], nil
		}
	}

	return nil, "", errors.New("entrypoint not found in metadata")
}

// scripts lists the URL of an entry output followed by its chunk imports.
func (p *Pipeline) scripts(outputPath string, info OutputInfo) []string {
	visited := map[string]bool{outputPath: true}
	scripts := []string{p.url(outputPath)}
	p.addDependencies(info, &scripts, visited)
	return scripts
}

func (p *Pipeline) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.Kind == "dynamic-import" || visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, p.url(imp.Path))

		if chunkInfo, exists := p.metadata.Outputs[imp.Path]; exists {
			p.addDependencies(chunkInfo, scripts, visited)
		}
	}
}

// url maps a metafile output path, relative to the working directory, to
// the URL it is served at from the output directory.
func (p *Pipeline) url(outputPath string) string {
	rel := p.outputRel(outputPath)
	if renamed, ok := p.renamed[rel]; ok {
		rel = renamed
	}
	return "/" + rel
}

func (p *Pipeline) outputRel(outputPath string) string {
	abs := filepath.FromSlash(outputPath)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(p.config.WorkingDir, abs)
	}
	rel, err := filepath.Rel(p.config.OutputDir, abs)
	if err != nil {
		return filepath.ToSlash(outputPath)
	}
	return filepath.ToSlash(rel)
}

func messageFile(msg api.Message) string {
	if msg.Location == nil {
		return ""
	}
	return msg.Location.File
}
