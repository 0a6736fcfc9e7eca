package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"

	"github.com/wolfeidau/flepack/internal/plugins"
)

const defaultHashLength = 20

var sourceMappingURL = regexp.MustCompile(`\n?/\*# sourceMappingURL=\S+ \*/\s*\z`)

// cssProcessor applies the optimize-css and extract-css descriptors to
// emitted stylesheets.
type cssProcessor struct {
	optimize *regexp.Regexp
	minifier *minify.M
	// extract is the filename template for stylesheets, empty keeps esbuild names
	extract string
}

func newCSSProcessor(descriptors []plugins.Descriptor) (*cssProcessor, error) {
	c := &cssProcessor{}

	if o, ok := find[*plugins.OptimizeCSSOptions](descriptors); ok {
		re, err := regexp.Compile(o.AssetNameRegExp)
		if err != nil {
			return nil, fmt.Errorf("invalid css asset pattern %q: %w", o.AssetNameRegExp, err)
		}
		c.optimize = re
		c.minifier = minify.New()
		c.minifier.Add("text/css", &css.Minifier{})
	}

	if e, ok := find[*plugins.ExtractCSSOptions](descriptors); ok {
		c.extract = e.Filename
	}

	return c, nil
}

// process returns the contents to write for the output at rel and the path,
// relative to the output directory, to write them to.
func (c *cssProcessor) process(rel string, contents []byte) ([]byte, string, error) {
	if path.Ext(rel) != ".css" {
		return contents, rel, nil
	}

	if c.optimize != nil && c.optimize.MatchString(rel) {
		minified, err := c.minifier.Bytes("text/css", contents)
		if err != nil {
			return nil, "", err
		}
		contents = minified
	}

	if c.extract == "" {
		return contents, rel, nil
	}

	// the map moves with the stylesheet, so the reference is rewritten after hashing
	stripped := sourceMappingURL.ReplaceAll(contents, nil)
	target := expandFilename(c.extract, strings.TrimSuffix(rel, ".css"), stripped)
	if len(stripped) != len(contents) {
		stripped = append(stripped, "\n/*# sourceMappingURL="+path.Base(target)+".map */\n"...)
	}
	return stripped, target, nil
}

// relocateSourceMap rewrites the relative sources of a source map moved from
// directory from to directory to, both relative to the output directory.
func relocateSourceMap(contents []byte, from, to string) ([]byte, error) {
	var sm map[string]json.RawMessage
	if err := json.Unmarshal(contents, &sm); err != nil {
		return nil, fmt.Errorf("invalid source map: %w", err)
	}

	var sources []string
	if raw, ok := sm["sources"]; ok {
		if err := json.Unmarshal(raw, &sources); err != nil {
			return nil, fmt.Errorf("invalid source map sources: %w", err)
		}
	}

	for i, src := range sources {
		if path.IsAbs(src) || strings.Contains(src, ":") {
			continue
		}
		rel, err := filepath.Rel(filepath.FromSlash(to), filepath.FromSlash(path.Join(from, src)))
		if err != nil {
			continue
		}
		sources[i] = filepath.ToSlash(rel)
	}

	raw, err := json.Marshal(sources)
	if err != nil {
		return nil, err
	}
	sm["sources"] = raw

	return json.Marshal(sm)
}

// expandFilename fills [name] and the fingerprint placeholders of a filename
// template. Hashes are hex sha256 of the final contents.
func expandFilename(template, name string, contents []byte) string {
	sum := sha256.Sum256(contents)
	digest := hex.EncodeToString(sum[:])

	out := strings.ReplaceAll(template, "[name]", name)
	return hashPlaceholder.ReplaceAllStringFunc(out, func(match string) string {
		n := defaultHashLength
		if sub := hashPlaceholder.FindStringSubmatch(match); sub[1] != "" {
			if v, err := strconv.Atoi(sub[1]); err == nil && v > 0 && v <= len(digest) {
				n = v
			}
		}
		return digest[:n]
	})
}
