package content

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	jsoniter "github.com/json-iterator/go"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

// Parser turns the bytes of one content file into maps, lists and scalars.
type Parser interface {
	// CanParse reports whether the parser handles files with this path.
	CanParse(path string) bool
	Parse(data []byte) (any, error)
}

// Parsers is the default parser list. The first parser whose CanParse
// accepts a path is used.
var Parsers = []Parser{
	JSONParser{},
	YAMLParser{},
	TOMLParser{},
	MarkdownParser{},
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// JSONParser reads .json files.
type JSONParser struct{}

func (JSONParser) CanParse(path string) bool { return hasExt(path, ".json") }

func (JSONParser) Parse(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// YAMLParser reads .yaml and .yml files.
type YAMLParser struct{}

func (YAMLParser) CanParse(path string) bool { return hasExt(path, ".yaml", ".yml") }

func (YAMLParser) Parse(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// TOMLParser reads .toml files.
type TOMLParser struct{}

func (TOMLParser) CanParse(path string) bool { return hasExt(path, ".toml") }

func (TOMLParser) Parse(data []byte) (any, error) {
	v := map[string]any{}
	if err := toml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// MarkdownParser reads .md and .markdown files. YAML frontmatter between
// "---" lines becomes the record; the trimmed text after it is stored under
// "body" and its rendered HTML under "html".
type MarkdownParser struct{}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

func (MarkdownParser) CanParse(path string) bool { return hasExt(path, ".md", ".markdown") }

func (MarkdownParser) Parse(data []byte) (any, error) {
	front, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	record := map[string]any{}
	if len(front) > 0 {
		if err := yaml.Unmarshal(front, &record); err != nil {
			return nil, fmt.Errorf("frontmatter: %w", err)
		}
		if record == nil {
			record = map[string]any{}
		}
	}
	body = bytes.TrimSpace(body)
	var buf bytes.Buffer
	if err := markdown.Convert(body, &buf); err != nil {
		return nil, err
	}
	record["body"] = string(body)
	record["html"] = buf.String()
	return record, nil
}

// splitFrontmatter returns the YAML between an opening "---" line and the
// next "---" line, and everything after it. Without both delimiters the
// whole input is body.
func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	text := string(data)
	if !strings.HasPrefix(text, "---\n") && !strings.HasPrefix(text, "---\r\n") {
		return nil, data, nil
	}
	lines := strings.SplitAfter(text, "\n")
	offset := len(lines[0])
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "---" {
			front := text[len(lines[0]):offset]
			return []byte(front), []byte(text[offset+len(line):]), nil
		}
		offset += len(line)
	}
	return nil, data, nil
}

// parseFile picks the first parser in list that accepts path.
func parseFile(list []Parser, path string, data []byte) (any, error) {
	for _, p := range list {
		if p.CanParse(path) {
			v, err := p.Parse(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w '%s' in %s (supported: .json, .yaml, .yml, .toml, .md, .markdown)",
		ErrUnsupported, filepath.Ext(path), filepath.Base(path))
}
