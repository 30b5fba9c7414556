// Package preview renders SKILL.md files for display.
package preview

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Document is a rendered SKILL.md.
type Document struct {
	Path        string         `json:"path" yaml:"path"`
	FrontMatter map[string]any `json:"frontMatter,omitempty" yaml:"frontMatter,omitempty"`
	Body        string         `json:"body" yaml:"body"`
	HTML        string         `json:"html" yaml:"html"`
}

// Name returns the front matter name, if any.
func (d *Document) Name() string {
	s, _ := d.FrontMatter["name"].(string)
	return s
}

// Description returns the front matter description, if any.
func (d *Document) Description() string {
	s, _ := d.FrontMatter["description"].(string)
	return s
}

// FrontMatterKeys returns the front matter keys in sorted order.
func (d *Document) FrontMatterKeys() []string {
	keys := make([]string, 0, len(d.FrontMatter))
	for k := range d.FrontMatter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(meta.Meta, extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
}

// Render converts SKILL.md content to HTML. Front matter is extracted and
// kept out of the rendered body.
func Render(content []byte) (*Document, error) {
	md := newMarkdown()

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to render markdown")
	}

	fm, err := meta.TryGet(pctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse front matter")
	}

	return &Document{
		FrontMatter: normalize(fm),
		Body:        stripFrontMatter(string(content)),
		HTML:        buf.String(),
	}, nil
}

// RenderFile renders the SKILL.md at path.
func RenderFile(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}
	doc, err := Render(content)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to render %s", path)
	}
	doc.Path = path
	return doc, nil
}

// Page wraps rendered HTML in a minimal standalone document.
func Page(doc *Document) string {
	title := doc.Name()
	if title == "" {
		title = "SKILL.md"
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body>\n")
	if desc := doc.Description(); desc != "" {
		fmt.Fprintf(&b, "<p><em>%s</em></p>\n", html.EscapeString(desc))
	}
	b.WriteString(doc.HTML)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// normalize turns the map[any]any values yaml decoding can produce into
// map[string]any so documents marshal as JSON.
func normalize(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeValue(val)
		}
		return m
	case map[string]any:
		return normalize(t)
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}

func stripFrontMatter(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, "---\n") {
		return content
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end == -1 {
		return content
	}
	body := rest[end+len("\n---"):]
	if i := strings.IndexByte(body, '\n'); i != -1 {
		body = body[i+1:]
	} else {
		body = ""
	}
	return strings.TrimLeft(body, "\n")
}
