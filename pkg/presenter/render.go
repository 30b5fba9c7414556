package presenter

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format selects how command results are written.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a --format value. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", errors.Errorf("unsupported output format %q (want table, json or yaml)", s)
	}
}

// Render writes v as JSON or YAML.
func Render(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "failed to encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "failed to encode yaml")
		}
		return errors.Wrap(enc.Close(), "failed to encode yaml")
	default:
		return errors.Errorf("format %q is not a structured format", format)
	}
}

// Filter matches names against a case-insensitive glob. The zero value
// matches everything.
type Filter struct {
	g glob.Glob
}

// NewFilter compiles pattern. A pattern without glob metacharacters matches
// as a substring.
func NewFilter(pattern string) (*Filter, error) {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return &Filter{}, nil
	}
	if !strings.ContainsAny(pattern, "*?[{") {
		pattern = "*" + pattern + "*"
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid filter %q", pattern)
	}
	return &Filter{g: g}, nil
}

// Match reports whether any of values matches.
func (f *Filter) Match(values ...string) bool {
	if f == nil || f.g == nil {
		return true
	}
	for _, v := range values {
		if f.g.Match(strings.ToLower(v)) {
			return true
		}
	}
	return false
}
