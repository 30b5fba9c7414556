// Package manifest extracts the name, description and metadata of a skill
// from the front matter of its SKILL.md.
//
// The extractor is line oriented and intentionally small: only `name:`,
// `description:` and a one level `metadata:` block are understood. Anything
// else in the header is skipped without error.
package manifest

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

const delimiter = "---"

// ErrNotManifest is returned by ParseFile for content without a header block
// or without a name.
var ErrNotManifest = errors.New("not a skill manifest")

// Manifest holds the fields read from a SKILL.md header.
type Manifest struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Metadata    Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Parse extracts a manifest from content. The second result is false when
// content is not a manifest.
func Parse(content string) (Manifest, bool) {
	if !strings.HasPrefix(content, delimiter) {
		return Manifest{}, false
	}
	parts := strings.SplitN(content, delimiter, 3)
	if len(parts) < 3 {
		return Manifest{}, false
	}

	var (
		m         Manifest
		hasName   bool
		inMeta    bool
		metaDepth int
	)

	for _, line := range strings.Split(parts[1], "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "name:"):
			m.Name = unquote(strings.TrimSpace(strings.TrimPrefix(trimmed, "name:")))
			hasName = true
		case strings.HasPrefix(trimmed, "description:"):
			m.Description = unquote(strings.TrimSpace(strings.TrimPrefix(trimmed, "description:")))
		case trimmed == "metadata:":
			inMeta = true
			metaDepth = 0
		case inMeta && indentOf(line) >= 2:
			depth := indentOf(line)
			if metaDepth == 0 {
				metaDepth = depth
			}
			if depth != metaDepth {
				continue
			}
			key, value, ok := strings.Cut(trimmed, ":")
			key = strings.TrimSpace(key)
			if !ok || key == "" || strings.HasPrefix(key, "-") {
				continue
			}
			if m.Metadata == nil {
				m.Metadata = Metadata{}
			}
			m.Metadata[key] = parseValue(strings.TrimSpace(value))
		default:
			inMeta = false
		}
	}

	if !hasName {
		return Manifest{}, false
	}
	return m, true
}

// ParseFile reads and parses the manifest at path.
func ParseFile(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "failed to read %s", path)
	}
	m, ok := Parse(string(data))
	if !ok {
		return Manifest{}, errors.Wrapf(ErrNotManifest, "%s", path)
	}
	return m, nil
}

func parseValue(raw string) Value {
	switch raw {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}
	return StringValue(unquote(raw))
}

// unquote strips one matching pair of single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}
