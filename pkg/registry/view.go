package registry

import (
	"context"
	"time"

	"github.com/fxding/forks/pkg/fswalk"
	"github.com/fxding/forks/pkg/skills"
	"github.com/fxding/forks/pkg/sources"
)

// Source is the registry's view of one source.
type Source struct {
	ID              string       `json:"id" yaml:"id"`
	Type            sources.Kind `json:"type" yaml:"type"`
	Path            string       `json:"path" yaml:"path"`
	UpdateAvailable bool         `json:"updateAvailable" yaml:"updateAvailable"`
	LastChecked     *time.Time   `json:"lastChecked,omitempty" yaml:"lastChecked,omitempty"`
	Skills          []string     `json:"skills" yaml:"skills"`
}

// CacheLocator tells where a source is materialized.
type CacheLocator interface {
	CachePath(source string) string
	Classify(source string) sources.Kind
}

// SkillFinder discovers skills below a directory.
type SkillFinder interface {
	Discover(ctx context.Context, root string) ([]skills.Skill, error)
}

// ListSources builds the source list from st: every tracked source and
// every record origin, with the update flag OR-ed and the latest check time
// across its records, and the skills currently found in its cache.
func ListSources(ctx context.Context, st State, cache CacheLocator, finder SkillFinder) ([]Source, error) {
	origins := st.Origins()
	out := make([]Source, 0, len(origins))

	for _, origin := range origins {
		src := Source{
			ID:     origin,
			Type:   cache.Classify(origin),
			Path:   cache.CachePath(origin),
			Skills: []string{},
		}

		for _, r := range st.Records {
			if r.OriginalSource != origin {
				continue
			}
			src.UpdateAvailable = src.UpdateAvailable || r.UpdateAvailable
			if r.LastChecked != nil && (src.LastChecked == nil || r.LastChecked.After(*src.LastChecked)) {
				checked := *r.LastChecked
				src.LastChecked = &checked
			}
		}

		if fswalk.IsDir(src.Path) {
			found, err := finder.Discover(ctx, src.Path)
			if err != nil {
				return nil, err
			}
			src.Skills = skills.Names(found)
		}

		out = append(out, src)
	}
	return out, nil
}
