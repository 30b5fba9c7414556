// Package fswalk walks directory trees depth first with a depth bound and
// caller supplied predicates deciding which directories to enter and which
// files to report.
package fswalk

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxDepth bounds walks that do not set Options.MaxDepth.
const DefaultMaxDepth = 12

// Entry is a visited filesystem entry. Info follows symlinks.
type Entry struct {
	Path  string
	Name  string
	Depth int
	Info  fs.FileInfo
}

// Predicate decides on a single entry.
type Predicate func(e Entry) bool

// Options configure a walk.
type Options struct {
	// MaxDepth is the deepest directory level entered; the root is depth 0.
	MaxDepth int
	// Descend reports whether a directory below the root is entered.
	// A nil Descend enters every directory.
	Descend Predicate
	// Candidate reports whether a file is passed to the visitor.
	// A nil Candidate reports every file.
	Candidate Predicate
	// OnError receives directories that could not be read. The walk continues.
	OnError func(path string, err error)
}

// Walk visits candidates under root in lexical order. It stops early when
// visit returns an error or ctx is done.
func Walk(ctx context.Context, root string, opts Options, visit func(Entry) error) error {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return walkDir(ctx, root, 0, opts, visit)
}

func walkDir(ctx context.Context, dir string, depth int, opts Options, visit func(Entry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if opts.OnError != nil {
			opts.OnError(dir, err)
		}
		return nil
	}

	for _, de := range entries {
		path := filepath.Join(dir, de.Name())
		info, err := os.Stat(path)
		if err != nil {
			// dangling symlink
			continue
		}
		e := Entry{Path: path, Name: de.Name(), Depth: depth + 1, Info: info}

		if info.IsDir() {
			if depth+1 > opts.MaxDepth {
				continue
			}
			if opts.Descend != nil && !opts.Descend(e) {
				continue
			}
			if err := walkDir(ctx, path, depth+1, opts, visit); err != nil {
				return err
			}
			continue
		}

		if opts.Candidate != nil && !opts.Candidate(e) {
			continue
		}
		if err := visit(e); err != nil {
			return err
		}
	}
	return nil
}

// NotHidden rejects entries whose name starts with a dot.
func NotHidden(e Entry) bool {
	return !strings.HasPrefix(e.Name, ".")
}

// NotMatching rejects entries whose name matches any of the doublestar
// patterns. Invalid patterns never match.
func NotMatching(patterns ...string) Predicate {
	return func(e Entry) bool {
		for _, p := range patterns {
			if ok, err := doublestar.Match(p, e.Name); err == nil && ok {
				return false
			}
		}
		return true
	}
}

// NamedExactly accepts entries with the given base name.
func NamedExactly(name string) Predicate {
	return func(e Entry) bool { return e.Name == name }
}

// All accepts an entry only when every predicate does.
func All(preds ...Predicate) Predicate {
	return func(e Entry) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

// Subdirs lists the immediate subdirectories of dir, following symlinks.
// A missing or unreadable dir yields nil and the read error.
func Subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, de := range entries {
		path := filepath.Join(dir, de.Name())
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			out = append(out, path)
		}
	}
	return out, nil
}

// IsFile reports whether path exists and is not a directory.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
