// Package sources maps source identifiers to on-disk caches. A source is a
// repository shorthand (owner/repo[/subdir]), a git URL, or a local
// directory. Remote sources are cloned under <root>/repos; local sources
// are used where they are.
package sources

import (
	"os"
	"path/filepath"
	"strings"
)

// Kind classifies a source.
type Kind string

const (
	KindGit   Kind = "Git"
	KindLocal Kind = "Local"
)

// ReposDir is the cache directory name below the registry root.
const ReposDir = "repos"

// DefaultHost is used to expand owner/repo shorthands.
const DefaultHost = "https://github.com"

// IsRemote reports whether source must be fetched with git: it carries a
// scheme, uses the scp-like SSH form, or is a relative name such as an
// owner/repo shorthand that does not exist on disk. An absolute path is
// always local, even after the folder has vanished.
func IsRemote(source string) bool {
	if HasRemoteSyntax(source) {
		return true
	}
	if filepath.IsAbs(source) {
		return false
	}
	_, err := os.Stat(source)
	return err != nil
}

// HasRemoteSyntax reports whether source is written as a URL or SSH address,
// without looking at the filesystem.
func HasRemoteSyntax(source string) bool {
	return strings.Contains(source, "://") || strings.HasPrefix(source, "git@")
}

// Classify returns KindGit for remote sources and KindLocal otherwise.
func Classify(source string) Kind {
	if IsRemote(source) {
		return KindGit
	}
	return KindLocal
}

// GitURL returns the clone URL for a remote source. URLs and SSH addresses
// pass through; owner/repo shorthands expand against host and drop any
// trailing subdirectory.
func GitURL(source, host string) string {
	if HasRemoteSyntax(source) {
		return source
	}
	if host == "" {
		host = DefaultHost
	}
	host = strings.TrimSuffix(host, "/")

	parts := strings.Split(strings.Trim(source, "/"), "/")
	if len(parts) >= 2 {
		return host + "/" + parts[0] + "/" + strings.TrimSuffix(parts[1], ".git") + ".git"
	}
	return host + "/" + strings.TrimSuffix(source, ".git") + ".git"
}

// CacheName encodes source into a single path component.
func CacheName(source string) string {
	return strings.NewReplacer("/", "-", ":", "-").Replace(source)
}

// RelativeCachePath is the cache location relative to the registry root:
// "repos/<name>" for remote sources and "" for local ones, meaning the
// source path is used directly.
func RelativeCachePath(source string) string {
	if IsRemote(source) {
		return ReposDir + "/" + CacheName(source)
	}
	return ""
}

// IsCacheRelative reports whether rel points into the repos cache.
func IsCacheRelative(rel string) bool {
	return strings.HasPrefix(filepath.ToSlash(rel), ReposDir+"/")
}
