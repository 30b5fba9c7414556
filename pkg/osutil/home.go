// Package osutil holds small operating system helpers: home directory
// resolution and process group management for cancellable subprocesses.
package osutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// HomeDir returns the user's home directory.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return home, nil
}

// ExpandHome replaces a leading "~" in path with the home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/")), nil
}

// EnvWith returns env with the given overrides applied. Existing keys are
// replaced in place and new keys are appended in the order given.
func EnvWith(env []string, overrides ...string) []string {
	out := make([]string, 0, len(env)+len(overrides))
	index := map[string]int{}
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		if i, ok := index[key]; ok {
			out[i] = kv
			continue
		}
		index[key] = len(out)
		out = append(out, kv)
	}
	for _, kv := range overrides {
		key, _, _ := strings.Cut(kv, "=")
		if i, ok := index[key]; ok {
			out[i] = kv
			continue
		}
		index[key] = len(out)
		out = append(out, kv)
	}
	return out
}
