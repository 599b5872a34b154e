// Package paths locates the skydigest config file and the files it references.
// Stdlib only so config can import it freely.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirName is the per-user directory under $HOME.
const DirName = ".skydigest"

// localConfigNames are checked in the working directory, in order.
var localConfigNames = []string{"config.yaml", "config.yml", "config.toml"}

func home() (string, error) {
	h, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return h, nil
}

// ConfigCandidates lists every location ConfigPath tries, highest priority first.
// Local names are returned relative to the working directory.
func ConfigCandidates() ([]string, error) {
	h, err := home()
	if err != nil {
		return nil, err
	}
	out := append([]string(nil), localConfigNames...)
	return append(out, filepath.Join(h, DirName, "config.yaml")), nil
}

// ConfigPath returns the absolute path of the first existing candidate,
// or "" when there is none.
func ConfigPath() (string, error) {
	candidates, err := ConfigCandidates()
	if err != nil {
		return "", err
	}
	for _, c := range candidates {
		fi, err := os.Stat(c)
		if err != nil || fi.IsDir() {
			continue
		}
		return filepath.Abs(c)
	}
	return "", nil
}

// ExpandTilde replaces a leading "~" or "~/" with the home directory.
// "~user" forms are left alone.
func ExpandTilde(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	h, err := home()
	if err != nil {
		return "", err
	}
	return filepath.Join(h, strings.TrimPrefix(path, "~")), nil
}

// ResolveRelative expands path and anchors a relative result at the
// directory holding configPath. Empty stays empty.
func ResolveRelative(path, configPath string) (string, error) {
	if path == "" {
		return "", nil
	}
	p, err := ExpandTilde(path)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) || configPath == "" {
		return p, nil
	}
	return filepath.Join(filepath.Dir(configPath), p), nil
}
