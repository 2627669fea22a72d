package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ohsu-comp-bio/glidein/util/envstr"
)

// PackageDir returns the install directory of the ctrl_platform_<platform>
// package, taken from $CTRL_PLATFORM_<PLATFORM>_DIR.
func PackageDir(platform string) (string, error) {
	env := "CTRL_PLATFORM_" + strings.ToUpper(platform) + "_DIR"
	dir := os.Getenv(env)
	if dir == "" {
		return "", fmt.Errorf("package ctrl_platform_%s not found: %s is not set", platform, env)
	}
	return dir, nil
}

// PackageFileCandidates lists, in order of preference, the paths
// FindPackageFile checks for name:
//
//	$HOME/.lsst/<name>
//	$XDG_CONFIG_HOME/lsst/<name>   ($XDG_CONFIG_HOME defaults to $HOME/.config)
//	<package dir>/etc/<kind>/<name>
//
// The package directory entry is omitted when the platform package is not
// installed.
func PackageFileCandidates(name, kind, platform string) ([]string, error) {
	resolved, err := envstr.Resolve(name)
	if err != nil {
		return nil, err
	}

	home := os.Getenv("HOME")
	if home == "" {
		home = "/"
	}
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		xdg = filepath.Join(home, ".config")
	}

	candidates := []string{
		filepath.Join(home, ".lsst", resolved),
		filepath.Join(xdg, "lsst", resolved),
	}
	if dir, err := PackageDir(platform); err == nil {
		candidates = append(candidates, filepath.Join(dir, "etc", kind, resolved))
	}
	return candidates, nil
}

// FindPackageFile returns the first existing candidate path for name.
// The error wraps os.ErrNotExist when no candidate exists.
func FindPackageFile(name, kind, platform string) (string, error) {
	candidates, err := PackageFileCandidates(name, kind, platform)
	if err != nil {
		return "", err
	}
	for _, c := range candidates {
		if s, err := os.Stat(c); err == nil && !s.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%s not found in %s: %w", name, strings.Join(candidates, ", "), os.ErrNotExist)
}
