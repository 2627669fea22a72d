// Package testconfig builds throwaway platform packages and user config
// directories for tests.
package testconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ohsu-comp-bio/glidein/config"
)

// Platform is a ctrl_platform package laid out in a temporary directory.
type Platform struct {
	Name string
	// Package directory, exported as $CTRL_PLATFORM_<NAME>_DIR.
	Dir string
	// Fake $HOME, so user-level lookups never see the real one.
	Home string
	// Local scratch directory named in execConfig.yaml.
	Scratch string
}

// NewPlatform creates a platform package named name using scheduler, with
// fresh $HOME and $XDG_CONFIG_HOME directories. The environment is
// restored when the test ends.
func NewPlatform(t testing.TB, name, scheduler string) *Platform {
	t.Helper()
	root := t.TempDir()
	p := &Platform{
		Name:    name,
		Dir:     filepath.Join(root, "ctrl_platform_"+name),
		Home:    filepath.Join(root, "home"),
		Scratch: filepath.Join(root, "scratch"),
	}
	for _, d := range []string{
		filepath.Join(p.Dir, "etc", "config"),
		filepath.Join(p.Dir, "etc", "templates"),
		filepath.Join(p.Home, ".lsst"),
	} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	t.Setenv("HOME", p.Home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(p.Home, ".config"))
	t.Setenv("CTRL_PLATFORM_"+strings.ToUpper(name)+"_DIR", p.Dir)

	p.WriteConfig(t, "execConfig.yaml", `
Platform:
  Scheduler: `+scheduler+`
  LocalScratch: `+p.Scratch+`/$USER_NAME
  FileSystemDomain: `+name+`.example.org
`)
	return p
}

// WriteConfig writes an etc/config file into the package.
func (p *Platform) WriteConfig(t testing.TB, name, body string) string {
	t.Helper()
	return write(t, filepath.Join(p.Dir, "etc", "config", name), body)
}

// WriteTemplate writes an etc/templates file into the package.
func (p *Platform) WriteTemplate(t testing.TB, name, body string) string {
	t.Helper()
	return write(t, filepath.Join(p.Dir, "etc", "templates", name), body)
}

// WriteUserFile writes a file into $HOME/.lsst.
func (p *Platform) WriteUserFile(t testing.TB, name, body string) string {
	t.Helper()
	return write(t, filepath.Join(p.Home, ".lsst", name), body)
}

// WriteCondorInfo writes a condor-info.yaml naming user for this platform.
func (p *Platform) WriteCondorInfo(t testing.TB, user string) string {
	t.Helper()
	return p.WriteUserFile(t, "condor-info.yaml", `
Platform:
  `+p.Name+`:
    User:
      Name: `+user+`
      Home: `+p.Home+`
      Scratch: `+p.Scratch+`
`)
}

// Config returns a tool config pointing the sequence file into the fake home.
func (p *Platform) Config() config.Config {
	c := config.DefaultConfig()
	c.SeqFile = filepath.Join(p.Home, ".lsst", "node-set.seq")
	c.Logger.Level = "error"
	return c
}

func write(t testing.TB, path, body string) string {
	if err := os.WriteFile(path, []byte(strings.TrimLeft(body, "\n")), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
