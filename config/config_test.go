package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestParseConfig(t *testing.T) {
	yaml := `
Logger:
  Level: debug
Commands:
  Sbatch: /opt/slurm/bin/sbatch
QueryTimeout: 30s
ProbeInterval: 5
`
	conf := DefaultConfig()
	require.NoError(t, Parse([]byte(yaml), &conf))

	assert.Equal(t, "debug", conf.Logger.Level)
	assert.Equal(t, "/opt/slurm/bin/sbatch", conf.Commands.Sbatch)
	// untouched defaults survive
	assert.Equal(t, "squeue", conf.Commands.Squeue)
	assert.Equal(t, Duration(30*time.Second), conf.QueryTimeout)
	assert.Equal(t, Duration(5*time.Second), conf.ProbeInterval)
}

func TestToYamlRoundTrip(t *testing.T) {
	conf := DefaultConfig()
	var back Config
	require.NoError(t, Parse(ToYaml(conf), &back))
	assert.Equal(t, conf, back)
}

func TestLoadAllocationConfig(t *testing.T) {
	p := writeFile(t, filepath.Join(t.TempDir(), "slurmConfig.yaml"), `
Platform:
  Queue: normal
  ScratchDirectory: $USER_SCRATCH/glidein
  LoginHostName: login.example.org
  TotalCoresPerNode: 32
  GlideinShutdown: 900
  PeakCpus: 16
  MemoryPerCore: 4GiB
  AutoCpus: 16
  AllowedAutoGlideins: 50
`)
	c, err := LoadAllocationConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "normal", c.Platform.Queue)
	assert.Equal(t, 4096, c.Platform.MemoryPerCore.MiB())
	assert.Equal(t, 50, c.Platform.AllowedAutoGlideins)
	assert.NoError(t, c.ValidateSizing())
}

func TestLoadExecConfigWorkflowFields(t *testing.T) {
	p := writeFile(t, filepath.Join(t.TempDir(), "execConfig.yaml"), `
Platform:
  Scheduler: slurm
  LocalScratch: /scratch/$USER_NAME
  DefaultRoot: /work/$USER_NAME/runs
  DataDirectory: $HOME/data
  EupsPath: /opt/lsst/stack
  IDsPerJob: 4
  SetupUsing: getenv
`)
	c, err := LoadExecConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "/work/$USER_NAME/runs", c.Platform.DefaultRoot)
	assert.Equal(t, "$HOME/data", c.Platform.DataDirectory)
	assert.Equal(t, "/opt/lsst/stack", c.Platform.EupsPath)
	assert.Equal(t, 4, c.Platform.IDsPerJob)
	assert.Equal(t, "getenv", c.Platform.SetupUsing)
}

func TestMemorySizeForms(t *testing.T) {
	tests := map[string]int{
		"4096":   4096,
		"4GiB":   4096,
		"512MiB": 512,
		"1TiB":   1024 * 1024,
	}
	for raw, expect := range tests {
		var m MemorySize
		require.NoError(t, m.Set(raw), raw)
		assert.Equal(t, expect, m.MiB(), raw)
	}

	var m MemorySize
	assert.Error(t, m.Set("lots"))
}

func TestValidateExecConfig(t *testing.T) {
	err := ExecConfig{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Platform.Scheduler is required")
	assert.Contains(t, err.Error(), "Platform.LocalScratch is required")

	err = ExecConfig{Platform: ExecPlatform{Scheduler: "lsf", LocalScratch: "/tmp"}}.Validate()
	assert.EqualError(t, err, "1 error occurred:\n\t* unknown scheduler \"lsf\"\n\n")

	assert.NoError(t, ExecConfig{Platform: ExecPlatform{Scheduler: "Slurm", LocalScratch: "/tmp"}}.Validate())
}

func TestValidateSizing(t *testing.T) {
	err := AllocationConfig{}.ValidateSizing()
	require.Error(t, err)
	for _, field := range []string{"AutoCpus", "PeakCpus", "MemoryPerCore"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestParseFileMissing(t *testing.T) {
	_, err := LoadExecConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseFileUnresolvedEnv(t *testing.T) {
	_, err := LoadExecConfig("$GLIDEIN_TEST_UNSET_DIR/execConfig.yaml")
	assert.EqualError(t, err, "couldn't find environment variable $GLIDEIN_TEST_UNSET_DIR")
}

func TestCondorInfoLookup(t *testing.T) {
	p := writeFile(t, filepath.Join(t.TempDir(), "condor-info.yaml"), `
Platform:
  hpc:
    User:
      Name: jdoe
      Home: /home/jdoe
      Scratch: /scratch/jdoe
`)
	c, err := LoadCondorInfo(p)
	require.NoError(t, err)

	u, ok := c.Lookup("hpc")
	assert.True(t, ok)
	assert.Equal(t, UserInfo{Name: "jdoe", Home: "/home/jdoe", Scratch: "/scratch/jdoe"}, u)

	_, ok = c.Lookup("other")
	assert.False(t, ok)
}

func TestFindPackageFileOrder(t *testing.T) {
	root := t.TempDir()
	home := filepath.Join(root, "home")
	xdg := filepath.Join(root, "xdg")
	pkg := filepath.Join(root, "pkg")
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("CTRL_PLATFORM_HPC_DIR", pkg)

	_, err := FindPackageFile("condor-info.yaml", "config", "hpc")
	assert.ErrorIs(t, err, os.ErrNotExist)

	inPkg := writeFile(t, filepath.Join(pkg, "etc", "config", "condor-info.yaml"), "")
	found, err := FindPackageFile("condor-info.yaml", "config", "hpc")
	require.NoError(t, err)
	assert.Equal(t, inPkg, found)

	inXDG := writeFile(t, filepath.Join(xdg, "lsst", "condor-info.yaml"), "")
	found, err = FindPackageFile("condor-info.yaml", "config", "hpc")
	require.NoError(t, err)
	assert.Equal(t, inXDG, found)

	inHome := writeFile(t, filepath.Join(home, ".lsst", "condor-info.yaml"), "")
	found, err = FindPackageFile("condor-info.yaml", "config", "hpc")
	require.NoError(t, err)
	assert.Equal(t, inHome, found)
}

func TestPackageDirMissing(t *testing.T) {
	t.Setenv("CTRL_PLATFORM_NOWHERE_DIR", "")
	_, err := PackageDir("nowhere")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "package ctrl_platform_nowhere not found"))
}

func TestLoadTemplateFallback(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HOME", filepath.Join(root, "home"))
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("CTRL_PLATFORM_HPC_DIR", filepath.Join(root, "pkg"))

	tmpl, err := LoadTemplate(SlurmSubmitTemplate, "hpc")
	require.NoError(t, err)
	assert.Equal(t, "builtin:"+SlurmSubmitTemplate, tmpl.Origin)
	assert.Contains(t, tmpl.Text, "#SBATCH")

	custom := writeFile(t, filepath.Join(root, "pkg", "etc", "templates", SlurmSubmitTemplate), "custom {{.NodeSet}}\n")
	tmpl, err = LoadTemplate(SlurmSubmitTemplate, "hpc")
	require.NoError(t, err)
	assert.Equal(t, custom, tmpl.Origin)
	assert.Equal(t, "custom {{.NodeSet}}\n", tmpl.Text)

	_, err = DefaultTemplate("missing.template")
	assert.Error(t, err)
}
