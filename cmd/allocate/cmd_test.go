package allocate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohsu-comp-bio/glidein/compute"
	"github.com/ohsu-comp-bio/glidein/compute/computetest"
	"github.com/ohsu-comp-bio/glidein/config"
	"github.com/ohsu-comp-bio/glidein/config/testconfig"
)

const slurmConfig = `
Platform:
  Queue: normal
  ScratchDirectory: $USER_SCRATCH/glide
  TotalCoresPerNode: 16
  PeakCpus: 16
  MemoryPerCore: 4096
  AutoCpus: 16
  AllowedAutoGlideins: 50
`

const pbsConfig = `
Platform:
  Queue: batch
  Email: "#PBS -m bea"
  ScratchDirectory: $USER_HOME/glidein
  LoginHostName: login.example.org
  UtilityPath: /opt/torque/bin
  TotalCoresPerNode: 16
`

func TestFlags(t *testing.T) {
	cmd, h := newCommandHooks()

	var (
		gotConf     config.Config
		gotPlatform string
		gotOpts     compute.Options
	)
	h.Run = func(ctx context.Context, conf config.Config, platform string, opts compute.Options) error {
		gotConf, gotPlatform, gotOpts = conf, platform, opts
		return nil
	}

	cmd.SetArgs([]string{"hpc", "-n", "3", "-s", "16", "-m", "01:00:00",
		"-d", "-v", "-g", "600", "--qos", "debug", "-N", "myset", "--Metrics_File", "/tmp/m.prom"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "hpc", gotPlatform)
	assert.Equal(t, 3, gotOpts.NodeCount)
	assert.Equal(t, 16, gotOpts.Slots)
	assert.Equal(t, "01:00:00", gotOpts.WallClock)
	assert.Equal(t, compute.DefaultDynamicSlots, gotOpts.DynamicSlots)
	assert.Equal(t, "debug", gotOpts.QOS)
	assert.Equal(t, "myset", gotOpts.NodeSet)
	assert.True(t, gotOpts.Verbose)
	require.NotNil(t, gotOpts.GlideinShutdown)
	assert.Equal(t, 600, *gotOpts.GlideinShutdown)
	assert.Equal(t, "debug", gotConf.Logger.Level)
	assert.Equal(t, "/tmp/m.prom", gotConf.MetricsFile)
	assert.Equal(t, "sbatch", gotConf.Commands.Sbatch)
}

func TestFlagsDefaults(t *testing.T) {
	cmd, h := newCommandHooks()

	var gotOpts compute.Options
	h.Run = func(ctx context.Context, conf config.Config, platform string, opts compute.Options) error {
		gotOpts = opts
		return nil
	}

	cmd.SetArgs([]string{"hpc", "-n", "1", "-s", "8", "-m", "3600", "--dynamic=slots.conf"})
	require.NoError(t, cmd.Execute())
	assert.Nil(t, gotOpts.GlideinShutdown)
	assert.Equal(t, "slots.conf", gotOpts.DynamicSlots)
	assert.False(t, gotOpts.Auto)
}

func TestFlagsDynamicNeedsEquals(t *testing.T) {
	cmd, h := newCommandHooks()
	h.Run = func(ctx context.Context, conf config.Config, platform string, opts compute.Options) error {
		t.Fatal("run should not be called")
		return nil
	}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	// a detached value is a second positional argument
	cmd.SetArgs([]string{"hpc", "-n", "1", "-s", "8", "-m", "3600", "-d", "slots.conf"})
	assert.Error(t, cmd.Execute())

	assert.Contains(t, cmd.Flags().Lookup("dynamic").Usage, "--dynamic=FILE")
	assert.Contains(t, cmd.Flags().Lookup("email").Usage, "no mail is sent")
}

func TestRequiredFlags(t *testing.T) {
	cmd, h := newCommandHooks()
	h.Run = func(ctx context.Context, conf config.Config, platform string, opts compute.Options) error {
		t.Fatal("run should not be called")
		return nil
	}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	cmd.SetArgs([]string{"hpc", "-n", "1", "-s", "8"})
	assert.Error(t, cmd.Execute())
}

func testEnv(p *testconfig.Platform) (compute.Env, *computetest.Runner, *bytes.Buffer) {
	r := computetest.NewRunner()
	out := &bytes.Buffer{}
	return compute.Env{
		Conf:   p.Config(),
		Runner: r,
		Queue:  &computetest.Queue{Schedd: "schedd1"},
		Out:    out,
	}, r, out
}

func TestRunSlurmManual(t *testing.T) {
	p := testconfig.NewPlatform(t, "hpc", "slurm")
	p.WriteConfig(t, "slurmConfig.yaml", slurmConfig)
	p.WriteCondorInfo(t, "jdoe")

	env, r, out := testEnv(p)
	env.Conf.MetricsFile = filepath.Join(t.TempDir(), "glidein.prom")

	err := run(context.Background(), "hpc", compute.Options{NodeCount: 3, Slots: 16, WallClock: "01:00:00"}, env)
	require.NoError(t, err)

	assert.Equal(t, 1, r.Count("squeue --noheader --name=glide_jdoe"))
	assert.Equal(t, 3, r.Count("sbatch --mem 65536 -J glide_jdoe "))
	assert.Contains(t, out.String(), "Targeting 3 glidein(s)")

	// first allocation takes sequence number 0
	seq, err := os.ReadFile(env.Conf.SeqFile)
	require.NoError(t, err)
	assert.Equal(t, "0\n", string(seq))

	prom, err := os.ReadFile(env.Conf.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "glidein_last_run_timestamp_seconds")

	configs, err := filepath.Glob(filepath.Join(p.Scratch, "jdoe", "configs", "alloc_*.slurm"))
	require.NoError(t, err)
	assert.Len(t, configs, 1)
}

func TestRunSlurmSubmitFailure(t *testing.T) {
	p := testconfig.NewPlatform(t, "hpc", "slurm")
	p.WriteConfig(t, "slurmConfig.yaml", slurmConfig)
	p.WriteCondorInfo(t, "jdoe")

	env, r, _ := testEnv(p)
	r.On("sbatch", computetest.Response{Code: 3})

	err := run(context.Background(), "hpc", compute.Options{NodeCount: 2, Slots: 16, WallClock: "01:00:00"}, env)
	var exitErr *compute.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, 1, r.Count("sbatch"))
}

func TestRunSlurmNeedsSizing(t *testing.T) {
	p := testconfig.NewPlatform(t, "hpc", "slurm")
	p.WriteConfig(t, "slurmConfig.yaml", `
Platform:
  Queue: normal
`)
	p.WriteCondorInfo(t, "jdoe")

	env, r, _ := testEnv(p)
	err := run(context.Background(), "hpc", compute.Options{NodeCount: 1, Slots: 1, WallClock: "1"}, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Platform.PeakCpus must be positive")
	assert.Empty(t, r.Commands())
}

func TestRunPBS(t *testing.T) {
	p := testconfig.NewPlatform(t, "xsede", "pbs")
	p.WriteConfig(t, "pbsConfig.yaml", pbsConfig)
	p.WriteCondorInfo(t, "jdoe")

	env, r, out := testEnv(p)
	err := run(context.Background(), "xsede", compute.Options{NodeCount: 2, Slots: 16, WallClock: "02:00:00", NodeSet: "run7"}, env)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Count("/usr/bin/gsiscp "))
	assert.Equal(t, 1, r.Count("/usr/bin/gsissh jdoe@login.example.org /opt/torque/bin/qsub "+p.Home+"/glidein/alloc_"))
	assert.Contains(t, out.String(), "Node set name:\nrun7\n")
}

func TestRunMissingPackage(t *testing.T) {
	p := testconfig.NewPlatform(t, "hpc", "slurm")
	env, _, _ := testEnv(p)

	err := run(context.Background(), "nope", compute.Options{}, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CTRL_PLATFORM_NOPE_DIR")
}

func TestRunMissingCondorInfo(t *testing.T) {
	p := testconfig.NewPlatform(t, "hpc", "slurm")
	p.WriteConfig(t, "slurmConfig.yaml", slurmConfig)

	env, _, _ := testEnv(p)
	err := run(context.Background(), "hpc", compute.Options{NodeCount: 1, Slots: 1, WallClock: "1"}, env)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
