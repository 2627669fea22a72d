package slurm

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohsu-comp-bio/glidein/compute"
	"github.com/ohsu-comp-bio/glidein/compute/computetest"
	"github.com/ohsu-comp-bio/glidein/config/testconfig"
)

type fixture struct {
	platform *testconfig.Platform
	alloc    *compute.Allocation
	runner   *computetest.Runner
	queue    *computetest.Queue
	out      bytes.Buffer
}

func newFixture(t *testing.T, auto bool) *fixture {
	p := testconfig.NewPlatform(t, "hpc", "slurm")
	local := filepath.Join(p.Scratch, "jdoe")
	configs := filepath.Join(local, "configs")
	require.NoError(t, os.MkdirAll(configs, 0755))

	return &fixture{
		platform: p,
		alloc: &compute.Allocation{
			Platform:                "hpc",
			Scheduler:               "slurm",
			UserName:                "jdoe",
			UserHome:                p.Home,
			LocalScratch:            local,
			ScratchDir:              p.Scratch,
			NodeCount:               5,
			Slots:                   16,
			WallClock:               "01:00:00",
			Queue:                   "normal",
			EmailNotification:       "#",
			NodeSet:                 "jdoe_1",
			ConfigurationID:         "jdoe_2024_0101_000000",
			ConfigDir:               configs,
			SubmitFile:              filepath.Join(configs, "alloc_x.slurm"),
			CondorConfig:            filepath.Join(configs, "condor_x.config"),
			AllocateScript:          filepath.Join(configs, "allocation_x.sh"),
			GeneratedConfig:         "condor_x.config",
			GeneratedAllocateScript: "allocation_x.sh",
			PackBlock:               "#",
			DynamicSlotsBlock:       "#",
			PeakCpus:                16,
			MemoryPerCore:           4096,
			AutoCpus:                16,
			AllowedAutoGlideins:     50,
			Auto:                    auto,
		},
		runner: computetest.NewRunner(),
		queue:  &computetest.Queue{Schedd: "schedd1", Jobs: map[string][]*compute.Job{}},
	}
}

func (f *fixture) submit(t *testing.T) error {
	t.Helper()
	conf := f.platform.Config()
	conf.ProbeInterval = 0

	b, err := NewBackend(f.alloc, compute.Env{
		Conf:   conf,
		Runner: f.runner,
		Queue:  f.queue,
		Out:    &f.out,
	})
	require.NoError(t, err)
	return b.Submit(context.Background())
}

func lines(n int) string {
	return strings.Repeat("123 normal glide\n", n)
}

func TestManualSubmit(t *testing.T) {
	f := newFixture(t, false)
	f.alloc.NodeCount = 3
	f.runner.On("squeue --noheader --name=glide_jdoe", computetest.Response{Stdout: lines(1)})

	require.NoError(t, f.submit(t))

	assert.Equal(t, []string{
		"squeue --noheader --name=glide_jdoe",
		"sbatch --mem 65536 -J glide_jdoe " + f.alloc.SubmitFile,
		"sbatch --mem 65536 -J glide_jdoe " + f.alloc.SubmitFile,
	}, f.runner.Commands())
	assert.Empty(t, f.queue.Queries)

	for _, c := range f.runner.Calls {
		assert.Equal(t, f.alloc.LocalScratch, c.Dir)
	}

	for _, p := range []string{f.alloc.SubmitFile, f.alloc.CondorConfig, f.alloc.AllocateScript} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
	s, err := os.Stat(f.alloc.AllocateScript)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), s.Mode().Perm())

	b, err := os.ReadFile(f.alloc.SubmitFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "#SBATCH --time 01:00:00")
	assert.Contains(t, string(b), "srun "+f.alloc.ConfigDir+"/allocation_x.sh")
}

func TestManualCoreLimit(t *testing.T) {
	f := newFixture(t, false)
	f.alloc.NodeCount = 10
	f.alloc.AllowedAutoGlideins = 4

	require.NoError(t, f.submit(t))

	assert.Equal(t, 4, f.runner.Count("sbatch"))
	assert.Contains(t, f.out.String(), "Reducing number of glideins because of core limit threshold")
	assert.Contains(t, f.out.String(), "Targeting 4 glidein(s)")
}

func TestManualEnoughExisting(t *testing.T) {
	f := newFixture(t, false)
	f.alloc.NodeCount = 2
	f.runner.On("squeue", computetest.Response{Stdout: lines(3)})

	require.NoError(t, f.submit(t))
	assert.Equal(t, 0, f.runner.Count("sbatch"))
}

func TestAutoNoIdleJobs(t *testing.T) {
	f := newFixture(t, true)

	require.NoError(t, f.submit(t))

	assert.Len(t, f.queue.Queries, 2)
	assert.Empty(t, f.runner.Commands())
	assert.Contains(t, f.out.String(), "Auto: No Large BPS Jobs.")
	assert.Contains(t, f.out.String(), "Auto: No small htcondor jobs detected.")
}

func TestAutoLargeAndSmall(t *testing.T) {
	f := newFixture(t, true)
	f.queue.Jobs["bps_job_label isnt Undefined"] = []*compute.Job{
		computetest.Job(1, 32, 100000, "calibrate"),
		computetest.Job(2, 32, 100000, "calibrate"),
		computetest.Job(3, 4, 200000, "assemble"),
	}
	f.queue.Jobs["RequestMemory<="] = []*compute.Job{
		computetest.Job(10, 2, 4*4096, ""),
		computetest.Job(11, 8, 8*4096, ""),
	}
	calibrate := compute.LargeJobName("jdoe", "calibrate")
	assemble := compute.LargeJobName("jdoe", "assemble")
	f.runner.On("squeue --noheader --states=PD --name="+calibrate, computetest.Response{Stdout: lines(1)})

	require.NoError(t, f.submit(t))

	file := f.alloc.SubmitFile
	assert.Equal(t, []string{
		"squeue --noheader --states=PD --name=" + assemble,
		"sbatch --cpus-per-task 16 --mem 200000 -J " + assemble + " " + file,
		"squeue --noheader --states=PD --name=" + calibrate,
		"sbatch --cpus-per-task 32 --mem 100000 -J " + calibrate + " " + file,
		"squeue --noheader --states=R --name=glide_jdoe",
		"squeue --noheader --states=PD --name=glide_jdoe",
		"sbatch --cpus-per-task 16 --mem 65536 -J glide_jdoe " + file,
	}, f.runner.Commands())
}

func TestAutoSmallThrottled(t *testing.T) {
	f := newFixture(t, true)
	f.alloc.NodeCount = 5
	var small []*compute.Job
	for i := 0; i < 20; i++ {
		small = append(small, computetest.Job(100+i, 16, 1024, ""))
	}
	f.queue.Jobs["RequestMemory<="] = small
	f.runner.On("squeue --noheader --states=R", computetest.Response{Stdout: lines(3)})
	f.runner.On("squeue --noheader --states=PD", computetest.Response{Stdout: lines(2)})

	require.NoError(t, f.submit(t))
	assert.Equal(t, 0, f.runner.Count("sbatch"))
}

func TestAutoSubmitFailureStops(t *testing.T) {
	f := newFixture(t, true)
	f.queue.Jobs["RequestMemory<="] = []*compute.Job{
		computetest.Job(1, 16, 1024, ""),
		computetest.Job(2, 16, 1024, ""),
		computetest.Job(3, 16, 1024, ""),
	}
	f.runner.On("sbatch", computetest.Response{Code: 3})

	err := f.submit(t)
	var exitErr *compute.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, 1, f.runner.Count("sbatch"))
}

func TestAutoQueryFailure(t *testing.T) {
	f := newFixture(t, true)
	f.queue.Err = errors.New("schedd unreachable")

	err := f.submit(t)
	assert.True(t, errors.Is(err, compute.ErrQueueQuery))
	assert.ErrorContains(t, err, "schedd unreachable")
	assert.Empty(t, f.runner.Commands())
}

func TestAutoSqueueFailure(t *testing.T) {
	f := newFixture(t, true)
	f.queue.Jobs["RequestMemory<="] = []*compute.Job{computetest.Job(1, 16, 1024, "")}
	f.runner.On("squeue", computetest.Response{Code: 7})

	err := f.submit(t)
	require.Error(t, err)
	assert.True(t, errors.Is(err, compute.ErrQueueQuery))
	assert.ErrorContains(t, err, "glide_jdoe")

	var exitErr *compute.ExitError
	assert.False(t, errors.As(err, &exitErr))
	assert.Equal(t, 0, f.runner.Count("sbatch"))
}

func TestManualSqueueFailure(t *testing.T) {
	f := newFixture(t, false)
	f.runner.On("squeue", computetest.Response{Code: 1})

	err := f.submit(t)
	assert.True(t, errors.Is(err, compute.ErrQueueQuery))
	var exitErr *compute.ExitError
	assert.False(t, errors.As(err, &exitErr))
	assert.Equal(t, 0, f.runner.Count("sbatch"))
}

func TestNewBackendRejectsZeroSizing(t *testing.T) {
	_, err := NewBackend(&compute.Allocation{}, compute.Env{})
	assert.Error(t, err)
}
