// Package slurm submits HTCondor glide-ins to a Slurm cluster with sbatch.
package slurm

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/ohsu-comp-bio/glidein/compute"
	"github.com/ohsu-comp-bio/glidein/config"
	"github.com/ohsu-comp-bio/glidein/logger"
	"github.com/ohsu-comp-bio/glidein/metrics"
	"github.com/ohsu-comp-bio/glidein/util/fsutil"
)

var largeProjection = []string{
	"bps_run",
	"bps_job_label",
	"JobStatus",
	"Owner",
	"RequestCpus",
	"JobUniverse",
	"RequestMemory",
}

var smallProjection = []string{
	"JobStatus",
	"Owner",
	"RequestCpus",
	"JobUniverse",
	"RequestMemory",
}

// Backend submits the glide-ins of one allocation.
type Backend struct {
	alloc *compute.Allocation
	env   compute.Env
	log   *logger.Logger
	probe *rate.Limiter
}

// NewBackend returns a new Slurm Backend instance.
func NewBackend(alloc *compute.Allocation, env compute.Env) (compute.Backend, error) {
	if alloc.PeakCpus <= 0 || alloc.AutoCpus <= 0 || alloc.MemoryPerCore <= 0 {
		return nil, fmt.Errorf("slurm allocation needs positive PeakCpus, AutoCpus and MemoryPerCore")
	}
	if env.Log == nil {
		env.Log = logger.NewLogger("slurm", logger.DefaultConfig())
		env.Log.Discard()
	}

	limit := rate.Inf
	if d := time.Duration(env.Conf.ProbeInterval); d > 0 {
		limit = rate.Every(d)
	}

	return &Backend{
		alloc: alloc,
		env:   env,
		log:   env.Log.WithFields("nodeset", alloc.NodeSet),
		probe: rate.NewLimiter(limit, 1),
	}, nil
}

// Submit writes the submit file, condor config and allocation script, then
// submits glide-ins. In auto mode the number and size of glide-ins follows
// the user's idle HTCondor jobs, otherwise NodeCount glide-ins are kept in
// the queue.
func (b *Backend) Submit(ctx context.Context) error {
	if err := b.writeFiles(); err != nil {
		return err
	}
	if err := fsutil.EnsureDir(b.alloc.LocalScratch); err != nil {
		return fmt.Errorf("creating local scratch directory: %w", err)
	}

	b.log.Debug("prepared slurm allocation",
		"localScratch", b.alloc.LocalScratch,
		"submitFile", b.alloc.SubmitFile,
		"user", b.alloc.UserName,
		"jobName", compute.SmallJobName(b.alloc.UserName),
		"home", b.alloc.UserHome,
	)

	if !b.alloc.Auto {
		return b.submitManual(ctx)
	}
	if err := b.submitLarge(ctx); err != nil {
		return err
	}
	return b.submitSmall(ctx)
}

func (b *Backend) writeFiles() error {
	files := []struct {
		template string
		dst      string
		mode     os.FileMode
	}{
		{config.SlurmSubmitTemplate, b.alloc.SubmitFile, 0644},
		{config.CondorConfigTemplate, b.alloc.CondorConfig, 0644},
		{config.AllocationTemplate, b.alloc.AllocateScript, 0755},
	}
	for _, f := range files {
		tpl, err := config.LoadTemplate(f.template, b.alloc.Platform)
		if err != nil {
			return err
		}
		b.log.Debug("creating file", "template", tpl.Origin, "output", f.dst)
		if err := compute.Render(tpl, f.dst, b.alloc, f.mode); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) submitManual(ctx context.Context) error {
	a := b.alloc
	name := compute.SmallJobName(a.UserName)

	nodes := compute.ManualNodes(a.NodeCount, a.PeakCpus, a.AllowedAutoGlideins, a.AutoCpus)
	if nodes < a.NodeCount {
		b.env.Printf("Reducing number of glideins because of core limit threshold\n")
		b.log.Info("core limit",
			"coreLimit", a.AllowedAutoGlideins*a.AutoCpus,
			"glideinSize", a.PeakCpus,
			"glideins", nodes,
		)
	}
	b.env.Printf("Targeting %d glidein(s) for the computing pool/set.\n", nodes)
	metrics.TargetGlideins(name, nodes)

	existing, err := b.count(ctx, "", name)
	if err != nil {
		return err
	}
	b.env.Printf("Detected this number of preexisting glidein jobs: %d\n", existing)

	toAdd := nodes - existing
	if toAdd < 0 {
		toAdd = 0
	}
	b.env.Printf("The number of glidein jobs to submit now is %d\n", toAdd)

	mem := a.PeakCpus * a.MemoryPerCore
	for i := 0; i < toAdd; i++ {
		b.log.Info("submitting glidein", "n", i, "name", name)
		if err := b.sbatch(ctx, name, "--mem", strconv.Itoa(mem), "-J", name); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) submitLarge(ctx context.Context) error {
	a := b.alloc
	th := a.Thresholds()

	constraint := compute.IdleJobsOf(a.UserName).
		Defined("bps_run", "bps_job_label").
		Large(th).
		String()
	b.log.Debug("finding large BPS jobs", "constraint", constraint)

	jobs, err := b.query(ctx, constraint, largeProjection)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		b.env.Printf("Auto: No Large BPS Jobs.\n")
		metrics.IdleJobs("large", 0)
		return nil
	}

	large, _, err := compute.Classify(ctx, jobs, th)
	if err != nil {
		return queryErr(err)
	}
	labeled := large[:0]
	for _, j := range large {
		if j.Label != "" {
			labeled = append(labeled, j)
		}
	}
	metrics.IdleJobs("large", len(labeled))

	groups, err := compute.GroupLarge(ctx, labeled, th, func(j *compute.Job) string { return j.Label })
	if err != nil {
		return queryErr(err)
	}

	for _, g := range groups {
		name := compute.LargeJobName(a.UserName, g.Label)
		b.env.Printf("%s %s target %d\n", g.Label, name, g.Target)
		metrics.TargetGlideins(name, g.Target)

		pending, err := b.count(ctx, "PD", name)
		if err != nil {
			return err
		}
		n := compute.LargeShortfall(g.Target, pending)
		b.log.Debug("large glideins", "label", g.Label, "pending", pending, "submit", n)

		for i := 0; i < n; i++ {
			b.log.Info("submitting large glidein", "n", i, "name", name)
			err := b.sbatch(ctx, name,
				"--cpus-per-task", strconv.Itoa(g.Cpus),
				"--mem", strconv.Itoa(g.MemoryMiB),
				"-J", name,
			)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Backend) submitSmall(ctx context.Context) error {
	a := b.alloc
	th := a.Thresholds()

	ceiling := compute.ClampCeiling(a.NodeCount, a.AllowedAutoGlideins)
	if ceiling < a.NodeCount {
		b.env.Printf("Reducing Small Glidein limit due to threshold.\n")
	}

	constraint := compute.IdleJobsOf(a.UserName).Small(th).String()
	b.log.Debug("querying condor queue for standard jobs", "constraint", constraint)

	jobs, err := b.query(ctx, constraint, smallProjection)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		b.env.Printf("Auto: No small htcondor jobs detected.\n")
		metrics.IdleJobs("small", 0)
		return nil
	}

	_, small, err := compute.Classify(ctx, jobs, th)
	if err != nil {
		return queryErr(err)
	}
	metrics.IdleJobs("small", len(small))

	cores, err := compute.SmallCores(ctx, small, a.MemoryPerCore)
	if err != nil {
		return queryErr(err)
	}
	target := compute.GlideinsFor(cores, a.AutoCpus)
	b.env.Printf("smallGlideins: The final TotalCores is %g\n", cores)
	b.env.Printf("smallGlideins: Number for detected jobs is %d\n", target)

	name := compute.SmallJobName(a.UserName)
	metrics.TargetGlideins(name, target)

	running, err := b.count(ctx, "R", name)
	if err != nil {
		return err
	}
	idle, err := b.count(ctx, "PD", name)
	if err != nil {
		return err
	}

	n := compute.Throttle(target, ceiling, running, idle)
	b.log.Info("small glideins",
		"running", running,
		"idle", idle,
		"ceiling", ceiling,
		"submit", n,
	)
	b.env.Printf("smallGlideins: Number of Glideins to submit is %d\n", n)

	for i := 0; i < n; i++ {
		b.log.Info("submitting glidein", "n", i, "name", name)
		err := b.sbatch(ctx, name,
			"--cpus-per-task", strconv.Itoa(a.AutoCpus),
			"--mem", strconv.Itoa(th.MemoryLimit()),
			"-J", name,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// query returns the jobs matching constraint, from every schedd, in job
// id order.
func (b *Backend) query(ctx context.Context, constraint string, projection []string) ([]*compute.Job, error) {
	res, err := b.env.Queue.Query(ctx, constraint, projection)
	if err != nil {
		return nil, queryErr(err)
	}
	var jobs []*compute.Job
	for _, byID := range res {
		for _, j := range byID {
			jobs = append(jobs, j)
		}
	}
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].ID.Cluster != jobs[k].ID.Cluster {
			return jobs[i].ID.Cluster < jobs[k].ID.Cluster
		}
		return jobs[i].ID.Proc < jobs[k].ID.Proc
	})
	return jobs, nil
}

// count returns the number of glide-ins named name in the Slurm queue.
// An empty state counts every state.
func (b *Backend) count(ctx context.Context, state, name string) (int, error) {
	if err := b.probe.Wait(ctx); err != nil {
		return 0, err
	}

	args := []string{"--noheader"}
	if state != "" {
		args = append(args, "--states="+state)
	}
	args = append(args, "--name="+name)

	cmd, err := compute.NewCommand(b.env.Conf.Commands.Squeue, args...)
	if err != nil {
		return 0, err
	}
	cmd = cmd.In(b.alloc.LocalScratch).WithTimeout(time.Duration(b.env.Conf.QueryTimeout))
	b.log.Debug("probing slurm queue", "cmd", cmd.String())

	out, err := b.env.Runner.Output(ctx, cmd)
	if err != nil {
		// A failed squeue count is a query failure, not a failed submission, so the
		// exit status of squeue is not passed on.
		return 0, fmt.Errorf("%w: counting glide-ins named %s: %v", compute.ErrQueueQuery, name, err)
	}
	n := compute.CountLines(out)

	if state == "" {
		state = "any"
	}
	metrics.ExistingGlideins(name, state, n)
	return n, nil
}

// sbatch submits the generated submit file with extra options.
func (b *Backend) sbatch(ctx context.Context, name string, opts ...string) error {
	cmd, err := compute.NewCommand(b.env.Conf.Commands.Sbatch, append(opts, b.alloc.SubmitFile)...)
	if err != nil {
		return err
	}
	cmd = cmd.In(b.alloc.LocalScratch).WithTimeout(time.Duration(b.env.Conf.SubmitTimeout))
	b.log.Debug("sbatch", "cmd", cmd.String())

	code, err := b.env.Runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if code != 0 {
		return &compute.ExitError{Cmd: cmd.String(), Code: code}
	}
	metrics.SubmittedGlideins(name)
	return nil
}

func queryErr(err error) error {
	return fmt.Errorf("%w: %v", compute.ErrQueueQuery, err)
}
