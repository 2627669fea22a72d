package allocate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ohsu-comp-bio/glidein/compute"
	"github.com/ohsu-comp-bio/glidein/compute/htcondor"
	"github.com/ohsu-comp-bio/glidein/compute/pbs"
	"github.com/ohsu-comp-bio/glidein/compute/slurm"
	"github.com/ohsu-comp-bio/glidein/config"
	"github.com/ohsu-comp-bio/glidein/logger"
	"github.com/ohsu-comp-bio/glidein/metrics"
	"github.com/ohsu-comp-bio/glidein/util/envstr"
	"github.com/ohsu-comp-bio/glidein/util/seqfile"
	"github.com/ohsu-comp-bio/glidein/version"
)

var backends = map[compute.Scheduler]compute.BackendFactory{
	compute.Slurm: slurm.NewBackend,
	compute.PBS:   pbs.NewBackend,
}

// Run allocates glide-ins for platform, running the real scheduler and
// HTCondor commands.
func Run(ctx context.Context, conf config.Config, platform string, opts compute.Options) error {
	logger.Configure(conf.Logger)
	log := logger.Sub("allocate")
	log.Debug("Version", version.LogFields()...)
	log.Debug("config", "yaml", string(config.ToYaml(conf)))

	runner := &compute.ExecRunner{Log: log, Stdout: os.Stdout}
	queue := htcondor.NewQueue(conf.Commands.CondorQ, conf.ScheddName, time.Duration(conf.QueryTimeout), runner, log)

	return run(ctx, platform, opts, compute.Env{
		Conf:   conf,
		Runner: runner,
		Queue:  queue,
		Log:    log,
		Out:    os.Stdout,
	})
}

func run(ctx context.Context, platform string, opts compute.Options, env compute.Env) error {
	conf := env.Conf

	pkg, err := config.PackageDir(platform)
	if err != nil {
		return err
	}
	etc := filepath.Join(pkg, "etc", "config")

	execConf, err := config.LoadExecConfig(filepath.Join(etc, "execConfig.yaml"))
	if err != nil {
		return err
	}
	sched, err := compute.ParseScheduler(execConf.Platform.Scheduler)
	if err != nil {
		return err
	}
	factory, ok := backends[sched]
	if !ok {
		return fmt.Errorf("no backend for scheduler %s", sched)
	}

	allocConf, err := config.LoadAllocationConfig(filepath.Join(etc, sched.String()+"Config.yaml"))
	if err != nil {
		return err
	}
	if sched == compute.Slurm {
		if err := allocConf.ValidateSizing(); err != nil {
			return err
		}
	}

	infoFile, err := config.FindPackageFile(conf.CondorInfoFile, "config", platform)
	if err != nil {
		return err
	}
	info, err := config.LoadCondorInfo(infoFile)
	if err != nil {
		return err
	}

	seqPath, err := envstr.Resolve(conf.SeqFile)
	if err != nil {
		return err
	}

	alloc, err := compute.NewAllocation(ctx, compute.AllocationParams{
		Platform:       platform,
		Scheduler:      sched,
		Exec:           execConf,
		Alloc:          allocConf,
		CondorInfo:     info,
		CondorInfoFile: infoFile,
		Options:        opts,
		Sequence:       seqfile.New(seqPath),
	})
	if err != nil {
		return err
	}
	if env.Log != nil {
		env.Log.Debug("allocation", "platform", platform, "scheduler", sched.String(),
			"nodeset", alloc.NodeSet, "configDir", alloc.ConfigDir)
	}

	backend, err := factory(alloc, env)
	if err != nil {
		return err
	}
	err = backend.Submit(ctx)

	if conf.MetricsFile != "" {
		if merr := metrics.WriteTextfile(conf.MetricsFile); merr != nil && env.Log != nil {
			env.Log.Error("writing metrics", merr)
		}
	}
	return err
}
