// Package pbs submits HTCondor glide-ins to a remote PBS/Torque cluster.
// The generated files are copied to the login host and qsub runs there.
package pbs

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ohsu-comp-bio/glidein/compute"
	"github.com/ohsu-comp-bio/glidein/config"
	"github.com/ohsu-comp-bio/glidein/logger"
	"github.com/ohsu-comp-bio/glidein/metrics"
)

// Backend submits the node set of one allocation.
type Backend struct {
	alloc *compute.Allocation
	env   compute.Env
	log   *logger.Logger
}

// NewBackend returns a new PBS (Portable Batch System) Backend instance.
func NewBackend(alloc *compute.Allocation, env compute.Env) (compute.Backend, error) {
	if alloc.HostName == "" {
		return nil, fmt.Errorf("pbs allocation needs Platform.LoginHostName")
	}
	if env.Log == nil {
		env.Log = logger.NewLogger("pbs", logger.DefaultConfig())
		env.Log.Discard()
	}
	return &Backend{
		alloc: alloc,
		env:   env,
		log:   env.Log.WithFields("nodeset", alloc.NodeSet),
	}, nil
}

// Submit renders the PBS submit file and condor config, copies both to
// the remote scratch directory and runs qsub on the login host.
func (b *Backend) Submit(ctx context.Context) error {
	a := b.alloc

	for _, f := range []struct{ template, dst string }{
		{config.PBSSubmitTemplate, a.SubmitFile},
		{config.CondorConfigTemplate, a.CondorConfig},
	} {
		tpl, err := config.LoadTemplate(f.template, a.Platform)
		if err != nil {
			return err
		}
		b.log.Debug("creating file", "template", tpl.Origin, "output", f.dst)
		if err := compute.Render(tpl, f.dst, a, 0644); err != nil {
			return err
		}
	}

	remote := a.UserName + "@" + a.HostName
	for _, f := range []string{a.SubmitFile, a.CondorConfig} {
		dst := fmt.Sprintf("%s:%s/%s", remote, a.ScratchDir, filepath.Base(f))
		if err := b.run(ctx, b.env.Conf.Commands.RemoteCopy, f, dst); err != nil {
			return err
		}
	}

	qsub := a.UtilityPath + "/qsub"
	if a.UtilityPath == "" {
		qsub = b.env.Conf.Commands.Qsub
	}
	remoteFile := a.ScratchDir + "/" + filepath.Base(a.SubmitFile)
	if err := b.run(ctx, b.env.Conf.Commands.RemoteLogin, remote, qsub, remoteFile); err != nil {
		return err
	}
	metrics.SubmittedGlideins(a.NodeSet)
	metrics.TargetGlideins(a.NodeSet, a.NodeCount)

	b.env.Printf("%s", a.Summary())
	return nil
}

func (b *Backend) run(ctx context.Context, program string, args ...string) error {
	cmd, err := compute.NewCommand(program, args...)
	if err != nil {
		return err
	}
	cmd = cmd.In(b.alloc.LocalScratch).WithTimeout(time.Duration(b.env.Conf.SubmitTimeout))
	b.log.Info("running", "cmd", cmd.String())

	code, err := b.env.Runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if code != 0 {
		return &compute.ExitError{Cmd: cmd.String(), Code: code}
	}
	return nil
}
