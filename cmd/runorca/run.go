package runorca

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ohsu-comp-bio/glidein/compute"
	"github.com/ohsu-comp-bio/glidein/compute/orca"
	"github.com/ohsu-comp-bio/glidein/config"
	"github.com/ohsu-comp-bio/glidein/logger"
	"github.com/ohsu-comp-bio/glidein/version"
)

// Run writes the workflow configuration for platform and runs the
// configured orca launcher on it. The launcher's output goes to stdout.
func Run(ctx context.Context, conf config.Config, platform string, opts orca.Options) error {
	logger.Configure(conf.Logger)
	log := logger.Sub("run-orca")
	log.Debug("Version", version.LogFields()...)

	runner := &compute.ExecRunner{Log: log, Stdout: os.Stdout}
	return run(ctx, conf, platform, opts, runner, os.Stdout, log)
}

func run(ctx context.Context, conf config.Config, platform string, opts orca.Options, runner compute.Runner, out io.Writer, log *logger.Logger) error {
	pkg, err := config.PackageDir(platform)
	if err != nil {
		return err
	}
	execConf, err := config.LoadExecConfig(filepath.Join(pkg, "etc", "config", "execConfig.yaml"))
	if err != nil {
		return err
	}

	infoFile, err := config.FindPackageFile(conf.CondorInfoFile, "config", platform)
	if err != nil {
		return err
	}
	info, err := config.LoadCondorInfo(infoFile)
	if err != nil {
		return err
	}

	w, err := orca.NewWorkflow(orca.Params{
		Platform:       platform,
		PlatformDir:    pkg,
		Exec:           execConf,
		CondorInfo:     info,
		CondorInfoFile: infoFile,
		Options:        opts,
	})
	if err != nil {
		return err
	}
	if log != nil {
		log.Debug("workflow", "platform", platform, "runid", w.RunID,
			"template", w.Template, "packages", w.SetupPackages)
	}

	tpl, err := config.LoadTemplate(w.Template, platform)
	if err != nil {
		return err
	}
	if opts.Verbose {
		fmt.Fprintln(out, "creating configuration using", tpl.Origin)
		fmt.Fprintln(out, "writing new configuration to", w.ConfigFile)
	}
	if err := w.Write(tpl); err != nil {
		return err
	}

	fmt.Fprintf(out, "runid for this run is %s\n", w.RunID)
	return w.Launch(ctx, runner, conf.Commands.Orca)
}
