// Package runorca implements "glidein run-orca", which writes a workflow
// configuration for a platform and starts orca on it.
package runorca

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ohsu-comp-bio/glidein/cmd/util"
	"github.com/ohsu-comp-bio/glidein/compute/orca"
	"github.com/ohsu-comp-bio/glidein/config"
)

// NewCommand returns the run-orca command
func NewCommand() *cobra.Command {
	cmd, _ := newCommandHooks()
	return cmd
}

type hooks struct {
	Run func(ctx context.Context, conf config.Config, platform string, opts orca.Options) error
}

func newCommandHooks() (*cobra.Command, *hooks) {
	hooks := &hooks{
		Run: Run,
	}

	var (
		configFile string
		flagConf   config.Config
		platform   string
		opts       orca.Options
	)

	cmd := &cobra.Command{
		Use:   "run-orca",
		Short: "Write a workflow configuration and run orca on it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := util.MergeConfigFileWithFlags(configFile, flagConf)
			if err != nil {
				return fmt.Errorf("error processing config: %w", err)
			}
			if opts.Verbose {
				conf.Logger.Level = "debug"
			}
			return hooks.Run(cmd.Context(), conf, platform, opts)
		},
	}
	cmd.SetGlobalNormalizationFunc(util.NormalizeFlags)

	f := cmd.Flags()
	f.AddFlagSet(util.OrcaFlags(&flagConf, &configFile))
	f.AddFlagSet(runFlags(&platform, &opts))
	for _, name := range requiredFlags {
		cmd.MarkFlagRequired(name)
	}

	return cmd, hooks
}
