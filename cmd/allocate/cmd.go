// Package allocate implements "glidein allocate", which requests glide-in
// nodes for a platform from its batch scheduler.
package allocate

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ohsu-comp-bio/glidein/cmd/util"
	"github.com/ohsu-comp-bio/glidein/compute"
	"github.com/ohsu-comp-bio/glidein/config"
)

// NewCommand returns the allocate command
func NewCommand() *cobra.Command {
	cmd, _ := newCommandHooks()
	return cmd
}

type hooks struct {
	Run func(ctx context.Context, conf config.Config, platform string, opts compute.Options) error
}

func newCommandHooks() (*cobra.Command, *hooks) {
	hooks := &hooks{
		Run: Run,
	}

	var (
		configFile string
		flagConf   config.Config
		opts       compute.Options
		shutdown   int
	)

	cmd := &cobra.Command{
		Use:   "allocate <platform>",
		Short: "Allocate HTCondor glide-in nodes on a batch cluster.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := util.MergeConfigFileWithFlags(configFile, flagConf)
			if err != nil {
				return fmt.Errorf("error processing config: %w", err)
			}
			if cmd.Flags().Changed("glidein-shutdown") {
				opts.GlideinShutdown = &shutdown
			}
			if opts.Verbose {
				conf.Logger.Level = "debug"
			}
			return hooks.Run(cmd.Context(), conf, args[0], opts)
		},
	}
	cmd.SetGlobalNormalizationFunc(util.NormalizeFlags)

	f := cmd.Flags()
	f.AddFlagSet(util.ConfigFlags(&flagConf, &configFile))
	f.AddFlagSet(allocationFlags(&opts, &shutdown))
	for _, name := range requiredFlags {
		cmd.MarkFlagRequired(name)
	}

	return cmd, hooks
}
