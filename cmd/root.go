// Package cmd contains the glidein CLI commands.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ohsu-comp-bio/glidein/cmd/allocate"
	"github.com/ohsu-comp-bio/glidein/cmd/dagid"
	"github.com/ohsu-comp-bio/glidein/cmd/runorca"
	"github.com/ohsu-comp-bio/glidein/cmd/version"
)

// RootCmd represents the root command
var RootCmd = &cobra.Command{
	Use:           "glidein",
	Short:         "Submit HTCondor glide-ins to Slurm and PBS clusters.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	RootCmd.AddCommand(allocate.NewCommand())
	RootCmd.AddCommand(completionCmd)
	RootCmd.AddCommand(dagid.NewCommand())
	RootCmd.AddCommand(runorca.NewCommand())
	RootCmd.AddCommand(version.Cmd)
}
