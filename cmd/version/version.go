package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ohsu-comp-bio/glidein/version"
)

// Cmd represents the "version" command
var Cmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and version information.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}
