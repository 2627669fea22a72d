package runorca

import (
	"github.com/spf13/pflag"

	"github.com/ohsu-comp-bio/glidein/compute/orca"
)

var requiredFlags = []string{"platform", "command", "id-file", "eups-path"}

func runFlags(platform *string, opts *orca.Options) *pflag.FlagSet {
	f := pflag.NewFlagSet("", pflag.ContinueOnError)

	f.StringVarP(platform, "platform", "p", *platform, "Platform")
	f.StringVarP(&opts.Command, "command", "c", opts.Command, "Command run by every job")
	f.StringVarP(&opts.IDFile, "id-file", "i", opts.IDFile, "List of ids")
	f.StringVarP(&opts.EupsPath, "eups-path", "e", opts.EupsPath, "eups path")
	f.StringVarP(&opts.NodeSet, "node-set", "N", opts.NodeSet, "Name of collection of nodes to use (required by some platforms)")
	f.IntVarP(&opts.IDsPerJob, "ids-per-job", "n", opts.IDsPerJob, "Ids per job")
	f.StringVarP(&opts.DefaultRoot, "default-root", "r", opts.DefaultRoot, "Remote working directory for Condor")
	f.StringVarP(&opts.LocalScratch, "local-scratch", "l", opts.LocalScratch, "Local staging directory for Condor")
	f.StringVarP(&opts.DataDirectory, "data-directory", "d", opts.DataDirectory, "Where the data is located")
	f.StringVarP(&opts.FileSystemDomain, "file-system-domain", "F", opts.FileSystemDomain, "File system domain")
	f.StringVarP(&opts.UserName, "user-name", "u", opts.UserName, "User")
	f.StringVarP(&opts.UserHome, "user-home", "H", opts.UserHome, "Home")
	f.StringVarP(&opts.RunID, "run-id", "R", opts.RunID, "Run id")
	f.BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "Verbose")
	f.StringArrayVarP(&opts.Setups, "setup", "s", opts.Setups, "Set up product NAME=VERSION in every job; may be repeated")

	return f
}
