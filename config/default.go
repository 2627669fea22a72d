package config

import (
	"time"

	"github.com/ohsu-comp-bio/glidein/logger"
)

// DefaultConfig returns configuration with simple defaults.
func DefaultConfig() Config {
	return Config{
		Logger: logger.DefaultConfig(),
		Commands: Commands{
			Sbatch:  "sbatch",
			Squeue:  "squeue",
			Qsub:    "qsub",
			CondorQ: "condor_q",
			// Fixed paths so arbitrary binaries on $PATH are never used for
			// remote access. The gsi tools handle both grid proxies and ssh.
			RemoteLogin: "/usr/bin/gsissh",
			RemoteCopy:  "/usr/bin/gsiscp",
			Orca:        "orca.py",
		},
		QueryTimeout:   Duration(time.Minute),
		SubmitTimeout:  Duration(5 * time.Minute),
		ProbeInterval:  Duration(2 * time.Second),
		SeqFile:        "$HOME/.lsst/node-set.seq",
		CondorInfoFile: "condor-info.yaml",
	}
}
