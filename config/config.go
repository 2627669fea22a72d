// Package config holds the typed configuration records read by glidein:
// the tool's own settings, and the per-platform files shipped in a
// ctrl_platform package.
package config

import (
	"github.com/ohsu-comp-bio/glidein/logger"
)

// Config describes configuration for the glidein tool itself.
type Config struct {
	Logger   logger.Config
	Commands Commands
	// Timeout for condor_q and squeue calls.
	QueryTimeout Duration
	// Timeout for sbatch, qsub and remote copy/login calls.
	SubmitTimeout Duration
	// Minimum time between squeue probes while sizing large glide-ins.
	ProbeInterval Duration
	// Counter file used to generate node set names.
	SeqFile string
	// Per-user condor-info file, located with FindPackageFile.
	CondorInfoFile string
	// HTCondor schedd to query. Empty means the local host.
	ScheddName string
	// If set, allocation gauges are written here in the Prometheus text format.
	MetricsFile string
}

// Commands holds the external programs glidein invokes. A value may carry
// leading arguments, e.g. "ssh login1 sbatch".
type Commands struct {
	Sbatch      string
	Squeue      string
	Qsub        string
	CondorQ     string
	RemoteLogin string
	RemoteCopy  string
	// Workflow launcher run by "glidein run-orca".
	Orca string
}

// ExecConfig is the platform's execConfig.yaml.
type ExecConfig struct {
	Platform ExecPlatform
}

// ExecPlatform describes where and how a platform runs glide-ins.
type ExecPlatform struct {
	// Batch scheduler driving the platform: "slurm" or "pbs".
	Scheduler string
	// Local scratch directory. $USER_NAME and $USER_SCRATCH are substituted.
	LocalScratch     string
	FileSystemDomain string
	// Allocations and runs must be given a node set name instead of
	// generating one.
	NodeSetRequired bool

	// Workflow defaults used by run-orca. $USER_NAME is substituted in
	// DefaultRoot and environment variables are resolved in DataDirectory.
	DefaultRoot   string
	DataDirectory string
	EupsPath      string
	IDsPerJob     int
	// How jobs get their software environment: "setups" or "getenv".
	// Empty means "setups".
	SetupUsing string
}

// AllocationConfig is the platform's slurmConfig.yaml or pbsConfig.yaml.
type AllocationConfig struct {
	Platform AllocationPlatform
}

// AllocationPlatform holds scheduler specific allocation settings.
type AllocationPlatform struct {
	Queue string
	// Mail directive placed in the submit file, e.g. "#PBS -m bea".
	Email string
	// Remote scratch directory. $USER_HOME and $USER_SCRATCH are substituted.
	ScratchDirectory  string
	LoginHostName     string
	UtilityPath       string
	TotalCoresPerNode int
	// Seconds of inactivity before a glide-in shuts itself down.
	GlideinShutdown int
	// CPUs requested by a manually sized glide-in.
	PeakCpus      int
	MemoryPerCore MemorySize
	// CPU count of a generic auto-sized glide-in, and the large/small
	// job threshold.
	AutoCpus            int
	AllowedAutoGlideins int
}

// CondorInfo is the user's condor-info.yaml: remote login details per platform.
type CondorInfo struct {
	Platform map[string]PlatformUser
}

// PlatformUser wraps the user entry for one platform.
type PlatformUser struct {
	User UserInfo
}

// UserInfo describes the user's account on a platform.
type UserInfo struct {
	Name    string
	Home    string
	Scratch string
}

// Lookup returns the user info recorded for platform.
func (c CondorInfo) Lookup(platform string) (UserInfo, bool) {
	p, ok := c.Platform[platform]
	return p.User, ok
}
