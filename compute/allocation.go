package compute

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/ohsu-comp-bio/glidein/config"
	"github.com/ohsu-comp-bio/glidein/util/fsutil"
)

// DefaultDynamicSlots selects the platform's dynamic slots template when
// passed as Options.DynamicSlots.
const DefaultDynamicSlots = "__default__"

// Options are the command line settings of an allocation request. Zero
// values mean "not given" and leave the platform configuration in effect.
type Options struct {
	NodeCount int
	Slots     int
	WallClock string
	NodeSet   string
	Queue     string
	Email     bool
	OutputLog string
	ErrorLog  string
	// Seconds of inactivity before a glide-in shuts down. Nil keeps the
	// platform setting.
	GlideinShutdown *int
	Verbose         bool
	Auto            bool
	Reservation     string
	QOS             string
	Pack            bool
	// Empty disables dynamic slots, DefaultDynamicSlots uses the platform
	// template, anything else is a file holding the condor config block.
	DynamicSlots string
}

// Sequence hands out node set numbers.
type Sequence interface {
	Next(context.Context) (int, error)
}

// AllocationParams are the inputs of NewAllocation.
type AllocationParams struct {
	Platform       string
	Scheduler      Scheduler
	Exec           config.ExecConfig
	Alloc          config.AllocationConfig
	CondorInfo     config.CondorInfo
	CondorInfoFile string
	Options        Options
	// Used when Options.NodeSet is empty.
	Sequence Sequence
	// Loads templates by name. Defaults to config.LoadTemplate for Platform.
	Templates func(name string) (config.Template, error)
	// Defaults to the current OS user.
	LoginName string
	// Defaults to time.Now().
	Now time.Time
}

// Allocation is the complete, resolved description of one glide-in
// request. Its exported fields are the values available to templates.
// It is not modified after NewAllocation returns.
type Allocation struct {
	Platform  string
	Scheduler string

	UserName    string
	UserHome    string
	UserScratch string

	// Local scratch directory. Generated files go under ConfigDir and
	// submission commands run here.
	LocalScratch string
	// Scratch directory on the compute or login nodes.
	ScratchDir       string
	FileSystemDomain string

	NodeCount         int
	Slots             int
	WallClock         string
	Queue             string
	EmailNotification string
	HostName          string
	UtilityPath       string
	GlideinShutdown   int
	NodeSet           string
	OutputLog         string
	ErrorLog          string
	TotalCoreCount    int

	// <login>_YYYY_MMDD_HHMMSS
	ConfigurationID string
	ConfigDir       string
	SubmitFile      string
	CondorConfig    string
	AllocateScript  string
	// Base names of CondorConfig and AllocateScript.
	GeneratedConfig         string
	GeneratedAllocateScript string

	Reservation       string
	QOS               string
	PackBlock         string
	DynamicSlotsBlock string

	PeakCpus            int
	MemoryPerCore       int
	AutoCpus            int
	AllowedAutoGlideins int
	Auto                bool
	Verbose             bool
}

// NewAllocation resolves p into an Allocation and creates its config
// directory.
func NewAllocation(ctx context.Context, p AllocationParams) (*Allocation, error) {
	plat := p.Exec.Platform
	alloc := p.Alloc.Platform
	opt := p.Options

	u, err := LookupUser(p.CondorInfo, p.CondorInfoFile, p.Platform)
	if err != nil {
		return nil, err
	}

	vars := map[string]string{
		"USER_NAME":    u.Name,
		"USER_HOME":    u.Home,
		"USER_SCRATCH": u.Scratch,
	}
	localScratch, err := Substitute(plat.LocalScratch, vars)
	if err != nil {
		return nil, fmt.Errorf("LocalScratch: %w", err)
	}
	scratchDir, err := Substitute(alloc.ScratchDirectory, vars)
	if err != nil {
		return nil, fmt.Errorf("ScratchDirectory: %w", err)
	}

	a := &Allocation{
		Platform:            p.Platform,
		Scheduler:           p.Scheduler.String(),
		UserName:            u.Name,
		UserHome:            u.Home,
		UserScratch:         u.Scratch,
		LocalScratch:        localScratch,
		ScratchDir:          scratchDir,
		FileSystemDomain:    plat.FileSystemDomain,
		NodeCount:           opt.NodeCount,
		Slots:               opt.Slots,
		WallClock:           opt.WallClock,
		Queue:               alloc.Queue,
		EmailNotification:   "#",
		HostName:            alloc.LoginHostName,
		UtilityPath:         alloc.UtilityPath,
		GlideinShutdown:     alloc.GlideinShutdown,
		TotalCoreCount:      opt.NodeCount * alloc.TotalCoresPerNode,
		Reservation:         "",
		QOS:                 "",
		PackBlock:           "#",
		DynamicSlotsBlock:   "#",
		PeakCpus:            alloc.PeakCpus,
		MemoryPerCore:       alloc.MemoryPerCore.MiB(),
		AutoCpus:            alloc.AutoCpus,
		AllowedAutoGlideins: alloc.AllowedAutoGlideins,
		Auto:                opt.Auto,
		Verbose:             opt.Verbose,
	}

	if opt.Queue != "" {
		a.Queue = opt.Queue
	}
	if opt.Email {
		a.EmailNotification = alloc.Email
	}
	if opt.GlideinShutdown != nil {
		a.GlideinShutdown = *opt.GlideinShutdown
	}
	if opt.Reservation != "" {
		a.Reservation = "#SBATCH --reservation " + opt.Reservation
	}
	if opt.QOS != "" {
		a.QOS = "#SBATCH --qos " + opt.QOS
	}
	if opt.Pack {
		a.PackBlock = "Rank = TotalCpus - Cpus"
	}
	if opt.DynamicSlots != "" {
		block, err := dynamicSlots(p)
		if err != nil {
			return nil, err
		}
		a.DynamicSlotsBlock = block
	}

	a.NodeSet = opt.NodeSet
	if a.NodeSet == "" && plat.NodeSetRequired {
		return nil, fmt.Errorf("platform %s requires a node set name", p.Platform)
	}
	if a.NodeSet == "" {
		if p.Sequence == nil {
			return nil, fmt.Errorf("no node set name given and no sequence file configured")
		}
		n, err := p.Sequence.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating node set name: %w", err)
		}
		a.NodeSet = fmt.Sprintf("%s_%d", u.Name, n)
	}
	a.OutputLog = opt.OutputLog
	if a.OutputLog == "" {
		a.OutputLog = a.NodeSet + ".out"
	}
	a.ErrorLog = opt.ErrorLog
	if a.ErrorLog == "" {
		a.ErrorLog = a.NodeSet + ".err"
	}

	login := p.LoginName
	if login == "" {
		login = LoginName(u.Name)
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	a.ConfigurationID = RunID(login, now)

	a.ConfigDir = filepath.Join(a.LocalScratch, "configs")
	if err := fsutil.EnsureDir(a.ConfigDir); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	a.SubmitFile = filepath.Join(a.ConfigDir, fmt.Sprintf("alloc_%s.%s", a.ConfigurationID, p.Scheduler.Suffix()))
	a.CondorConfig = filepath.Join(a.ConfigDir, fmt.Sprintf("condor_%s.config", a.ConfigurationID))
	a.AllocateScript = filepath.Join(a.ConfigDir, fmt.Sprintf("allocation_%s.sh", a.ConfigurationID))
	a.GeneratedConfig = filepath.Base(a.CondorConfig)
	a.GeneratedAllocateScript = filepath.Base(a.AllocateScript)

	return a, nil
}

// Thresholds returns the large/small job split for this allocation.
func (a *Allocation) Thresholds() Thresholds {
	return Thresholds{CPUs: a.AutoCpus, MemoryPerCore: a.MemoryPerCore}
}

// Summary describes the node set the way it is reported to the user.
func (a *Allocation) Summary() string {
	plural := ""
	if a.NodeCount > 1 {
		plural = "s"
	}
	return fmt.Sprintf(
		"%d node%s will be allocated on %s with %d slots per node and maximum time limit of %s\nNode set name:\n%s\n",
		a.NodeCount, plural, a.Platform, a.Slots, a.WallClock, a.NodeSet,
	)
}

// RunID names the files of one run: <login>_YYYY_MMDD_HHMMSS.
func RunID(login string, now time.Time) string {
	return login + now.Format("_2006_0102_150405")
}

// LoginName returns the name of the local account, or fallback when it
// cannot be determined.
func LoginName(fallback string) string {
	if cur, err := user.Current(); err == nil {
		return cur.Username
	}
	return fallback
}

// LookupUser returns the account condor-info records for platform. file is
// the path info was read from, used in errors.
func LookupUser(info config.CondorInfo, file, platform string) (config.UserInfo, error) {
	u, _ := info.Lookup(platform)

	// The "lsst" platform runs on the local machine, so the local account
	// stands in for anything condor-info leaves out.
	if platform == "lsst" {
		if u.Name == "" {
			if cur, err := user.Current(); err == nil {
				u.Name = cur.Username
			}
		}
		if u.Home == "" {
			u.Home = os.Getenv("HOME")
		}
	}

	if u.Name == "" {
		return u, fmt.Errorf("%s does not specify user name for platform == %s", file, platform)
	}
	if u.Home == "" {
		return u, fmt.Errorf("%s does not specify user home for platform == %s", file, platform)
	}
	return u, nil
}

func dynamicSlots(p AllocationParams) (string, error) {
	name := p.Options.DynamicSlots
	if name != DefaultDynamicSlots {
		b, err := os.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("reading dynamic slots block: %w", err)
		}
		return string(b), nil
	}

	load := p.Templates
	if load == nil {
		load = func(name string) (config.Template, error) {
			return config.LoadTemplate(name, p.Platform)
		}
	}
	t, err := load(config.DynamicSlotsTemplate)
	if err != nil {
		return "", err
	}
	return t.Text, nil
}
