package compute

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ohsu-comp-bio/glidein/config"
	"github.com/ohsu-comp-bio/glidein/logger"
)

// Scheduler is a supported batch scheduler.
type Scheduler int

// Supported batch schedulers.
const (
	Slurm Scheduler = iota + 1
	PBS
)

func (s Scheduler) String() string {
	switch s {
	case Slurm:
		return "slurm"
	case PBS:
		return "pbs"
	default:
		return fmt.Sprintf("scheduler(%d)", int(s))
	}
}

// Suffix is the file extension of generated submit files.
func (s Scheduler) Suffix() string {
	return s.String()
}

// ParseScheduler parses the Scheduler field of an exec config.
func ParseScheduler(name string) (Scheduler, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "slurm":
		return Slurm, nil
	case "pbs":
		return PBS, nil
	default:
		return 0, fmt.Errorf("unknown scheduler: %q", name)
	}
}

// Backend submits glide-ins for one allocation.
type Backend interface {
	Submit(context.Context) error
}

// JobQueue queries an HTCondor job queue. Results are keyed by schedd name.
type JobQueue interface {
	Query(ctx context.Context, constraint string, projection []string) (map[string]map[JobID]*Job, error)
}

// Env holds what a backend needs besides the allocation itself.
type Env struct {
	Conf   config.Config
	Runner Runner
	Queue  JobQueue
	Log    *logger.Logger
	// Out receives the messages printed for the user.
	Out io.Writer
}

// BackendFactory creates a Backend for an allocation.
type BackendFactory func(alloc *Allocation, env Env) (Backend, error)

// Printf writes a user facing message to Out.
func (e Env) Printf(format string, args ...interface{}) {
	if e.Out != nil {
		fmt.Fprintf(e.Out, format, args...)
	}
}
