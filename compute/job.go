package compute

import (
	"context"
	"fmt"
	"sync"
)

// UniverseVanilla is the HTCondor JobUniverse value of ordinary jobs.
const UniverseVanilla = 5

// JobStatus is an HTCondor JobStatus code.
type JobStatus int

// HTCondor job status codes.
const (
	JobIdle    JobStatus = 1
	JobRunning JobStatus = 2
)

func (s JobStatus) String() string {
	switch s {
	case JobIdle:
		return "idle"
	case JobRunning:
		return "running"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// JobID identifies an HTCondor job within a schedd.
type JobID struct {
	Cluster int
	Proc    int
}

func (id JobID) String() string {
	return fmt.Sprintf("%d.%d", id.Cluster, id.Proc)
}

// Job is the subset of an HTCondor job ad used for sizing glide-ins.
type Job struct {
	ID            JobID
	RequestCpus   int
	RequestMemory *Memory
	Owner         string
	Status        JobStatus
	Universe      int
	// bps_job_label and bps_run, set by the batch processing system.
	Label string
	Run   string
}

// Cpus returns the requested CPU count. A missing or zero request counts
// as one CPU.
func (j *Job) Cpus() int {
	if j.RequestCpus < 1 {
		return 1
	}
	return j.RequestCpus
}

// MemoryMiB returns the requested memory, evaluating it on first use.
// A job without a memory request asks for 0 MiB.
func (j *Job) MemoryMiB(ctx context.Context) (int, error) {
	if j.RequestMemory == nil {
		return 0, nil
	}
	mib, err := j.RequestMemory.MiB(ctx)
	if err != nil {
		return 0, fmt.Errorf("evaluating RequestMemory of job %s: %w", j.ID, err)
	}
	return mib, nil
}

// Memory is a RequestMemory value. It is either a plain number of MiB or an
// expression that has to be evaluated by the queue. An expression is
// evaluated at most once and the result, or the error, is kept.
type Memory struct {
	once sync.Once
	mib  int
	err  error
	eval func(context.Context) (int, error)
}

// FixedMemory returns a Memory holding mib.
func FixedMemory(mib int) *Memory {
	m := &Memory{mib: mib}
	m.once.Do(func() {})
	return m
}

// LazyMemory returns a Memory which calls eval the first time it is read.
func LazyMemory(eval func(context.Context) (int, error)) *Memory {
	return &Memory{eval: eval}
}

// MiB returns the memory in MiB. A zero Memory holds 0 MiB.
func (m *Memory) MiB(ctx context.Context) (int, error) {
	m.once.Do(func() {
		if m.eval == nil {
			return
		}
		m.mib, m.err = m.eval(ctx)
	})
	return m.mib, m.err
}
