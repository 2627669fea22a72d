// Package computetest provides fakes of the external collaborators used by
// the compute backends.
package computetest

import (
	"context"
	"strings"
	"sync"

	"github.com/ohsu-comp-bio/glidein/compute"
)

// Response is the scripted result of a command.
type Response struct {
	Stdout string
	Code   int
	Err    error
}

// Runner records commands and answers them from Responses. A command is
// matched by the longest key that prefixes its quoted form; unmatched
// commands succeed with no output.
type Runner struct {
	mu        sync.Mutex
	Responses map[string]Response
	Calls     []compute.Command
}

// NewRunner returns a Runner with no scripted responses.
func NewRunner() *Runner {
	return &Runner{Responses: map[string]Response{}}
}

// On scripts the response for commands starting with prefix.
func (r *Runner) On(prefix string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Responses[prefix] = resp
	return r
}

// Run implements compute.Runner.
func (r *Runner) Run(ctx context.Context, c compute.Command) (int, error) {
	resp := r.record(c)
	return resp.Code, resp.Err
}

// Output implements compute.Runner.
func (r *Runner) Output(ctx context.Context, c compute.Command) (string, error) {
	resp := r.record(c)
	if resp.Err != nil {
		return "", resp.Err
	}
	if resp.Code != 0 {
		return "", &compute.ExitError{Cmd: c.String(), Code: resp.Code}
	}
	return resp.Stdout, nil
}

// Commands returns the quoted form of every recorded command.
func (r *Runner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.String()
	}
	return out
}

// Count returns how many recorded commands start with prefix.
func (r *Runner) Count(prefix string) int {
	n := 0
	for _, c := range r.Commands() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (r *Runner) record(c compute.Command) Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, c)

	s := c.String()
	best := ""
	var resp Response
	for prefix, rr := range r.Responses {
		if strings.HasPrefix(s, prefix) && len(prefix) > len(best) {
			best, resp = prefix, rr
		}
	}
	return resp
}

// Queue is a fake HTCondor job queue. A query returns the jobs of every
// key of Jobs contained in the constraint.
type Queue struct {
	Schedd  string
	Jobs    map[string][]*compute.Job
	Err     error
	Queries []string
}

// Query implements compute.JobQueue.
func (q *Queue) Query(ctx context.Context, constraint string, projection []string) (map[string]map[compute.JobID]*compute.Job, error) {
	q.Queries = append(q.Queries, constraint)
	if q.Err != nil {
		return nil, q.Err
	}
	m := map[compute.JobID]*compute.Job{}
	for key, jobs := range q.Jobs {
		if !strings.Contains(constraint, key) {
			continue
		}
		for _, j := range jobs {
			m[j.ID] = j
		}
	}
	out := map[string]map[compute.JobID]*compute.Job{}
	if len(m) > 0 {
		out[q.Schedd] = m
	}
	return out, nil
}

// Job returns an idle vanilla job.
func Job(cluster, cpus, memMiB int, label string) *compute.Job {
	return &compute.Job{
		ID:            compute.JobID{Cluster: cluster},
		RequestCpus:   cpus,
		RequestMemory: compute.FixedMemory(memMiB),
		Owner:         "jdoe",
		Status:        compute.JobIdle,
		Universe:      compute.UniverseVanilla,
		Label:         label,
	}
}
