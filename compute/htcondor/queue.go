// Package htcondor reads the HTCondor job queue through condor_q.
package htcondor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ohsu-comp-bio/glidein/compute"
	"github.com/ohsu-comp-bio/glidein/logger"
)

// Queue queries one schedd with "condor_q -json".
type Queue struct {
	// condor_q program, possibly with leading arguments.
	CondorQ string
	// Schedd to query. Empty queries the local schedd, reported under the
	// host name.
	ScheddName string
	Timeout    time.Duration
	Runner     compute.Runner
	Log        *logger.Logger
}

// NewQueue returns a Queue using runner.
func NewQueue(condorQ, schedd string, timeout time.Duration, runner compute.Runner, log *logger.Logger) *Queue {
	return &Queue{
		CondorQ:    condorQ,
		ScheddName: schedd,
		Timeout:    timeout,
		Runner:     runner,
		Log:        log,
	}
}

// jobAd is the JSON form of the queried attributes. Numbers HTCondor could
// not evaluate come back as strings, e.g. "/Expr(...)/".
type jobAd struct {
	ClusterId     int
	ProcId        int
	Owner         string
	JobStatus     int
	JobUniverse   int
	RequestCpus   json.RawMessage
	RequestMemory json.RawMessage
	BpsJobLabel   string `json:"bps_job_label"`
	BpsRun        string `json:"bps_run"`
}

// Query implements compute.JobQueue. ClusterId and ProcId are always part
// of the projection.
func (q *Queue) Query(ctx context.Context, constraint string, projection []string) (map[string]map[compute.JobID]*compute.Job, error) {
	attrs := append(append([]string{}, projection...), "ClusterId", "ProcId")

	var args []string
	if q.ScheddName != "" {
		args = append(args, "-name", q.ScheddName)
	}
	args = append(args, "-json", "-constraint", constraint, "-attributes", strings.Join(attrs, ","))

	cmd, err := compute.NewCommand(q.CondorQ, args...)
	if err != nil {
		return nil, err
	}
	out, err := q.Runner.Output(ctx, cmd.WithTimeout(q.Timeout))
	if err != nil {
		return nil, err
	}

	ads, err := parseAds(out)
	if err != nil {
		return nil, fmt.Errorf("parsing condor_q output: %w", err)
	}

	result := map[string]map[compute.JobID]*compute.Job{}
	if len(ads) == 0 {
		return result, nil
	}

	batch := &memoryBatch{q: q, constraint: constraint}
	jobs := make(map[compute.JobID]*compute.Job, len(ads))
	for _, ad := range ads {
		j, err := q.toJob(ad, batch)
		if err != nil {
			return nil, err
		}
		jobs[j.ID] = j
	}
	result[q.schedd()] = jobs
	return result, nil
}

func (q *Queue) schedd() string {
	if q.ScheddName != "" {
		return q.ScheddName
	}
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return host
}

func parseAds(out string) ([]jobAd, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	var ads []jobAd
	err := json.Unmarshal([]byte(out), &ads)
	return ads, err
}

func (q *Queue) toJob(ad jobAd, batch *memoryBatch) (*compute.Job, error) {
	id := compute.JobID{Cluster: ad.ClusterId, Proc: ad.ProcId}

	cpus, ok := number(ad.RequestCpus)
	if !ok && len(ad.RequestCpus) > 0 {
		return nil, fmt.Errorf("job %s: RequestCpus is not a number: %s", id, ad.RequestCpus)
	}

	j := &compute.Job{
		ID:          id,
		RequestCpus: cpus,
		Owner:       ad.Owner,
		Status:      compute.JobStatus(ad.JobStatus),
		Universe:    ad.JobUniverse,
		Label:       ad.BpsJobLabel,
		Run:         ad.BpsRun,
	}

	if mem, ok := number(ad.RequestMemory); ok || len(ad.RequestMemory) == 0 {
		j.RequestMemory = compute.FixedMemory(mem)
	} else {
		j.RequestMemory = compute.LazyMemory(func(ctx context.Context) (int, error) {
			return batch.get(ctx, id)
		})
	}
	return j, nil
}

// memoryBatch evaluates RequestMemory of all jobs matching constraint with
// one condor_q call, made the first time any of them is read.
type memoryBatch struct {
	q          *Queue
	constraint string

	once sync.Once
	mib  map[compute.JobID]int
	err  error
}

func (b *memoryBatch) get(ctx context.Context, id compute.JobID) (int, error) {
	b.once.Do(func() {
		b.mib, b.err = b.q.evalMemoryAll(ctx, b.constraint)
	})
	if b.err != nil {
		return 0, b.err
	}
	if mib, ok := b.mib[id]; ok {
		return mib, nil
	}
	// The job changed or was not evaluated to a number in the batch.
	return b.q.evalMemory(ctx, id)
}

// evalMemoryAll asks the schedd to evaluate RequestMemory of every job
// matching constraint. Jobs whose value is not a number are left out.
func (q *Queue) evalMemoryAll(ctx context.Context, constraint string) (map[compute.JobID]int, error) {
	var args []string
	if q.ScheddName != "" {
		args = append(args, "-name", q.ScheddName)
	}
	args = append(args, "-constraint", constraint, "-af", "ClusterId", "ProcId", "RequestMemory")

	cmd, err := compute.NewCommand(q.CondorQ, args...)
	if err != nil {
		return nil, err
	}
	out, err := q.Runner.Output(ctx, cmd.WithTimeout(q.Timeout))
	if err != nil {
		return nil, err
	}

	res := map[compute.JobID]int{}
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) != 3 {
			continue
		}
		cluster, cerr := strconv.Atoi(f[0])
		proc, perr := strconv.Atoi(f[1])
		mib, merr := strconv.ParseFloat(f[2], 64)
		if cerr != nil || perr != nil || merr != nil {
			continue
		}
		res[compute.JobID{Cluster: cluster, Proc: proc}] = int(mib)
	}
	if q.Log != nil {
		q.Log.Debug("evaluated RequestMemory", "jobs", len(res))
	}
	return res, nil
}

// evalMemory asks the schedd to evaluate RequestMemory of one job.
func (q *Queue) evalMemory(ctx context.Context, id compute.JobID) (int, error) {
	var args []string
	if q.ScheddName != "" {
		args = append(args, "-name", q.ScheddName)
	}
	args = append(args, id.String(), "-af", "RequestMemory")

	cmd, err := compute.NewCommand(q.CondorQ, args...)
	if err != nil {
		return 0, err
	}
	out, err := q.Runner.Output(ctx, cmd.WithTimeout(q.Timeout))
	if err != nil {
		return 0, err
	}
	v := strings.TrimSpace(out)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("RequestMemory of job %s evaluated to %q", id, v)
	}
	if q.Log != nil {
		q.Log.Debug("evaluated RequestMemory", "job", id.String(), "mib", int(f))
	}
	return int(f), nil
}

// number decodes a JSON number. Strings and nulls are not numbers.
func number(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return int(f), true
}
