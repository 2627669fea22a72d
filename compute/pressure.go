package compute

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"math"
	"sort"
)

// Thresholds separate large jobs from small ones. CPUs is the size of a
// generic auto glide-in; a job fits one if it asks for at most CPUs cores
// and CPUs × MemoryPerCore MiB.
type Thresholds struct {
	CPUs          int
	MemoryPerCore int
}

// MemoryLimit is the memory of a generic glide-in in MiB.
func (t Thresholds) MemoryLimit() int {
	return t.CPUs * t.MemoryPerCore
}

// IsLarge reports whether j exceeds either threshold.
func (t Thresholds) IsLarge(ctx context.Context, j *Job) (bool, error) {
	if j.Cpus() > t.CPUs {
		return true, nil
	}
	mem, err := j.MemoryMiB(ctx)
	if err != nil {
		return false, err
	}
	return mem > t.MemoryLimit(), nil
}

// Classify partitions jobs into large and small. Order within each class
// follows jobs.
func Classify(ctx context.Context, jobs []*Job, th Thresholds) (large, small []*Job, err error) {
	for _, j := range jobs {
		isLarge, err := th.IsLarge(ctx, j)
		if err != nil {
			return nil, nil, err
		}
		if isLarge {
			large = append(large, j)
		} else {
			small = append(small, j)
		}
	}
	return large, small, nil
}

// LargeGroup is a set of large jobs sharing a label. Every job in the group
// gets its own glide-in sized like the group's first job.
type LargeGroup struct {
	Label     string
	Jobs      []*Job
	Target    int
	Cpus      int
	MemoryMiB int
}

// GroupLarge groups large jobs by label(job). Groups are sorted by label.
// Cpus is raised to at least th.CPUs.
func GroupLarge(ctx context.Context, large []*Job, th Thresholds, label func(*Job) string) ([]LargeGroup, error) {
	byLabel := map[string][]*Job{}
	for _, j := range large {
		l := label(j)
		byLabel[l] = append(byLabel[l], j)
	}

	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	groups := make([]LargeGroup, 0, len(labels))
	for _, l := range labels {
		jobs := byLabel[l]
		first := jobs[0]
		mem, err := first.MemoryMiB(ctx)
		if err != nil {
			return nil, err
		}
		cpus := first.Cpus()
		if cpus < th.CPUs {
			cpus = th.CPUs
		}
		groups = append(groups, LargeGroup{
			Label:     l,
			Jobs:      jobs,
			Target:    len(jobs),
			Cpus:      cpus,
			MemoryMiB: mem,
		})
	}
	return groups, nil
}

// LargeJobName is the batch job name of large glide-ins for label:
// the user name and the first six hex digits of the label's SHA-1.
func LargeJobName(user, label string) string {
	sum := sha1.Sum([]byte(label))
	return user + "_" + hex.EncodeToString(sum[:])[:6]
}

// SmallJobName is the batch job name of generic glide-ins.
func SmallJobName(user string) string {
	return "glide_" + user
}

// SmallCores sums the effective cores of small jobs. A job whose memory
// request covers more cores than it asks for counts the extra cores too.
func SmallCores(ctx context.Context, small []*Job, memoryPerCore int) (float64, error) {
	var total float64
	for _, j := range small {
		cpus := float64(j.Cpus())
		total += cpus
		mem, err := j.MemoryMiB(ctx)
		if err != nil {
			return 0, err
		}
		if memoryPerCore <= 0 {
			continue
		}
		if ratio := float64(mem) / float64(memoryPerCore); ratio > cpus {
			total += ratio - cpus
		}
	}
	return total, nil
}

// GlideinsFor returns the number of autoCPUs-sized glide-ins needed to
// cover cores.
func GlideinsFor(cores float64, autoCPUs int) int {
	if autoCPUs <= 0 || cores <= 0 {
		return 0
	}
	return int(math.Ceil(cores / float64(autoCPUs)))
}

// ClampCeiling limits the node ceiling to the allowed number of auto glide-ins.
func ClampCeiling(nodes, allowed int) int {
	if nodes > allowed {
		return allowed
	}
	return nodes
}

// Throttle returns how many generic glide-ins to submit. Pending glide-ins
// count against the target, and running plus pending ones count against
// the ceiling. The result is never negative.
func Throttle(target, ceiling, running, idle int) int {
	n := target - idle
	if max := ceiling - running - idle; n > max {
		n = max
	}
	if n < 0 {
		return 0
	}
	return n
}

// LargeShortfall returns how many large glide-ins are missing when pending
// of them are already queued.
func LargeShortfall(target, pending int) int {
	if n := target - pending; n > 0 {
		return n
	}
	return 0
}

// ManualNodes limits a manual request of nodes glide-ins of cpus cores each
// to the core budget allowed × autoCPUs.
func ManualNodes(nodes, cpus, allowed, autoCPUs int) int {
	limit := allowed * autoCPUs
	if cpus > 0 && nodes*cpus > limit {
		return limit / cpus
	}
	return nodes
}
