package compute

import (
	"fmt"
	"strings"
)

// Constraint builds an HTCondor ClassAd constraint by and-ing clauses.
type Constraint struct {
	clauses []string
}

// IdleJobsOf starts a constraint matching idle vanilla jobs of owner.
func IdleJobsOf(owner string) *Constraint {
	return new(Constraint).
		Where(fmt.Sprintf("Owner==%q", owner)).
		Where(fmt.Sprintf("JobStatus==%d", JobIdle)).
		Where(fmt.Sprintf("JobUniverse==%d", UniverseVanilla))
}

// Where adds an arbitrary clause.
func (c *Constraint) Where(clause string) *Constraint {
	c.clauses = append(c.clauses, "("+clause+")")
	return c
}

// Defined requires each attribute to be set.
func (c *Constraint) Defined(attrs ...string) *Constraint {
	for _, a := range attrs {
		c.Where(a + " isnt Undefined")
	}
	return c
}

// Large requires jobs too big for a generic glide-in.
func (c *Constraint) Large(th Thresholds) *Constraint {
	return c.Where(fmt.Sprintf("RequestMemory>%d || RequestCpus>%d", th.MemoryLimit(), th.CPUs))
}

// Small requires jobs that fit a generic glide-in.
func (c *Constraint) Small(th Thresholds) *Constraint {
	return c.Where(fmt.Sprintf("RequestMemory<=%d && RequestCpus<=%d", th.MemoryLimit(), th.CPUs))
}

func (c *Constraint) String() string {
	return strings.Join(c.clauses, " && ")
}
