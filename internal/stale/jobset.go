package stale

import (
	"fspx/internal/dag"
	"fspx/internal/project"
)

// CheckJobset implements check_jobset (spec.md §4.4, P7): post-order
// over the DAG, cascading invalidation so a job is added to the
// recalculation set if it is itself stale or any descendant is stale.
// The accumulator is threaded through return values, not a shared
// mutable default argument (spec.md §9's DAG-traversal REDESIGN FLAG).
func (c *Checker) CheckJobset(jobset map[string]*project.Job) (recalc []dag.Node, valid bool, err error) {
	valid = true

	for _, name := range dag.SortedJobNames(jobset) {
		job := jobset[name]

		childRecalc, childValid, err := c.CheckJobset(job.Deps)
		if err != nil {
			return nil, false, err
		}
		recalc = append(recalc, childRecalc...)

		if !childValid {
			valid = false
			recalc = append(recalc, dag.Node{Name: name, Job: job})
			continue
		}

		fresh, err := c.CheckJob(name, job)
		if err != nil {
			return nil, false, err
		}
		if !fresh {
			valid = false
			recalc = append(recalc, dag.Node{Name: name, Job: job})
		}
	}

	return recalc, valid, nil
}
