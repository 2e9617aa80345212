// Package dag implements the immutable in-memory DAG model and
// post-order traversal over a project's jobsets (spec.md §4.3).
//
// The teacher's registry/storage/graph.go walks a similar shape (a tree
// of repositories/manifests/layers) to build reference-counted graph
// info; fspx's DAG is simpler (one child mapping, `deps`) but keeps the
// same "leaves first" discipline and, per the REDESIGN FLAG in
// spec.md §9, replaces the Python source's mutable shared accumulator
// and unbounded recursion with an explicit return value and a
// visited-stack cycle check.
package dag

import (
	"fmt"
	"sort"

	"fspx/internal/ferrors"
	"fspx/internal/project"
)

// Node pairs a job with the name it was declared under.
type Node struct {
	Name string
	Job  *project.Job
}

// FindAllJobs flattens jobsets into post-order (children before
// parents). Sibling order is not specified by spec.md beyond "a valid
// execution order"; this orders siblings by name for determinism.
// Shared subgraphs are not de-duplicated (spec.md §4.3): a job reachable
// through two parents appears twice. A true cycle (a job that is its own
// ancestor) is a ConfigError, not infinite recursion.
func FindAllJobs(jobsets map[string]*project.Job) ([]Node, error) {
	var out []Node
	if err := visit(jobsets, map[string]bool{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func visit(jobsets map[string]*project.Job, onStack map[string]bool, out *[]Node) error {
	for _, name := range SortedJobNames(jobsets) {
		job := jobsets[name]
		if onStack[name] {
			return &ferrors.ConfigError{Reason: fmt.Sprintf("cycle detected: job %q depends on itself", name)}
		}

		onStack[name] = true
		if err := visit(job.Deps, onStack, out); err != nil {
			return err
		}
		delete(onStack, name)

		*out = append(*out, Node{Name: name, Job: job})
	}
	return nil
}

// SortedJobNames returns a job map's keys in a deterministic order, used
// wherever sibling order isn't otherwise constrained.
func SortedJobNames(m map[string]*project.Job) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FindJob searches jobsets (and transitively their deps) for name.
func FindJob(jobsets map[string]*project.Job, name string) (*project.Job, error) {
	if job, ok := jobsets[name]; ok {
		return job, nil
	}
	for _, job := range jobsets {
		if found, err := FindJob(job.Deps, name); err == nil {
			return found, nil
		}
	}
	return nil, &ferrors.NotFound{What: "job", Name: name}
}

// ValidateOutputRefs checks that every output-reference input
// (":rest-of-name", resolving to "outputs/<rest-of-name>") names an
// output actually produced by one of the job's declared dependencies,
// per spec.md §9's suggestion to materialize output-references as
// explicit dependency edges and validate the producer is declared.
func ValidateOutputRefs(jobsets map[string]*project.Job) error {
	for name, job := range jobsets {
		for input := range job.Inputs {
			if !project.IsOutputRef(input) {
				continue
			}
			tail := project.OutputRefTail(input)
			if !producedByDep(job.Deps, tail) {
				return &ferrors.ConfigError{Reason: fmt.Sprintf("job %q: output-reference %q is not produced by any declared dependency", name, input)}
			}
		}
		if err := ValidateOutputRefs(job.Deps); err != nil {
			return err
		}
	}
	return nil
}

func producedByDep(deps map[string]*project.Job, outputName string) bool {
	for _, dep := range deps {
		for _, out := range dep.Outputs {
			if out == outputName {
				return true
			}
		}
	}
	return false
}
