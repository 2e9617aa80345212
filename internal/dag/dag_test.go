package dag

import (
	"testing"

	"fspx/internal/project"
)

func TestFindAllJobsIsPostOrder(t *testing.T) {
	b := &project.Job{Outputs: []string{"b.out"}}
	a := &project.Job{Deps: map[string]*project.Job{"B": b}}

	nodes, err := FindAllJobs(map[string]*project.Job{"A": a})
	if err != nil {
		t.Fatalf("FindAllJobs: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}
	if nodes[0].Name != "B" || nodes[1].Name != "A" {
		t.Fatalf("order = %v, want [B A] (children before parent)", names(nodes))
	}
}

func TestFindAllJobsDetectsCycles(t *testing.T) {
	a := &project.Job{}
	b := &project.Job{Deps: map[string]*project.Job{"A": a}}
	a.Deps = map[string]*project.Job{"B": b}

	if _, err := FindAllJobs(map[string]*project.Job{"A": a}); err == nil {
		t.Fatalf("expected a cycle error, got nil")
	}
}

func TestValidateOutputRefsAcceptsDeclaredDependency(t *testing.T) {
	a := &project.Job{Outputs: []string{"A.y.txt"}}
	b := &project.Job{
		Inputs: map[string]*string{":A.y.txt": nil},
		Deps:   map[string]*project.Job{"A": a},
	}

	if err := ValidateOutputRefs(map[string]*project.Job{"A": a, "B": b}); err != nil {
		t.Fatalf("ValidateOutputRefs: %v", err)
	}
}

func TestValidateOutputRefsRejectsUndeclaredProducer(t *testing.T) {
	b := &project.Job{
		Inputs: map[string]*string{":A.y.txt": nil},
	}

	if err := ValidateOutputRefs(map[string]*project.Job{"B": b}); err == nil {
		t.Fatalf("expected an error for an output-reference with no producing dependency")
	}
}

func names(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}
