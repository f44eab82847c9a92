package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrder(t *testing.T) {
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry, err := NewRegistry(jobA, nil, jobB)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("unexpected jobs %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	if _, err := NewRegistry(&stubJob{name: "prune"}, &stubJob{name: "prune"}); err == nil {
		t.Fatal("expected duplicate job name to fail")
	}
}
