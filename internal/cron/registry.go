package cron

import (
	"context"
	"fmt"
)

// Job is one maintenance task run on every cron cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry is the ordered set of jobs a cycle runs. Names are unique since they
// label metrics and log lines.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry registers jobs in order, skipping nil entries.
func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{names: make(map[string]struct{}, len(jobs))}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if _, dup := r.names[job.Name()]; dup {
		return fmt.Errorf("cron job %q registered twice", job.Name())
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
