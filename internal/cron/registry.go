package cron

import (
	"context"
	"strings"
)

// Job is one unit of scheduled work, such as a catalog refresh.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs of a scheduler, keyed by name. A second job with a
// name already registered is ignored, so a job wired both in-process and by
// the worker binary never runs twice per cycle.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds job and reports whether it was accepted. Nil jobs, unnamed
// jobs and duplicate names are rejected.
func (r *Registry) Register(job Job) bool {
	if job == nil {
		return false
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return false
	}
	if _, taken := r.names[name]; taken {
		return false
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return true
}

// Jobs returns a copy of the jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Names lists the registered job names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}
