// Package agent drains the job queue. An Agent owns a fixed set of job types
// and a Runner drives one Agent: claim, process, complete and, for failures
// within budget, retry.
package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/ratelimit"
)

// Agent processes the job types it owns.
//
// ProcessJob reports failures through the returned JobResult. Errors and
// panics escaping it are turned into failed results by the Runner.
type Agent interface {
	Name() string
	JobTypes() []model.JobType
	ProcessJob(ctx context.Context, job *model.Job) model.JobResult
}

var (
	// ErrDuplicateAgent is returned when an agent name is registered twice.
	ErrDuplicateAgent = errors.New("agent already registered")
	// ErrJobTypeOwned is returned when two agents claim the same job type.
	ErrJobTypeOwned = errors.New("job type already owned by another agent")
	// ErrUnknownAgent is returned by Get for an unregistered name.
	ErrUnknownAgent = errors.New("unknown agent")
)

// Registry holds agents by name. Every job type has at most one owner.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
	owners map[model.JobType]string
}

// NewRegistry registers the given agents.
func NewRegistry(agents ...Agent) (*Registry, error) {
	r := &Registry{
		agents: make(map[string]Agent),
		owners: make(map[model.JobType]string),
	}
	for _, a := range agents {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an agent.
func (r *Registry) Register(a Agent) error {
	if a == nil {
		return errors.New("agent is required")
	}
	types := a.JobTypes()
	if len(types) == 0 {
		return fmt.Errorf("agent %s: no job types", a.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[a.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, a.Name())
	}
	for _, t := range types {
		if !t.Valid() {
			return fmt.Errorf("agent %s: invalid job type %q", a.Name(), t)
		}
		if owner, ok := r.owners[t]; ok {
			return fmt.Errorf("%w: %s is owned by %s", ErrJobTypeOwned, t, owner)
		}
	}
	r.agents[a.Name()] = a
	for _, t := range types {
		r.owners[t] = a.Name()
	}
	return nil
}

// Get returns the agent registered under name.
//
//nolint:ireturn // registry lookups return the capability.
func (r *Registry) Get(name string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return a, nil
}

// Owner returns the agent that processes job type t.
//
//nolint:ireturn // registry lookups return the capability.
func (r *Registry) Owner(t model.JobType) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.owners[t]
	if !ok {
		return nil, false
	}
	return r.agents[name], true
}

// Agents returns the registered agents sorted by name.
func (r *Registry) Agents() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Unowned returns the job types no registered agent processes.
func (r *Registry) Unowned() []model.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.JobType
	for _, t := range model.AllJobTypes() {
		if _, ok := r.owners[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// Close closes every agent implementing io.Closer and joins the errors.
func (r *Registry) Close() error {
	var errs []error
	for _, a := range r.Agents() {
		if c, ok := a.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close agent %s: %w", a.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Fail builds a failed result for err. An exhausted daily quota is marked
// NoRetry so the job is not re-armed before the quota resets.
func Fail(err error) model.JobResult {
	res := model.Failed(err)
	if ratelimit.IsRateLimitExceeded(err) {
		res.NoRetry = true
	}
	return res
}

// owns reports whether t is among the agent's job types.
func owns(a Agent, t model.JobType) bool {
	return slices.Contains(a.JobTypes(), t)
}
