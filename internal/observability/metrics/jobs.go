// Package metrics holds the metric names and tag conventions shared by the queue, agents and collectors.
package metrics

import (
	"time"

	obserrors "github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/errors"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Job transitions.
const (
	TransitionEnqueue  = "enqueue"
	TransitionClaim    = "claim"
	TransitionComplete = "complete"
	TransitionRetry    = "retry"
	TransitionCancel   = "cancel"
)

// JobMetric captures one job lifecycle event.
type JobMetric struct {
	JobType    string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits job.transition and, when a duration is known, job.duration.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_type":   in.JobType,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// AgentMetric captures one job processed by an agent.
type AgentMetric struct {
	Agent    string
	JobType  string
	Result   string
	Panicked bool
	Duration time.Duration
}

// EmitAgentRun emits agent.job and agent.process_time.
func EmitAgentRun(sink statsd.Sink, in AgentMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"agent":    in.Agent,
		"job_type": in.JobType,
		"result":   in.Result,
	}
	sink.Count("agent.job", 1, tags)
	if in.Panicked {
		sink.Count("agent.panic", 1, map[string]string{"agent": in.Agent, "job_type": in.JobType})
	}
	if in.Duration > 0 {
		sink.Timing("agent.process_time", in.Duration, CloneTags(tags))
	}
}

// Rate limiter events.
const (
	RateLimitWait   = "wait"
	RateLimitCapHit = "cap_hit"
)

// RateLimitMetric captures a limiter wait or a daily cap refusal.
type RateLimitMetric struct {
	Platform string
	Event    string
	Waited   time.Duration
}

// EmitRateLimit emits ratelimit.<event> and the time spent waiting for a token.
func EmitRateLimit(sink statsd.Sink, in RateLimitMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"platform": in.Platform}
	sink.Count("ratelimit."+in.Event, 1, tags)
	if in.Waited > 0 {
		sink.Timing("ratelimit.wait_time", in.Waited, CloneTags(tags))
	}
}

// CollectionMetric captures the outcome of collecting one account.
type CollectionMetric struct {
	Platform string
	Status   string
	Posts    int
	Duration time.Duration
	Err      error
}

// EmitCollection emits collector.run and the number of posts stored.
func EmitCollection(sink statsd.Sink, in CollectionMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"platform": in.Platform, "status": in.Status}
	if in.Err != nil {
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count("collector.run", 1, tags)
	if in.Posts > 0 {
		sink.Count("collector.posts", int64(in.Posts), CloneTags(tags))
	}
	if in.Duration > 0 {
		sink.Timing("collector.duration", in.Duration, CloneTags(tags))
	}
}

// QueueDepth reports pending and running gauges.
func QueueDepth(sink statsd.Sink, pending, running int) {
	if sink == nil {
		return
	}
	sink.Gauge("queue.pending", float64(pending), nil)
	sink.Gauge("queue.running", float64(running), nil)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
