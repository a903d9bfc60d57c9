package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitJobLifecycle(t *testing.T) {
	var rec statsd.Recorder

	EmitJobLifecycle(&rec, JobMetric{
		JobType:    "collect_account",
		Transition: TransitionComplete,
		Result:     ResultError,
		Duration:   2 * time.Second,
		Err:        errors.New("boom"),
	})

	samples := rec.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, "job.transition", samples[0].Name)
	assert.Equal(t, "errors_errorstring", samples[0].Tags["error_class"])
	assert.Equal(t, "job.duration", samples[1].Name)
	assert.InDelta(t, 2000, samples[1].Value, 0.001)

	EmitJobLifecycle(nil, JobMetric{})
}

func TestEmitJobLifecycle_NoErrorClassOnSuccess(t *testing.T) {
	var rec statsd.Recorder
	EmitJobLifecycle(&rec, JobMetric{JobType: "export_excel", Transition: TransitionClaim, Result: ResultSuccess})

	samples := rec.Samples()
	require.Len(t, samples, 1)
	_, ok := samples[0].Tags["error_class"]
	assert.False(t, ok)
}

func TestEmitRateLimit(t *testing.T) {
	var rec statsd.Recorder
	EmitRateLimit(&rec, RateLimitMetric{Platform: "instagram", Event: RateLimitWait, Waited: 6 * time.Second})
	EmitRateLimit(&rec, RateLimitMetric{Platform: "instagram", Event: RateLimitCapHit})

	assert.Equal(t, int64(1), rec.Total("ratelimit.wait", map[string]string{"platform": "instagram"}))
	assert.Equal(t, int64(1), rec.Total("ratelimit.cap_hit", nil))
	assert.Len(t, rec.Samples(), 3)
}

func TestEmitCollection(t *testing.T) {
	var rec statsd.Recorder
	EmitCollection(&rec, CollectionMetric{Platform: "twitter", Status: "success", Posts: 12, Duration: time.Second})
	EmitCollection(&rec, CollectionMetric{Platform: "twitter", Status: "failed", Err: errors.New("x")})

	assert.Equal(t, int64(12), rec.Total("collector.posts", nil))
	assert.Equal(t, int64(2), rec.Total("collector.run", map[string]string{"platform": "twitter"}))
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1"}
	cp := CloneTags(src)
	cp["a"] = "2"
	assert.Equal(t, "1", src["a"])
}

func TestEmitAgentRun(t *testing.T) {
	var rec statsd.Recorder
	EmitAgentRun(&rec, AgentMetric{
		Agent:    "DataAgent",
		JobType:  "collect_account",
		Result:   ResultError,
		Panicked: true,
		Duration: time.Second,
	})

	assert.Equal(t, int64(1), rec.Total("agent.job", map[string]string{"agent": "DataAgent", "result": ResultError}))
	assert.Equal(t, int64(1), rec.Total("agent.panic", nil))
	require.Len(t, rec.Samples(), 3)
}
