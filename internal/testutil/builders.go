// Package testutil provides testing utilities and helpers for the social media monitor.
package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder for an update_followers job at default priority.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			Type:     model.JobTypeUpdateFollowers,
			Priority: model.DefaultPriority,
			Payload:  json.RawMessage(`{}`),
		},
	}
}

// WithType sets the job type.
func (b *JobRequestBuilder) WithType(jobType model.JobType) *JobRequestBuilder {
	b.req.Type = jobType
	return b
}

// WithPriority sets the job priority.
func (b *JobRequestBuilder) WithPriority(priority int) *JobRequestBuilder {
	b.req.Priority = priority
	return b
}

// WithPayload encodes a typed payload and sets the matching job type.
func (b *JobRequestBuilder) WithPayload(p model.Payload) *JobRequestBuilder {
	raw, err := model.EncodePayload(p)
	if err != nil {
		panic(fmt.Sprintf("encode test payload: %v", err))
	}
	b.req.Type = p.JobType()
	b.req.Payload = raw
	return b
}

// WithPayloadString sets the raw job payload.
func (b *JobRequestBuilder) WithPayloadString(payload string) *JobRequestBuilder {
	b.req.Payload = json.RawMessage(payload)
	return b
}

// WithMaxRetries sets the retry budget.
func (b *JobRequestBuilder) WithMaxRetries(maxRetries int) *JobRequestBuilder {
	b.req.MaxRetries = &maxRetries
	return b
}

// Build returns a copy of the built request.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	out := *b.req
	if b.req.MaxRetries != nil {
		n := *b.req.MaxRetries
		out.MaxRetries = &n
	}
	out.Payload = append(json.RawMessage(nil), b.req.Payload...)
	return &out
}

// CollectAccountJobRequest returns a collect_account request for the account.
func CollectAccountJobRequest(accountID string) *model.CreateJobRequest {
	return NewJobRequest().
		WithPayload(model.CollectAccountPayload{AccountID: accountID}).
		WithPriority(3).
		Build()
}

// MonthlyAnalysisJobRequest returns a calculate_monthly request for every account in the month.
func MonthlyAnalysisJobRequest(yearMonth string) *model.CreateJobRequest {
	return NewJobRequest().
		WithPayload(model.CalculateMonthlyPayload{YearMonth: yearMonth}).
		Build()
}

// HighPriorityJobRequest returns a priority 1 update_followers request.
func HighPriorityJobRequest() *model.CreateJobRequest {
	return NewJobRequest().WithPriority(model.MinPriority).Build()
}

// LowPriorityJobRequest returns a priority 10 update_followers request.
func LowPriorityJobRequest() *model.CreateJobRequest {
	return NewJobRequest().WithPriority(model.MaxPriority).Build()
}

// RetryableJobRequest returns a request with the given retry budget.
func RetryableJobRequest(maxRetries int) *model.CreateJobRequest {
	return NewJobRequest().WithMaxRetries(maxRetries).Build()
}
