package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/ratelimit"
)

type closingAgent struct {
	funcAgent
	closed bool
	err    error
}

func (a *closingAgent) Close() error {
	a.closed = true
	return a.err
}

func TestRegistry_Register(t *testing.T) {
	data := &funcAgent{name: "DataAgent", types: []model.JobType{model.JobTypeCollectAccount}, fn: succeed}
	analyse := &funcAgent{name: "AnalyseAgent", types: []model.JobType{model.JobTypeCalculateMonthly}, fn: succeed}

	reg, err := NewRegistry(data, analyse)
	require.NoError(t, err)

	got, err := reg.Get("DataAgent")
	require.NoError(t, err)
	assert.Same(t, data, got)

	_, err = reg.Get("missing")
	require.ErrorIs(t, err, ErrUnknownAgent)

	owner, ok := reg.Owner(model.JobTypeCalculateMonthly)
	require.True(t, ok)
	assert.Equal(t, "AnalyseAgent", owner.Name())

	names := []string{}
	for _, a := range reg.Agents() {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"AnalyseAgent", "DataAgent"}, names)
	assert.Contains(t, reg.Unowned(), model.JobTypeExportExcel)
	assert.NotContains(t, reg.Unowned(), model.JobTypeCollectAccount)
}

func TestRegistry_RegisterRejects(t *testing.T) {
	tests := []struct {
		name    string
		agent   Agent
		wantErr error
	}{
		{
			name:    "duplicate name",
			agent:   &funcAgent{name: "DataAgent", types: []model.JobType{model.JobTypeExportExcel}, fn: succeed},
			wantErr: ErrDuplicateAgent,
		},
		{
			name:    "job type already owned",
			agent:   &funcAgent{name: "Other", types: []model.JobType{model.JobTypeCollectAccount}, fn: succeed},
			wantErr: ErrJobTypeOwned,
		},
		{
			name:  "invalid job type",
			agent: &funcAgent{name: "Broken", types: []model.JobType{"send_email"}, fn: succeed},
		},
		{
			name:  "no job types",
			agent: &funcAgent{name: "Idle", fn: succeed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(&funcAgent{
				name:  "DataAgent",
				types: []model.JobType{model.JobTypeCollectAccount},
				fn:    succeed,
			})
			require.NoError(t, err)

			err = reg.Register(tt.agent)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
			assert.Len(t, reg.Agents(), 1)
		})
	}
}

func TestRegistry_Close(t *testing.T) {
	a := &closingAgent{funcAgent: funcAgent{name: "a", types: []model.JobType{model.JobTypeCollectAccount}, fn: succeed}}
	b := &closingAgent{
		funcAgent: funcAgent{name: "b", types: []model.JobType{model.JobTypeExportExcel}, fn: succeed},
		err:       errors.New("flush failed"),
	}
	reg, err := NewRegistry(a, b)
	require.NoError(t, err)

	err = reg.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close agent b")
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestFail(t *testing.T) {
	res := Fail(errors.New("boom"))
	assert.False(t, res.Success)
	assert.Equal(t, "boom", res.Error)
	assert.False(t, res.NoRetry)

	res = Fail(ratelimit.ErrRateLimitExceeded)
	assert.True(t, res.NoRetry)

	res = Fail(nil)
	assert.Equal(t, "unknown failure", res.Error)
}

func TestFuncAgentProcesses(t *testing.T) {
	a := &funcAgent{name: "a", types: []model.JobType{model.JobTypeCollectAccount}, fn: succeed}
	res := a.ProcessJob(context.Background(), &model.Job{Type: model.JobTypeCollectAccount})
	assert.True(t, res.Success)
	assert.True(t, owns(a, model.JobTypeCollectAccount))
	assert.False(t, owns(a, model.JobTypeExportExcel))
}
