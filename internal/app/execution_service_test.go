package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
	"github.com/openctemio/toolstudio/pkg/domain/toolversion"
)

type ledgerFixture struct {
	*fixture
	svc     *ExecutionService
	owner   *tool.Tool
	version *toolversion.Version
}

func newLedgerFixture(t *testing.T, cfg ExecutionServiceConfig) *ledgerFixture {
	t.Helper()
	f := newFixture()
	owner := f.seedTool(t, "ledger")
	v, err := f.versionService(false).CreateVersion(context.Background(), owner.ID, versionInput("1.0.0", true))
	require.NoError(t, err)
	return &ledgerFixture{
		fixture: f,
		svc:     NewExecutionService(f.execs, f.versions, nil, cfg, f.log),
		owner:   owner,
		version: v,
	}
}

func (l *ledgerFixture) input(requestID string) CreateExecutionInput {
	return CreateExecutionInput{
		ToolID:             l.owner.ID.Int64(),
		VersionID:          l.version.ID.Int64(),
		ExecutionRequestID: requestID,
		InputPayload:       json.RawMessage(`{"expression":"2+2"}`),
		AgentID:            "agent-1",
	}
}

func statusPtr(s execution.Status) *string {
	v := string(s)
	return &v
}

func TestExecutionService_CreateIdempotent(t *testing.T) {
	l := newLedgerFixture(t, ExecutionServiceConfig{})
	ctx := context.Background()

	first, created, err := l.svc.CreateExecution(ctx, l.input("req-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, execution.StatusPending, first.Status)

	replay := l.input("req-1")
	replay.AgentID = "someone-else"
	second, created, err := l.svc.CreateExecution(ctx, replay)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "agent-1", second.AgentID)
}

func TestExecutionService_CreateIdempotent_Concurrent(t *testing.T) {
	l := newLedgerFixture(t, ExecutionServiceConfig{})
	ctx := context.Background()

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[shared.ID]int{}
		created int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, c, err := l.svc.CreateExecution(ctx, l.input("req-race"))
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			ids[e.ID]++
			if c {
				created++
			}
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, created)
}

func TestExecutionService_CreateValidation(t *testing.T) {
	l := newLedgerFixture(t, ExecutionServiceConfig{ValidateInput: true})
	ctx := context.Background()
	other := l.seedTool(t, "other")

	tests := []struct {
		name      string
		mutate    func(in *CreateExecutionInput)
		wantErr   error
		wantField string
	}{
		{
			name:      "version of another tool",
			mutate:    func(in *CreateExecutionInput) { in.ToolID = other.ID.Int64() },
			wantErr:   shared.ErrValidation,
			wantField: "version_id",
		},
		{
			name:    "unknown version",
			mutate:  func(in *CreateExecutionInput) { in.VersionID = 9999 },
			wantErr: shared.ErrNotFound,
		},
		{
			name:      "payload violates schema",
			mutate:    func(in *CreateExecutionInput) { in.InputPayload = json.RawMessage(`{"expression":5}`) },
			wantErr:   shared.ErrValidation,
			wantField: "input_payload",
		},
		{
			name:      "null payload",
			mutate:    func(in *CreateExecutionInput) { in.InputPayload = json.RawMessage(`null`) },
			wantErr:   shared.ErrValidation,
			wantField: "input_payload",
		},
		{
			name:      "terminal initial status",
			mutate:    func(in *CreateExecutionInput) { in.Status = string(execution.StatusSucceeded) },
			wantErr:   shared.ErrValidation,
			wantField: "status",
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := l.input(fmt.Sprintf("req-invalid-%d", i))
			tt.mutate(&input)
			_, _, err := l.svc.CreateExecution(ctx, input)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantField != "" {
				var de *shared.DomainError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, tt.wantField, de.Field)
			}
		})
	}
}

func TestExecutionService_UpdateLifecycle(t *testing.T) {
	l := newLedgerFixture(t, ExecutionServiceConfig{})
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.svc.now = func() time.Time { return fixed }

	e, _, err := l.svc.CreateExecution(ctx, l.input("req-life"))
	require.NoError(t, err)

	_, err = l.svc.UpdateExecution(ctx, e.ID, UpdateExecutionInput{Status: statusPtr(execution.StatusSucceeded)})
	assert.True(t, shared.IsInvalidTransition(err), "pending cannot skip running")

	running, err := l.svc.UpdateExecution(ctx, e.ID, UpdateExecutionInput{Status: statusPtr(execution.StatusRunning)})
	require.NoError(t, err)
	assert.Nil(t, running.CompletedAt)

	output := json.RawMessage(`{"result":4}`)
	elapsed := int64(120)
	code := 200
	done, err := l.svc.UpdateExecution(ctx, e.ID, UpdateExecutionInput{
		Status:          statusPtr(execution.StatusSucceeded),
		OutputPayload:   &output,
		ExecutionTimeMs: &elapsed,
		HTTPStatusCode:  &code,
	})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, fixed, *done.CompletedAt)
	assert.JSONEq(t, `{"result":4}`, string(done.OutputPayload))

	msg := "late"
	_, err = l.svc.UpdateExecution(ctx, e.ID, UpdateExecutionInput{ErrorMessage: &msg})
	assert.True(t, shared.IsInvalidTransition(err), "terminal executions are immutable")

	stored, err := l.svc.GetExecutionByRequestID(ctx, "req-life")
	require.NoError(t, err)
	assert.Equal(t, execution.StatusSucceeded, stored.Status)
	assert.Empty(t, stored.ErrorMessage)
}

func TestExecutionService_UpdateLosesRace(t *testing.T) {
	l := newLedgerFixture(t, ExecutionServiceConfig{})
	ctx := context.Background()

	input := l.input("req-race-update")
	input.Status = string(execution.StatusRunning)
	e, _, err := l.svc.CreateExecution(ctx, input)
	require.NoError(t, err)

	l.execs.onUpdate = func(stored *execution.Execution) {
		stored.Status = execution.StatusCancelled
	}
	_, err = l.svc.UpdateExecution(ctx, e.ID, UpdateExecutionInput{Status: statusPtr(execution.StatusSucceeded)})
	assert.True(t, shared.IsInvalidTransition(err))
}

func TestExecutionService_ListAndStats(t *testing.T) {
	l := newLedgerFixture(t, ExecutionServiceConfig{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := l.svc.CreateExecution(ctx, l.input(fmt.Sprintf("req-list-%d", i)))
		require.NoError(t, err)
	}

	page, err := l.svc.ListExecutions(ctx, ListExecutionsInput{ToolID: &l.owner.ID, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.EqualValues(t, 3, page.Meta.Total)

	from := time.Now()
	to := from.Add(-time.Hour)
	_, err = l.svc.ListExecutions(ctx, ListExecutionsInput{From: &from, To: &to})
	assert.ErrorIs(t, err, shared.ErrValidation)

	stats, err := l.svc.GetStats(ctx, &l.owner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 3, stats.Pending)
}

func TestExecutionService_ExpireStale(t *testing.T) {
	l := newLedgerFixture(t, ExecutionServiceConfig{StaleAfter: 10 * time.Minute})
	ctx := context.Background()

	running := l.input("req-stale")
	running.Status = string(execution.StatusRunning)
	stale, _, err := l.svc.CreateExecution(ctx, running)
	require.NoError(t, err)

	pending, _, err := l.svc.CreateExecution(ctx, l.input("req-pending"))
	require.NoError(t, err)

	l.svc.now = func() time.Time { return time.Now().Add(5 * time.Minute) }
	n, err := l.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is older than the stale window yet")

	l.svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err = l.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expired, err := l.svc.GetExecution(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusTimeout, expired.Status)
	assert.Equal(t, StaleTimeoutReason, expired.ErrorMessage)
	assert.NotNil(t, expired.CompletedAt)

	untouched, err := l.svc.GetExecution(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusPending, untouched.Status)

	n, err = l.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExecutionService_ExpireStaleSkipsConcurrentFinish(t *testing.T) {
	l := newLedgerFixture(t, ExecutionServiceConfig{StaleAfter: time.Minute})
	ctx := context.Background()

	running := l.input("req-finishing")
	running.Status = string(execution.StatusRunning)
	_, _, err := l.svc.CreateExecution(ctx, running)
	require.NoError(t, err)

	l.execs.onUpdate = func(stored *execution.Execution) {
		stored.Status = execution.StatusSucceeded
	}
	l.svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	n, err := l.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
