package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/toolstudio/pkg/logger"
)

type stubSweeper struct {
	calls   int
	expired int
	err     error
}

func (s *stubSweeper) ExpireStale(context.Context) (int, error) {
	s.calls++
	return s.expired, s.err
}

func TestNewExpireStaleTask(t *testing.T) {
	task, err := NewExpireStaleTask(TriggerStartup)
	require.NoError(t, err)
	assert.Equal(t, TypeExecutionExpireStale, task.Type())

	var payload ExpireStalePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, TriggerStartup, payload.Trigger)
}

func TestExecutionTaskHandler_ProcessTask(t *testing.T) {
	tests := []struct {
		name    string
		sweeper *stubSweeper
		wantErr bool
	}{
		{name: "sweep succeeds", sweeper: &stubSweeper{expired: 3}},
		{name: "nothing stale", sweeper: &stubSweeper{}},
		{name: "sweep fails", sweeper: &stubSweeper{err: errors.New("db down")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := asynq.NewServeMux()
			NewExecutionTaskHandler(tt.sweeper, logger.NewNop()).RegisterHandlers(mux)

			task, err := NewExpireStaleTask(TriggerSchedule)
			require.NoError(t, err)

			err = mux.ProcessTask(context.Background(), task)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 1, tt.sweeper.calls)
		})
	}
}

func TestExecutionTaskHandler_BadPayloadSkipsRetry(t *testing.T) {
	sweeper := &stubSweeper{}
	h := NewExecutionTaskHandler(sweeper, logger.NewNop())

	err := h.HandleExpireStale(context.Background(), asynq.NewTask(TypeExecutionExpireStale, []byte("{")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, sweeper.calls)
}

func TestExpireStaleSpec(t *testing.T) {
	assert.Equal(t, "@every 1m0s", ExpireStaleSpec(time.Minute))
	assert.Equal(t, "@every 30s", ExpireStaleSpec(30*time.Second))
	assert.Equal(t, "@every 1m0s", ExpireStaleSpec(0))
}

func TestWorker_RegistersSweeper(t *testing.T) {
	sweeper := &stubSweeper{}
	w := NewWorker(asynq.RedisClientOpt{Addr: "127.0.0.1:1"}, WorkerConfig{}, logger.NewNop(), WithStaleSweeper(sweeper))

	task, err := NewExpireStaleTask(TriggerStartup)
	require.NoError(t, err)
	require.NoError(t, w.Handler().ProcessTask(context.Background(), task))
	assert.Equal(t, 1, sweeper.calls)
}
