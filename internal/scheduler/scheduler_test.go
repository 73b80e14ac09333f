package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/dispatch"
)

type cycleFunc func(ctx context.Context) (dispatch.Report, error)

func (f cycleFunc) Run(ctx context.Context) (dispatch.Report, error) { return f(ctx) }

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(cycleFunc(nil), "every minute please", zap.NewNop())
	assert.Error(t, err)

	for _, spec := range []string{"@every 1m", "*/5 * * * *", "*/30 * * * * *"} {
		_, err := New(cycleFunc(nil), spec, zap.NewNop())
		assert.NoError(t, err, spec)
	}
}

func TestRun_FiresUntilCanceled(t *testing.T) {
	var calls atomic.Int32
	s, err := New(cycleFunc(func(context.Context) (dispatch.Report, error) {
		calls.Add(1)
		return dispatch.Report{Status: dispatch.StatusNoWork}, nil
	}), "@every 1s", zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRun_SurvivesPanicsAndErrors(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	var calls atomic.Int32
	s, err := New(cycleFunc(func(context.Context) (dispatch.Report, error) {
		switch calls.Add(1) {
		case 1:
			panic("boom")
		case 2:
			return dispatch.Report{Status: dispatch.StatusFetchError}, errors.New("db down")
		}
		return dispatch.Report{Status: dispatch.StatusSuccess}, nil
	}), "@every 1s", zap.New(core))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 6*time.Second, 50*time.Millisecond)
	assert.NotEmpty(t, logs.FilterMessage("panic").All())
	assert.NotEmpty(t, logs.FilterMessage("dispatch cycle failed").All())
}
