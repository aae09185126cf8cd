package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/palbase/palbase-sync/internal/ingest"
)

type countingTrigger struct {
	calls atomic.Int64
	err   error
}

func (t *countingTrigger) TriggerAllAsync(string) error {
	t.calls.Add(1)
	return t.err
}

func TestNewRejectsBadExpression(t *testing.T) {
	t.Parallel()

	_, err := New("not a cron line", &countingTrigger{}, zap.NewNop())
	require.Error(t, err)
}

func TestSchedulerFires(t *testing.T) {
	t.Parallel()

	trigger := &countingTrigger{}
	s, err := New("@every 10ms", trigger, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool {
		return trigger.calls.Load() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestSchedulerSkipsBusyRun(t *testing.T) {
	t.Parallel()

	trigger := &countingTrigger{err: ingest.ErrRunInProgress}
	s, err := New("@every 10ms", trigger, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool {
		return trigger.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
