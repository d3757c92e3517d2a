package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestJobsRunRepeatedlyUntilCanceled(t *testing.T) {
	s := New(zaptest.NewLogger(t).Sugar())

	var fast, slow atomic.Int32
	s.Add("fast", 5*time.Millisecond, func(ctx context.Context) error {
		fast.Add(1)
		return nil
	})
	s.Add("slow", time.Hour, func(ctx context.Context) error {
		slow.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool { return fast.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	s.Wait()

	require.EqualValues(t, 1, slow.Load())
}

func TestFailingJobKeepsRunning(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	s := New(zap.New(core).Sugar())

	var calls atomic.Int32
	s.Add("flaky", time.Millisecond, func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return errors.New("db down")
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	s.Wait()

	require.GreaterOrEqual(t, logs.FilterMessage("job failed").Len(), 2)
}

func TestJobNeverOverlapsItself(t *testing.T) {
	s := New(zaptest.NewLogger(t).Sugar())

	var running, overlaps, calls atomic.Int32
	s.Add("tick", time.Microsecond, func(ctx context.Context) error {
		if running.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return calls.Load() >= 5 }, time.Second, time.Millisecond)
	cancel()
	s.Wait()

	require.Zero(t, overlaps.Load())
}
