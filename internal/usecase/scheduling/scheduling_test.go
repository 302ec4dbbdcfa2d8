package scheduling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(newTestLogger())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}

func TestSchedulerActionFires(t *testing.T) {
	var count atomic.Int32

	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionSessionReap, func(ctx context.Context) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, s.AddTask(ScheduledTask{Name: "reap", Schedule: "50ms", Action: ActionSessionReap}))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return count.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestSchedulerUnknownAction(t *testing.T) {
	s := NewScheduler(newTestLogger())
	err := s.AddTask(ScheduledTask{Name: "unknown", Schedule: "100ms", Action: "does_not_exist"})
	assert.ErrorContains(t, err, "unknown action")
}

func TestSchedulerDuplicateTask(t *testing.T) {
	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionSessionReap, func(context.Context) error { return nil })
	require.NoError(t, s.AddTask(ScheduledTask{Name: "reap", Schedule: "@hourly", Action: ActionSessionReap}))
	assert.ErrorContains(t, s.AddTask(ScheduledTask{Name: "reap", Schedule: "@daily", Action: ActionSessionReap}), "already exists")
}

func TestSchedulerOneShot(t *testing.T) {
	var count atomic.Int32

	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionSessionReap, func(context.Context) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, s.AddTask(ScheduledTask{Name: "once", Schedule: "20ms", Action: ActionSessionReap, OneShot: true}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return count.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), count.Load())
	_, ok := s.NextRun("once")
	assert.False(t, ok)
}

func TestSchedulerRemoveTask(t *testing.T) {
	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionSessionReap, func(context.Context) error { return nil })
	require.NoError(t, s.AddTask(ScheduledTask{Name: "reap", Schedule: "@hourly", Action: ActionSessionReap}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	next, ok := s.NextRun("reap")
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))

	require.NoError(t, s.RemoveTask("reap"))
	assert.Error(t, s.RemoveTask("reap"))
}

func TestSchedulerActionErrorKeepsRunning(t *testing.T) {
	var count atomic.Int32

	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionSessionReap, func(context.Context) error {
		count.Add(1)
		return errors.New("store offline")
	})
	require.NoError(t, s.AddTask(ScheduledTask{Name: "reap", Schedule: "30ms", Action: ActionSessionReap}))
	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return count.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestSchedulerStopCancelsContext(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	var canceled atomic.Bool

	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionSessionReap, func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		canceled.Store(true)
		return ctx.Err()
	})
	require.NoError(t, s.AddTask(ScheduledTask{Name: "slow", Schedule: "20ms", Action: ActionSessionReap}))
	require.NoError(t, s.Start(context.Background()))

	<-started
	require.NoError(t, s.Stop())
	assert.True(t, canceled.Load())
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"@hourly", false},
		{"30m", false},
		{"500ms", false},
		{"", true},
		{"-1m", true},
		{"0s", true},
		{"whenever", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseSchedule(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConstantDelay(t *testing.T) {
	sched, err := ParseSchedule("250ms")
	require.NoError(t, err)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(250*time.Millisecond), sched.Next(base))
}

type fakeReaper struct {
	gotAge time.Duration
	ids    []string
	err    error
}

func (f *fakeReaper) ReapStale(_ context.Context, maxAge time.Duration) ([]string, error) {
	f.gotAge = maxAge
	return f.ids, f.err
}

func TestReapAction(t *testing.T) {
	r := &fakeReaper{ids: []string{"old-1", "old-2"}}
	fn := ReapAction(r, 72*time.Hour, newTestLogger())
	require.NoError(t, fn(context.Background()))
	assert.Equal(t, 72*time.Hour, r.gotAge)

	r.err = errors.New("boom")
	assert.EqualError(t, fn(context.Background()), "boom")
}
