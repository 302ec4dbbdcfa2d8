package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

func TestSessionLockerBasic(t *testing.T) {
	sl := NewSessionLocker()

	unlock, err := sl.Lock(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sl.ActiveCount())

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, sl.ActiveCount())
}

func TestSessionLockerSerializesSameSession(t *testing.T) {
	sl := NewSessionLocker()
	unlock1, err := sl.Lock(context.Background(), "session-1")
	require.NoError(t, err)

	order := make(chan int, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		unlock2, err := sl.Lock(context.Background(), "session-1")
		if !assert.NoError(t, err) {
			return
		}
		order <- 2
		unlock2()
	}()

	time.Sleep(50 * time.Millisecond)
	order <- 1
	unlock1()
	wg.Wait()
	close(order)

	var got []int
	for v := range order {
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 0, sl.ActiveCount())
}

func TestSessionLockerDifferentSessionsDoNotBlock(t *testing.T) {
	sl := NewSessionLocker()
	unlockA, err := sl.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := sl.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestSessionLockerContextDone(t *testing.T) {
	sl := NewSessionLocker()
	unlock1, err := sl.Lock(context.Background(), "session-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = sl.Lock(ctx, "session-1")
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, 1, sl.ActiveCount())

	unlock1()
	assert.Equal(t, 0, sl.ActiveCount())

	// The session is usable again after a waiter gave up.
	unlock, err := sl.Lock(context.Background(), "session-1")
	require.NoError(t, err)
	unlock()
}
