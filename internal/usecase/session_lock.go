package usecase

import (
	"context"
	"sync"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// SessionLocker serializes turns per session. Different sessions never
// block each other.
type SessionLocker struct {
	mu    sync.Mutex
	slots map[string]*sessionSlot
}

// sessionSlot is a one-token semaphore shared by every waiter of a session.
type sessionSlot struct {
	token    chan struct{}
	refCount int
}

// NewSessionLocker creates a new session locker.
func NewSessionLocker() *SessionLocker {
	return &SessionLocker{slots: make(map[string]*sessionSlot)}
}

// Lock blocks until the session is free or ctx is done. The returned unlock
// function must be called exactly once.
func (sl *SessionLocker) Lock(ctx context.Context, sessionID string) (unlock func(), err error) {
	sl.mu.Lock()
	slot, ok := sl.slots[sessionID]
	if !ok {
		slot = &sessionSlot{token: make(chan struct{}, 1)}
		sl.slots[sessionID] = slot
	}
	slot.refCount++
	sl.mu.Unlock()

	select {
	case slot.token <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.token
				sl.release(sessionID, slot)
			})
		}, nil
	case <-ctx.Done():
		sl.release(sessionID, slot)
		return nil, domain.NewDomainError("SessionLocker.Lock", domain.ErrTimeout,
			"session "+sessionID+" busy: "+ctx.Err().Error())
	}
}

func (sl *SessionLocker) release(sessionID string, slot *sessionSlot) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	slot.refCount--
	if slot.refCount == 0 {
		delete(sl.slots, sessionID)
	}
}

// ActiveCount returns the number of sessions with active or pending locks.
func (sl *SessionLocker) ActiveCount() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return len(sl.slots)
}
