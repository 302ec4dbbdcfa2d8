package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// StaleSessions returns the ids of sessions whose last turn is older than
// maxAge at now. A maxAge <= 0 disables reaping.
func StaleSessions(ctx context.Context, store domain.SessionStore, maxAge time.Duration, now time.Time) ([]string, error) {
	if maxAge <= 0 {
		return nil, nil
	}
	infos, err := store.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	cutoff := now.Add(-maxAge)
	var stale []string
	for _, info := range infos {
		if info.UpdatedAt.Before(cutoff) {
			stale = append(stale, info.ID)
		}
	}
	return stale, nil
}

// ReapStaleSessions resets every session idle longer than maxAge and
// returns the reaped ids. Reset failures are collected, not fatal.
func ReapStaleSessions(ctx context.Context, store domain.SessionStore, maxAge time.Duration) ([]string, error) {
	stale, err := StaleSessions(ctx, store, maxAge, time.Now())
	if err != nil {
		return nil, err
	}
	reaped := make([]string, 0, len(stale))
	var firstErr error
	for _, id := range stale {
		if err := store.Reset(ctx, id); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("reset session %s: %w", id, err)
			}
			continue
		}
		reaped = append(reaped, id)
	}
	return reaped, firstErr
}
