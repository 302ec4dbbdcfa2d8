package sessionstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

type memorySession struct {
	turns     []domain.Turn
	updatedAt time.Time
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, turn domain.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	turn = stamp(turn)

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &memorySession{}
		s.sessions[sessionID] = sess
	}
	sess.turns = append(sess.turns, turn)
	sess.updatedAt = turn.Timestamp
	return nil
}

func (s *MemoryStore) Read(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return []domain.Turn{}, nil
	}
	out := make([]domain.Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

func (s *MemoryStore) Reset(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Sessions(ctx context.Context) ([]domain.SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SessionInfo, 0, len(s.sessions))
	for id, sess := range s.sessions {
		out = append(out, domain.SessionInfo{ID: id, Turns: len(sess.turns), UpdatedAt: sess.updatedAt})
	}
	sortInfos(out)
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// stamp fills the id and timestamp of a turn built by hand.
func stamp(turn domain.Turn) domain.Turn {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	if turn.ID == "" {
		turn.ID = domain.NewID(turn.Timestamp)
	}
	return turn
}

func sortInfos(infos []domain.SessionInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
}
