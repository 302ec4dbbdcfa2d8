package sessionstore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

const fileExt = ".jsonl"

// FileStore writes one JSON Lines file per session under a data directory.
type FileStore struct {
	dir   string
	locks sync.Map // session id -> *sync.Mutex
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, domain.NewDomainError("sessionstore.NewFileStore", domain.ErrInvalidInput, "data dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) lock(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *FileStore) path(id string) string { return filepath.Join(s.dir, id+fileExt) }

func (s *FileStore) Append(ctx context.Context, sessionID string, turn domain.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	line, err := json.Marshal(stamp(turn))
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	line = append(line, '\n')

	defer s.lock(sessionID)()
	f, err := os.OpenFile(s.path(sessionID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append turn: %w", err)
	}
	return f.Close()
}

func (s *FileStore) Read(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	defer s.lock(sessionID)()
	data, err := os.ReadFile(s.path(sessionID))
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return decodeTurns(sessionID, data)
}

func decodeTurns(sessionID string, data []byte) ([]domain.Turn, error) {
	turns := []domain.Turn{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var t domain.Turn
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, fmt.Errorf("session %s line %d: %w", sessionID, lineNo, err)
		}
		turns = append(turns, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan session %s: %w", sessionID, err)
	}
	return turns, nil
}

func (s *FileStore) Reset(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	defer s.lock(sessionID)()
	if err := os.Remove(s.path(sessionID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (s *FileStore) Sessions(ctx context.Context) ([]domain.SessionInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list session dir: %w", err)
	}
	var out []domain.SessionInfo
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id := strings.TrimSuffix(name, fileExt)
		if ValidateSessionID(id) != nil {
			continue
		}
		turns, err := s.Read(ctx, id)
		if err != nil {
			return nil, err
		}
		info := domain.SessionInfo{ID: id, Turns: len(turns)}
		if len(turns) > 0 {
			info.UpdatedAt = turns[len(turns)-1].Timestamp
		}
		out = append(out, info)
	}
	sortInfos(out)
	return out, nil
}

// Close is a no-op; files are closed after every write.
func (s *FileStore) Close() error { return nil }
