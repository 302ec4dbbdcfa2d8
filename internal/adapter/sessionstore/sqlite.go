package sessionstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// SQLiteStore keeps every session's turns in one SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and migrates it.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, domain.NewDomainError("sessionstore.NewSQLiteStore", domain.ErrInvalidInput, "sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// SQLite write safety: single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("session db pragma: %w", err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate session db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			turn_id    TEXT NOT NULL,
			speaker    TEXT NOT NULL,
			text       TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS turns_session ON turns(session_id, seq);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, sessionID string, turn domain.Turn) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	turn = stamp(turn)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO turns (session_id, turn_id, speaker, text, created_at) VALUES (?, ?, ?, ?, ?)",
		sessionID, turn.ID, turn.Speaker, turn.Text, turn.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Read(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT turn_id, speaker, text, created_at FROM turns WHERE session_id = ? ORDER BY seq", sessionID)
	if err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}
	defer rows.Close()

	turns := []domain.Turn{}
	for rows.Next() {
		var (
			t  domain.Turn
			ns int64
		)
		if err := rows.Scan(&t.ID, &t.Speaker, &t.Text, &ns); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Timestamp = time.Unix(0, ns)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) Reset(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM turns WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Sessions(ctx context.Context) ([]domain.SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id, COUNT(*), MAX(created_at) FROM turns GROUP BY session_id ORDER BY session_id")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionInfo
	for rows.Next() {
		var (
			info domain.SessionInfo
			ns   int64
		)
		if err := rows.Scan(&info.ID, &info.Turns, &ns); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.UpdatedAt = time.Unix(0, ns)
		out = append(out, info)
	}
	return out, rows.Err()
}
