// Package sessionstore persists the turn history of every session.
package sessionstore

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/config"
)

const maxSessionIDLen = 128

// Store is a domain.SessionStore that may hold resources.
type Store interface {
	domain.SessionStore
	io.Closer
}

// New opens the backend named in cfg.
func New(cfg config.SessionsConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.DataDir)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, domain.NewDomainError("sessionstore.New", domain.ErrInvalidInput,
			fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
}

// ValidateSessionID rejects ids that are empty, oversized, or unsafe as a
// file name.
func ValidateSessionID(id string) error {
	switch {
	case id == "":
		return domain.NewDomainError("sessionstore.ValidateSessionID", domain.ErrInvalidInput, "session id cannot be empty")
	case len(id) > maxSessionIDLen:
		return domain.NewDomainError("sessionstore.ValidateSessionID", domain.ErrInvalidInput,
			fmt.Sprintf("session id longer than %d bytes", maxSessionIDLen))
	case strings.ContainsAny(id, "/\\\x00"):
		return domain.NewDomainError("sessionstore.ValidateSessionID", domain.ErrInvalidInput,
			fmt.Sprintf("session id contains a path separator or null byte: %q", id))
	case strings.Contains(id, "..") || filepath.Clean(id) != id || strings.HasPrefix(id, "."):
		return domain.NewDomainError("sessionstore.ValidateSessionID", domain.ErrInvalidInput,
			fmt.Sprintf("session id is not a plain name: %q", id))
	}
	return nil
}
