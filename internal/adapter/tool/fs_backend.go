package tool

import "os"

// FilesystemBackend abstracts file I/O operations.
type FilesystemBackend interface {
	// ReadFile reads up to limit bytes of the named file and reports the
	// file's full size.
	ReadFile(path string, limit int) (data []byte, size int64, err error)
	// WriteFile writes data to the named file, creating parent directories.
	WriteFile(path string, data []byte, perm os.FileMode) error
	// ReadDir reads the named directory and returns its directory entries.
	ReadDir(path string) ([]os.DirEntry, error)
	// Name returns the backend identifier (e.g. "local").
	Name() string
}
