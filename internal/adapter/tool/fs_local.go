package tool

import (
	"io"
	"os"
	"path/filepath"
)

// LocalFilesystemBackend performs file I/O on the local filesystem.
type LocalFilesystemBackend struct{}

// NewLocalFilesystemBackend creates a local filesystem backend.
func NewLocalFilesystemBackend() *LocalFilesystemBackend {
	return &LocalFilesystemBackend{}
}

func (b *LocalFilesystemBackend) Name() string { return "local" }

func (b *LocalFilesystemBackend) ReadFile(path string, limit int) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return nil, 0, &os.PathError{Op: "read", Path: path, Err: errIsDir}
	}
	data, err := io.ReadAll(io.LimitReader(f, int64(limit)))
	return data, info.Size(), err
}

func (b *LocalFilesystemBackend) WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

func (b *LocalFilesystemBackend) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}
