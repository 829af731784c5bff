package storage

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStorage writes media files under a root directory and serves them
// from a public base URL.
type LocalStorage struct {
	root    string
	baseURL string
}

// NewLocalStorage constructs a local filesystem store.
func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	if root == "" {
		return nil, errors.New("storage: empty root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStorage{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload writes the file and returns its public URL.
func (s *LocalStorage) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	clean := path.Clean("/" + key)
	target := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", err
	}
	return s.baseURL + "/media" + clean, nil
}
