package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalStore writes images below a directory served under a URL prefix
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Save(ctx context.Context, prefix, dataURI string) (string, error) {
	img, err := DecodeDataURI(dataURI)
	if err != nil {
		return "", err
	}

	key := objectKey(prefix, img.Extension)
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create media directory: %w", err)
	}
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	log.WithFields(logrus.Fields{"key": key, "bytes": len(img.Data)}).Debug("Image stored on disk")
	return s.baseURL + "/" + key, nil
}

func (s *LocalStore) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || key == "" || strings.Contains(key, "..") {
		return nil
	}

	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
