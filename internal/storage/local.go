// Package storage keeps receipt attachments on the local filesystem.
package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/uuid"
)

// PublicPrefix is the URL path under which stored files are served and the
// prefix of every relative path returned by Save.
const PublicPrefix = "uploads"

var extRegex = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// LocalStore writes files into a single directory.
type LocalStore struct {
	dir      string
	maxBytes int64
}

// NewLocalStore creates the upload directory if needed. maxBytes <= 0 means
// no size limit.
func NewLocalStore(dir string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the directory files are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save stores the content of r under a new UUIDv7 file name that keeps the
// extension of originalName, and returns the relative path
// ("uploads/<uuid>.<ext>") to record on the transaction.
func (s *LocalStore) Save(originalName string, r io.Reader) (string, error) {
	name := uuid.New() + safeExt(originalName)
	full := filepath.Join(s.dir, name)

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(full)
		return "", apperrors.Wrap(apperrors.ErrInternalServer, copyErr)
	case closeErr != nil:
		_ = os.Remove(full)
		return "", apperrors.Wrap(apperrors.ErrInternalServer, closeErr)
	case s.maxBytes > 0 && n > s.maxBytes:
		_ = os.Remove(full)
		return "", apperrors.ErrReceiptTooLarge
	case n == 0:
		_ = os.Remove(full)
		return "", apperrors.ErrReceiptMissing
	}

	return path.Join(PublicPrefix, name), nil
}

// Delete removes a file previously returned by Save. Paths outside the
// store are ignored.
func (s *LocalStore) Delete(relPath string) error {
	name, ok := strings.CutPrefix(relPath, PublicPrefix+"/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// URL joins a public base URL and a stored relative path. An empty relPath
// yields an empty URL.
func URL(baseURL, relPath string) string {
	if relPath == "" {
		return ""
	}
	if baseURL == "" {
		return "/" + strings.TrimLeft(relPath, "/")
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(relPath, "/")
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if !extRegex.MatchString(ext) {
		return ""
	}
	return ext
}
