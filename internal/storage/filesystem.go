package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/inkcast/inkcast-server/internal/errors"
)

const fileScheme = "file://"

// Filesystem stores objects under a root directory. URLs take the form
// file://<key> where the key is a slash-separated path relative to the root.
type Filesystem struct {
	root string
}

var _ Store = (*Filesystem)(nil)

// NewFilesystem creates the root directory if it does not exist.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		return nil, apperrors.Validation("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperrors.Internal("create storage root").WithCause(err)
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, err := f.relPath(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(f.root, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", apperrors.Internal("create object dir").WithCause(err)
	}

	// Write to a temp file first so readers never observe a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return "", apperrors.Internal("create temp object").WithCause(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", apperrors.Internalf("write object %s", key).WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return "", apperrors.Internalf("close object %s", key).WithCause(err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", apperrors.Internalf("publish object %s", key).WithCause(err)
	}
	return fileScheme + filepath.ToSlash(rel), nil
}

func (f *Filesystem) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, err := f.keyFromURL(url)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(f.root, filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("object")
		}
		return nil, apperrors.Internalf("open object %s", url).WithCause(err)
	}
	return file, nil
}

func (f *Filesystem) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, err := f.keyFromURL(url)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(f.root, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
		return apperrors.Internalf("delete object %s", url).WithCause(err)
	}
	return nil
}

func (f *Filesystem) relPath(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", apperrors.Validation("object key is required")
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", apperrors.Validation("object key escapes storage root")
	}
	return clean, nil
}

func (f *Filesystem) keyFromURL(url string) (string, error) {
	if !strings.HasPrefix(url, fileScheme) {
		return "", apperrors.Validationf("unsupported storage url %q", url)
	}
	return f.relPath(strings.TrimPrefix(url, fileScheme))
}
