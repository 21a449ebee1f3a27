// Package storage keeps uploaded cover images on local disk. Books store
// only the generated file name; the directory is served under /uploads.
package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrUnsupportedType is returned by Save for files that are not images.
var ErrUnsupportedType = errors.New("unsupported file type")

var imageTypes = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// Blobs is the contract the catalog service needs from a blob store.
type Blobs interface {
	Save(field, filename string, r io.Reader) (string, error)
	Delete(name string) error
}

// Local stores blobs as files in Dir.
type Local struct {
	Dir string
	log *zap.Logger
}

// NewLocal returns a Local rooted at dir, creating it when missing.
func NewLocal(dir string, log *zap.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create upload dir %s", dir)
	}
	return &Local{Dir: dir, log: log}, nil
}

// Save copies r into a new file named "<field>-<uuid><ext>" and returns
// that name. The extension comes from the client file name and must be a
// known image type.
func (s *Local) Save(field, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageTypes[ext] {
		return "", errors.Wrapf(ErrUnsupportedType, "%q", filename)
	}
	name := field + "-" + uuid.NewString() + ext
	f, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "create blob")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, "write blob")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "close blob")
	}
	s.log.Debug("stored blob", zap.String("name", name))
	return name, nil
}

// Delete removes the named blob. Empty and missing names are ignored.
func (s *Local) Delete(name string) error {
	if name == "" {
		return nil
	}
	err := os.Remove(s.Path(name))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "delete blob")
	}
	return nil
}

// Path returns the on-disk location of a blob. Directory components in name
// are discarded so a stored name can never escape Dir.
func (s *Local) Path(name string) string {
	return filepath.Join(s.Dir, filepath.Base(name))
}
