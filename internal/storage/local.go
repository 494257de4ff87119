package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStore writes into RootDir and serves files under URLPrefix.
type LocalStore struct {
	RootDir   string
	URLPrefix string
	Now       func() time.Time
}

func NewLocalStore(rootDir, urlPrefix string) *LocalStore {
	return &LocalStore{RootDir: rootDir, URLPrefix: urlPrefix, Now: time.Now}
}

func (s *LocalStore) Save(ctx context.Context, r io.Reader, suggestedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.RootDir, 0o755); err != nil {
		return "", fmt.Errorf("uploads mkdir: %w", err)
	}
	name := StoredName(s.Now(), suggestedName)

	f, err := os.OpenFile(filepath.Join(s.RootDir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		// same second, same file name
		name = uuid.NewString()[:8] + "_" + name
		f, err = os.OpenFile(filepath.Join(s.RootDir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("uploads create: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("uploads write: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("uploads close: %w", err)
	}
	return path.Join("/", strings.Trim(s.URLPrefix, "/"), name), nil
}

func (s *LocalStore) Remove(_ context.Context, ref string) error {
	name := path.Base(ref)
	if name == "" || name == "/" || name == "." {
		return nil
	}
	err := os.Remove(filepath.Join(s.RootDir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("uploads remove: %w", err)
	}
	return nil
}
