package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

const (
	privateDirPerm  = 0o700
	privateFilePerm = 0o600
)

var errUnsafePath = errors.New("unsafe store path")

// FileKV stores each key as its own JSON file in a data directory. Writes
// are atomic (temp file + rename) and owner-only; symlinked or non-regular
// paths are refused.
type FileKV struct {
	dir string
}

// NewFileKV creates a file-backed store rooted at dir, creating the
// directory with owner-only permissions if needed.
func NewFileKV(dir string) (*FileKV, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("store directory cannot be empty")
	}
	dir = filepath.Clean(dir)
	if err := ensureOwnerOnlyDir(dir); err != nil {
		return nil, fmt.Errorf("secure store directory: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *FileKV) Dir() string {
	return s.dir
}

// FileFor returns the file path backing a key. Watchers use it to map
// filesystem events back to keys.
func FileFor(dir, key string) string {
	return filepath.Join(dir, key+".json")
}

func (s *FileKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	data, err := readBoundedRegularFile(FileFor(s.dir, key), maxValueSize)
	if err != nil {
		if isMissingPathError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read store key %q: %w", key, err)
	}
	return data, true, nil
}

func (s *FileKV) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if int64(len(value)) > maxValueSize {
		return fmt.Errorf("%w: key %q (%d bytes)", ErrValueTooLarge, key, len(value))
	}
	if err := writeOwnerOnlyFileAtomic(FileFor(s.dir, key), value); err != nil {
		return fmt.Errorf("write store key %q: %w", key, err)
	}
	return nil
}

func (s *FileKV) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := os.Remove(FileFor(s.dir, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete store key %q: %w", key, err)
	}
	return nil
}

func isMissingPathError(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

func ensureOwnerOnlyDir(dir string) error {
	if err := os.MkdirAll(dir, privateDirPerm); err != nil {
		return err
	}
	return os.Chmod(dir, privateDirPerm)
}

func validateRegularFile(path string, info os.FileInfo) error {
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%w: refusing symlink path %q", errUnsafePath, path)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: non-regular path %q", errUnsafePath, path)
	}
	return nil
}

func readBoundedRegularFile(path string, maxSize int64) ([]byte, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if err := validateRegularFile(path, info); err != nil {
		return nil, err
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%w: file %q exceeds size limit (%d bytes)", errUnsafePath, path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: file %q exceeded size limit while reading", errUnsafePath, path)
	}
	return data, nil
}

func writeOwnerOnlyFileAtomic(path string, data []byte) error {
	if err := ensureOwnerOnlyDir(filepath.Dir(path)); err != nil {
		return err
	}

	if info, err := os.Lstat(path); err == nil {
		if err := validateRegularFile(path, info); err != nil {
			return err
		}
	} else if !isMissingPathError(err) {
		return err
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmpFile.Chmod(privateFilePerm); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	cleanup = false
	return os.Chmod(path, privateFilePerm)
}
