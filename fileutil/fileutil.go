package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// FileExists returns true if a file or directory with the given path exists.
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// IsDir returns true if a directory with the given path exists.
func IsDir(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && info.IsDir()
}

// writeTemp writes b to a new hidden temporary file in dir and returns its
// path. The file is synced and closed on success. On failure nothing is left
// behind.
func writeTemp(dir string, b []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()

	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}

	if err := tmp.Chmod(0644); err != nil {
		return fail(err)
	}
	if _, err := tmp.Write(b); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	return tmpPath, nil
}

// WriteAtomic writes b to filename such that readers observe either the old
// content or the complete new content, never a partial file. The data is
// staged in a temporary file in the same directory and renamed into place.
func WriteAtomic(filename string, b []byte) error {
	tmpPath, err := writeTemp(filepath.Dir(filename), b)
	if err != nil {
		return fmt.Errorf("failed to stage file: path=%s: %w", filename, err)
	}

	if err := os.Rename(tmpPath, filename); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish file: path=%s: %w", filename, err)
	}

	return nil
}

// WriteExclusive writes b to filename only if no file with that name exists.
// It returns true if this call created the file and false if the file was
// already present. The existence check and the creation happen as a single
// step: the content is staged in a temporary file and hard-linked to the
// final name, which fails if the name is taken. A file is therefore never
// visible at filename until it is complete.
func WriteExclusive(filename string, b []byte) (bool, error) {
	if FileExists(filename) {
		return false, nil
	}

	tmpPath, err := writeTemp(filepath.Dir(filename), b)
	if err != nil {
		return false, fmt.Errorf("failed to stage file: path=%s: %w", filename, err)
	}
	defer os.Remove(tmpPath)

	err = os.Link(tmpPath, filename)
	if errors.Is(err, fs.ErrExist) {
		log.Debugf("lost race for file: path=%s", filename)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to publish file: path=%s: %w", filename, err)
	}

	return true, nil
}
