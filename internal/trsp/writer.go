package trsp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// satellitePath composes <dir>/<catnum>.trsp and rejects it when it would
// not fit in maxPath bytes including the terminator the firmware reserves.
func satellitePath(dir string, catnum int32, maxPath int) (string, error) {
	p := filepath.Join(dir, strconv.FormatInt(int64(catnum), 10)+FileExt)
	if len(p) >= maxPath {
		return "", fmt.Errorf("%w: %d bytes for %d (limit %d)", ErrPathTooLong, len(p), catnum, maxPath-1)
	}
	return p, nil
}

// resetFile removes the satellite file left by an earlier run. A file that
// does not exist is already reset.
func resetFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// appendRecord adds r to the satellite file at path, creating it if needed.
// Each block goes out in one Write.
func appendRecord(path string, r Record) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(r.Block()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// writeFileAtomic replaces path with data via a temp file in the same dir.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
