// Package artifact writes generated files. A file is either replaced as a
// whole or left untouched: content goes to a temporary file in the target
// directory which is then renamed over the destination.
package artifact

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
)

const (
	PermFile os.FileMode = 0o644
	PermDir  os.FileMode = 0o755
)

// WriteFile atomically replaces dest with data, creating parent directories.
func WriteFile(dest string, data []byte) error {
	return Write(dest, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Write atomically replaces dest with whatever fill writes. If fill fails the
// destination keeps its previous content.
func Write(dest string, fill func(io.Writer) error) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, PermDir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	abort := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	// CreateTemp uses 0600; outputs are read by other tools.
	if err := tmp.Chmod(PermFile); err != nil {
		return abort(err)
	}
	bw := bufio.NewWriter(tmp)
	if err := fill(bw); err != nil {
		return abort(err)
	}
	if err := bw.Flush(); err != nil {
		return abort(err)
	}
	if err := tmp.Sync(); err != nil {
		return abort(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
