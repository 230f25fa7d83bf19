// Package fileutil provides common file operation utilities.
package fileutil

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// CopyFile copies a file from src to dst, creating parent directories as needed.
func CopyFile(fs afero.Fs, src, dst string) (retErr error) {
	srcFile, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := srcFile.Close(); closeErr != nil && retErr == nil {
			retErr = closeErr
		}
	}()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &os.PathError{Op: "copy", Path: src, Err: os.ErrInvalid}
	}

	if err = fs.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return err
	}

	dstFile, err := fs.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dstFile.Close(); closeErr != nil && retErr == nil {
			retErr = closeErr
		}
	}()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

// MoveFile moves src to dst, replacing dst if it exists. When a rename is not
// possible (for example across devices) the file is copied and the source removed.
func MoveFile(fs afero.Fs, src, dst string) error {
	if err := fs.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return err
	}

	if err := fs.Rename(src, dst); err == nil {
		return nil
	}

	if err := CopyFile(fs, src, dst); err != nil {
		return err
	}

	return fs.Remove(src)
}
