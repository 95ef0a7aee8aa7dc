// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

// Package osutil provides convenience functions for working with the local filesystem.
package osutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bbqbaron/esy/sets"
)

// WriteFilePerm writes data to the named file, creating it if necessary,
// and ensuring it has exactly the given permissions.
func WriteFilePerm(name string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %v", name, err)
	}
	err = f.Chmod(perm)
	err2 := f.Close()
	if err == nil {
		err = err2
	}
	if err != nil {
		return fmt.Errorf("write %s: %v", name, err)
	}
	return nil
}

// Exists reports whether a filesystem object exists at the given path.
func Exists(name string) bool {
	_, err := os.Lstat(name)
	return err == nil
}

// ReplaceSymlink creates a symbolic link at name pointing to target,
// replacing any link already present there.
func ReplaceSymlink(target, name string) error {
	if info, err := os.Lstat(name); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return fmt.Errorf("replace symlink %s: existing file is not a symlink", name)
		}
		if err := os.Remove(name); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Symlink(target, name)
}

// CopyTree recursively copies the directory tree rooted at src to dst,
// skipping any top-level entry whose name is in exclude.
// Symbolic links are copied as links. Files and directories are created
// with the source's permission bits plus owner write, subject to the umask.
func CopyTree(src, dst string, exclude sets.Set[string]) error {
	return copyTree(src, dst, exclude, true)
}

func copyTree(src, dst string, exclude sets.Set[string], top bool) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()|0o200); err != nil {
		return err
	}
	for _, entry := range entries {
		if top && exclude.Has(entry.Name()) {
			continue
		}
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		switch {
		case entry.Type()&os.ModeSymlink != 0:
			target, err := os.Readlink(srcPath)
			if err != nil {
				return err
			}
			if err := os.Symlink(target, dstPath); err != nil {
				return err
			}
		case entry.IsDir():
			if err := copyTree(srcPath, dstPath, exclude, false); err != nil {
				return err
			}
		default:
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %v", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("copy %s: %v", dst, err)
	}
	return nil
}
