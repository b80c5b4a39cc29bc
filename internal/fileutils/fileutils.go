// Copyright 2021 The ledger-signer Authors
// This file is part of the ledger-signer library.
//
// The ledger-signer library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ledger-signer library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ledger-signer library. If not, see <http://www.gnu.org/licenses/>.

package fileutils

import (
	"io"
	"os"
	"path/filepath"
)

func FileExists(filepath string) bool {
	_, err := os.Stat(filepath)
	return err == nil || !os.IsNotExist(err)
}

func IsDirectory(dirpath string) (bool, error) {
	stat, err := os.Stat(dirpath)
	if err != nil {
		return false, err
	}
	return stat.IsDir(), nil
}

// EnsureDir creates dirpath and its parents, readable by the owner only.
func EnsureDir(dirpath string) error {
	return os.MkdirAll(dirpath, 0700)
}

// WriteFileAtomic writes the output of write to a temporary file next to
// path and renames it into place once write succeeded.
func WriteFileAtomic(path string, write func(io.Writer) error) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+name+".tmp")
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), path)
}
