/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

//go:build unix

// Package sockaddr resolves the Unix domain socket path the daemon listens
// on and the accessor connects to, following the same fallback order as
// the original implementation's address helper: an explicit path, then
// $XDG_RUNTIME_DIR, then $HOME/.local/run, then the working directory.
package sockaddr

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/nabbar/secret-storage/internal/kind"
)

// DefaultSocketName is the socket's leaf filename whenever a caller does
// not supply an explicit path.
const DefaultSocketName = "secret-storage.sock"

// DirMode is the permission applied to any directory this package creates
// on the resolved path's behalf.
const DirMode = os.FileMode(0700)

// Resolve computes the socket path to use, given an optional explicit
// override. Resolution order:
//
//  1. explicit, if non-empty
//  2. $XDG_RUNTIME_DIR/secret-storage.sock
//  3. $HOME/.local/run/secret-storage.sock
//  4. ./secret-storage.sock
//
// Cases 1, 3, and 4 create their parent directory (mode 0700) if missing;
// case 2 does not, since XDG_RUNTIME_DIR is expected to already exist with
// the correct ownership and mode set up by the session manager.
func Resolve(explicit string) (string, error) {
	if explicit != "" {
		if err := ensureParentDir(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, DefaultSocketName), nil
	}

	if home := os.Getenv("HOME"); home != "" {
		path := filepath.Join(home, ".local/run", DefaultSocketName)
		if err := ensureParentDir(path); err != nil {
			return "", err
		}
		return path, nil
	}

	path := DefaultSocketName
	if err := ensureParentDir(path); err != nil {
		return "", err
	}
	return path, nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return kind.Wrap(kind.AddressResolution, "create socket directory", err)
	}
	return fixOwnerAndMode(dir)
}

// fixOwnerAndMode re-asserts DirMode and the current effective UID/GID on
// an already-existing directory, so a directory left over with looser
// permissions or a different owner from a previous run (or created by
// something else) gets tightened rather than silently trusted.
func fixOwnerAndMode(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return kind.Wrap(kind.AddressResolution, "stat socket directory", err)
	}
	if info.Mode().Perm() != DirMode {
		if err := os.Chmod(dir, DirMode); err != nil {
			return kind.Wrap(kind.AddressResolution, "chmod socket directory", err)
		}
	}

	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		uid, gid := os.Geteuid(), os.Getegid()
		if int(st.Uid) != uid || int(st.Gid) != gid {
			if err := os.Chown(dir, uid, gid); err != nil {
				return kind.Wrap(kind.AddressResolution, "chown socket directory", err)
			}
		}
	}
	return nil
}

// CheckAvailable reports an error if path already exists, refusing to bind
// over an existing socket file (stale or otherwise) unless the caller
// explicitly removes it first via RemoveStale.
func CheckAvailable(path string) error {
	if _, err := os.Stat(path); err == nil {
		return kind.New(kind.AddressResolution, "socket path already exists: "+path)
	} else if !os.IsNotExist(err) {
		return kind.Wrap(kind.AddressResolution, "stat socket path", err)
	}
	return nil
}

// RemoveStale unlinks path, used by the daemon's --replace flag after a
// connect probe confirms nothing is listening on it anymore.
func RemoveStale(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return kind.Wrap(kind.AddressResolution, "remove stale socket", err)
	}
	return nil
}
