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

package sockaddr

import (
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/nabbar/secret-storage/internal/kind"
)

// ListenUnix binds a stream socket at path with the given listen backlog
// and hands back a *net.UnixListener wrapping it. net.ListenUnix has no
// way to choose the backlog (Go picks it internally), so this drives the
// three syscalls directly - the same socket/bind/listen sequence the
// reference server makes - and wraps the resulting fd with
// net.FileListener so the rest of the daemon sees an ordinary net.Listener.
func ListenUnix(path string, backlog int) (*net.UnixListener, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, kind.Wrap(kind.TransportFailure, "socket", err)
	}

	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, kind.Wrap(kind.AddressResolution, "bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, kind.Wrap(kind.TransportFailure, "listen", err)
	}

	f := os.NewFile(uintptr(fd), path)
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, kind.Wrap(kind.TransportFailure, "wrap listener fd", err)
	}
	unixLn, ok := ln.(*net.UnixListener)
	if !ok {
		ln.Close()
		return nil, kind.New(kind.TransportFailure, "unexpected listener type")
	}
	unixLn.SetUnlinkOnClose(true)
	return unixLn, nil
}
