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

// Package retention tracks which hardened-memory buffers the accessor has
// handed out to its caller, keyed by the buffer's backing address - the Go
// analogue of the original accessor's pointer-keyed retention table. A
// handle must be released exactly once; releasing an address that was
// never retained, or releasing it twice, is reported rather than ignored,
// since that usually means a caller double-freed a secret.
package retention

import (
	"sync"
	"unsafe"
)

// Table is the process-wide retained-buffer registry. The zero value is
// ready to use.
type Table struct {
	mu   sync.Mutex
	live map[uintptr][]byte
}

// Retain records buf under its backing address and returns that address as
// an opaque handle.
func (t *Table) Retain(buf []byte) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.live == nil {
		t.live = make(map[uintptr][]byte)
	}
	addr := addrOf(buf)
	t.live[addr] = buf
	return addr
}

// Lookup returns the buffer retained under handle, and whether it is still
// live.
func (t *Table) Lookup(handle uintptr) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf, ok := t.live[handle]
	return buf, ok
}

// Release removes handle from the table and returns its buffer, or
// reports ok=false if handle was not (or is no longer) retained.
func (t *Table) Release(handle uintptr) (buf []byte, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf, ok = t.live[handle]
	if ok {
		delete(t.live, handle)
	}
	return buf, ok
}

// Len reports how many handles are currently retained.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// AddrOf returns the address of buf's first byte, the same handle Retain
// would assign it - exported so a caller holding only a []byte (not the
// handle Retain returned) can still look up or release its entry.
func AddrOf(buf []byte) uintptr {
	return addrOf(buf)
}

func addrOf(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}
