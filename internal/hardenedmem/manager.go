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

package hardenedmem

import (
	"crypto/rand"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/nabbar/secret-storage/internal/kind"
)

const fillPattern = 0x42

// Manager owns one free list of mlock-pinned pages. The zero value is not
// usable; construct with New.
type Manager struct {
	mu       sync.Mutex
	pageSize uintptr
	list     *block
}

// New constructs a Manager sized to the platform's page size.
func New() *Manager {
	return &Manager{pageSize: uintptr(unix.Getpagesize())}
}

var (
	defaultOnce sync.Once
	defaultMgr  *Manager
)

// Default returns the process-wide Manager, constructing it on first use.
func Default() *Manager {
	defaultOnce.Do(func() { defaultMgr = New() })
	return defaultMgr
}

func (m *Manager) addBefore(target, before *block) {
	if before.last == nil {
		m.list = target
	} else {
		before.last.next = target
	}
	target.next = before
	target.last = before.last
	before.last = target
}

func (m *Manager) addAfter(target, after *block) {
	target.last = after
	target.next = after.next
	if after.next != nil {
		after.next.last = target
	}
	after.next = target
}

func (m *Manager) removeFromList(target *block) {
	if target.last == nil {
		m.list = target.next
	} else {
		target.last.next = target.next
	}
	if target.next != nil {
		target.next.last = target.last
	}
}

func (m *Manager) doMerge(first, second *block) bool {
	if first.addr()+first.getSize() == second.addr() {
		first.setSize(first.getSize() + second.getSize())
		m.removeFromList(second)
		return true
	}
	return false
}

func (m *Manager) merge(target *block) {
	if !target.isLeader() && target.last != nil {
		last := target.last
		if m.doMerge(target.last, target) {
			target = last
		}
	}
	if target.next != nil && !target.next.isLeader() {
		m.doMerge(target, target.next)
	}
}

// addToList inserts entry in address order and coalesces it with its
// neighbors. Callers must hold mu.
func (m *Manager) addToList(entry *block) {
	if m.list == nil {
		m.list = entry
		entry.last = nil
		entry.next = nil
		return
	}
	target := m.list
	for target.next != nil {
		if target.addr() > entry.addr() {
			break
		}
		target = target.next
	}
	if target.addr() > entry.addr() {
		m.addBefore(entry, target)
	} else {
		m.addAfter(entry, target)
	}
	m.merge(entry)
}

func (m *Manager) findSuitableEntry(size uintptr) *block {
	for entry := m.list; entry != nil; entry = entry.next {
		if entry.getSize() >= size {
			return entry
		}
	}
	return nil
}

// addPage maps, locks, and lists one fresh page. Callers must hold mu.
func (m *Manager) addPage() error {
	page, err := unix.Mmap(-1, 0, int(m.pageSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return kind.Wrap(kind.AllocExhausted, "mmap page", err)
	}
	if err := unix.Mlock(page); err != nil {
		_ = unix.Munmap(page)
		return kind.Wrap(kind.AllocExhausted, "mlock page", err)
	}
	entry := blockAt(unsafe.Pointer(&page[0]))
	entry.size = 0
	entry.setSize(m.pageSize)
	entry.markLeader()
	m.addToList(entry)
	return nil
}

func (m *Manager) removePage(entry *block) {
	m.removeFromList(entry)
	page := unsafe.Slice((*byte)(unsafe.Pointer(entry)), int(m.pageSize))
	_, _ = rand.Read(page)
	_ = unix.Munlock(page)
	_ = unix.Munmap(page)
}

// Allocate returns n fresh bytes backed by mlock-pinned memory, filled
// with a non-zero debugging pattern. Requests that cannot fit within one
// page fail with kind.AllocExhausted, matching the "not yet implemented"
// fatal path of the reference allocator.
func (m *Manager) Allocate(n int) ([]byte, error) {
	if n <= 0 {
		return nil, kind.New(kind.AllocExhausted, "allocate: size must be positive")
	}

	size := uintptr(n) + payloadOffset
	if size < headerSize {
		size = headerSize
	}
	size = roundUp(size, align)

	if size > m.pageSize {
		return nil, kind.New(kind.AllocExhausted, "allocate: request exceeds one page")
	}

	m.mu.Lock()
	target := m.findSuitableEntry(size)
	if target == nil {
		if err := m.addPage(); err != nil {
			m.mu.Unlock()
			return nil, err
		}
		target = m.findSuitableEntry(size)
	}
	if target == nil {
		m.mu.Unlock()
		return nil, kind.New(kind.AllocExhausted, "allocate: no suitable block after adding a page")
	}
	m.removeFromList(target)
	m.mu.Unlock()

	if target.getSize()-size >= headerSize {
		tail := blockAt(unsafe.Pointer(target.addr() + size))
		tail.size = 0
		tail.setSize(target.getSize() - size)
		m.mu.Lock()
		m.addToList(tail)
		m.mu.Unlock()
		target.setSize(size)
	}

	payload := unsafe.Slice((*byte)(target.payload()), int(target.getSize()-payloadOffset))
	for i := range payload {
		payload[i] = fillPattern
	}
	return payload[:n:n], nil
}

// Deallocate scrubs buf with OS entropy and returns its block to the free
// list, coalescing with address-adjacent free neighbors. buf must be a
// slice previously returned by Allocate and not yet deallocated.
func (m *Manager) Deallocate(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	entry := blockFromPayload(unsafe.Pointer(&buf[0]))
	scratch := unsafe.Slice((*byte)(entry.payload()), int(entry.getSize()-payloadOffset))
	if _, err := rand.Read(scratch); err != nil {
		return kind.Wrap(kind.AllocExhausted, "deallocate: scrub", err)
	}
	m.mu.Lock()
	m.addToList(entry)
	m.mu.Unlock()
	return nil
}

// Close retires every page-leader block still on the free list, scrubbing,
// unlocking, and unmapping each page. Any block that is allocated (not on
// the free list) when Close runs is simply never retired — the caller is
// responsible for deallocating everything it cares about first.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.list != nil {
		if m.list.isLeader() && m.list.getSize() == m.pageSize {
			m.removePage(m.list)
			continue
		}
		// a non-leader, non-page-sized block at this point means a
		// caller never released an allocation, or coalescing split
		// oddly; drop it from the list rather than loop forever.
		m.removeFromList(m.list)
	}
	return nil
}
