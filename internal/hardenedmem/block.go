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

import "unsafe"

// block is the header overlaid at the start of every free or allocated
// region. size carries the page-leader flag in its low bit; the block is
// always aligned so that bit is otherwise unused. last/next form the
// intrusive doubly linked free list; once a block is allocated, its
// payload reuses the space these two fields occupy (the payload begins
// right after size, at payloadOffset), exactly as in the reference
// allocator this package is grounded on.
type block struct {
	size uintptr
	last *block
	next *block
}

const (
	ptrSize       = unsafe.Sizeof(uintptr(0))
	align         = ptrSize
	headerSize    = unsafe.Sizeof(block{})
	payloadOffset = ptrSize
	leaderBit     = uintptr(1)
)

func blockAt(p unsafe.Pointer) *block {
	return (*block)(p)
}

func (b *block) addr() uintptr {
	return uintptr(unsafe.Pointer(b))
}

func (b *block) getSize() uintptr {
	return b.size &^ leaderBit
}

func (b *block) setSize(v uintptr) {
	b.size = v | (b.size & leaderBit)
}

func (b *block) markLeader() {
	b.size |= leaderBit
}

func (b *block) isLeader() bool {
	return b.size&leaderBit != 0
}

func (b *block) payload() unsafe.Pointer {
	return unsafe.Pointer(b.addr() + payloadOffset)
}

func blockFromPayload(p unsafe.Pointer) *block {
	return blockAt(unsafe.Pointer(uintptr(p) - payloadOffset))
}

func roundUp(n, to uintptr) uintptr {
	if n%to == 0 {
		return n
	}
	return (n/to + 1) * to
}
