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

package store_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nabbar/secret-storage/internal/store"
)

// TestAddIsExclusiveUnderContention covers invariant 5: for all
// interleavings of add(k,v) from N concurrent agents, at most one
// returns true.
func TestAddIsExclusiveUnderContention(t *testing.T) {
	const agents = 64
	s := store.New()

	var successes int64
	var start sync.WaitGroup
	var done sync.WaitGroup
	start.Add(1)
	done.Add(agents)

	for i := 0; i < agents; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			if s.Add([]byte("contended-key"), []byte{byte(i)}) {
				atomic.AddInt64(&successes, 1)
			}
		}(i)
	}

	start.Done()
	done.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly 1 successful add, got %d", successes)
	}
}
