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

// Package store holds the in-process key->secret mapping. A single mutex
// serializes every operation; Query copies its result into a
// caller-supplied buffer while still holding that mutex, so the result is
// stable the instant the lock is released.
package store

import "sync"

// Store is a concurrent key->value map of secret byte strings. The zero
// value is not usable; construct with New.
type Store struct {
	mu   sync.Mutex
	data map[string][]byte
}

// New constructs an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Add inserts value under key only if key is absent, and reports whether
// the insert happened.
func (s *Store) Add(key, value []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := string(key)
	if _, exists := s.data[k]; exists {
		return false
	}
	s.data[k] = value
	return true
}

// Update inserts or overwrites key unconditionally.
func (s *Store) Update(key, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = value
}

// Query looks up key and, if present, copies the stored value into a
// buffer obtained from alloc(n) — called while the store's mutex is still
// held, so the copy is made before any concurrent mutation can observe the
// lock being released. Returns ok=false if key is absent; alloc is never
// called in that case.
func (s *Store) Query(key []byte, alloc func(n int) ([]byte, error)) (value []byte, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, found := s.data[string(key)]
	if !found {
		return nil, false, nil
	}
	buf, err := alloc(len(v))
	if err != nil {
		return nil, false, err
	}
	copy(buf, v)
	return buf, true, nil
}

// Remove deletes key and reports 1 if it was present, 0 otherwise.
func (s *Store) Remove(key []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := string(key)
	if _, exists := s.data[k]; !exists {
		return 0
	}
	delete(s.data, k)
	return 1
}
