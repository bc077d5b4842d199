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
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/secret-storage/internal/store"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "store suite")
}

func plainAlloc(n int) ([]byte, error) { return make([]byte, n), nil }

var _ = Describe("Store", func() {
	var s *store.Store

	BeforeEach(func() {
		s = store.New()
	})

	It("add inserts only when key is absent", func() {
		Expect(s.Add([]byte("k"), []byte("v1"))).To(BeTrue())
		Expect(s.Add([]byte("k"), []byte("v2"))).To(BeFalse())

		v, ok, err := s.Query([]byte("k"), plainAlloc)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal([]byte("v1")))
	})

	It("update overwrites or inserts unconditionally", func() {
		s.Update([]byte("k"), []byte("v1"))
		s.Update([]byte("k"), []byte("v2"))

		v, ok, _ := s.Query([]byte("k"), plainAlloc)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal([]byte("v2")))
	})

	It("query reports absence", func() {
		_, ok, err := s.Query([]byte("missing"), plainAlloc)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("remove reports 1 when present, 0 when absent", func() {
		s.Update([]byte("k"), []byte("v"))
		Expect(s.Remove([]byte("k"))).To(Equal(1))
		Expect(s.Remove([]byte("k"))).To(Equal(0))
	})

	It("remove makes a subsequent query report absence", func() {
		s.Update([]byte("k"), []byte("v"))
		s.Remove([]byte("k"))
		_, ok, _ := s.Query([]byte("k"), plainAlloc)
		Expect(ok).To(BeFalse())
	})
})
