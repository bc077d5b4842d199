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

package retention_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/secret-storage/internal/retention"
)

func TestRetention(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "retention suite")
}

var _ = Describe("Table", func() {
	It("retains a buffer and looks it up by the returned handle", func() {
		var tbl retention.Table
		buf := []byte("secret")

		h := tbl.Retain(buf)
		got, ok := tbl.Lookup(h)
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(buf))
	})

	It("release removes the entry and reports it was present", func() {
		var tbl retention.Table
		h := tbl.Retain([]byte("secret"))

		buf, ok := tbl.Release(h)
		Expect(ok).To(BeTrue())
		Expect(buf).To(Equal([]byte("secret")))

		_, ok = tbl.Lookup(h)
		Expect(ok).To(BeFalse())
	})

	It("releasing an unknown handle reports false", func() {
		var tbl retention.Table
		_, ok := tbl.Release(0xdeadbeef)
		Expect(ok).To(BeFalse())
	})

	It("releasing twice reports false the second time", func() {
		var tbl retention.Table
		h := tbl.Retain([]byte("secret"))

		_, ok := tbl.Release(h)
		Expect(ok).To(BeTrue())
		_, ok = tbl.Release(h)
		Expect(ok).To(BeFalse())
	})

	It("Len tracks the number of live handles", func() {
		var tbl retention.Table
		Expect(tbl.Len()).To(Equal(0))

		h1 := tbl.Retain([]byte("a"))
		tbl.Retain([]byte("b"))
		Expect(tbl.Len()).To(Equal(2))

		tbl.Release(h1)
		Expect(tbl.Len()).To(Equal(1))
	})
})
