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

package wire_test

import (
	"bytes"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/secret-storage/internal/wire"
)

func TestWire(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "wire suite")
}

var _ = Describe("Header", func() {
	It("round-trips through Encode/DecodeHeader", func() {
		h := wire.Header{Type: wire.Query, Flags: wire.FlagExistenceOnly}
		buf := h.Encode(nil)
		Expect(buf).To(Equal([]byte{byte(wire.Query), wire.FlagExistenceOnly}))

		got, err := wire.DecodeHeader(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(Equal(h))
	})

	It("rejects a short header", func() {
		_, err := wire.DecodeHeader([]byte{1})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Single-entry body", func() {
	It("round-trips arbitrary data", func() {
		buf, err := wire.EncodeSingle(nil, []byte("hunter2"))
		Expect(err).ToNot(HaveOccurred())

		data, consumed, err := wire.DecodeSingle(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(consumed).To(Equal(len(buf)))
		Expect(data).To(Equal([]byte("hunter2")))
	})

	It("round-trips an empty entry", func() {
		buf, err := wire.EncodeSingle(nil, nil)
		Expect(err).ToNot(HaveOccurred())

		data, consumed, err := wire.DecodeSingle(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(consumed).To(Equal(2))
		Expect(data).To(BeEmpty())
	})

	It("rejects data past the maximum body size", func() {
		_, err := wire.EncodeSingle(nil, make([]byte, wire.MaxBodySize+1))
		Expect(err).To(HaveOccurred())
	})

	It("rejects a truncated body", func() {
		buf, err := wire.EncodeSingle(nil, []byte("abcdef"))
		Expect(err).ToNot(HaveOccurred())
		_, _, err = wire.DecodeSingle(buf[:len(buf)-2])
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Double-entry body", func() {
	It("round-trips a key/value pair", func() {
		buf, err := wire.EncodeDouble(nil, []byte("key"), []byte("value"))
		Expect(err).ToNot(HaveOccurred())

		d0, d1, consumed, err := wire.DecodeDouble(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(consumed).To(Equal(len(buf)))
		Expect(d0).To(Equal([]byte("key")))
		Expect(d1).To(Equal([]byte("value")))
	})
})

var _ = Describe("Message Read/Write", func() {
	It("round-trips a Ping", func() {
		var buf bytes.Buffer
		in := wire.Message{Header: wire.Header{Type: wire.Ping}, Entry0: []byte("nonce")}
		Expect(wire.Write(&buf, in)).To(Succeed())

		out, err := wire.Read(&buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Header.Type).To(Equal(wire.Ping))
		Expect(out.Entry0).To(Equal([]byte("nonce")))
	})

	It("round-trips an Add with two entries", func() {
		var buf bytes.Buffer
		in := wire.Message{
			Header: wire.Header{Type: wire.Add, Flags: wire.FlagReplaceExisting},
			Entry0: []byte("key"), Entry1: []byte("value"),
		}
		Expect(wire.Write(&buf, in)).To(Succeed())

		out, err := wire.Read(&buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Header.Flags).To(Equal(wire.FlagReplaceExisting))
		Expect(out.Entry0).To(Equal([]byte("key")))
		Expect(out.Entry1).To(Equal([]byte("value")))
	})

	It("round-trips an Ok with no body", func() {
		var buf bytes.Buffer
		in := wire.Message{Header: wire.Header{Type: wire.Ok}}
		Expect(wire.Write(&buf, in)).To(Succeed())

		out, err := wire.Read(&buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Header.Type).To(Equal(wire.Ok))
		Expect(out.Entry0).To(BeEmpty())
	})

	It("round-trips a Failed with no description when the flag is unset", func() {
		var buf bytes.Buffer
		in := wire.Message{Header: wire.Header{Type: wire.Failed}}
		Expect(wire.Write(&buf, in)).To(Succeed())

		out, err := wire.Read(&buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Entry0).To(BeEmpty())
	})

	It("round-trips a Failed carrying a description", func() {
		var buf bytes.Buffer
		in := wire.Message{
			Header: wire.Header{Type: wire.Failed, Flags: wire.FlagDescriptionAttached},
			Entry0: []byte("key already exists"),
		}
		Expect(wire.Write(&buf, in)).To(Succeed())

		out, err := wire.Read(&buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Entry0).To(Equal([]byte("key already exists")))
	})

	It("rejects a message whose declared length is never satisfied", func() {
		var buf bytes.Buffer
		buf.Write([]byte{byte(wire.Ping), 0})
		buf.Write([]byte{10, 0}) // claims 10 bytes of entry data
		buf.Write([]byte("ab"))  // only 2 supplied
		_, err := wire.Read(&buf)
		Expect(err).To(HaveOccurred())
	})
})
