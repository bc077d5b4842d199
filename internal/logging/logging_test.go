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

package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/secret-storage/internal/logging"
)

func TestLogging(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "logging suite")
}

var _ = Describe("Logger", func() {
	It("emits JSON lines carrying attached fields", func() {
		var buf bytes.Buffer
		log := logging.New(&buf, logging.LevelDebug)
		log.WithField("conn", "abc-123").Info("accepted connection")

		var decoded map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &decoded)).To(Succeed())
		Expect(decoded["conn"]).To(Equal("abc-123"))
		Expect(decoded["msg"]).To(Equal("accepted connection"))
	})

	It("suppresses lines below the configured level", func() {
		var buf bytes.Buffer
		log := logging.New(&buf, logging.LevelWarn)
		log.Info("should not appear")
		Expect(buf.Len()).To(Equal(0))
	})

	It("parses level strings, defaulting to info", func() {
		Expect(logging.ParseLevel("debug")).To(Equal(logging.LevelDebug))
		Expect(logging.ParseLevel("bogus")).To(Equal(logging.LevelInfo))
	})
})
