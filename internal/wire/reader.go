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

package wire

import (
	"encoding/binary"
	"io"

	"github.com/nabbar/secret-storage/internal/kind"
)

// Message is a fully decoded message: its header plus zero, one, or two
// body entries, depending on Header.Type.
type Message struct {
	Header Header
	Entry0 []byte
	Entry1 []byte
}

// entryCount reports how many length-prefixed entries a message body of
// this Type carries: 0 for types with no body, 1 for single-entry bodies,
// 2 for Add's key+value pair.
func (t Type) entryCount() int {
	switch t {
	case Add:
		return 2
	case Ping, Pong, Query, Delete, Result:
		return 1
	case Failed:
		// A description entry is carried only when FlagDescriptionAttached
		// is set; Read and Write check the flag before touching Entry0.
		return 1
	default:
		return 0
	}
}

// Read decodes one Message from r. Each entry is read into a fresh buffer
// of exactly its declared length, so nothing is truncated; a declared
// length above MaxBodySize is reported as kind.ProtocolViolation.
func Read(r io.Reader) (Message, error) {
	var hb [headerSize]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return Message{}, kind.Wrap(kind.TransportFailure, "read header", err)
	}
	h := Header{Type: Type(hb[0]), Flags: hb[1]}

	msg := Message{Header: h}

	switch h.Type {
	case Failed:
		if h.Flags&FlagDescriptionAttached == 0 {
			return msg, nil
		}
		entry, err := readEntry(r)
		if err != nil {
			return Message{}, err
		}
		msg.Entry0 = entry
		return msg, nil

	case Add:
		e0, e1, err := readDoubleEntry(r)
		if err != nil {
			return Message{}, err
		}
		msg.Entry0, msg.Entry1 = e0, e1
		return msg, nil

	default:
		if h.Type.entryCount() == 0 {
			return msg, nil
		}
		entry, err := readEntry(r)
		if err != nil {
			return Message{}, err
		}
		msg.Entry0 = entry
		return msg, nil
	}
}

func readEntry(r io.Reader) ([]byte, error) {
	var lb [2]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return nil, kind.Wrap(kind.TransportFailure, "read entry length", err)
	}
	n := int(binary.LittleEndian.Uint16(lb[:]))
	if n > MaxBodySize {
		return nil, kind.New(kind.ProtocolViolation, "entry exceeds maximum body size")
	}
	data := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, kind.Wrap(kind.TransportFailure, "read entry data", err)
		}
	}
	return data, nil
}

// readDoubleEntry reads Add's double-entry body: both u16 lengths up
// front, then the concatenation of both data slices - the framing
// EncodeDouble writes, not two independent single-entry reads.
func readDoubleEntry(r io.Reader) (data0, data1 []byte, err error) {
	var lb [4]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return nil, nil, kind.Wrap(kind.TransportFailure, "read entry lengths", err)
	}
	n0 := int(binary.LittleEndian.Uint16(lb[0:2]))
	n1 := int(binary.LittleEndian.Uint16(lb[2:4]))
	if n0 > MaxBodySize || n1 > MaxBodySize {
		return nil, nil, kind.New(kind.ProtocolViolation, "entry exceeds maximum body size")
	}
	data0 = make([]byte, n0)
	if n0 > 0 {
		if _, err := io.ReadFull(r, data0); err != nil {
			return nil, nil, kind.Wrap(kind.TransportFailure, "read first entry data", err)
		}
	}
	data1 = make([]byte, n1)
	if n1 > 0 {
		if _, err := io.ReadFull(r, data1); err != nil {
			return nil, nil, kind.Wrap(kind.TransportFailure, "read second entry data", err)
		}
	}
	return data0, data1, nil
}

// Write encodes msg and writes it to w in a single call, so a reader never
// observes a partial message on the socket.
func Write(w io.Writer, msg Message) error {
	buf := msg.Header.Encode(make([]byte, 0, headerSize+4+len(msg.Entry0)+len(msg.Entry1)))

	var err error
	switch msg.Header.Type {
	case Add:
		buf, err = EncodeDouble(buf, msg.Entry0, msg.Entry1)
	case Failed:
		if msg.Header.Flags&FlagDescriptionAttached != 0 {
			buf, err = EncodeSingle(buf, msg.Entry0)
		}
	default:
		if msg.Header.Type.entryCount() != 0 {
			buf, err = EncodeSingle(buf, msg.Entry0)
		}
	}
	if err != nil {
		return err
	}

	if _, err := w.Write(buf); err != nil {
		return kind.Wrap(kind.TransportFailure, "write message", err)
	}
	return nil
}
