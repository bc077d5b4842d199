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

// Package wire encodes and decodes the two-byte header plus single- or
// double-entry body that make up every message on the wire. Multi-byte
// integers are little-endian; the protocol was never meant to be portable
// across machines, so this simply fixes one concrete byte order rather than
// chasing host-native semantics.
package wire

import (
	"encoding/binary"

	"github.com/nabbar/secret-storage/internal/kind"
)

// Type identifies the kind of message carried by a Header.
type Type uint8

const (
	Ping Type = iota
	Pong
	Add
	Query
	Delete
	Ok
	Failed
	Result
	Terminate
)

var typeNames = map[Type]string{
	Ping: "ping", Pong: "pong", Add: "add", Query: "query", Delete: "delete",
	Ok: "ok", Failed: "failed", Result: "result", Terminate: "terminate",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "unknown"
}

// Flag bits. Meaning depends on Type; bits not defined for a given Type are
// reserved and must be zero.
const (
	// FlagReplaceExisting is meaningful on Add: replace an existing key
	// instead of failing.
	FlagReplaceExisting uint8 = 1 << 0
	// FlagExistenceOnly is meaningful on Query: report presence without
	// returning the value.
	FlagExistenceOnly uint8 = 1 << 0
	// FlagDeleteSecret is meaningful on Query: remove the entry after a
	// successful lookup.
	FlagDeleteSecret uint8 = 1 << 1
	// FlagAllowMissing is meaningful on Delete: do not fail when the key
	// is absent.
	FlagAllowMissing uint8 = 1 << 0
	// FlagDescriptionAttached is meaningful on Failed: a single-entry
	// body carrying a human-readable description follows the header.
	FlagDescriptionAttached uint8 = 1 << 0
)

// headerSize is the wire size of a Header: one byte of Type, one byte of
// flags.
const headerSize = 2

// MaxBodySize is the hard ceiling on any single entry: the largest length a
// u16 length prefix can carry. Encoding a longer entry reports
// kind.ProtocolViolation instead of writing a wrapped-around length.
const MaxBodySize = 64*1024 - 1

// Header is the two-byte preamble present on every message.
type Header struct {
	Type  Type
	Flags uint8
}

// Encode appends the wire form of h to dst and returns the result.
func (h Header) Encode(dst []byte) []byte {
	return append(dst, byte(h.Type), h.Flags)
}

// DecodeHeader reads a Header from the front of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, kind.New(kind.ProtocolViolation, "short header")
	}
	return Header{Type: Type(buf[0]), Flags: buf[1]}, nil
}

// EncodeSingle appends a single-entry body (u16 length, then data) to dst.
func EncodeSingle(dst []byte, data []byte) ([]byte, error) {
	if len(data) > MaxBodySize {
		return nil, kind.New(kind.ProtocolViolation, "single entry exceeds maximum body size")
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(data)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, data...), nil
}

// DecodeSingle reads a single-entry body from the front of buf, returning
// the data slice (aliasing buf) and the number of bytes consumed.
func DecodeSingle(buf []byte) (data []byte, consumed int, err error) {
	if len(buf) < 2 {
		return nil, 0, kind.New(kind.ProtocolViolation, "short single-entry length")
	}
	n := int(binary.LittleEndian.Uint16(buf))
	if n > MaxBodySize {
		return nil, 0, kind.New(kind.ProtocolViolation, "single entry exceeds maximum body size")
	}
	if len(buf) < 2+n {
		return nil, 0, kind.New(kind.ProtocolViolation, "short single-entry data")
	}
	return buf[2 : 2+n], 2 + n, nil
}

// EncodeDouble appends a double-entry body (u16 length0, u16 length1, then
// the concatenation of both data slices) to dst.
func EncodeDouble(dst []byte, data0, data1 []byte) ([]byte, error) {
	if len(data0) > MaxBodySize || len(data1) > MaxBodySize {
		return nil, kind.New(kind.ProtocolViolation, "double entry exceeds maximum body size")
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint16(lenBuf[0:2], uint16(len(data0)))
	binary.LittleEndian.PutUint16(lenBuf[2:4], uint16(len(data1)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, data0...)
	return append(dst, data1...), nil
}

// DecodeDouble reads a double-entry body from the front of buf, returning
// both data slices (aliasing buf) and the number of bytes consumed.
func DecodeDouble(buf []byte) (data0, data1 []byte, consumed int, err error) {
	if len(buf) < 4 {
		return nil, nil, 0, kind.New(kind.ProtocolViolation, "short double-entry length")
	}
	n0 := int(binary.LittleEndian.Uint16(buf[0:2]))
	n1 := int(binary.LittleEndian.Uint16(buf[2:4]))
	if n0 > MaxBodySize || n1 > MaxBodySize {
		return nil, nil, 0, kind.New(kind.ProtocolViolation, "double entry exceeds maximum body size")
	}
	total := 4 + n0 + n1
	if len(buf) < total {
		return nil, nil, 0, kind.New(kind.ProtocolViolation, "short double-entry data")
	}
	return buf[4 : 4+n0], buf[4+n0 : total], total, nil
}
