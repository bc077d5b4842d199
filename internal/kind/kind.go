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

// Package kind holds the small registry of named error kinds this daemon
// distinguishes, in the style of the teacher's errors.CodeError registry
// but trimmed to the five kinds this spec's error handling design (§7)
// actually names.
package kind

import (
	"errors"
	"fmt"
)

// Code identifies one of the error kinds named by the error handling design.
type Code uint8

const (
	// AllocExhausted: out of locked memory, failed page map/lock. Fatal at
	// the point of allocation.
	AllocExhausted Code = iota + 1
	// ProtocolViolation: wrong reply type, short read, inconsistent body.
	ProtocolViolation
	// ApplicationFailure: Add onto existing key without replace, Query on
	// missing key, Delete on missing key without AllowMissing.
	ApplicationFailure
	// TransportFailure: connect/send/recv error, server not running.
	TransportFailure
	// AddressResolution: socket path exists when it should not, or the
	// parent directory is insecure and unfixable.
	AddressResolution
)

var names = map[Code]string{
	AllocExhausted:     "alloc exhausted",
	ProtocolViolation:  "protocol violation",
	ApplicationFailure: "application failure",
	TransportFailure:   "transport failure",
	AddressResolution:  "address resolution",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(c))
}

// Error wraps an underlying cause with a Code, so callers can match on the
// kind via errors.Is/errors.As without inspecting message text.
type Error struct {
	Code  Code
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error carrying the same Code, so
// errors.Is(err, kind.New(kind.TransportFailure, "")) matches on kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// New constructs an Error of the given kind with no wrapped cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Msg: msg, Cause: cause}
}

// Of reports the Code of err if it is (or wraps) a *Error, and false otherwise.
func Of(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
