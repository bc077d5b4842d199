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

// Package termprompt asks for a secret on the controlling terminal with
// echo suppressed and returns the answer as a copy in memory obtained from
// the caller's Allocator (hardened memory in the accessor). The line is
// first read into an ordinary Go buffer (term.ReadPassword's result or the
// bufio.Scanner's buffer), which is not scrubbed. golang.org/x/term
// replaces the teacher's golang.org/x/crypto/ssh/terminal, which has been
// superseded upstream by the same maintainers; the echo-off read through
// term.ReadPassword is otherwise the same shape as console.PromptPassword.
package termprompt

import (
	"bufio"
	"fmt"
	"io"

	"golang.org/x/term"

	"github.com/nabbar/secret-storage/internal/kind"
)

// Allocator is the subset of *hardenedmem.Manager this package needs,
// accepted as an interface so tests can supply a plain-memory stand-in.
type Allocator interface {
	Allocate(n int) ([]byte, error)
}

// Ask prints prompt to out, then reads one line from in with terminal echo
// disabled whenever in is a terminal, returning the answer copied into
// memory obtained from alloc. If in is not a terminal (piped input, tests),
// it falls back to a plain line read since there is no echo to suppress.
// A blank line is returned as a zero-length, non-error result; it is the
// caller's job to decide whether an empty answer is acceptable.
func Ask(out io.Writer, in io.Reader, prompt string, alloc Allocator) ([]byte, error) {
	if prompt != "" {
		fmt.Fprintf(out, "%s: ", prompt)
	}

	if f, ok := in.(fdReader); ok && term.IsTerminal(f.Fd()) {
		line, err := readPassword(f, out)
		if err != nil {
			return nil, kind.Wrap(kind.TransportFailure, "read password", err)
		}
		return toHardened(line, alloc)
	}

	line, err := readLine(in)
	if err != nil {
		return nil, kind.Wrap(kind.TransportFailure, "read line", err)
	}
	return toHardened(line, alloc)
}

// AskRetry is Ask's looping form, matching the reference ask_secret: it
// keeps re-prompting with retryPrompt (or prompt again, if retryPrompt is
// empty) on every blank line, until either a non-empty answer or true
// end-of-input, at which point it returns an empty, non-error result. A
// single scanner/terminal session backs the whole loop, so buffered input
// read-ahead on one attempt is not lost on the next.
func AskRetry(out io.Writer, in io.Reader, prompt, retryPrompt string, alloc Allocator) ([]byte, error) {
	if f, ok := in.(fdReader); ok && term.IsTerminal(f.Fd()) {
		return askRetryTerminal(out, f, prompt, retryPrompt, alloc)
	}
	return askRetryLine(out, in, prompt, retryPrompt, alloc)
}

func askRetryTerminal(out io.Writer, f fdReader, prompt, retryPrompt string, alloc Allocator) ([]byte, error) {
	next := prompt
	for {
		if next != "" {
			fmt.Fprintf(out, "%s: ", next)
		}
		line, err := readPassword(f, out)
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, kind.Wrap(kind.TransportFailure, "read password", err)
		}
		if len(line) > 0 {
			return toHardened(line, alloc)
		}
		next = retryPrompt
		if next == "" {
			next = prompt
		}
	}
}

func askRetryLine(out io.Writer, in io.Reader, prompt, retryPrompt string, alloc Allocator) ([]byte, error) {
	scn := bufio.NewScanner(in)
	next := prompt
	for {
		if next != "" {
			fmt.Fprintf(out, "%s: ", next)
		}
		if !scn.Scan() {
			if err := scn.Err(); err != nil {
				return nil, kind.Wrap(kind.TransportFailure, "read line", err)
			}
			return nil, nil
		}
		if line := scn.Bytes(); len(line) > 0 {
			return toHardened(line, alloc)
		}
		next = retryPrompt
		if next == "" {
			next = prompt
		}
	}
}

type fdReader interface {
	io.Reader
	Fd() uintptr
}

func readPassword(f fdReader, out io.Writer) ([]byte, error) {
	fd := int(f.Fd())
	line, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return nil, err
	}
	return line, nil
}

func readLine(in io.Reader) ([]byte, error) {
	scn := bufio.NewScanner(in)
	if !scn.Scan() {
		if err := scn.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return scn.Bytes(), nil
}

func toHardened(line []byte, alloc Allocator) ([]byte, error) {
	if len(line) == 0 {
		return nil, nil
	}
	buf, err := alloc.Allocate(len(line))
	if err != nil {
		return nil, err
	}
	copy(buf, line)
	return buf, nil
}
