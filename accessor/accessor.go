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

//go:build unix

// Package accessor is the client-side façade onto the daemon: it opens a
// fresh connection per call, owns everything it gets back in hardened
// memory, and hands callers a view keyed by that view's start address so
// bindings that cannot carry extra state across a language boundary can
// still release what they were given. Grounded on the reference
// accessor's send_message/update/query/ping/make_secured_key/get_secret
// shape; a default process-wide instance is exposed through a lazily
// initialized holder rather than ambient globals (see Default).
package accessor

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/nabbar/secret-storage/internal/hardenedmem"
	"github.com/nabbar/secret-storage/internal/kind"
	"github.com/nabbar/secret-storage/internal/retention"
	"github.com/nabbar/secret-storage/internal/sockaddr"
	"github.com/nabbar/secret-storage/internal/termprompt"
	"github.com/nabbar/secret-storage/internal/wire"
)

// pingNonceSize matches the reference accessor's ping payload size.
const pingNonceSize = 128

// DialTimeout bounds how long a round trip waits to connect, so a dead or
// unreachable server fails fast instead of hanging the caller.
var DialTimeout = 2 * time.Second

// Accessor is the process-wide façade. The zero value is not initialized;
// construct with New, or use Default for the shared instance.
type Accessor struct {
	mu          sync.Mutex
	path        string
	initialized bool

	alloc   *hardenedmem.Manager
	retain  retention.Table
	stdin   io.Reader
	stdout  io.Writer
}

// New constructs an uninitialized Accessor. Call SetSocketPath, or make
// any server-touching call, to lazily initialize it with defaults.
func New() *Accessor {
	return &Accessor{alloc: hardenedmem.New(), stdin: os.Stdin, stdout: os.Stdout}
}

// SetPromptIO overrides the reader/writer AskSecret prompts on, normally
// os.Stdin/os.Stdout. Exposed for tests that need to script a prompt
// response without a controlling terminal.
func (a *Accessor) SetPromptIO(in io.Reader, out io.Writer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stdin, a.stdout = in, out
}

var (
	defaultOnce sync.Once
	defaultAcc  *Accessor
)

// Default returns the process-wide Accessor, constructing it on first use.
func Default() *Accessor {
	defaultOnce.Do(func() { defaultAcc = New() })
	return defaultAcc
}

// SetSocketPath resolves and validates path (empty means "use defaults")
// and marks the accessor initialized. A failed resolution leaves the
// accessor uninitialized.
func (a *Accessor) SetSocketPath(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	resolved, err := sockaddr.Resolve(path)
	if err != nil {
		return err
	}
	a.path = resolved
	a.initialized = true
	return nil
}

// ensureInitialized lazily resolves the default socket path the first time
// any server-touching call is made without an explicit SetSocketPath.
func (a *Accessor) ensureInitialized() error {
	a.mu.Lock()
	already := a.initialized
	a.mu.Unlock()
	if already {
		return nil
	}
	return a.SetSocketPath("")
}

func (a *Accessor) socketPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.path
}

// sendMessage opens a fresh connection, writes msg, and returns the
// connection for the caller to read a reply from (or nil on failure).
func (a *Accessor) sendMessage(msg wire.Message) (net.Conn, error) {
	if err := a.ensureInitialized(); err != nil {
		return nil, err
	}
	conn, err := net.DialTimeout("unix", a.socketPath(), DialTimeout)
	if err != nil {
		return nil, kind.Wrap(kind.TransportFailure, "connect", err)
	}
	if err := wire.Write(conn, msg); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (a *Accessor) roundTrip(msg wire.Message) (wire.Message, error) {
	conn, err := a.sendMessage(msg)
	if err != nil {
		return wire.Message{}, err
	}
	defer conn.Close()
	return wire.Read(conn)
}

// Ping sends a Ping with 128 random bytes and reports whether the reply is
// an identical Pong echo.
func (a *Accessor) Ping() bool {
	nonce := make([]byte, pingNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return false
	}
	reply, err := a.roundTrip(wire.Message{Header: wire.Header{Type: wire.Ping}, Entry0: nonce})
	if err != nil {
		return false
	}
	if reply.Header.Type != wire.Pong || len(reply.Entry0) != len(nonce) {
		return false
	}
	for i := range nonce {
		if reply.Entry0[i] != nonce[i] {
			return false
		}
	}
	return true
}

// Exists reports whether key is present in the store.
func (a *Accessor) Exists(key []byte) bool {
	reply, err := a.roundTrip(wire.Message{
		Header: wire.Header{Type: wire.Query, Flags: wire.FlagExistenceOnly},
		Entry0: key,
	})
	return err == nil && reply.Header.Type == wire.Ok
}

// SubmitSecret adds key/value, replacing an existing entry iff replace.
func (a *Accessor) SubmitSecret(key, value []byte, replace bool) bool {
	var flags uint8
	if replace {
		flags = wire.FlagReplaceExisting
	}
	reply, err := a.roundTrip(wire.Message{
		Header: wire.Header{Type: wire.Add, Flags: flags},
		Entry0: key, Entry1: value,
	})
	return err == nil && reply.Header.Type == wire.Ok
}

// RemoveSecret deletes key, tolerating absence iff allowMissing.
func (a *Accessor) RemoveSecret(key []byte, allowMissing bool) bool {
	var flags uint8
	if allowMissing {
		flags = wire.FlagAllowMissing
	}
	reply, err := a.roundTrip(wire.Message{
		Header: wire.Header{Type: wire.Delete, Flags: flags},
		Entry0: key,
	})
	return err == nil && reply.Header.Type == wire.Ok
}

// TerminateServer asks the daemon to shut down, ignoring the I/O outcome:
// there is no reply to wait for.
func (a *Accessor) TerminateServer() {
	conn, err := a.sendMessage(wire.Message{Header: wire.Header{Type: wire.Terminate}})
	if err != nil {
		return
	}
	conn.Close()
}

// MakeSecuredKey allocates an n-byte hardened buffer filled with OS random
// bytes, retains it, and returns the view.
func (a *Accessor) MakeSecuredKey(n int) ([]byte, error) {
	buf, err := a.alloc.Allocate(n)
	if err != nil {
		return nil, err
	}
	if _, err := rand.Read(buf); err != nil {
		return nil, kind.Wrap(kind.AllocExhausted, "fill secured key", err)
	}
	a.retain.Retain(buf)
	return buf, nil
}

// AskSecret prompts on stdout/stdin with echo suppressed, re-prompting
// with retryPrompt (or prompt again, if retryPrompt is empty) on every
// blank line until either a non-empty answer or true end-of-input,
// retains the result, and returns the view. A true end-of-input returns
// an empty, non-error view.
func (a *Accessor) AskSecret(prompt, retryPrompt string) ([]byte, error) {
	view, err := termprompt.AskRetry(a.stdout, a.stdin, prompt, retryPrompt, a.alloc)
	if err != nil {
		return nil, err
	}
	if len(view) > 0 {
		a.retain.Retain(view)
	}
	return view, nil
}

// EncodeString hex-encodes data directly into a hardened buffer, retains
// it, and returns the view - the encoded text never has a transient form
// on the normal heap.
func (a *Accessor) EncodeString(data []byte) ([]byte, error) {
	buf, err := a.alloc.Allocate(hex.EncodedLen(len(data)))
	if err != nil {
		return nil, err
	}
	hex.Encode(buf, data)
	a.retain.Retain(buf)
	return buf, nil
}

// DecodeString hex-decodes data into a normal (non-hardened) buffer,
// returning an empty result for odd-length input. Never call this on
// secret material; it is for user-supplied key strings only.
func (a *Accessor) DecodeString(data []byte) []byte {
	if len(data)%2 != 0 {
		return nil
	}
	out := make([]byte, hex.DecodedLen(len(data)))
	if _, err := hex.Decode(out, data); err != nil {
		return nil
	}
	return out
}

// GetOptions configures GetSecret's fallback behavior.
type GetOptions struct {
	// Remove, when true, deletes the entry server-side after a successful
	// lookup (Query's DeleteSecret flag).
	Remove bool
	// Prompt, when non-empty, is shown to the user when the server has no
	// answer (or is unreachable).
	Prompt string
	// RetryPrompt is shown if the first prompt line is blank.
	RetryPrompt string
	// Update, when true and the prompt yields a non-empty answer, writes
	// that answer back to the server with SubmitSecret.
	Update bool
}

// GetSecret queries the server for key. On a Result reply it retains and
// returns the value. On any other outcome (Failed, Ok, protocol error, or
// connection failure): if opts.Prompt is empty, it returns an empty view;
// otherwise it prompts the user and, if opts.Update and the prompt
// produced a non-empty answer, silently submits it back to the server.
func (a *Accessor) GetSecret(key []byte, opts GetOptions) ([]byte, error) {
	var flags uint8
	if opts.Remove {
		flags = wire.FlagDeleteSecret
	}
	reply, err := a.roundTrip(wire.Message{Header: wire.Header{Type: wire.Query, Flags: flags}, Entry0: key})
	if err == nil && reply.Header.Type == wire.Result {
		buf, allocErr := a.alloc.Allocate(len(reply.Entry0))
		if allocErr != nil {
			return nil, allocErr
		}
		copy(buf, reply.Entry0)
		a.retain.Retain(buf)
		return buf, nil
	}

	if opts.Prompt == "" {
		return nil, nil
	}

	view, askErr := a.AskSecret(opts.Prompt, opts.RetryPrompt)
	if askErr != nil {
		return nil, askErr
	}
	if opts.Update && len(view) > 0 {
		a.SubmitSecret(key, view, true)
	}
	return view, nil
}

// EnsureSecret reports whether a usable secret for key exists by the time
// this call returns, prompting with prompt and writing the result back if
// necessary. It returns false immediately if the server cannot be reached
// at all.
func (a *Accessor) EnsureSecret(key []byte, prompt string) bool {
	if !a.Ping() {
		return false
	}
	view, err := a.GetSecret(key, GetOptions{Prompt: prompt, Update: true})
	if err != nil {
		return false
	}
	ok := len(view) > 0
	if ok {
		a.ReleaseSecuredString(view)
	}
	return ok
}

// ReleaseSecuredString drops the retention entry backing view and scrubs
// and returns its hardened buffer to the allocator - the address based
// release primitive bindings without richer lifetime tracking use.
func (a *Accessor) ReleaseSecuredString(view []byte) {
	a.releaseHandle(retention.AddrOf(view))
}

// Release drops the retention entry for the view starting at addr and
// returns its hardened buffer to the allocator.
func (a *Accessor) Release(addr uintptr) {
	a.releaseHandle(addr)
}

func (a *Accessor) releaseHandle(addr uintptr) {
	buf, ok := a.retain.Release(addr)
	if !ok {
		return
	}
	_ = a.alloc.Deallocate(buf)
}

// RetainedCount reports how many views are currently retained; used by
// tests asserting the retention-bijection invariant (every released view
// leaves the table empty).
func (a *Accessor) RetainedCount() int {
	return a.retain.Len()
}
