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

// Package server implements the accept/dispatch/reply loop: one Unix
// domain stream connection at a time, deserialized against the wire
// framing in internal/wire, mutating a store.Store, and serialized back in
// one write per connection. Structurally grounded on the reference
// server's accept loop and signal handling; the per-type dispatch
// semantics here follow the dispatch table exactly (the reference loop's
// Delete handler that always replies Failed, and its separate Update type,
// are not reproduced).
package server

import (
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-uuid"

	"github.com/nabbar/secret-storage/internal/logging"
	"github.com/nabbar/secret-storage/internal/sockaddr"
	"github.com/nabbar/secret-storage/internal/store"
	"github.com/nabbar/secret-storage/internal/wire"
)

// DefaultBacklog is the listen queue depth, matching the reference server.
const DefaultBacklog = 5

// Server owns the listening socket and the backing store.
type Server struct {
	path    string
	backlog int
	store   *store.Store
	log     logging.Logger
	ln      *net.UnixListener
	running atomic.Bool
	alloc   func(n int) ([]byte, error)
	dealloc func([]byte) error

	closeOnce sync.Once
}

// New constructs a Server that will dispatch against store, logging
// through log, with the default listen backlog.
func New(path string, st *store.Store, log logging.Logger) *Server {
	return &Server{path: path, backlog: DefaultBacklog, store: st, log: log}
}

// SetBacklog overrides the listen queue depth; it has no effect once
// Listen has been called.
func (s *Server) SetBacklog(n int) {
	if n > 0 {
		s.backlog = n
	}
}

// Listen binds the Unix domain socket at the configured path and starts
// listening with the configured backlog.
func (s *Server) Listen() error {
	ln, err := sockaddr.ListenUnix(s.path, s.backlog)
	if err != nil {
		return err
	}
	s.ln = ln
	s.running.Store(true)
	return nil
}

// Stop causes the next Accept to fail and Serve to return, the Go
// equivalent of the reference server's no-op SIGINT handler making accept
// return EINTR: closing the listener unblocks the loop without a stray
// signal abstraction.
func (s *Server) Stop() {
	s.running.Store(false)
	s.closeOnce.Do(func() {
		if s.ln != nil {
			_ = s.ln.Close()
		}
	})
}

// Serve runs the accept loop until Stop is called or a Terminate message
// is handled. It always removes the socket file before returning.
func (s *Server) Serve() error {
	defer func() {
		if s.ln != nil {
			_ = s.ln.Close()
		}
		_ = os.Remove(s.path)
	}()

	for s.running.Load() {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			continue
		}
		terminate := s.handleConn(conn)
		if terminate {
			s.running.Store(false)
			break
		}
	}
	return nil
}

// handleConn processes exactly one request on conn and reports whether the
// request was Terminate, which ends the serve loop without a reply.
func (s *Server) handleConn(conn net.Conn) (terminate bool) {
	cid, _ := uuid.GenerateUUID()
	log := s.log.WithField("conn", cid)
	defer conn.Close()

	msg, err := wire.Read(conn)
	if err != nil {
		log.Warn("read request: ", err)
		return false
	}

	log.Debug("dispatching ", msg.Header.Type.String())

	switch msg.Header.Type {
	case wire.Ping:
		s.reply(conn, log, wire.Message{Header: wire.Header{Type: wire.Pong}, Entry0: msg.Entry0})

	case wire.Add:
		s.handleAdd(conn, log, msg)

	case wire.Query:
		s.handleQuery(conn, log, msg)

	case wire.Delete:
		s.handleDelete(conn, log, msg)

	case wire.Terminate:
		log.Info("terminate requested")
		return true

	default:
		log.Warn("unknown message type ", msg.Header.Type)
	}
	return false
}

func (s *Server) handleAdd(conn net.Conn, log logging.Logger, msg wire.Message) {
	var ok bool
	if msg.Header.Flags&wire.FlagReplaceExisting != 0 {
		s.store.Update(msg.Entry0, msg.Entry1)
		ok = true
	} else {
		ok = s.store.Add(msg.Entry0, msg.Entry1)
	}
	if ok {
		s.reply(conn, log, wire.Message{Header: wire.Header{Type: wire.Ok}})
	} else {
		s.reply(conn, log, wire.Message{Header: wire.Header{Type: wire.Failed}})
	}
}

func (s *Server) handleQuery(conn net.Conn, log logging.Logger, msg wire.Message) {
	existenceOnly := msg.Header.Flags&wire.FlagExistenceOnly != 0
	deleteAfter := msg.Header.Flags&wire.FlagDeleteSecret != 0

	value, ok, err := s.store.Query(msg.Entry0, s.scratchAlloc)
	if err != nil {
		log.Error("allocate query result: ", err)
		s.reply(conn, log, wire.Message{Header: wire.Header{Type: wire.Failed}})
		return
	}

	if !ok {
		s.reply(conn, log, wire.Message{Header: wire.Header{Type: wire.Failed}})
		return
	}

	if existenceOnly {
		s.reply(conn, log, wire.Message{Header: wire.Header{Type: wire.Ok}})
	} else {
		s.reply(conn, log, wire.Message{Header: wire.Header{Type: wire.Result}, Entry0: value})
	}

	if s.dealloc != nil {
		if err := s.dealloc(value); err != nil {
			log.Warn("deallocate query result: ", err)
		}
	}

	// The reply is serialized before this deletion runs, resolving the
	// open question on ExistenceOnly+DeleteSecret ordering: the caller
	// always sees its Ok/Result before the entry disappears.
	if deleteAfter {
		s.store.Remove(msg.Entry0)
	}
}

func (s *Server) handleDelete(conn net.Conn, log logging.Logger, msg wire.Message) {
	removed := s.store.Remove(msg.Entry0)
	if removed == 1 || msg.Header.Flags&wire.FlagAllowMissing != 0 {
		s.reply(conn, log, wire.Message{Header: wire.Header{Type: wire.Ok}})
	} else {
		s.reply(conn, log, wire.Message{Header: wire.Header{Type: wire.Failed}})
	}
}

// scratchAlloc backs Store.Query's copy-out when the server has no
// hardened allocator wired in (e.g. under test); cmd/secretstoraged
// replaces this with a hardened-memory-backed allocator via SetAllocator.
func (s *Server) scratchAlloc(n int) ([]byte, error) {
	if s.alloc != nil {
		return s.alloc(n)
	}
	return make([]byte, n), nil
}

// SetAllocator installs the function used to back every Query result
// buffer, normally internal/hardenedmem.Manager.Allocate.
func (s *Server) SetAllocator(alloc func(n int) ([]byte, error)) {
	s.alloc = alloc
}

// SetDeallocator installs the function used to scrub and free a Query
// result buffer once its reply has been written, normally
// internal/hardenedmem.Manager.Deallocate. Left nil (as in tests using the
// plain make()-backed scratchAlloc default), query results are simply
// garbage collected instead.
func (s *Server) SetDeallocator(dealloc func([]byte) error) {
	s.dealloc = dealloc
}

func (s *Server) reply(conn net.Conn, log logging.Logger, msg wire.Message) {
	if err := wire.Write(conn, msg); err != nil {
		log.Warn("write reply: ", err)
	}
}
