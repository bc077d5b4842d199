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

// Command secretstoraged is the daemon entrypoint: it wires configuration,
// logging, the hardened allocator, the store, and the server loop
// together, and reacts to SIGINT/SIGTERM by stopping the serve loop in an
// orderly way. Socket path resolution, including the --replace recovery
// path for a stale socket left by a crashed prior instance, follows §4.7
// and §9 of the design this daemon implements.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nabbar/secret-storage/internal/daemonconfig"
	"github.com/nabbar/secret-storage/internal/hardenedmem"
	"github.com/nabbar/secret-storage/internal/logging"
	"github.com/nabbar/secret-storage/internal/server"
	"github.com/nabbar/secret-storage/internal/sockaddr"
	"github.com/nabbar/secret-storage/internal/store"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secretstoraged",
		Short: "In-memory storage daemon for holding secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := daemonconfig.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	daemonconfig.Flags(cmd.Flags())
	return cmd
}

func run(cfg daemonconfig.Config) error {
	log := logging.New(os.Stderr, cfg.LogLevel)

	path, err := sockaddr.Resolve(cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("resolve socket path: %w", err)
	}

	if err := sockaddr.CheckAvailable(path); err != nil {
		if !cfg.Replace {
			return fmt.Errorf("socket path unavailable: %w", err)
		}
		if probeListener(path) {
			return fmt.Errorf("refusing to replace: another instance is still listening on %s", path)
		}
		log.Warn("removing stale socket left by a previous instance: ", path)
		if err := sockaddr.RemoveStale(path); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	st := store.New()
	srv := server.New(path, st, log)
	srv.SetBacklog(cfg.Backlog)
	srv.SetAllocator(hardenedmem.Default().Allocate)
	srv.SetDeallocator(hardenedmem.Default().Deallocate)

	if err := srv.Listen(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.WithField("socket", path).Info("listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutdown signal received")
		srv.Stop()
	}()

	return srv.Serve()
}

// probeListener reports whether something is actually accepting
// connections at path, distinguishing a stale socket file (safe to
// remove) from a live daemon (must not be torn down out from under its
// clients).
func probeListener(path string) bool {
	conn, err := net.DialTimeout("unix", path, 200*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
