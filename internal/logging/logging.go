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

// Package logging wraps logrus with the handful of conventions the daemon
// and accessor need: a leveled Logger interface, structured fields attached
// per call site, and a correlation-id field threaded through a connection's
// lifetime. It intentionally drops the teacher's multi-framework bridges
// (gorm, hclog, spf13, syslog hooks) - this daemon has no ORM, no plugin
// host, and logs to stderr only.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level mirrors logrus' level ordering so callers never import logrus
// directly just to pick a verbosity.
type Level uint32

const (
	LevelError Level = Level(logrus.ErrorLevel)
	LevelWarn  Level = Level(logrus.WarnLevel)
	LevelInfo  Level = Level(logrus.InfoLevel)
	LevelDebug Level = Level(logrus.DebugLevel)
)

// Fields attaches structured key/value context to a single log line.
type Fields map[string]any

// Logger is the logging surface every package in this module depends on.
type Logger interface {
	WithField(key string, value any) Logger
	WithFields(f Fields) Logger
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
}

type logger struct {
	entry *logrus.Entry
}

// New builds a Logger writing JSON lines to w at the given level. Passing a
// nil w defaults to os.Stderr, matching the daemon's default of logging to
// the controlling terminal or the service manager's journal.
func New(w io.Writer, level Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(logrus.Level(level))
	base.SetFormatter(&logrus.JSONFormatter{})
	return &logger{entry: logrus.NewEntry(base)}
}

func (l *logger) WithField(key string, value any) Logger {
	return &logger{entry: l.entry.WithField(key, value)}
}

func (l *logger) WithFields(f Fields) Logger {
	return &logger{entry: l.entry.WithFields(logrus.Fields(f))}
}

func (l *logger) Debug(args ...any) { l.entry.Debug(args...) }
func (l *logger) Info(args ...any)  { l.entry.Info(args...) }
func (l *logger) Warn(args ...any)  { l.entry.Warn(args...) }
func (l *logger) Error(args ...any) { l.entry.Error(args...) }

// ParseLevel maps a config/CLI string onto a Level, defaulting to
// LevelInfo for anything unrecognized.
func ParseLevel(s string) Level {
	lv, err := logrus.ParseLevel(s)
	if err != nil {
		return LevelInfo
	}
	return Level(lv)
}
