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

// Package daemonconfig binds the daemon's flags and SECRET_STORAGE_
// environment variables into one Config value, the way the teacher's
// config components decode viper settings into typed structs - trimmed
// here to the handful of settings this daemon actually has: no config
// file, no component registry, no hot reload.
package daemonconfig

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nabbar/secret-storage/internal/logging"
)

// Config is the fully resolved daemon configuration.
type Config struct {
	// SocketPath overrides socket address resolution (internal/sockaddr)
	// when non-empty.
	SocketPath string
	// Backlog is the listen queue depth.
	Backlog int
	// LogLevel is parsed with internal/logging.ParseLevel.
	LogLevel logging.Level
	// Replace, when true, lets the daemon unlink a stale socket file
	// after a connect probe confirms nothing is listening on it.
	Replace bool
}

// Flags registers this package's flags on fs, for a cobra command's
// PersistentFlags or Flags.
func Flags(fs *pflag.FlagSet) {
	fs.String("socket", "", "path to the Unix domain socket (default: resolved per XDG/HOME rules)")
	fs.Int("backlog", 5, "listen queue depth")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("replace", false, "remove a stale socket file after confirming no listener remains")
}

// Load binds fs into viper (with SECRET_STORAGE_ environment overrides)
// and returns the resolved Config.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SECRET_STORAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return Config{}, err
	}

	return Config{
		SocketPath: v.GetString("socket"),
		Backlog:    v.GetInt("backlog"),
		LogLevel:   logging.ParseLevel(v.GetString("log-level")),
		Replace:    v.GetBool("replace"),
	}, nil
}
