/*
 * Berth
 * Copyright (C) 2025  Quayside, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package log configures the process-wide slog logger and hands out
// per-package child loggers.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gravitational/trace"
)

// SupportedLevelsText lists the supported log levels in their text
// representation. All strings are in uppercase.
var SupportedLevelsText = []string{
	slog.LevelDebug.String(),
	slog.LevelInfo.String(),
	slog.LevelWarn.String(),
	slog.LevelError.String(),
}

// Config configures the default logger for the process.
type Config struct {
	// Output is where log lines go: "stderr" (default), "stdout",
	// or a file path.
	Output string
	// Severity is the minimum level emitted, one of SupportedLevelsText.
	// Defaults to INFO.
	Severity string
	// Format selects the handler: "text" (default) or "json".
	Format string
}

// Initialize builds a slog logger from cfg and installs it as the
// process default. It returns the logger and the leveler so callers
// can adjust verbosity later.
func Initialize(cfg Config) (*slog.Logger, *slog.LevelVar, error) {
	var w io.Writer
	switch cfg.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
		if err != nil {
			return nil, nil, trace.ConvertSystemError(err)
		}
		w = f
	}

	level := new(slog.LevelVar)
	parsed, err := ParseLevel(cfg.Severity)
	if err != nil {
		return nil, nil, trace.Wrap(err)
	}
	level.Set(parsed)

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return nil, nil, trace.BadParameter("unsupported log format %q", cfg.Format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, level, nil
}

// ParseLevel converts a level name to its slog value. The empty string
// maps to INFO.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return slog.LevelInfo, nil
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String():
		return slog.LevelInfo, nil
	case slog.LevelWarn.String():
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	}
	return slog.LevelInfo, trace.BadParameter("unsupported log severity %q, expected one of %v", s, SupportedLevelsText)
}

// NewPackageLogger creates a child of the default logger carrying the
// provided key value pairs, typically a component field.
func NewPackageLogger(args ...any) *slog.Logger {
	return slog.With(args...)
}
